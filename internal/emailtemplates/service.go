package emailtemplates

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/internal/configurations"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

var defaultSubjects = map[enums.EmailKind]map[enums.Language]string{
	enums.EmailKindWelcome: {
		enums.LanguageEnglish: "Your ELocalPass is ready",
		enums.LanguageSpanish: "Tu ELocalPass está listo",
	},
	enums.EmailKindRebuy: {
		enums.LanguageEnglish: "Your ELocalPass expires in {hoursLeft} hours",
		enums.LanguageSpanish: "Tu ELocalPass vence en {hoursLeft} horas",
	},
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ResolveRequest selects the template for one email.
type ResolveRequest struct {
	Kind     enums.EmailKind
	Source   configurations.TemplateSource
	Language enums.Language
}

// Resolved is the unrendered subject and body chosen for an email.
type Resolved struct {
	Kind        enums.EmailKind
	Subject     string
	HTML        string
	TemplateID  *uuid.UUID
	FromDefault bool
}

// CreateInput describes a new operator template.
type CreateInput struct {
	Kind        enums.EmailKind
	Name        string
	Subject     string
	HTML        string
	MakeDefault bool
}

// Service resolves and manages email templates.
type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (*Resolved, error)
	Create(ctx context.Context, input CreateInput) (*models.EmailTemplate, error)
	SetDefault(ctx context.Context, templateID uuid.UUID) (*models.EmailTemplate, error)
}

type ServiceParams struct {
	Repo   Repository
	DB     txRunner
	Logger *logger.Logger
}

type service struct {
	repo Repository
	db   txRunner
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email templates repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: params.Repo, db: params.DB, logg: params.Logger}, nil
}

func (s *service) Resolve(ctx context.Context, req ResolveRequest) (*Resolved, error) {
	if !req.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email kind")
	}

	if custom, ok := req.Source.(configurations.CustomTemplate); ok && strings.TrimSpace(custom.HTML) != "" {
		subject := strings.TrimSpace(custom.Subject)
		if subject == "" {
			subject = DefaultSubject(req.Kind, req.Language)
		}
		return &Resolved{Kind: req.Kind, Subject: subject, HTML: custom.HTML}, nil
	}

	tpl, err := s.currentDefault(ctx, req.Kind)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(tpl.Subject)
	if subject == "" {
		subject = DefaultSubject(req.Kind, req.Language)
	}
	id := tpl.ID
	return &Resolved{
		Kind:        req.Kind,
		Subject:     subject,
		HTML:        tpl.HTML,
		TemplateID:  &id,
		FromDefault: true,
	}, nil
}

func (s *service) currentDefault(ctx context.Context, kind enums.EmailKind) (*models.EmailTemplate, error) {
	tpl, err := s.repo.FindPointedDefault(ctx, kind)
	if err == nil && strings.TrimSpace(tpl.HTML) != "" {
		return tpl, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default template pointer")
	}

	tpl, err = s.repo.FindNewestDefault(ctx, kind)
	if err == nil && strings.TrimSpace(tpl.HTML) != "" {
		return tpl, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default template")
	}

	missing := pkgerrors.New(pkgerrors.CodeConfigurationMissing, "no default email template configured").
		WithDetails(map[string]any{"kind": kind})
	s.logg.Error(s.logg.WithField(ctx, "email_kind", kind), "default email template missing", missing)
	return nil, missing
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.EmailTemplate, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email kind")
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Subject) == "" || strings.TrimSpace(input.HTML) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name, subject and html are required")
	}

	tpl := &models.EmailTemplate{
		Kind:      input.Kind,
		Name:      strings.TrimSpace(input.Name),
		Subject:   strings.TrimSpace(input.Subject),
		HTML:      input.HTML,
		IsDefault: input.MakeDefault,
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, tpl); err != nil {
			return err
		}
		if input.MakeDefault {
			return repo.SetDefault(ctx, tpl.Kind, tpl.ID)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create email template")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"template_id": tpl.ID.String(),
		"email_kind":  tpl.Kind,
		"is_default":  tpl.IsDefault,
	}), "email template created")
	return tpl, nil
}

func (s *service) SetDefault(ctx context.Context, templateID uuid.UUID) (*models.EmailTemplate, error) {
	if templateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template id required")
	}

	var tpl *models.EmailTemplate
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindByID(ctx, templateID)
		if err != nil {
			return err
		}
		if err := repo.SetDefault(ctx, found.Kind, found.ID); err != nil {
			return err
		}
		found.IsDefault = true
		tpl = found
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "email template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set default email template")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"template_id": tpl.ID.String(),
		"email_kind":  tpl.Kind,
	}), "default email template updated")
	return tpl, nil
}

// DefaultSubject returns the built-in subject for kind in lang.
func DefaultSubject(kind enums.EmailKind, lang enums.Language) string {
	byLang := defaultSubjects[kind]
	if subject, ok := byLang[lang]; ok {
		return subject
	}
	return byLang[enums.LanguageEnglish]
}
