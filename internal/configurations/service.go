package configurations

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

// Lookup identifies the configuration a pass was sold under.
type Lookup struct {
	ConfigurationID *uuid.UUID
	SellerID        *string
}

// Service resolves typed seller settings.
type Service interface {
	Load(ctx context.Context, lookup Lookup) (*SellerSettings, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the configuration reader.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "configurations repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// Load returns the explicit configuration when it exists, otherwise the
// seller's newest configuration, otherwise the global one.
func (s *service) Load(ctx context.Context, lookup Lookup) (*SellerSettings, error) {
	if lookup.ConfigurationID != nil && *lookup.ConfigurationID != uuid.Nil {
		row, err := s.repo.FindByID(ctx, *lookup.ConfigurationID)
		switch {
		case err == nil:
			return s.decode(ctx, row)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load configuration")
		}
	}

	if lookup.SellerID != nil && strings.TrimSpace(*lookup.SellerID) != "" {
		row, err := s.repo.FindLatestForSeller(ctx, *lookup.SellerID)
		switch {
		case err == nil:
			return s.decode(ctx, row)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller configuration")
		}
	}

	row, err := s.repo.FindGlobal(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "configuration not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load global configuration")
	}
	return s.decode(ctx, row)
}

func (s *service) decode(ctx context.Context, row *models.QRConfiguration) (*SellerSettings, error) {
	settings, err := Decode(row)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "configuration_id", row.ID.String()), "invalid seller configuration", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfigurationMissing, err, "invalid seller configuration")
	}
	return settings, nil
}
