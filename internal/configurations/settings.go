package configurations

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// UseDefaultTemplateSentinel is the stored customHTML value meaning "use the default template".
const UseDefaultTemplateSentinel = "USE_DEFAULT_TEMPLATE"

const (
	defaultGuests = 1
	defaultDays   = 1
)

// TemplateSource selects where an email body comes from. It is either
// CustomTemplate or DefaultTemplate.
type TemplateSource interface {
	templateSource()
}

// CustomTemplate carries seller-authored HTML.
type CustomTemplate struct {
	HTML    string
	Subject string
}

// DefaultTemplate defers to the current default template for the kind.
type DefaultTemplate struct{}

func (CustomTemplate) templateSource()  {}
func (DefaultTemplate) templateSource() {}

// Pricing holds the seller's pass pricing rules.
type Pricing struct {
	Type              enums.PricingType
	FixedPrice        decimal.Decimal
	BasePrice         decimal.Decimal
	PerGuestIncrease  decimal.Decimal
	PerDayIncrease    decimal.Decimal
	CommissionPercent decimal.Decimal
	IncludeTax        bool
	TaxPercent        decimal.Decimal
}

// RebuyDiscount is appended to rebuy links when the seller enables it.
type RebuyDiscount struct {
	Type  enums.DiscountType
	Value decimal.Decimal
}

// SellerSettings is the typed view of a qr_configurations row.
type SellerSettings struct {
	ConfigurationID  uuid.UUID
	SellerID         *string
	IsGlobal         bool
	SendWelcomeEmail bool
	SendRebuyEmail   bool
	DefaultGuests    int
	DefaultDays      int
	Pricing          Pricing
	DeliveryMethod   enums.DeliveryMethod
	Welcome          TemplateSource
	Rebuy            TemplateSource
	RebuyDiscount    *RebuyDiscount
}

// TemplateFor returns the template source configured for kind.
func (s *SellerSettings) TemplateFor(kind enums.EmailKind) TemplateSource {
	if s == nil {
		return DefaultTemplate{}
	}
	switch kind {
	case enums.EmailKindRebuy:
		if s.Rebuy != nil {
			return s.Rebuy
		}
	case enums.EmailKindWelcome:
		if s.Welcome != nil {
			return s.Welcome
		}
	}
	return DefaultTemplate{}
}

type rawConfig struct {
	SendWelcomeEmail      *bool            `json:"sendWelcomeEmail"`
	SendRebuyEmail        *bool            `json:"button5SendRebuyEmail"`
	GuestsDefault         int              `json:"button1GuestsDefault"`
	DaysDefault           int              `json:"button1DaysDefault"`
	PricingType           string           `json:"button2PricingType"`
	FixedPrice            *decimal.Decimal `json:"button2FixedPrice"`
	VariableBasePrice     *decimal.Decimal `json:"button2VariableBasePrice"`
	VariableGuestIncrease *decimal.Decimal `json:"button2VariableGuestIncrease"`
	VariableDayIncrease   *decimal.Decimal `json:"button2VariableDayIncrease"`
	VariableCommission    *decimal.Decimal `json:"button2VariableCommission"`
	IncludeTax            bool             `json:"button2IncludeTax"`
	TaxPercentage         *decimal.Decimal `json:"button2TaxPercentage"`
	DeliveryMethod        string           `json:"button3DeliveryMethod"`
}

type rawTemplate struct {
	CustomHTML         string           `json:"customHTML"`
	Subject            string           `json:"subject"`
	EnableDiscountCode bool             `json:"enableDiscountCode"`
	DiscountType       string           `json:"discountType"`
	DiscountValue      *decimal.Decimal `json:"discountValue"`
}

// UnmarshalJSON also accepts a bare string, which older rows store in place
// of the template object.
func (t *rawTemplate) UnmarshalJSON(data []byte) error {
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(data, &t.CustomHTML)
	}
	type plain rawTemplate
	return json.Unmarshal(data, (*plain)(t))
}

type rawEmailTemplates struct {
	WelcomeEmail *rawTemplate `json:"welcomeEmail"`
	RebuyEmail   *rawTemplate `json:"rebuyEmail"`
}

// Decode parses the JSON columns of a configuration row once, mapping the
// template sentinel to DefaultTemplate.
func Decode(row *models.QRConfiguration) (*SellerSettings, error) {
	if row == nil {
		return nil, fmt.Errorf("configuration row required")
	}

	var cfg rawConfig
	if strings.TrimSpace(row.Config) != "" {
		if err := json.Unmarshal([]byte(row.Config), &cfg); err != nil {
			return nil, fmt.Errorf("decode configuration %s: %w", row.ID, err)
		}
	}

	var templates rawEmailTemplates
	if row.EmailTemplates != nil && strings.TrimSpace(*row.EmailTemplates) != "" {
		if err := json.Unmarshal([]byte(*row.EmailTemplates), &templates); err != nil {
			return nil, fmt.Errorf("decode email templates %s: %w", row.ID, err)
		}
	}

	settings := &SellerSettings{
		ConfigurationID:  row.ID,
		SellerID:         row.SellerID,
		IsGlobal:         row.IsGlobal,
		SendWelcomeEmail: boolOr(cfg.SendWelcomeEmail, true),
		SendRebuyEmail:   boolOr(cfg.SendRebuyEmail, false),
		DefaultGuests:    positiveOr(cfg.GuestsDefault, defaultGuests),
		DefaultDays:      positiveOr(cfg.DaysDefault, defaultDays),
		Pricing:          decodePricing(cfg),
		DeliveryMethod:   enums.DeliveryMethodDirect,
		Welcome:          decodeSource(templates.WelcomeEmail),
		Rebuy:            decodeSource(templates.RebuyEmail),
		RebuyDiscount:    decodeDiscount(templates.RebuyEmail),
	}
	if method, err := enums.ParseDeliveryMethod(strings.ToUpper(strings.TrimSpace(cfg.DeliveryMethod))); err == nil {
		settings.DeliveryMethod = method
	}
	return settings, nil
}

func decodePricing(cfg rawConfig) Pricing {
	pricing := Pricing{
		Type:              enums.PricingType(strings.ToUpper(strings.TrimSpace(cfg.PricingType))),
		FixedPrice:        decimalOr(cfg.FixedPrice),
		BasePrice:         decimalOr(cfg.VariableBasePrice),
		PerGuestIncrease:  decimalOr(cfg.VariableGuestIncrease),
		PerDayIncrease:    decimalOr(cfg.VariableDayIncrease),
		CommissionPercent: decimalOr(cfg.VariableCommission),
		IncludeTax:        cfg.IncludeTax,
		TaxPercent:        decimalOr(cfg.TaxPercentage),
	}
	if !pricing.Type.IsValid() {
		pricing.Type = enums.PricingFree
	}
	return pricing
}

func decodeSource(raw *rawTemplate) TemplateSource {
	if raw == nil {
		return DefaultTemplate{}
	}
	html := strings.TrimSpace(raw.CustomHTML)
	if html == "" || html == UseDefaultTemplateSentinel {
		return DefaultTemplate{}
	}
	return CustomTemplate{HTML: raw.CustomHTML, Subject: strings.TrimSpace(raw.Subject)}
}

func decodeDiscount(raw *rawTemplate) *RebuyDiscount {
	if raw == nil || !raw.EnableDiscountCode || raw.DiscountValue == nil || !raw.DiscountValue.IsPositive() {
		return nil
	}
	discountType := enums.DiscountPercentage
	if enums.DiscountType(strings.ToLower(strings.TrimSpace(raw.DiscountType))) == enums.DiscountFixed {
		discountType = enums.DiscountFixed
	}
	return &RebuyDiscount{Type: discountType, Value: *raw.DiscountValue}
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func decimalOr(value *decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return *value
}
