package qrcodes

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/pkg/auth"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

const customerPortalPath = "/customer/access"

var spanishMonths = [...]string{"", "enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

// HoursLeft is the whole number of hours until expiry, floored and never negative.
func HoursLeft(expiresAt, now time.Time) int {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Floor(remaining.Hours()))
}

// PortalURL is the customer portal landing page.
func PortalURL(portal config.PortalConfig) string {
	return strings.TrimRight(portal.BaseURL, "/") + customerPortalPath
}

// TemplateValues builds the placeholder values shared by welcome and rebuy
// emails. A magic link that cannot be minted degrades to the portal URL.
func TemplateValues(qr *models.QRCode, now time.Time, portal config.PortalConfig) emailtemplates.Values {
	portalURL := PortalURL(portal)
	magicLink, err := auth.BuildMagicLink(portal, now, qr.ExpiresAt, auth.MagicLinkPayload{
		CustomerEmail: qr.CustomerEmail,
		QRCode:        qr.Code,
	})
	if err != nil {
		magicLink = portalURL
	}
	return emailtemplates.Values{
		emailtemplates.TokenCustomerName:          qr.CustomerName,
		emailtemplates.TokenQRCode:                qr.Code,
		emailtemplates.TokenGuests:                strconv.Itoa(qr.Guests),
		emailtemplates.TokenDays:                  strconv.Itoa(qr.Days),
		emailtemplates.TokenHoursLeft:             strconv.Itoa(HoursLeft(qr.ExpiresAt, now)),
		emailtemplates.TokenQRExpirationTimestamp: qr.ExpiresAt.UTC().Format(time.RFC3339),
		emailtemplates.TokenExpirationDate:        FormatExpirationDate(qr.ExpiresAt, qr.Language),
		emailtemplates.TokenCustomerPortalURL:     portalURL,
		emailtemplates.TokenMagicLink:             magicLink,
	}
}

// FormatExpirationDate renders a human date in the pass language.
func FormatExpirationDate(t time.Time, lang enums.Language) string {
	t = t.UTC()
	if lang == enums.LanguageSpanish {
		return strconv.Itoa(t.Day()) + " de " + spanishMonths[t.Month()] + " de " + strconv.Itoa(t.Year())
	}
	return t.Format("January 2, 2006")
}
