package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// MagicLinkPayload captures the data available when minting a customer link.
type MagicLinkPayload struct {
	CustomerEmail string
	QRCode        string
}

// MagicLinkClaims is the typed JWT embedded in customer portal links.
type MagicLinkClaims struct {
	QRCode string `json:"qr"`
	jwt.RegisteredClaims
}
