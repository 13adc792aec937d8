package auth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

const magicLinkPath = "/customer/access"

// MintMagicLinkToken issues a signed customer token that expires with the pass.
func MintMagicLinkToken(cfg config.PortalConfig, now, expiresAt time.Time, payload MagicLinkPayload) (string, error) {
	if cfg.MagicLinkSecret == "" {
		return "", fmt.Errorf("magic link secret is required")
	}
	if strings.TrimSpace(payload.CustomerEmail) == "" {
		return "", fmt.Errorf("customer email is required")
	}
	if !expiresAt.After(now) {
		return "", fmt.Errorf("magic link expiry must be in the future")
	}

	claims := MagicLinkClaims{
		QRCode: payload.QRCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.MagicLinkIssuer,
			Subject:   strings.ToLower(strings.TrimSpace(payload.CustomerEmail)),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.MagicLinkSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseMagicLinkToken validates the token string and returns typed claims.
func ParseMagicLinkToken(cfg config.PortalConfig, tokenString string) (*MagicLinkClaims, error) {
	if cfg.MagicLinkSecret == "" {
		return nil, fmt.Errorf("magic link secret is required")
	}

	claims := &MagicLinkClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.MagicLinkSecret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.MagicLinkIssuer),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// BuildMagicLink returns the portal URL carrying a freshly minted token. Without
// a configured secret it degrades to the plain portal URL.
func BuildMagicLink(cfg config.PortalConfig, now, expiresAt time.Time, payload MagicLinkPayload) (string, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MagicLinkSecret == "" {
		return base + magicLinkPath, nil
	}
	token, err := MintMagicLinkToken(cfg, now, expiresAt, payload)
	if err != nil {
		return "", err
	}
	return base + magicLinkPath + "?token=" + url.QueryEscape(token), nil
}
