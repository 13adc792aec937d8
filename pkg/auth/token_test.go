package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/stretchr/testify/require"
)

func testPortalConfig() config.PortalConfig {
	return config.PortalConfig{
		BaseURL:         "https://elocalpass.com/",
		MagicLinkSecret: "secret",
		MagicLinkIssuer: "elocalpass",
	}
}

func TestMintAndParseMagicLinkToken(t *testing.T) {
	cfg := testPortalConfig()
	now := time.Now().UTC()

	token, err := MintMagicLinkToken(cfg, now, now.Add(48*time.Hour), MagicLinkPayload{
		CustomerEmail: " Guest@Example.com ",
		QRCode:        "EL-ABC-123456",
	})
	require.NoError(t, err)

	claims, err := ParseMagicLinkToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, "guest@example.com", claims.Subject)
	require.Equal(t, "EL-ABC-123456", claims.QRCode)
	require.Equal(t, "elocalpass", claims.Issuer)
}

func TestParseMagicLinkTokenRejectsWrongSecret(t *testing.T) {
	cfg := testPortalConfig()
	now := time.Now().UTC()
	token, err := MintMagicLinkToken(cfg, now, now.Add(time.Hour), MagicLinkPayload{CustomerEmail: "a@b.c"})
	require.NoError(t, err)

	cfg.MagicLinkSecret = "other"
	_, err = ParseMagicLinkToken(cfg, token)
	require.Error(t, err)
}

func TestParseMagicLinkTokenRejectsExpired(t *testing.T) {
	cfg := testPortalConfig()
	past := time.Now().UTC().Add(-72 * time.Hour)
	token, err := MintMagicLinkToken(cfg, past, past.Add(time.Hour), MagicLinkPayload{CustomerEmail: "a@b.c"})
	require.NoError(t, err)

	_, err = ParseMagicLinkToken(cfg, token)
	require.Error(t, err)
}

func TestMintMagicLinkTokenValidation(t *testing.T) {
	now := time.Now().UTC()
	_, err := MintMagicLinkToken(config.PortalConfig{}, now, now.Add(time.Hour), MagicLinkPayload{CustomerEmail: "a@b.c"})
	require.Error(t, err)

	_, err = MintMagicLinkToken(testPortalConfig(), now, now.Add(-time.Hour), MagicLinkPayload{CustomerEmail: "a@b.c"})
	require.Error(t, err)
}

func TestBuildMagicLink(t *testing.T) {
	now := time.Now().UTC()
	link, err := BuildMagicLink(testPortalConfig(), now, now.Add(time.Hour), MagicLinkPayload{CustomerEmail: "a@b.c", QRCode: "EL-1"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "https://elocalpass.com/customer/access?token="))

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	_, err = ParseMagicLinkToken(testPortalConfig(), parsed.Query().Get("token"))
	require.NoError(t, err)

	plain, err := BuildMagicLink(config.PortalConfig{BaseURL: "https://elocalpass.com"}, now, now.Add(time.Hour), MagicLinkPayload{})
	require.NoError(t, err)
	require.Equal(t, "https://elocalpass.com/customer/access", plain)
}
