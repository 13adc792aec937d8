package emailtemplates

import (
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

// Placeholder tokens recognized in stored templates.
const (
	TokenCustomerName          = "customerName"
	TokenQRCode                = "qrCode"
	TokenGuests                = "guests"
	TokenDays                  = "days"
	TokenHoursLeft             = "hoursLeft"
	TokenQRExpirationTimestamp = "qrExpirationTimestamp"
	TokenCustomerPortalURL     = "customerPortalUrl"
	TokenRebuyURL              = "rebuyUrl"
	TokenExpirationDate        = "expirationDate"
	TokenMagicLink             = "magicLink"
)

// Values maps token names to their substitutions.
type Values map[string]string

// Render replaces every {token} with its value in one pass. Brace text that is
// not a known token is written back untouched; the names of unknown
// identifier-like tokens are returned so callers can log incomplete renders.
func Render(template string, values Values) (string, []string) {
	var unknown []string
	seen := map[string]struct{}{}

	out := fasttemplate.ExecuteFuncString(template, "{", "}", func(w io.Writer, tag string) (int, error) {
		prefix := ""
		if i := strings.LastIndex(tag, "{"); i >= 0 {
			prefix = "{" + tag[:i]
			tag = tag[i+1:]
		}
		if value, ok := values[tag]; ok {
			return io.WriteString(w, prefix+value)
		}
		if isTokenName(tag) {
			if _, dup := seen[tag]; !dup {
				seen[tag] = struct{}{}
				unknown = append(unknown, tag)
			}
		}
		return io.WriteString(w, prefix+"{"+tag+"}")
	})
	return out, unknown
}

func isTokenName(tag string) bool {
	if tag == "" {
		return false
	}
	for i, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
