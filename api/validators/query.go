package validators

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter bounded by [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := QueryString(r, key, 0)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError("query parameter must be numeric", key, nil)
	}
	if value < min || value > max {
		return 0, queryError("query parameter out of range", key, map[string]any{"min": min, "max": max})
	}
	return value, nil
}

// ParseQueryOneOf reads an optional query parameter restricted to allowed values.
func ParseQueryOneOf(r *http.Request, key string, allowed ...string) (string, error) {
	raw := strings.ToLower(QueryString(r, key, 0))
	if raw == "" || slices.Contains(allowed, raw) {
		return raw, nil
	}
	return "", queryError("query parameter has an unsupported value", key, map[string]any{"allowed": allowed})
}

// QueryString returns the trimmed query value, capped at maxLen when positive.
func QueryString(r *http.Request, key string, maxLen int) string {
	return SanitizeString(r.URL.Query().Get(key), maxLen)
}

func queryError(msg, key string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}
