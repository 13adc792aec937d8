package middleware

import (
	"bytes"
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/elocalpass/elocalpass-backend/api/responses"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

const (
	signatureHeader = "Upstash-Signature"
	maxSignedBody   = 1 << 20
)

type signatureVerifier interface {
	Enabled() bool
	Verify(signature string, body []byte) error
}

// BearerToken admits requests carrying "Authorization: Bearer <token>". An
// empty token leaves the route open.
func BearerToken(caller, token string, logg *logger.Logger) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), CallerOpen)))
				return
			}
			if !bearerMatches(r, token) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials"))
				return
			}
			next.ServeHTTP(w, r.WithContext(authenticated(r, logg, caller)))
		})
	}
}

// Trigger guards the scheduled-processing callbacks. A valid QStash signature
// or the cron bearer secret is accepted; with neither configured the route is
// open.
func Trigger(cronSecret string, verifier signatureVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	cronSecret = strings.TrimSpace(cronSecret)
	signing := verifier != nil && verifier.Enabled()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cronSecret == "" && !signing {
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), CallerOpen)))
				return
			}
			if cronSecret != "" && bearerMatches(r, cronSecret) {
				next.ServeHTTP(w, r.WithContext(authenticated(r, logg, CallerCron)))
				return
			}
			if signing {
				if signature := r.Header.Get(signatureHeader); signature != "" {
					body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
					if err != nil {
						responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
						return
					}
					r.Body = io.NopCloser(bytes.NewReader(body))
					if err := verifier.Verify(signature, body); err != nil {
						responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid signature"))
						return
					}
					next.ServeHTTP(w, r.WithContext(authenticated(r, logg, CallerQStash)))
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		})
	}
}

func bearerMatches(r *http.Request, expected string) bool {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) < 7 || !strings.EqualFold(raw[:7], "bearer ") {
		return false
	}
	provided := strings.TrimSpace(raw[7:])
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

func authenticated(r *http.Request, logg *logger.Logger, caller string) context.Context {
	ctx := WithCaller(r.Context(), caller)
	if logg != nil {
		ctx = logg.WithField(ctx, "caller", caller)
	}
	return ctx
}
