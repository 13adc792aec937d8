package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const signatureIssuer = "Upstash"

// ErrInvalidSignature is returned when no configured key validates the request.
var ErrInvalidSignature = errors.New("invalid qstash signature")

// SignatureClaims are the claims QStash signs into the Upstash-Signature header.
type SignatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verifier checks Upstash-Signature headers against the current and next signing keys.
type Verifier struct {
	keys   []string
	leeway time.Duration
}

func NewVerifier(keys []string) *Verifier {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	return &Verifier{keys: clean, leeway: time.Minute}
}

// Enabled reports whether any signing key is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.keys) > 0
}

// Verify validates the signature JWT and that it covers body.
func (v *Verifier) Verify(signature string, body []byte) error {
	if !v.Enabled() {
		return errors.New("qstash signing keys not configured")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrInvalidSignature
	}

	var lastErr error
	for _, key := range v.keys {
		if err := v.verifyWithKey(key, signature, body); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func (v *Verifier) verifyWithKey(key, signature string, body []byte) error {
	claims := &SignatureClaims{}
	_, err := jwt.ParseWithClaims(
		signature,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(key), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signatureIssuer),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if strings.TrimRight(claims.Body, "=") != want {
		return errors.New("body hash mismatch")
	}
	return nil
}
