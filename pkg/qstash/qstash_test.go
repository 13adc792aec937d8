package qstash

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/elocalpass/elocalpass-backend/pkg/config"
)

func TestPublishSendsDelayHeader(t *testing.T) {
	notBefore := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	var gotPath, gotAuth, gotDelay, gotRetries string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDelay = r.Header.Get("Upstash-Not-Before")
		gotRetries = r.Header.Get("Upstash-Retries")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageId":"msg_123"}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.SchedulingConfig{QStashURL: srv.URL, QStashToken: "tok"})
	require.NoError(t, err)

	retries := 0
	id, err := client.Publish(context.Background(), PublishRequest{
		Destination: "https://api.elocalpass.com/scheduled-qr/process-single",
		Body:        map[string]string{"scheduledQRId": "abc"},
		NotBefore:   notBefore,
		Retries:     &retries,
	})
	require.NoError(t, err)
	require.Equal(t, "msg_123", id)
	require.Equal(t, "/v2/publish/https://api.elocalpass.com/scheduled-qr/process-single", gotPath)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, strconv.FormatInt(notBefore.Unix(), 10), gotDelay)
	require.Equal(t, "0", gotRetries)
	require.Equal(t, "abc", gotBody["scheduledQRId"])
}

func TestPublishOmitsRetriesWhenUnset(t *testing.T) {
	retriesSent := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, retriesSent = r.Header["Upstash-Retries"]
		_, _ = w.Write([]byte(`{"messageId":"msg_1"}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.SchedulingConfig{QStashURL: srv.URL, QStashToken: "tok"})
	require.NoError(t, err)

	_, err = client.Publish(context.Background(), PublishRequest{Destination: "https://x", Body: struct{}{}})
	require.NoError(t, err)
	require.False(t, retriesSent)
}

func TestPublishSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(config.SchedulingConfig{QStashURL: srv.URL, QStashToken: "tok"})
	require.NoError(t, err)

	_, err = client.Publish(context.Background(), PublishRequest{Destination: "https://x", Body: struct{}{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(config.SchedulingConfig{})
	require.Error(t, err)
}

func signBody(t *testing.T, key string, body []byte, issuer string, exp time.Time) string {
	t.Helper()
	sum := sha256.Sum256(body)
	claims := SignatureClaims{
		Body: base64.URLEncoding.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Second)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestVerifierAcceptsCurrentAndNextKeys(t *testing.T) {
	body := []byte(`{"scheduledQRId":"abc"}`)
	v := NewVerifier([]string{"current", "next"})
	require.True(t, v.Enabled())

	require.NoError(t, v.Verify(signBody(t, "current", body, "Upstash", time.Now().Add(time.Minute)), body))
	require.NoError(t, v.Verify(signBody(t, "next", body, "Upstash", time.Now().Add(time.Minute)), body))
}

func TestVerifierRejectsTampering(t *testing.T) {
	body := []byte(`{"scheduledQRId":"abc"}`)
	v := NewVerifier([]string{"current", " "})

	cases := map[string]string{
		"wrong key":     signBody(t, "other", body, "Upstash", time.Now().Add(time.Minute)),
		"wrong issuer":  signBody(t, "current", body, "Someone", time.Now().Add(time.Minute)),
		"expired":       signBody(t, "current", body, "Upstash", time.Now().Add(-time.Hour)),
		"body mismatch": signBody(t, "current", []byte(`{"scheduledQRId":"xyz"}`), "Upstash", time.Now().Add(time.Minute)),
		"empty":         "",
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			err := v.Verify(sig, body)
			require.True(t, errors.Is(err, ErrInvalidSignature), "got %v", err)
		})
	}
}

func TestVerifierDisabledWithoutKeys(t *testing.T) {
	v := NewVerifier(nil)
	require.False(t, v.Enabled())
	require.Error(t, v.Verify("sig", nil))
}
