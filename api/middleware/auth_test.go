package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

type stubVerifier struct {
	enabled bool
	body    []byte
}

func (s *stubVerifier) Enabled() bool { return s.enabled }

func (s *stubVerifier) Verify(signature string, body []byte) error {
	s.body = body
	if signature != "good" {
		return errors.New("bad signature")
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// echoCaller writes the admitted caller and the body it received.
func echoCaller() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Caller", CallerFromContext(r.Context()))
		_, _ = w.Write(body)
	})
}

func TestTriggerOpenWithoutSecrets(t *testing.T) {
	h := Trigger("", &stubVerifier{}, testLogger())(echoCaller())
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/scheduled-qr/process-single", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, CallerOpen, resp.Header().Get("X-Caller"))
}

func TestTriggerAcceptsCronSecret(t *testing.T) {
	h := Trigger("s3cret", &stubVerifier{enabled: true}, testLogger())(echoCaller())

	req := httptest.NewRequest(http.MethodPost, "/scheduled-qr/retry-overdue", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, CallerCron, resp.Header().Get("X-Caller"))

	req = httptest.NewRequest(http.MethodPost, "/scheduled-qr/retry-overdue", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTriggerVerifiesSignatureAndRestoresBody(t *testing.T) {
	verifier := &stubVerifier{enabled: true}
	h := Trigger("", verifier, testLogger())(echoCaller())
	payload := `{"scheduledQRId":"abc"}`

	req := httptest.NewRequest(http.MethodPost, "/scheduled-qr/process-single", strings.NewReader(payload))
	req.Header.Set("Upstash-Signature", "good")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, CallerQStash, resp.Header().Get("X-Caller"))
	assert.Equal(t, payload, resp.Body.String())
	assert.Equal(t, payload, string(verifier.body))

	req = httptest.NewRequest(http.MethodPost, "/scheduled-qr/process-single", strings.NewReader(payload))
	req.Header.Set("Upstash-Signature", "forged")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTriggerRejectsMissingCredentials(t *testing.T) {
	h := Trigger("", &stubVerifier{enabled: true}, testLogger())(echoCaller())
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/scheduled-qr/process-single", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestBearerToken(t *testing.T) {
	h := BearerToken(CallerIntake, "intake-token", testLogger())(echoCaller())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "bearer intake-token")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, CallerIntake, resp.Header().Get("X-Caller"))

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	open := BearerToken(CallerIntake, "", testLogger())(echoCaller())
	resp = httptest.NewRecorder()
	open.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, CallerOpen, resp.Header().Get("X-Caller"))
}

func TestRequestIDFallsBackToQStashMessageID(t *testing.T) {
	h := RequestID(testLogger())(echoCaller())
	req := httptest.NewRequest(http.MethodPost, "/scheduled-qr/process-single", nil)
	req.Header.Set("Upstash-Message-Id", "msg_123")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, "msg_123", resp.Header().Get("X-Request-Id"))
}

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
