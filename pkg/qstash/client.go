package qstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elocalpass/elocalpass-backend/pkg/config"
)

const (
	defaultBaseURL = "https://qstash.upstash.io"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// PublishRequest asks QStash to POST Body to Destination no earlier than NotBefore.
type PublishRequest struct {
	Destination string
	Body        any
	NotBefore   time.Time
	Retries     *int
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Client publishes delayed HTTP callbacks through the QStash REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient builds a client from the scheduling config.
func NewClient(cfg config.SchedulingConfig) (*Client, error) {
	if strings.TrimSpace(cfg.QStashToken) == "" {
		return nil, errors.New("qstash token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.QStashURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.QStashTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      cfg.QStashToken,
	}, nil
}

// Publish enqueues the message and returns the QStash message id.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if strings.TrimSpace(req.Destination) == "" {
		return "", errors.New("destination is required")
	}
	body, err := json.Marshal(req.Body)
	if err != nil {
		return "", fmt.Errorf("marshal publish body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/publish/"+req.Destination, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	if !req.NotBefore.IsZero() {
		httpReq.Header.Set("Upstash-Not-Before", strconv.FormatInt(req.NotBefore.Unix(), 10))
	}
	if req.Retries != nil {
		httpReq.Header.Set("Upstash-Retries", strconv.Itoa(*req.Retries))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("qstash publish failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode publish response: %w", err)
	}
	if out.MessageID == "" {
		return "", errors.New("qstash publish response missing messageId")
	}
	return out.MessageID, nil
}
