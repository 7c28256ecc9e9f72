// Package runnerauth lets a Runner trade its device API key for an access
// token and keep that token fresh.
package runnerauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oriphim/devicetoken/internal/domain/model"
)

// DefaultTimeout bounds each call to the exchange server.
const DefaultTimeout = 30 * time.Second

const maxResponseBody = 64 << 10

// Session is an access token and the identity it was issued for.
type Session struct {
	Token      string
	UserID     string
	Email      string
	PlanTier   model.Tier
	DeviceName string
	ExpiresAt  time.Time
}

// APIError is a non-2xx response from the exchange server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange server returned %d: %s", e.StatusCode, e.Message)
}

// Terminal reports whether retrying with the same credential cannot succeed.
func (e *APIError) Terminal() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		return true
	}
	return false
}

// Client talks to the device token exchange endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client rooted at baseURL (for example
// "https://cloud.example.com/api/v1"). A nil httpClient uses one with
// DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type exchangeRequest struct {
	APIKey string `json:"api_key"`
}

type sessionPayload struct {
	Token      string `json:"token"`
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	PlanTier   string `json:"plan_tier"`
	DeviceName string `json:"device_name"`
	ExpiresAt  string `json:"expires_at"`
	Error      string `json:"error"`
}

// Exchange trades apiKey for a fresh Session.
func (c *Client) Exchange(ctx context.Context, apiKey string) (*Session, error) {
	body, err := json.Marshal(exchangeRequest{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("encode exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exchange-device-token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	payload, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange device token: %w", err)
	}
	if payload.Token == "" {
		return nil, errors.New("exchange device token: response carried no token")
	}
	return payload.toSession(payload.Token)
}

// Introspect asks the server to verify token and returns what it carries.
func (c *Client) Introspect(ctx context.Context, token string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session", nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	payload, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("introspect session: %w", err)
	}
	return payload.toSession(token)
}

// Confirm checks that the server accepts sess.Token and attributes it to the
// same user the exchange reported.
func (c *Client) Confirm(ctx context.Context, sess *Session) error {
	seen, err := c.Introspect(ctx, sess.Token)
	if err != nil {
		return err
	}
	if seen.UserID != sess.UserID {
		return fmt.Errorf("confirm session: token belongs to %q, exchange reported %q", seen.UserID, sess.UserID)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*sessionPayload, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var payload sessionPayload
	decodeErr := json.Unmarshal(data, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := payload.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return &payload, nil
}

func (p *sessionPayload) toSession(token string) (*Session, error) {
	expiresAt, err := time.Parse(time.RFC3339, p.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at %q: %w", p.ExpiresAt, err)
	}

	tier := model.Tier(p.PlanTier)
	if tier == "" {
		tier = model.DefaultTier
	}

	return &Session{
		Token:      token,
		UserID:     p.UserID,
		Email:      p.Email,
		PlanTier:   tier,
		DeviceName: p.DeviceName,
		ExpiresAt:  expiresAt.UTC(),
	}, nil
}
