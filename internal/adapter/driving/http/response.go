package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oriphim/devicetoken/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ExchangeRequest is the JSON body for the device token exchange endpoint.
type ExchangeRequest struct {
	APIKey string `json:"api_key"`
}

// ExchangeResponse is the JSON body returned by a successful exchange. Only
// Token is authoritative; the remaining fields summarize its claims.
type ExchangeResponse struct {
	Success    bool   `json:"success"`
	Token      string `json:"token"`
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	PlanTier   string `json:"plan_tier"`
	DeviceName string `json:"device_name"`
	ExpiresAt  string `json:"expires_at"`
}

// SessionResponse is the JSON representation of a verified access token.
type SessionResponse struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	PlanTier   string `json:"plan_tier"`
	DeviceName string `json:"device_name"`
	IssuedAt   string `json:"issued_at"`
	ExpiresAt  string `json:"expires_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toExchangeResponse converts an AccessGrant to its JSON response representation.
func toExchangeResponse(grant model.AccessGrant) ExchangeResponse {
	return ExchangeResponse{
		Success:    true,
		Token:      grant.Token,
		UserID:     grant.Claims.Subject,
		Email:      grant.Claims.Email,
		PlanTier:   string(grant.Claims.Tier),
		DeviceName: grant.Claims.DeviceName,
		ExpiresAt:  grant.Claims.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// toSessionResponse converts verified claims to their JSON representation.
func toSessionResponse(c model.AccessClaims) SessionResponse {
	return SessionResponse{
		UserID:     c.Subject,
		Email:      c.Email,
		PlanTier:   string(c.Tier),
		DeviceName: c.DeviceName,
		IssuedAt:   c.IssuedAt.UTC().Format(time.RFC3339),
		ExpiresAt:  c.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
