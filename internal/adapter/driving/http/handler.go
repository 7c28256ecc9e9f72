package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/oriphim/devicetoken/internal/application"
	"github.com/oriphim/devicetoken/internal/domain/model"
	"github.com/oriphim/devicetoken/internal/domain/port/driven"
	"github.com/oriphim/devicetoken/internal/metrics"
)

// Client-facing error messages.
const (
	msgMissingKey      = "api_key is required"
	msgBadBody         = "invalid request body"
	msgInvalidKey      = "Invalid API key"
	msgUserNotFound    = "User not found"
	msgConfigError     = "Server configuration error"
	msgInternal        = "Internal server error"
	msgInvalidToken    = "Invalid token"
	msgTooManyRequests = "Too many requests"
)

const (
	maxRequestBody        = 4 << 10
	defaultRequestTimeout = 10 * time.Second
)

// Exchanger trades a device credential for a signed access grant.
type Exchanger interface {
	Exchange(ctx context.Context, credential string) (*model.AccessGrant, error)
}

// TokenVerifier validates access tokens issued by this service.
type TokenVerifier interface {
	Verify(raw string) (*model.AccessClaims, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes request handling. Zero values select defaults.
type Options struct {
	RequestTimeout time.Duration
	// RateLimit is the sustained exchange rate allowed per client address.
	// Zero disables rate limiting.
	RateLimit rate.Limit
	RateBurst int
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	exchanger      Exchanger
	verifier       TokenVerifier
	pinger         Pinger
	requestTimeout time.Duration
	limiter        *clientLimiter
	logger         *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. pinger may be
// nil, in which case health checks do not probe storage.
func NewHandler(
	exchanger Exchanger,
	verifier TokenVerifier,
	pinger Pinger,
	opts Options,
	logger *slog.Logger,
) *Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *clientLimiter
	if opts.RateLimit > 0 {
		limiter = newClientLimiter(opts.RateLimit, max(opts.RateBurst, 1))
	}
	return &Handler{
		exchanger:      exchanger,
		verifier:       verifier,
		pinger:         pinger,
		requestTimeout: opts.RequestTimeout,
		limiter:        limiter,
		logger:         logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with CORS, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	exchange := h.rateLimited(h.ExchangeDeviceToken)
	mux.HandleFunc("POST /api/v1/exchange-device-token", exchange)
	mux.HandleFunc("POST /functions/v1/exchange-device-token", exchange)
	mux.HandleFunc("GET /api/v1/session", h.Session)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Recovery innermost so panics are caught before logging. CORS sits
	// outside recovery so a recovered 500 still carries its headers.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = corsMiddleware(wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ExchangeDeviceToken trades the api_key in the request body for a signed
// access token.
func (h *Handler) ExchangeDeviceToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ExchangeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		metrics.ObserveExchange(metrics.OutcomeBadRequest, time.Since(start))
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	grant, err := h.exchanger.Exchange(ctx, req.APIKey)
	if err != nil {
		status, message, outcome := classifyExchangeError(err)
		metrics.ObserveExchange(outcome, time.Since(start))
		if status >= http.StatusInternalServerError {
			h.logger.Error("device token exchange failed",
				"error", err,
				"request_id", requestIDFrom(r.Context()),
			)
		}
		writeError(w, status, message)
		return
	}

	metrics.ObserveExchange(metrics.OutcomeIssued, time.Since(start))
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, toExchangeResponse(*grant))
}

// classifyExchangeError maps an exchange failure to its HTTP status, client
// message and metrics outcome. Invalid and revoked credentials share a message.
func classifyExchangeError(err error) (int, string, string) {
	switch {
	case errors.Is(err, application.ErrMissingCredential):
		return http.StatusBadRequest, msgMissingKey, metrics.OutcomeMissing
	case errors.Is(err, application.ErrInvalidCredential):
		return http.StatusUnauthorized, msgInvalidKey, metrics.OutcomeInvalid
	case errors.Is(err, application.ErrRevokedCredential):
		return http.StatusUnauthorized, msgInvalidKey, metrics.OutcomeRevoked
	case errors.Is(err, application.ErrIdentityNotFound):
		return http.StatusNotFound, msgUserNotFound, metrics.OutcomeIdentityMissing
	case errors.Is(err, driven.ErrSigningKeyNotSet):
		return http.StatusInternalServerError, msgConfigError, metrics.OutcomeConfigError
	default:
		return http.StatusInternalServerError, msgInternal, metrics.OutcomeError
	}
}

// Session verifies the bearer token on the request and echoes its claims.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	raw, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, msgInvalidToken)
		return
	}

	claims, err := h.verifier.Verify(raw)
	if errors.Is(err, driven.ErrSigningKeyNotSet) {
		h.logger.Error("session verification unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, msgConfigError)
		return
	}
	if err != nil {
		h.logger.Debug("session token rejected",
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
		writeError(w, http.StatusUnauthorized, msgInvalidToken)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(*claims))
}

// Health returns service status. When a pinger is configured an unreachable
// store reports 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unavailable",
				Time:   time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
