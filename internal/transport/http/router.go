// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and keep transport concerns out of the workflow.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"appraiser-gateway/internal/platform/metrics"
	"appraiser-gateway/internal/platform/middleware"
	"appraiser-gateway/internal/platform/ratelimit"
)

// defaultRatePolicy bounds how fast one client may drive the
// identification endpoints.
var defaultRatePolicy = middleware.RateLimitPolicy{Limit: 30, Window: time.Minute}

// Handler aggregates the route handlers and shared middleware configuration.
type Handler struct {
	identify     *IdentifyHandler
	registration *RegistrationHandler
	session      *SessionHandler
	validator    middleware.TokenValidator
	logger       *slog.Logger
	metrics      *metrics.Metrics
	limiter      *ratelimit.Limiter
	ratePolicy   middleware.RateLimitPolicy
}

func NewHandler(
	identify *IdentifyHandler,
	registration *RegistrationHandler,
	session *SessionHandler,
	validator middleware.TokenValidator,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		identify:     identify,
		registration: registration,
		session:      session,
		validator:    validator,
		logger:       logger,
		metrics:      m,
		limiter:      ratelimit.New(),
		ratePolicy:   defaultRatePolicy,
	}
}

// Routes builds the full route tree with the standard middleware chain.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Latency(h.metrics))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(h.limiter, h.ratePolicy, h.logger))
			h.identify.Register(r)
		})
		h.registration.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(h.validator, h.logger))
			h.session.Register(r)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
