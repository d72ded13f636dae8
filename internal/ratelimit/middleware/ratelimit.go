package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"imrich/internal/ratelimit/metrics"
	"imrich/internal/ratelimit/models"
	"imrich/pkg/platform/httputil"
	"imrich/pkg/requestcontext"
)

// Limiter is a sliding window counter keyed by caller identity.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	primary  Limiter
	fallback Limiter
	breaker  *CircuitBreaker
	limit    int
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the limiter used while the primary is failing.
func WithFallback(l Limiter) Option {
	return func(m *Middleware) {
		m.fallback = l
	}
}

func WithLimit(requests int, window time.Duration) Option {
	return func(m *Middleware) {
		if requests > 0 {
			m.limit = requests
		}
		if window > 0 {
			m.window = window
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(primary Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		breaker: newCircuitBreaker(),
		limit:   60,
		window:  time.Minute,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimitByIP limits requests per client IP. Limiter failures fail open.
func (m *Middleware) RateLimitByIP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = r.RemoteAddr
			}

			result, degraded, err := m.check(ctx, models.VerifyKey(ip))
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.metrics.IncrementRejected()
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check asks the primary limiter and falls back to the in-memory one while
// the primary is failing or the circuit has not yet closed.
func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	result, err := m.primary.Allow(ctx, key, m.limit, m.window)
	if err != nil {
		m.metrics.IncrementErrors()
		m.breaker.RecordFailure()
		if m.fallback == nil {
			return nil, true, err
		}
		m.metrics.IncrementFallback()
		result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
		return result, true, err
	}
	if closed := m.breaker.RecordSuccess(); !closed && m.fallback != nil {
		m.metrics.IncrementFallback()
		result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
		return result, true, err
	}
	return result, false, nil
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limited",
		Detail:     "Too many verification requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
