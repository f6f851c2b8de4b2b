package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"consentwindow/internal/ratelimit/models"
	"consentwindow/pkg/platform/httputil"
	"consentwindow/pkg/platform/middleware/metadata"
	"consentwindow/pkg/requestcontext"
)

// Store admits or rejects one request under a key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	store    Store
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	now      func() time.Time
	disabled bool
}

type Option func(*Middleware)

// WithLimit sets the budget of one endpoint class.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(m *Middleware) {
		m.limits[class] = limit
	}
}

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store: store,
		limits: map[models.EndpointClass]models.Limit{
			models.ClassRead:  {Requests: 100, Window: time.Minute},
			models.ClassWrite: {Requests: 30, Window: time.Minute},
		},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.limit(class, func(ctx context.Context) string {
		return "ip:" + string(class) + ":" + metadata.GetClientIP(ctx)
	})
}

// RateLimitAuthenticated limits requests per authenticated owner. It must run after
// the auth middleware; anonymous requests fall back to the client IP.
func (m *Middleware) RateLimitAuthenticated(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.limit(class, func(ctx context.Context) string {
		if owner := requestcontext.OwnerID(ctx); !owner.IsNil() {
			return "owner:" + string(class) + ":" + owner.String()
		}
		return "ip:" + string(class) + ":" + metadata.GetClientIP(ctx)
	})
}

func (m *Middleware) limit(class models.EndpointClass, keyFn func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, ok := m.limits[class]
			if m.disabled || !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			result, err := m.store.Allow(ctx, keyFn(ctx), limit.Requests, limit.Window)
			if err != nil {
				// fail open: a limiter outage must not take consent checks down with it
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"class", class,
					"ip_prefix", anonymizeIP(metadata.GetClientIP(ctx)),
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", class,
					"ip_prefix", anonymizeIP(metadata.GetClientIP(ctx)),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result.RetryAfter(m.now()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "Too many requests. Please try again later.",
		RetryAfter:       retryAfter,
	})
}

// anonymizeIP keeps the /24 of an IPv4 address or the /48 of an IPv6 one.
func anonymizeIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	bits := 24
	if addr.Is6() && !addr.Is4In6() {
		bits = 48
	}
	prefix, err := addr.Unmap().Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.String()
}
