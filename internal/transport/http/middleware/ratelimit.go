package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"staffbook/internal/platform/logger"
	"staffbook/internal/transport/http/api"
	"staffbook/internal/transport/http/shared"
)

// Decision is the outcome of taking one request from a budget.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetIn    time.Duration
	RetryAfter time.Duration
}

// Limiter keeps request budgets of limit per window, one per key.
type Limiter interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// WindowCounter counts hits in a fixed window shared between instances.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// CounterLimiter enforces budgets with a shared WindowCounter.
type CounterLimiter struct {
	Counter WindowCounter
}

func (c CounterLimiter) Take(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	n, ttl, err := c.Counter.Incr(ctx, key, window)
	if err != nil {
		return Decision{}, err
	}
	if ttl <= 0 {
		ttl = window
	}
	d := Decision{Allowed: n <= int64(limit), Remaining: max(limit-int(n), 0), ResetIn: ttl}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

// sweepAbove is the number of tracked keys that triggers dropping idle ones.
const sweepAbove = 4096

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps token buckets in process, refilled continuously.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: map[string]*bucket{}}
}

func (m *MemoryLimiter) Take(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := time.Now()
	limiter := m.bucket(key, limit, window, now)

	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	allowed := reservation.OK() && delay == 0
	if !allowed {
		reservation.CancelAt(now)
	}
	remaining := max(int(math.Floor(limiter.TokensAt(now))), 0)
	d := Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   time.Duration(float64(limit-remaining) * float64(window) / float64(limit)),
	}
	if !allowed {
		d.RetryAfter = delay
	}
	return d, nil
}

func (m *MemoryLimiter) bucket(key string, limit int, window time.Duration, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.buckets) > sweepAbove {
		for k, b := range m.buckets {
			if now.Sub(b.lastSeen) > window {
				delete(m.buckets, k)
			}
		}
	}
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

type RateLimitKeyFunc func(r *http.Request) string

type rateConfig struct {
	limiter Limiter
}

type RateLimitOption func(*rateConfig)

// WithLimiter replaces the in-process limiter, e.g. with a shared counter.
func WithLimiter(l Limiter) RateLimitOption {
	return func(c *rateConfig) {
		if l != nil {
			c.limiter = l
		}
	}
}

func newRateConfig(opts []RateLimitOption) rateConfig {
	c := rateConfig{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.limiter == nil {
		c.limiter = NewMemoryLimiter()
	}
	return c
}

// budget is one named limit; keys of different budgets never collide.
type budget struct {
	name   string
	limit  int
	window time.Duration
	key    RateLimitKeyFunc
}

// RateLimit allows limit requests per window for each caller (the signed-in
// user, else the client IP).
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	cfg := newRateConfig(opts)
	general := budget{name: "api", limit: limit, window: window, key: actorOrIPKey}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforce(w, r, cfg.limiter, general) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sensitiveRoute names requests that get tighter budgets on top of the
// general one.
type sensitiveRoute struct {
	method string
	path   string
	prefix bool
	scope  string
}

const (
	scopeSignIn = "signin"
	scopeActor  = "actor"
)

var sensitiveRoutes = []sensitiveRoute{
	{method: http.MethodPost, path: "/auth/login", scope: scopeSignIn},
	{method: http.MethodPost, path: "/employees/bulk", scope: scopeActor},
	{method: http.MethodPost, path: "/employees/export", scope: scopeActor},
	{method: http.MethodDelete, path: "/recycle-bin/", prefix: true, scope: scopeActor},
}

func sensitiveScope(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	for _, route := range sensitiveRoutes {
		if r.Method != route.method {
			continue
		}
		if path == route.path || (route.prefix && strings.HasPrefix(path, route.path)) {
			return route.scope
		}
	}
	return ""
}

// SensitiveMutationRateLimit limits sign-in attempts by IP and by submitted
// email to a quarter of baseLimit, and bulk writes, exports and purges by
// actor to half of it.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	cfg := newRateConfig(opts)
	signInLimit := max(baseLimit/4, 1)
	budgets := map[string][]budget{
		scopeSignIn: {
			{name: "signin-ip", limit: signInLimit, window: window, key: shared.ClientIP},
			{name: "signin-email", limit: signInLimit, window: window, key: AuthEmailOrIPKey("email")},
		},
		scopeActor: {
			{name: "sensitive", limit: max(baseLimit/2, 1), window: window, key: actorOrIPKey},
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, b := range budgets[sensitiveScope(r)] {
				if !enforce(w, r, cfg.limiter, b) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthEmailOrIPKey keys sign-in attempts by the email in the JSON body.
func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	if field = strings.TrimSpace(field); field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		email := peekJSONField(r, field)
		if email == "" {
			return shared.ClientIP(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return shared.ClientIP(r)
}

// enforce takes one request from b and answers 429 when the budget is spent.
// A failing limiter lets the request through.
func enforce(w http.ResponseWriter, r *http.Request, limiter Limiter, b budget) bool {
	if b.limit <= 0 || b.window <= 0 {
		return true
	}
	key := b.key(r)
	if key == "" {
		key = shared.ClientIP(r)
	}

	d, err := limiter.Take(r.Context(), b.name+":"+key, b.limit, b.window)
	if err != nil {
		logger.From(r.Context()).Warn().Err(err).Str("budget", b.name).Msg("rate limiter unavailable")
		return true
	}

	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(b.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	headers.Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(d.ResetIn)))
	if d.Allowed {
		return true
	}

	headers.Set("Retry-After", strconv.Itoa(max(ceilSeconds(d.RetryAfter), 1)))
	logger.From(r.Context()).Warn().
		Str("budget", b.name).
		Str("key", key).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("limit", b.limit).
		Msg("rate limit exceeded")
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// peekJSONField reads a string field of a JSON body and puts the body back
// for the handler.
func peekJSONField(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}
