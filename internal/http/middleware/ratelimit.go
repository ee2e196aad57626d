package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Limit is a parsed "<count>/<unit>" rate.
type Limit struct {
	Count  int
	Window time.Duration
}

func (l Limit) String() string { return fmt.Sprintf("%d/%s", l.Count, l.Window) }

var limitRe = regexp.MustCompile(`^(\d+)\s*/\s*(\d*)\s*([a-z]+)$`)

var units = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

// ParseLimit parses strings such as "60/minute", "100/h" or "10/5minutes".
func ParseLimit(s string) (Limit, error) {
	m := limitRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return Limit{}, fmt.Errorf("invalid rate limit %q", s)
	}
	count, err := strconv.Atoi(m[1])
	if err != nil || count <= 0 {
		return Limit{}, fmt.Errorf("invalid rate limit %q: count must be positive", s)
	}
	unit, ok := units[m[3]]
	if !ok {
		return Limit{}, fmt.Errorf("invalid rate limit %q: unknown unit %q", s, m[3])
	}
	mult := 1
	if m[2] != "" {
		if mult, err = strconv.Atoi(m[2]); err != nil || mult <= 0 {
			return Limit{}, fmt.Errorf("invalid rate limit %q: bad multiplier", s)
		}
	}
	return Limit{Count: count, Window: time.Duration(mult) * unit}, nil
}

// Store counts hits per key. Incr returns the count after incrementing and
// must be atomic per key. The key expires after ttl.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimit is a fixed-window limiter keyed by client IP. Windows are aligned
// to multiples of the window length since the Unix epoch.
type RateLimit struct {
	limit  Limit
	store  Store
	prefix string
	now    func() time.Time
	log    *zap.Logger
}

type RateLimitOption func(*RateLimit)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RateLimitOption { return func(r *RateLimit) { r.now = now } }

// WithKeyPrefix namespaces store keys, e.g. "rl:client:".
func WithKeyPrefix(p string) RateLimitOption { return func(r *RateLimit) { r.prefix = p } }

func WithRateLimitLogger(l *zap.Logger) RateLimitOption { return func(r *RateLimit) { r.log = l } }

func NewRateLimit(limit Limit, store Store, opts ...RateLimitOption) *RateLimit {
	r := &RateLimit{
		limit:  limit,
		store:  store,
		prefix: "rl:client:",
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *RateLimit) Name() string { return "rate_limit" }

func (r *RateLimit) Inspect(c echo.Context) *Rejection {
	now := r.now()
	window := r.limit.Window
	start := time.Unix(0, now.UnixNano()-now.UnixNano()%int64(window))
	end := start.Add(window)

	// fixed-window key: rl:client:{ip}:{window_start_unix}
	key := r.prefix + c.RealIP() + ":" + strconv.FormatInt(start.Unix(), 10)
	n, err := r.store.Incr(c.Request().Context(), key, end.Sub(now)+time.Second)
	if err != nil {
		// store down: allow
		r.log.Warn("rate limit store failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if n <= int64(r.limit.Count) {
		return nil
	}

	retry := int(math.Ceil(end.Sub(now).Seconds()))
	if retry < 1 {
		retry = 1
	}
	rej := reject(http.StatusTooManyRequests, "Rate limit exceeded")
	rej.Header = http.Header{"Retry-After": []string{strconv.Itoa(retry)}}
	return rej
}
