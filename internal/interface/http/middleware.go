package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gustwatch/gustwatch/internal/infra/config"
)

func errorHandlingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		httpErr := asHTTPError(c.Errors.Last().Err)
		message := httpErr.Message
		if message == "" {
			message = httpErr.Error()
		}

		if httpErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		} else {
			logger.Warn("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		}

		c.JSON(httpErr.Status, gin.H{
			"error": gin.H{
				"code":    httpErr.Code,
				"message": message,
			},
		})
	}
}

// rateLimitMiddleware enforces a fixed per-client window and stamps
// every response with the X-RateLimit headers so callers can pace
// themselves. Throttled requests are not errors; they get the standard
// envelope with a 429. onLimited may be nil.
func rateLimitMiddleware(cfg config.RateLimitConfig, logger *slog.Logger, onLimited func()) gin.HandlerFunc {
	if !cfg.Enabled || cfg.Limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newIPRateLimiter(cfg.Limit, cfg.Window)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		remaining, reset, allowed := limiter.allow(ip)

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if allowed {
			c.Next()
			return
		}
		if onLimited != nil {
			onLimited()
		}
		logger.Warn("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
		abortWithError(c, NewHTTPError(http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests", nil))
	}
}

// ipRateLimiter counts requests per client in fixed windows. A window
// starts on the first request and every request inside it consumes one
// slot; the reset timestamp is the window's end.
type ipRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	length  time.Duration
	now     func() time.Time
}

type window struct {
	count int
	start time.Time
}

func newIPRateLimiter(limit int, length time.Duration) *ipRateLimiter {
	if length <= 0 {
		length = time.Minute
	}
	return &ipRateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		length:  length,
		now:     time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) (remaining int, reset time.Time, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	w, ok := l.windows[ip]
	if !ok || now.Sub(w.start) >= l.length {
		w = &window{start: now}
		l.windows[ip] = w
	}
	l.cleanupLocked(now)

	reset = w.start.Add(l.length)
	if w.count >= l.limit {
		return 0, reset, false
	}
	w.count++
	return l.limit - w.count, reset, true
}

func (l *ipRateLimiter) cleanupLocked(now time.Time) {
	for ip, w := range l.windows {
		if now.Sub(w.start) >= l.length {
			delete(l.windows, ip)
		}
	}
}
