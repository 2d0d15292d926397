package http

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/auth"
	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/Africahassucceed/celebsbridgenew/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ctxPrincipalKey = "principal"
	bucketIdle      = 5 * time.Minute
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errMissingToken = errors.New("missing bearer token")
)

// TokenValidator turns a bearer token into the calling principal.
type TokenValidator interface {
	ValidateToken(token string) (auth.Principal, error)
}

// LoggingMiddleware logs one line per request; server errors carry the underlying cause.
func LoggingMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if p, ok := principalFrom(c); ok {
			fields = append(fields, "principal", p.ID)
		}
		if err := c.Errors.Last(); err != nil {
			fields = append(fields, "error", err.Err)
		}
		if status >= http.StatusInternalServerError {
			log.Errorw("http request", fields...)
			return
		}
		log.Infow("http request", fields...)
	}
}

// RateLimitMiddleware simple token bucket per IP.
// The key is the peer address; forwarding headers are client-controlled and ignored.
func RateLimitMiddleware(rps, burst int) gin.HandlerFunc {
	type bucket struct {
		lim  *rate.Limiter
		seen time.Time
	}
	var mu sync.Mutex
	buckets := make(map[string]*bucket)
	lastSweep := time.Now()
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}
		now := time.Now()
		mu.Lock()
		if now.Sub(lastSweep) > bucketIdle {
			for k, b := range buckets {
				if now.Sub(b.seen) > bucketIdle {
					delete(buckets, k)
				}
			}
			lastSweep = now
		}
		b, ok := buckets[ip]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(rate.Limit(rps), burst)}
			buckets[ip] = b
		}
		b.seen = now
		allowed := b.lim.Allow()
		mu.Unlock()
		if !allowed {
			abortWithStatus(c, http.StatusTooManyRequests, errRateLimited, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// MetricsMiddleware counts requests per matched route.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}

// AuthMiddleware requires a valid bearer token and stores the principal on the context.
func AuthMiddleware(tokens TokenValidator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if !strings.HasPrefix(header, "Bearer ") || token == "" {
			abortWithStatus(c, http.StatusUnauthorized, errMissingToken, "access token required")
			return
		}
		p, err := tokens.ValidateToken(token)
		if err != nil {
			log.Warnw("token validation failed", "error", err, "path", c.Request.URL.Path)
			abortWithStatus(c, http.StatusUnauthorized, err, "invalid or expired token")
			return
		}
		c.Set(ctxPrincipalKey, p)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok || !p.IsAdmin() {
			abortWithError(c, errs.Forbidden("admin role required"))
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(ctxPrincipalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}
