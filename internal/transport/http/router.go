package http

import (
	"net/http"

	"github.com/Africahassucceed/celebsbridgenew/internal/config"
	"github.com/Africahassucceed/celebsbridgenew/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires middleware and routes. m may be nil when metrics are disabled.
func NewRouter(h *Handler, tokens TokenValidator, m *metrics.Metrics, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	// no proxy is trusted, so ClientIP is always the peer address
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	if m != nil {
		r.Use(MetricsMiddleware(m))
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/v1/blobs/download", h.serveBlob)

	v1 := r.Group("/v1", AuthMiddleware(tokens, log))
	h.RegisterHandlers(v1)
	return r
}
