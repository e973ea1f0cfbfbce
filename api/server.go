// Package api exposes the verification pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"honestlens/lifecycle"
	"honestlens/logging"
	"honestlens/storage"
	"honestlens/types"
)

// Service is the part of the lifecycle manager the handlers use.
type Service interface {
	Submit(ctx context.Context, kind types.Kind, payload string, priority types.Priority) (string, error)
	GetResult(ctx context.Context, id string) (*types.VerificationRequest, *types.VerificationResult, error)
	Stats() lifecycle.Stats
}

// Options configures the router.
type Options struct {
	// AllowOrigins lists CORS origins; empty allows any origin without credentials.
	AllowOrigins []string
	Logger       *zap.Logger
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(svc Service, images storage.ImageStore, opts Options) *gin.Engine {
	logger := logging.OrNop(opts.Logger)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.MaxMultipartMemory = 16 << 20

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = opts.AllowOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	h := &handler{svc: svc, images: images, logger: logger}
	registerVerificationRoutes(r, h)
	registerHealthRoutes(r, h)
	return r
}

func registerHealthRoutes(r *gin.Engine, h *handler) {
	r.GET("/api/health", h.health)
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
		"stats":     h.svc.Stats(),
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
