package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/internal/api/handlers"
	"github.com/talhajamadar1013-star/Qmail/internal/api/middleware"
	"github.com/talhajamadar1013-star/Qmail/internal/config"
	"github.com/talhajamadar1013-star/Qmail/internal/services"
	"github.com/talhajamadar1013-star/Qmail/pkg/metrics"
)

const (
	serviceName    = "qumail-key-manager"
	serviceVersion = "1.0.0"
)

type Router struct {
	engine          *gin.Engine
	logger          *zap.Logger
	metrics         *metrics.MetricsCollector
	keyHandler      *handlers.KeyHandler
	internalHandler *handlers.InternalHandler
	metadataHandler *handlers.MetadataHandler
	authMiddleware  *middleware.AuthMiddleware
	rateMiddleware  *middleware.RateLimitMiddleware
}

func NewRouter(
	cfg *config.Configuration,
	logger *zap.Logger,
	metricsCollector *metrics.MetricsCollector,
	keyService *services.KeyService,
	shareService *services.ShareService,
	metadataService *services.MetadataService,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger, metricsCollector)
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security, logger)
	rateMiddleware := middleware.NewRateLimitMiddleware(cfg.Keys.MaxKeysPerHour, logger)

	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())

	return &Router{
		engine:          engine,
		logger:          logger,
		metrics:         metricsCollector,
		keyHandler:      handlers.NewKeyHandler(keyService, logger),
		internalHandler: handlers.NewInternalHandler(keyService, shareService, logger),
		metadataHandler: handlers.NewMetadataHandler(metadataService, logger),
		authMiddleware:  authMiddleware,
		rateMiddleware:  rateMiddleware,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   serviceName,
			"version":   serviceVersion,
		})
	})

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":  r.metrics.GetCounters(),
			"latencies": r.metrics.GetLatencies(),
			"sizes":     r.metrics.GetSizes(),
		})
	})

	keys := r.engine.Group("/keys")
	{
		keys.POST("", r.rateMiddleware.LimitGenerate(), r.keyHandler.GenerateKey)
		keys.GET("/:key_id", r.authMiddleware.RequireAuth(), r.keyHandler.GetKey)
		keys.PATCH("/:key_id/use", r.authMiddleware.RequireHolder(), r.keyHandler.UseKey)
		keys.GET("/:key_id/hash", r.keyHandler.GetKeyHash)
		keys.POST("/:key_id/blockchain", r.keyHandler.RecordAnchor)
	}

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/user/:user_id/keys", r.keyHandler.ListUserKeys)
		v1.GET("/user/:user_id/keys/stats", r.keyHandler.UserKeyStats)
		v1.GET("/user/:user_id/emails", r.metadataHandler.ListUserEmails)
		v1.POST("/email/metadata", r.metadataHandler.RecordMetadata)
		v1.GET("/email/metadata/:email_id", r.metadataHandler.GetMetadata)
	}

	internal := r.engine.Group("/internal")
	internal.Use(r.authMiddleware.RequireService())
	{
		internal.POST("/keys/:key_id/share", r.internalHandler.ShareKey)
		internal.POST("/keys/sweep", r.internalHandler.SweepKeys)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(addr string) error {
	r.logger.Info("Starting HTTP server", zap.String("address", addr))
	return r.engine.Run(addr)
}
