package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"PartyTonight-App/internal/infrastructure/logger"
	"PartyTonight-App/internal/infrastructure/metrics"
)

// NewRouter ミドルウェアとルートを登録したginエンジンを作成する
func NewRouter(partyHandler *PartyHandler, healthHandler *HealthHandler, requestTimeout time.Duration, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(RequestMetrics())

	r.GET("/api/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/")
	api.Use(RequestTimeout(requestTimeout))
	partyHandler.RegisterRoutes(api)

	return r
}
