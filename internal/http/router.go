package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/vibelist-backend/internal/http/handlers"
	httpMW "github.com/yungbote/vibelist-backend/internal/http/middleware"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	RecommendHandler *httpH.RecommendHandler
	TrendHandler     *httpH.TrendHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Observe(cfg.Log, cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Recommendations
		if cfg.RecommendHandler != nil {
			api.POST("/recommend", cfg.RecommendHandler.Recommend)
		}

		// Trends
		if cfg.TrendHandler != nil {
			api.GET("/trends", cfg.TrendHandler.Current)
			api.GET("/trends/top", cfg.TrendHandler.Top)
			api.POST("/trends/rebuild", cfg.TrendHandler.Rebuild)
		}
	}

	return r
}
