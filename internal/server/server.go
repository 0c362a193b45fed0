package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/nectar/internal/config"
	"github.com/smallbiznis/nectar/internal/observability"
	obsmiddleware "github.com/smallbiznis/nectar/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/nectar/internal/observability/metrics"
	"github.com/smallbiznis/nectar/internal/scraper"
	storedomain "github.com/smallbiznis/nectar/internal/store/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	db       *gorm.DB
	storeSvc storedomain.Service
	pipeline *scraper.Pipeline
	settings *config.ScrapeSettings
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	DB       *gorm.DB
	StoreSvc storedomain.Service
	Pipeline *scraper.Pipeline
	Settings *config.ScrapeSettings
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		db:       p.DB,
		storeSvc: p.StoreSvc,
		pipeline: p.Pipeline,
		settings: p.Settings,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/stats", s.Stats)
		api.GET("/countries", s.Countries)

		scraperGroup := api.Group("/scraper")
		{
			scraperGroup.GET("/status", s.ScraperStatus)
			scraperGroup.POST("/start", s.StartScraper)
			scraperGroup.POST("/stop", s.StopScraper)
			scraperGroup.POST("/delay", s.UpdateScraperDelay)
		}

		api.GET("/stores", s.ListStores)
		api.GET("/store/:store_id", s.GetStore)

		coupons := api.Group("/coupon")
		{
			coupons.GET("/:coupon_id/usage", s.CouponUsage)
			coupons.POST("/report", s.ReportCouponUsage)
		}

		export := api.Group("/export")
		{
			export.GET("/csv", s.ExportCSV)
			export.GET("/json", s.ExportJSON)
		}
	}
}
