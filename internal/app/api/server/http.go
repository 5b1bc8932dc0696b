package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatflowers/membership/internal/app/api/handlers"
	mw "github.com/fatflowers/membership/internal/app/api/middleware"
	"github.com/fatflowers/membership/internal/app/dao"
	"github.com/fatflowers/membership/internal/app/service/benefit"
	"github.com/fatflowers/membership/internal/app/service/membership"
	"github.com/fatflowers/membership/internal/app/service/point"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	"github.com/fatflowers/membership/internal/app/service/upgrade"
	cfgpkg "github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log         *zap.SugaredLogger
	Cfg         *cfgpkg.Config
	Store       *dao.Store
	Memberships *membership.Service
	Upgrades    *upgrade.Service
	Benefits    *benefit.Service
	Points      *point.Service
	Stats       *statistics.Service
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	log := d.Log
	if d.Cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
		r.Use(p.HandlerFunc())
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	limit := mw.NewRateLimiter(d.Cfg.RateLimit, log).Handler()

	handlers.RegisterMembershipRoutes(apiV1.Group("/membership"), d.Memberships, d.Upgrades, limit)
	handlers.RegisterBenefitRoutes(apiV1.Group("/benefit"), d.Benefits)
	handlers.RegisterPointRoutes(apiV1.Group("/point"), d.Points, limit)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), d.Memberships, d.Store, d.Stats, limit)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// runMetricsServer serves /metrics on its own listener so it stays off the public port.
func runMetricsServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config) {
	if cfg.MetricsAddr == "" {
		return
	}
	p := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
	mux := http.NewServeMux()
	mux.Handle(p.MetricsPath, p.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("metrics started", "addr", cfg.MetricsAddr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("metrics server error: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
	fx.Invoke(runMetricsServer),
)
