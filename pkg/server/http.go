package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"setledger/pkg/config"
	"setledger/pkg/health"
	"setledger/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	health.Module,
	fx.Provide(NewEngine, NewHttpServer),
	fx.Invoke(Run),
)

// NewEngine builds the shared gin engine that service handlers register
// their routes on.
func NewEngine(cfg *config.Config, h health.HealthService) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Error())

	engine.GET("/healthz", h.Liveness)
	engine.GET("/readyz", h.Readiness)

	return engine
}

type Params struct {
	fx.In
	Config *config.Config
	Engine *gin.Engine
}

func NewHttpServer(p Params) *http.Server {
	cfg := p.Config
	return &http.Server{
		Addr:         normalizeAddr(cfg.Server.Addr),
		Handler:      p.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// normalizeAddr accepts either ":8080" or a bare port from the environment.
func normalizeAddr(addr string) string {
	if addr == "" {
		return ":0"
	}
	if addr[0] == ':' {
		return addr
	}
	for _, c := range addr {
		if c < '0' || c > '9' {
			return addr
		}
	}
	return fmt.Sprintf(":%s", addr)
}

func Run(lc fx.Lifecycle, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				zap.L().Info("Starting HTTP server", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					zap.L().Fatal("HTTP server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Shutting down HTTP server gracefully...")
			return srv.Shutdown(ctx)
		},
	})
}
