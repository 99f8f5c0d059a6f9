package httpserver

import (
	"context"
	"time"

	"go.uber.org/fx"

	"axiombot/pkg/config"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
)

// Module provides the HTTP server.
var Module = fx.Module("httpserver",
	fx.Provide(func(log *logger.Logger, client *gateway.Client, cfg *config.Config) *Server {
		return NewServer(log, client, cfg.HTTP.Host, cfg.HTTP.Port)
	}),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, s *Server, cfg *config.Config, log *logger.Logger) {
	if !cfg.HTTP.Enabled {
		log.Info("HTTP server disabled in config")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Stop(shutdownCtx)
		},
	})
}
