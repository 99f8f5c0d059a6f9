package state

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"axiombot/pkg/config"
	"axiombot/pkg/logger"
)

// Module is the fx module for state management.
var Module = fx.Module("state",
	fx.Provide(NewBackendFromConfig),
	fx.Provide(NewStore),
)

// NewBackendFromConfig builds the configured backend and closes it on stop.
func NewBackendFromConfig(
	lc fx.Lifecycle,
	log *logger.Logger,
	cfg *config.Config,
) (Backend, error) {
	stateConfig := &Config{
		Backend:       BackendType(cfg.Store.Backend),
		FilePath:      cfg.Store.FilePath,
		AutoSave:      cfg.Store.AutoSave,
		SaveIntervalS: cfg.Store.SaveIntervalS,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   cfg.Store.Prefix,
	}

	backend, err := NewBackend(log, stateConfig)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("State store initialized", zap.String("backend", string(stateConfig.Backend)))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return backend.Close()
		},
	})

	return backend, nil
}
