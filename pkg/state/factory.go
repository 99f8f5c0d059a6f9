package state

import (
	"fmt"
	"time"

	"axiombot/pkg/logger"
)

// NewBackend creates a backend based on configuration.
func NewBackend(log *logger.Logger, cfg *Config) (Backend, error) {
	switch cfg.Backend {
	case BackendFile, "":
		saveInterval := time.Duration(cfg.SaveIntervalS) * time.Second
		if saveInterval == 0 {
			saveInterval = 5 * time.Second
		}

		return NewFileBackend(log, &FileBackendConfig{
			FilePath:     cfg.FilePath,
			AutoSave:     cfg.AutoSave,
			SaveInterval: saveInterval,
		})

	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required")
		}

		return NewRedisBackend(log, &RedisBackendConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})

	case BackendMemory:
		return NewMemoryBackend(), nil

	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Backend)
	}
}
