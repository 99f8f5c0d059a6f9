package antidelete

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"axiombot/pkg/config"
	"axiombot/pkg/cron"
	"axiombot/pkg/logger"
)

// Module provides the shared cache, the recoverer and the sweep job.
var Module = fx.Module("antidelete",
	fx.Provide(func() *Cache { return NewCache(DefaultTTL, nil) }),
	fx.Provide(NewRecoverer),
	fx.Provide(cron.AsJob(SweepJob)),
)

// SweepJob drops expired entries on the housekeeping schedule.
func SweepJob(log *logger.Logger, cache *Cache, cfg *config.Config) cron.Job {
	return cron.Job{
		Name: "antidelete-sweep",
		Spec: cfg.Housekeeping.AntiDeleteSweep,
		Run: func(ctx context.Context) error {
			if n := cache.Sweep(); n > 0 {
				log.Debug("Swept expired messages", zap.Int("removed", n))
			}
			return nil
		},
	}
}
