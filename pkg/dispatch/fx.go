package dispatch

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"axiombot/pkg/logger"
)

// Module provides the Dispatcher and drains in-flight handlers on stop.
var Module = fx.Module("dispatch",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, d *Dispatcher, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				d.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				log.Warn("Stopped before all handlers finished", zap.Error(ctx.Err()))
			}
			return nil
		},
	})
}
