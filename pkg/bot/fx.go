package bot

import (
	"context"

	"go.uber.org/fx"

	"axiombot/pkg/antidelete"
	"axiombot/pkg/config"
	"axiombot/pkg/dispatch"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
	"axiombot/pkg/state"
)

// Module wires the router to the whatsmeow client.
var Module = fx.Module("bot",
	fx.Provide(provideBot),
	fx.Invoke(registerLifecycle),
)

type botParams struct {
	fx.In

	Log        *logger.Logger
	Gateway    gateway.Gateway
	Dispatcher *dispatch.Dispatcher
	Recoverer  *antidelete.Recoverer
	Store      *state.Store
	Config     *config.Config
	Listeners  []ParticipantListener `group:"participants"`
}

func provideBot(p botParams) *Bot {
	return New(p.Log, p.Gateway, p.Dispatcher, p.Recoverer, p.Store, p.Config, p.Listeners)
}

func registerLifecycle(lc fx.Lifecycle, b *Bot, client *gateway.Client, watcher *config.Watcher) {
	// Registered at construction so no event is missed once Connect runs.
	client.AddEventHandler(b.HandleEvent)
	watcher.AddHandler(b.ConfigChanged)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			b.Stop()
			return nil
		},
	})
}
