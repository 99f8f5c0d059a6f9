package plugins

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"axiombot/pkg/bot"
	"axiombot/pkg/commands"
	"axiombot/pkg/config"
	"axiombot/pkg/cron"
	"axiombot/pkg/dispatch"
	"axiombot/pkg/logger"
	"axiombot/pkg/plugins/afk"
	"axiombot/pkg/plugins/greetings"
	"axiombot/pkg/plugins/wordgame"
	"axiombot/pkg/state"
	"axiombot/pkg/version"
)

// Module builds every plugin, contributes their housekeeping jobs and
// fills the command registry.
var Module = fx.Module("plugins",
	fx.Provide(
		func(store *state.Store) *afk.Plugin { return afk.New(store, time.Now) },
		greetings.New,
		fx.Annotate(
			func(p *greetings.Plugin) bot.ParticipantListener { return p },
			fx.ResultTags(`group:"participants"`),
		),
		wordgame.NewValidator,
		wordgame.New,
		cron.AsJob(func(p *afk.Plugin, cfg *config.Config) cron.Job {
			return p.Job(cfg.Housekeeping.AFKCleanup)
		}),
		cron.AsJob(func(p *wordgame.Plugin, cfg *config.Config) cron.Job {
			return p.Job(cfg.Housekeeping.WordGameCleanup)
		}),
	),
	fx.Invoke(register),
)

type registerParams struct {
	fx.In

	Log        *logger.Logger
	Registry   *commands.Registry
	Store      *state.Store
	Dispatcher *dispatch.Dispatcher
	AFK        *afk.Plugin
	Greetings  *greetings.Plugin
	WordGame   *wordgame.Plugin
}

func register(p registerParams) error {
	all := All(Deps{
		Store:     p.Store,
		Runner:    p.Dispatcher,
		Uptime:    version.Uptime,
		AFK:       p.AFK,
		Greetings: p.Greetings,
		WordGame:  p.WordGame,
	})
	if err := Register(p.Registry, all...); err != nil {
		return err
	}
	p.Log.Info("Plugins loaded",
		zap.Int("plugins", len(all)),
		zap.Int("commands", p.Registry.Len()))
	return nil
}
