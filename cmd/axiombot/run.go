package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"axiombot/pkg/antidelete"
	"axiombot/pkg/bot"
	"axiombot/pkg/commands"
	"axiombot/pkg/config"
	"axiombot/pkg/cron"
	"axiombot/pkg/dispatch"
	"axiombot/pkg/gateway"
	"axiombot/pkg/httpserver"
	"axiombot/pkg/logger"
	"axiombot/pkg/plugins"
	"axiombot/pkg/state"
	"axiombot/pkg/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot",
	Long: `Run the bot in the foreground, or under the service manager when
installed with "axiombot service install".`,
	Run: func(cmd *cobra.Command, args []string) {
		if runningAsService() {
			if err := RunService(); err != nil {
				fmt.Fprintf(os.Stderr, "Error running service: %v\n", err)
				os.Exit(1)
			}
			return
		}
		runForeground()
	},
}

// runningAsService detects a service manager parent.
func runningAsService() bool {
	return os.Getenv("INVOCATION_ID") != "" || // systemd
		os.Getenv("_") == "/bin/launchd" || // launchd
		os.Getenv("SERVICE_NAME") != "" // Windows service
}

// appOptions is the full bot graph.
func appOptions() []fx.Option {
	return []fx.Option{
		config.Module,
		logger.Module,
		state.Module,
		gateway.Module,
		commands.Module,
		antidelete.Module,
		dispatch.Module,
		bot.Module,
		plugins.Module,
		cron.Module,
		httpserver.Module,
	}
}

func runForeground() {
	opts := append(appOptions(),
		fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config, reg *commands.Registry) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					rt := cfg.Snapshot()
					log.Info("Bot started",
						zap.String("version", version.GetVersion()),
						zap.String("prefix", rt.Prefix),
						zap.String("mode", string(rt.WorkMode)),
						zap.Int("commands", reg.Len()))
					log.Info("Press Ctrl+C to stop")
					return nil
				},
			})
		}),
		fx.NopLogger,
	)

	// Run blocks until SIGINT/SIGTERM or a shutdown request.
	fx.New(opts...).Run()
}
