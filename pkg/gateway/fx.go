package gateway

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"axiombot/pkg/config"
	"axiombot/pkg/logger"
)

// Module provides the whatsmeow client as both *Client and Gateway.
var Module = fx.Module("gateway",
	fx.Provide(ProvideClient),
	fx.Provide(func(c *Client) Gateway { return c }),
	fx.Invoke(registerLifecycle),
)

// ProvideClient opens the session store configured under whatsapp.
func ProvideClient(log *logger.Logger, cfg *config.Config, shutdowner fx.Shutdowner) (*Client, error) {
	client, err := NewClient(context.Background(), log, &Config{
		SessionPath: cfg.WhatsApp.SessionPath,
		SessionID:   cfg.WhatsApp.SessionID,
		LogLevel:    logger.ParseLevel(cfg.WhatsApp.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	// A revoked session cannot recover without a new pairing.
	client.OnLoggedOut(func() {
		if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
			log.Error("Failed to request shutdown after logout", zap.Error(err))
		}
	})
	return client, nil
}

func registerLifecycle(lc fx.Lifecycle, c *Client, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Connecting to WhatsApp")
			return c.Connect(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Disconnecting from WhatsApp")
			return c.Disconnect()
		},
	})
}
