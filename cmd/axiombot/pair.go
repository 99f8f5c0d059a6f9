package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"axiombot/pkg/config"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
)

var pairTimeout time.Duration

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Link this bot to a WhatsApp account",
	Long: `Connect with a fresh session and print a QR code to scan from
WhatsApp > Linked devices. Exits once the device is paired.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPair(pairTimeout); err != nil {
			fmt.Fprintf(os.Stderr, "Error pairing: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Device paired. Start the bot with: axiombot run")
	},
}

func init() {
	pairCmd.Flags().DurationVar(&pairTimeout, "timeout", 3*time.Minute, "how long to wait for the QR scan")
}

func runPair(timeout time.Duration) error {
	var client *gateway.Client
	app := fx.New(
		config.Module,
		logger.Module,
		gateway.Module,
		fx.Populate(&client),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.WaitPaired(ctx)
}
