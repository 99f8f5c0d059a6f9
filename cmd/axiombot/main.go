// Package main is the entry point for the axiombot CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"axiombot/pkg/config"
	"axiombot/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "axiombot",
	Short: "axiombot - a WhatsApp group assistant",
	Long: `axiombot is a WhatsApp bot with group administration, moderation,
greetings, anti-delete recovery, sticker commands and games.

Run "axiombot pair" once to link the device, then "axiombot run".`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// The config module reads the path from the environment.
		if path := strings.TrimSpace(configPath); path != "" {
			_ = os.Setenv(config.ConfigPathEnv, path)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetFullVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
