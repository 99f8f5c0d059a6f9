package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"axiombot/pkg/config"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the bot as a system service",
	Long: `Install and control axiombot as a system service.

Examples:
  # Install as system service (requires sudo/admin privileges)
  sudo axiombot -c /etc/axiombot/config.json service install

  # Control the service
  sudo axiombot service start
  sudo axiombot service stop
  sudo axiombot service restart
  sudo axiombot service status

  # Uninstall the service
  sudo axiombot service uninstall`,
}

func init() {
	for _, c := range []struct {
		use, short, verb string
		privileged       bool
		run              func() error
	}{
		{"install", "Install the bot as a system service", "installing", true, InstallService},
		{"uninstall", "Uninstall the bot service", "uninstalling", true, UninstallService},
		{"start", "Start the bot service", "starting", true, StartService},
		{"stop", "Stop the bot service", "stopping", true, StopService},
		{"restart", "Restart the bot service", "restarting", true, RestartService},
		{"status", "Check the bot service status", "checking", false, StatusService},
		{"run", "Run under the service manager", "running", false, RunService},
	} {
		serviceCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Run: func(cmd *cobra.Command, args []string) {
				if err := c.run(); err != nil {
					fmt.Fprintf(os.Stderr, "Error %s service: %v\n", c.verb, err)
					if c.privileged {
						fmt.Fprintln(os.Stderr, "\nNote: Managing system services requires administrator privileges.")
						fmt.Fprintln(os.Stderr, "Please run with sudo (Linux/macOS) or as Administrator (Windows).")
					}
					os.Exit(1)
				}
			},
		})
	}
}

// BotService implements service.Interface around the fx app.
type BotService struct {
	app    *fx.App
	logger service.Logger
}

func NewBotService() *BotService {
	return &BotService{}
}

// Start implements service.Interface.Start
func (s *BotService) Start(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Starting axiombot service")
	}
	s.app = fx.New(append(appOptions(), fx.NopLogger)...)
	if err := s.app.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return s.app.Start(ctx)
}

// Stop implements service.Interface.Stop
func (s *BotService) Stop(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Stopping axiombot service")
	}
	if s.app == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.app.Stop(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error stopping service: %v", err)
		}
		return err
	}
	return nil
}

// ServiceConfig returns the service definition. The config path given
// with -c, or through the environment, is carried into the service's
// arguments.
func ServiceConfig() *service.Config {
	args := []string{"run"}
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(config.ConfigPathEnv))
	}
	if path != "" {
		args = append([]string{"-c", path}, args...)
	}
	return &service.Config{
		Name:        "axiombot",
		DisplayName: "Axiombot",
		Description: "Axiombot WhatsApp assistant",
		Arguments:   args,
	}
}

func newService() (service.Service, *BotService, error) {
	prg := NewBotService()
	s, err := service.New(prg, ServiceConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return s, prg, nil
}

// InstallService registers the bot with the system service manager.
func InstallService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return fmt.Errorf("installing service: %w", err)
	}
	fmt.Println("Service installed successfully!")
	fmt.Println("Use 'axiombot service start' to start the service")
	return nil
}

func UninstallService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("uninstalling service: %w", err)
	}
	fmt.Println("Service uninstalled successfully!")
	return nil
}

func StartService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}
	fmt.Println("Service started successfully!")
	return nil
}

func StopService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Stop(); err != nil {
		return fmt.Errorf("stopping service: %w", err)
	}
	fmt.Println("Service stopped successfully!")
	return nil
}

func RestartService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Restart(); err != nil {
		return fmt.Errorf("restarting service: %w", err)
	}
	fmt.Println("Service restarted successfully!")
	return nil
}

// StatusService prints the service state.
func StatusService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("getting service status: %w", err)
	}
	fmt.Printf("Service Status: %s\n", statusText(status))
	return nil
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	}
	return "Unknown"
}

// RunService runs under the service manager.
func RunService() error {
	s, prg, err := newService()
	if err != nil {
		return err
	}
	logger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("creating service logger: %w", err)
	}
	prg.logger = logger
	if err := s.Run(); err != nil {
		_ = logger.Error(err)
		return err
	}
	return nil
}
