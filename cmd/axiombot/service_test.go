package main

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kardianos/service"

	"axiombot/pkg/config"
)

func withConfigPath(t *testing.T, path string) {
	t.Helper()
	original := configPath
	t.Cleanup(func() { configPath = original })
	configPath = path
}

func TestServiceConfig_DefaultArguments(t *testing.T) {
	withConfigPath(t, "")
	t.Setenv(config.ConfigPathEnv, "")

	got := ServiceConfig().Arguments
	want := []string{"run"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected arguments %v, got %v", want, got)
	}
}

func TestServiceConfig_IncludesConfigFlag(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "service-config.json")
	withConfigPath(t, configFile)
	t.Setenv(config.ConfigPathEnv, filepath.Join(t.TempDir(), "ignored.json"))

	got := ServiceConfig().Arguments
	want := []string{"-c", configFile, "run"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected arguments %v, got %v", want, got)
	}
}

func TestServiceConfig_UsesConfigPathEnvWhenFlagNotProvided(t *testing.T) {
	withConfigPath(t, "")
	configFile := filepath.Join(t.TempDir(), "env-config.json")
	t.Setenv(config.ConfigPathEnv, configFile)

	got := ServiceConfig().Arguments
	want := []string{"-c", configFile, "run"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected arguments %v, got %v", want, got)
	}
}

func TestStatusText(t *testing.T) {
	for status, want := range map[service.Status]string{
		service.StatusRunning: "Running",
		service.StatusStopped: "Stopped",
		service.StatusUnknown: "Unknown",
	} {
		if got := statusText(status); got != want {
			t.Errorf("statusText(%v) = %q, want %q", status, got, want)
		}
	}
}

func TestServiceCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range serviceCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"install", "uninstall", "start", "stop", "restart", "status", "run"} {
		if !names[want] {
			t.Errorf("missing service subcommand %q", want)
		}
	}
}
