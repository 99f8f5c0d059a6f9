// Package config provides configuration management for axiombot.
// It uses Viper for loading with support for:
// - JSON config files auto-created with defaults
// - Environment variables, including the flat legacy keys (SUDO, HANDLER, ...)
// - config.env dotenv files
// - Hot-reload of the running bot settings
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// WorkMode controls who may trigger command-kind definitions.
type WorkMode string

const (
	// WorkPublic lets anyone invoke commands that are not owner-only.
	WorkPublic WorkMode = "public"
	// WorkPrivate restricts every command to sudo senders.
	WorkPrivate WorkMode = "private"
)

// Config represents the complete axiombot configuration.
type Config struct {
	Bot          BotConfig          `mapstructure:"bot" json:"bot"`
	Features     FeaturesConfig     `mapstructure:"features" json:"features"`
	WhatsApp     WhatsAppConfig     `mapstructure:"whatsapp" json:"whatsapp"`
	Store        StoreConfig        `mapstructure:"store" json:"store"`
	Redis        RedisConfig        `mapstructure:"redis" json:"redis"`
	HTTP         HTTPConfig         `mapstructure:"http" json:"http"`
	Housekeeping HousekeepingConfig `mapstructure:"housekeeping" json:"housekeeping"`
	Logger       LoggerConfig       `mapstructure:"logger" json:"logger"`
	mu           sync.RWMutex
}

// BotConfig holds identity and access settings.
type BotConfig struct {
	Name      string   `mapstructure:"name" json:"name"`
	OwnerName string   `mapstructure:"owner_name" json:"owner_name"`
	Prefix    string   `mapstructure:"prefix" json:"prefix"`
	WorkMode  WorkMode `mapstructure:"work_mode" json:"work_mode"`
	Sudo      []string `mapstructure:"sudo" json:"sudo"`
	PackName  string   `mapstructure:"pack_name" json:"pack_name"`
	Author    string   `mapstructure:"author" json:"author"`
}

// FeaturesConfig holds process-wide toggles. The per-deployment switches in
// the store's botfeatures section are OR-ed with these where both exist.
type FeaturesConfig struct {
	AlwaysOnline   bool `mapstructure:"always_online" json:"always_online"`
	CallReject     bool `mapstructure:"call_reject" json:"call_reject"`
	AutoViewStatus bool `mapstructure:"auto_view_status" json:"auto_view_status"`
	Logs           bool `mapstructure:"logs" json:"logs"`
}

// WhatsAppConfig configures the protocol client.
type WhatsAppConfig struct {
	SessionPath   string `mapstructure:"session_path" json:"session_path"`
	SessionID     string `mapstructure:"session_id" json:"session_id"`
	LogLevel      string `mapstructure:"log_level" json:"log_level"`
	ConnectNotice bool   `mapstructure:"connect_notice" json:"connect_notice"`
}

// StoreConfig selects the persistence backend for bot state.
type StoreConfig struct {
	Backend       string `mapstructure:"backend" json:"backend"` // file, redis or memory
	FilePath      string `mapstructure:"file_path" json:"file_path"`
	Prefix        string `mapstructure:"prefix" json:"prefix"`
	AutoSave      bool   `mapstructure:"auto_save" json:"auto_save"`
	SaveIntervalS int    `mapstructure:"save_interval_s" json:"save_interval_s"`
}

// RedisConfig is shared connection info for redis-backed components.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

// HTTPConfig configures the health endpoint.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Host    string `mapstructure:"host" json:"host"`
	Port    int    `mapstructure:"port" json:"port"`
}

// HousekeepingConfig holds cron specs for background cleanup.
type HousekeepingConfig struct {
	AntiDeleteSweep string `mapstructure:"antidelete_sweep" json:"antidelete_sweep"`
	AFKCleanup      string `mapstructure:"afk_cleanup" json:"afk_cleanup"`
	WordGameCleanup string `mapstructure:"wordgame_cleanup" json:"wordgame_cleanup"`
}

// LoggerConfig mirrors logger.Config in file-friendly form.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	OutputPath  string `mapstructure:"output_path" json:"output_path"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress"`
	Development bool   `mapstructure:"development" json:"development"`
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	home := defaultHome()

	return &Config{
		Bot: BotConfig{
			Name:      "axiom",
			OwnerName: "masterj",
			Prefix:    ".",
			WorkMode:  WorkPublic,
			Sudo:      []string{},
			PackName:  "axiom",
			Author:    "masterj",
		},
		Features: FeaturesConfig{
			AlwaysOnline:   false,
			CallReject:     false,
			AutoViewStatus: false,
			Logs:           true,
		},
		WhatsApp: WhatsAppConfig{
			SessionPath:   filepath.Join(home, "session.db"),
			LogLevel:      "warn",
			ConnectNotice: true,
		},
		Store: StoreConfig{
			Backend:       "file",
			FilePath:      filepath.Join(home, "store.json"),
			Prefix:        "axiombot:",
			AutoSave:      false,
			SaveIntervalS: 5,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8000,
		},
		Housekeeping: HousekeepingConfig{
			AntiDeleteSweep: "@every 1m",
			AFKCleanup:      "@daily",
			WordGameCleanup: "@every 5m",
		},
		Logger: LoggerConfig{
			Level:      "info",
			OutputPath: filepath.Join(home, "logs", "axiombot.log"),
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Runtime is an immutable copy of the settings consulted on every message.
type Runtime struct {
	BotName        string
	OwnerName      string
	Prefix         string
	WorkMode       WorkMode
	Sudo           []string
	AlwaysOnline   bool
	CallReject     bool
	AutoViewStatus bool
	Logs           bool
}

// IsPrivate reports whether the bot only answers sudo senders.
func (r Runtime) IsPrivate() bool {
	return r.WorkMode == WorkPrivate
}

// Snapshot returns the current runtime settings.
func (c *Config) Snapshot() Runtime {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sudo := make([]string, len(c.Bot.Sudo))
	copy(sudo, c.Bot.Sudo)

	return Runtime{
		BotName:        c.Bot.Name,
		OwnerName:      c.Bot.OwnerName,
		Prefix:         strings.TrimSpace(c.Bot.Prefix),
		WorkMode:       WorkMode(strings.ToLower(string(c.Bot.WorkMode))),
		Sudo:           sudo,
		AlwaysOnline:   c.Features.AlwaysOnline,
		CallReject:     c.Features.CallReject,
		AutoViewStatus: c.Features.AutoViewStatus,
		Logs:           c.Features.Logs,
	}
}

// Apply copies the hot-reloadable sections from next. Connection settings
// (whatsapp, store, redis, http) only change on restart.
func (c *Config) Apply(next *Config) {
	next.mu.RLock()
	bot, features, housekeeping := next.Bot, next.Features, next.Housekeeping
	next.mu.RUnlock()

	c.mu.Lock()
	c.Bot = bot
	c.Features = features
	c.Housekeeping = housekeeping
	c.mu.Unlock()
}

// SetSudo replaces the configured sudo numbers.
func (c *Config) SetSudo(numbers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Bot.Sudo = append([]string(nil), numbers...)
}

func defaultHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".axiombot")
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
