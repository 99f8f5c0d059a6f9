package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"axiombot/pkg/fileutil"
)

// ConfigPathEnv overrides the config file location when no -c flag is given.
const ConfigPathEnv = "AXIOMBOT_CONFIG_FILE"

// DotEnvFile is loaded from the working directory and the config directory.
const DotEnvFile = "config.env"

// legacyEnv maps config keys to the flat environment names older
// deployments use in config.env.
var legacyEnv = map[string]string{
	"bot.sudo":                  "SUDO",
	"bot.prefix":                "HANDLER",
	"bot.work_mode":             "WORK_TYPE",
	"bot.name":                  "BOT_NAME",
	"bot.owner_name":            "OWNER_NAME",
	"bot.pack_name":             "PACKNAME",
	"bot.author":                "AUTHOR",
	"features.always_online":    "ALWAYS_ONLINE",
	"features.call_reject":      "CALL_REJECT",
	"features.auto_view_status": "AUTO_VIEW_STATUS",
	"features.logs":             "LOGS",
	"http.port":                 "PORT",
	"whatsapp.session_id":       "SESSION_ID",
	"redis.addr":                "REDIS_URL",
}

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
	path  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("json")

	v.SetEnvPrefix("AXIOMBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())
	for key, legacy := range legacyEnv {
		prefixed := "AXIOMBOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}

	return &Loader{viper: v}
}

// Load reads the configuration file (creating it with defaults when
// missing), then overlays config.env and the process environment.
// An empty configPath falls back to AXIOMBOT_CONFIG_FILE, then
// ~/.axiombot/config.json.
func (l *Loader) Load(configPath string) (*Config, error) {
	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	resolved, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Dir(resolved)); err != nil {
		return nil, err
	}

	l.viper.SetConfigFile(resolved)
	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := SaveToFile(DefaultConfig(), resolved); err != nil {
			return nil, fmt.Errorf("creating config file: %w", err)
		}
	}
	l.path = resolved

	return l.decode()
}

// decode unmarshals the current viper state into a fresh Config.
func (l *Loader) decode() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	normalize(cfg)
	return cfg, nil
}

// Save writes cfg as indented JSON.
func (l *Loader) Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if err := fileutil.WriteJSONAtomic(path, cfg, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveToFile is a convenience function to save config without creating a Loader.
func SaveToFile(cfg *Config, path string) error {
	return NewLoader().Save(path, cfg)
}

// GetConfigPath returns the path of the loaded config file.
func (l *Loader) GetConfigPath() string {
	return l.path
}

// GetConfigHome returns the default config directory.
func GetConfigHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".axiombot"), nil
}

func resolveConfigPath(configPath string) (string, error) {
	path := expandPath(strings.TrimSpace(configPath))
	if path == "" {
		home, err := GetConfigHome()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, "config.json")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}

// loadDotEnv loads config.env from the working directory and configDir.
// Variables already present in the environment are left untouched.
func loadDotEnv(configDir string) error {
	candidates := []string{DotEnvFile, filepath.Join(configDir, DotEnvFile)}
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil || seen[abs] || !fileutil.Exists(abs) {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("loading %s: %w", abs, err)
		}
	}
	return nil
}

// setDefaults registers every leaf of cfg so AutomaticEnv can see the keys
// during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return
	}
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, val := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]any); ok {
				walk(key, child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
}

func normalize(cfg *Config) {
	cfg.Bot.WorkMode = WorkMode(strings.ToLower(strings.TrimSpace(string(cfg.Bot.WorkMode))))
	cfg.Bot.Prefix = strings.TrimSpace(cfg.Bot.Prefix)

	sudo := make([]string, 0, len(cfg.Bot.Sudo))
	for _, raw := range cfg.Bot.Sudo {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(n), "+")); n != "" {
				sudo = append(sudo, n)
			}
		}
	}
	cfg.Bot.Sudo = sudo

	cfg.WhatsApp.SessionPath = expandPath(cfg.WhatsApp.SessionPath)
	cfg.Store.FilePath = expandPath(cfg.Store.FilePath)
}
