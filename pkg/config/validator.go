package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	v.validateBot(&cfg.Bot)
	v.validateStore(&cfg.Store, &cfg.Redis)
	v.validateHTTP(&cfg.HTTP)
	v.validateHousekeeping(&cfg.Housekeeping)
	v.validateWhatsApp(&cfg.WhatsApp)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) validateBot(cfg *BotConfig) {
	if cfg.Prefix == "" {
		v.addError("bot.prefix", "command prefix is required")
	}

	switch cfg.WorkMode {
	case WorkPublic, WorkPrivate:
	default:
		v.addError("bot.work_mode", "work_mode must be one of: public, private")
	}

	for i, n := range cfg.Sudo {
		if !isDigits(n) {
			v.addError(fmt.Sprintf("bot.sudo[%d]", i), "sudo entries must be phone numbers (digits only)")
		}
	}
}

func (v *Validator) validateStore(cfg *StoreConfig, redis *RedisConfig) {
	switch cfg.Backend {
	case "file":
		if cfg.FilePath == "" {
			v.addError("store.file_path", "file_path is required for the file backend")
		}
		if cfg.AutoSave && cfg.SaveIntervalS <= 0 {
			v.addError("store.save_interval_s", "save_interval_s must be positive when auto_save is on")
		}
	case "redis":
		if redis.Addr == "" {
			v.addError("redis.addr", "redis address is required for the redis backend")
		}
	case "memory":
	default:
		v.addError("store.backend", "backend must be one of: file, redis, memory")
	}
}

func (v *Validator) validateHTTP(cfg *HTTPConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("http.port", "port must be between 1 and 65535")
	}
}

func (v *Validator) validateHousekeeping(cfg *HousekeepingConfig) {
	specs := map[string]string{
		"housekeeping.antidelete_sweep": cfg.AntiDeleteSweep,
		"housekeeping.afk_cleanup":      cfg.AFKCleanup,
		"housekeeping.wordgame_cleanup": cfg.WordGameCleanup,
	}
	for field, spec := range specs {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			v.addError(field, fmt.Sprintf("invalid cron spec: %v", err))
		}
	}
}

func (v *Validator) validateWhatsApp(cfg *WhatsAppConfig) {
	if cfg.SessionPath == "" {
		v.addError("whatsapp.session_path", "session_path is required")
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate is a convenience wrapper around NewValidator().Validate.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
