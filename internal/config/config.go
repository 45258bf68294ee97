// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fodmapworks/fodmap-flow/internal/common"
	"github.com/fodmapworks/fodmap-flow/internal/engine"
	"github.com/fodmapworks/fodmap-flow/internal/llm"
	"github.com/fodmapworks/fodmap-flow/internal/rules"
)

// Config is the fully-resolved application configuration.
type Config struct {
	Router            engine.RouterConfig
	DatabasePath      string
	SchedulerInterval time.Duration
	Engine            engine.Config
}

// Load builds the application configuration from Viper and environment
// variables. Precedence: flags bound to viper keys, then config file or
// FODMAP_ env vars, then defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:      ExpandPath(viper.GetString("database.path")),
		SchedulerInterval: viper.GetDuration("scheduler.interval"),
		Router: engine.RouterConfig{
			Mode: viper.GetString("classifier.mode"),
			LLM:  loadLLMConfig(),
		},
		Engine: engine.Config{
			BatchSize: viper.GetInt("engine.batch_size"),
			PassDelay: viper.GetDuration("engine.pass_delay"),
			LockTTL:   viper.GetDuration("engine.lock_ttl"),
		},
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = ExpandPath("~/.local/share/fodmapd/fodmap.db")
	}
	if cfg.SchedulerInterval == 0 {
		cfg.SchedulerInterval = 2 * time.Minute
	}

	rulesCfg, err := loadRulesConfig()
	if err != nil {
		return nil, err
	}
	cfg.Router.Rules = rulesCfg

	if _, err := engine.ParseMode(cfg.Router.Mode); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// loadRulesConfig returns the configured keyword lists, falling back to the
// compiled-in defaults when the config file carries none.
func loadRulesConfig() (rules.Config, error) {
	if !viper.IsSet("rules") {
		return rules.DefaultConfig(), nil
	}

	var cfg rules.Config
	if err := viper.UnmarshalKey("rules", &cfg); err != nil {
		return rules.Config{}, fmt.Errorf("%w: invalid rules section: %v", common.ErrInvalidConfig, err)
	}
	if len(cfg.Low.Keywords) == 0 && len(cfg.High.Keywords) == 0 {
		return rules.DefaultConfig(), nil
	}
	return cfg, nil
}

// ExpandPath resolves ~ and $VAR references in a filesystem path, so config
// values like "~/.local/share/fodmapd/fodmap.db" work as written.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

func loadLLMConfig() llm.Config {
	provider := viper.GetString("llm.provider")
	if provider == "" {
		provider = "gemini"
	}

	cfg := llm.Config{
		Provider:         provider,
		APIKey:           viper.GetString("llm.api_key"),
		Model:            viper.GetString("llm.model"),
		Temperature:      viper.GetFloat64("llm.temperature"),
		MaxTokens:        viper.GetInt("llm.max_tokens"),
		BatchSize:        viper.GetInt("llm.batch_size"),
		RateLimit:        viper.GetInt("llm.rate_limit"),
		RateWindow:       viper.GetDuration("llm.rate_window"),
		RatePolicy:       llm.RatePolicy(viper.GetString("llm.rate_policy")),
		RateWaitAttempts: viper.GetInt("llm.rate_wait_attempts"),
		RateWaitDelay:    viper.GetDuration("llm.rate_wait_delay"),
		BatchDelay:       viper.GetDuration("llm.batch_delay"),
		CacheTTL:         viper.GetDuration("llm.cache_ttl"),
	}

	// API keys come from the environment when not in the config file.
	if cfg.APIKey == "" {
		switch provider {
		case "gemini":
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = 15
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * 24 * time.Hour
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = 2 * time.Second
	}
	return cfg
}
