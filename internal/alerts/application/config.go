package application

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines alert engine configuration.
type Config struct {
	OfflineThresholdSeconds int `yaml:"offline_threshold_seconds"`
	SweepIntervalSeconds    int `yaml:"sweep_interval_seconds"`
	RuleCacheTTLSeconds     int `yaml:"rule_cache_ttl_seconds"`

	Notify NotifyConfig `yaml:"notify"`
}

// NotifyConfig defines webhook notification settings.
type NotifyConfig struct {
	WebhookURL            string `yaml:"webhook_url"`
	Template              string `yaml:"template"`
	EscalationSeconds     int    `yaml:"escalation_seconds"`
	CooldownSeconds       int    `yaml:"cooldown_seconds"`
	DedupeWindowSeconds   int    `yaml:"dedupe_window_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// LoadConfig loads config from yaml or env. Env values fill whatever
// the file leaves unset.
func LoadConfig() (Config, error) {
	cfg := Config{
		OfflineThresholdSeconds: getenvIntDefault("ALERTS_OFFLINE_THRESHOLD_SECONDS", 300),
		SweepIntervalSeconds:    getenvIntDefault("ALERTS_SWEEP_INTERVAL_SECONDS", 60),
		RuleCacheTTLSeconds:     getenvIntDefault("ALERTS_RULE_CACHE_TTL_SECONDS", 30),
		Notify: NotifyConfig{
			WebhookURL:            os.Getenv("ALERTS_WEBHOOK_URL"),
			EscalationSeconds:     getenvIntDefault("ALERTS_ESCALATION_SECONDS", 0),
			CooldownSeconds:       getenvIntDefault("ALERTS_NOTIFY_COOLDOWN_SECONDS", 0),
			DedupeWindowSeconds:   getenvIntDefault("ALERTS_NOTIFY_DEDUPE_SECONDS", 0),
			RequestTimeoutSeconds: getenvIntDefault("ALERTS_NOTIFY_TIMEOUT_SECONDS", 5),
		},
	}

	if path := os.Getenv("ALERTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.OfflineThresholdSeconds <= 0 {
		cfg.OfflineThresholdSeconds = 300
	}
	if cfg.SweepIntervalSeconds <= 0 {
		cfg.SweepIntervalSeconds = 60
	}
	if cfg.RuleCacheTTLSeconds <= 0 {
		cfg.RuleCacheTTLSeconds = 30
	}
	return cfg, nil
}

// OfflineThreshold returns the freshness window.
func (c Config) OfflineThreshold() time.Duration {
	return time.Duration(c.OfflineThresholdSeconds) * time.Second
}

// SweepInterval returns the sweep cadence.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// RuleCacheTTL returns the rule cache staleness bound.
func (c Config) RuleCacheTTL() time.Duration {
	return time.Duration(c.RuleCacheTTLSeconds) * time.Second
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
