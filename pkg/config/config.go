// Copyright 2025 Flux Point Studios
//
// Package config provides environment-variable-driven configuration
// for the thin glue layers (gateway, cmd/poi) that sit around the PoI
// SDK core. The core itself (pkg/*) never reads environment variables
// — it takes explicit Go structs, per spec.md §9's no-global-state
// rule — so this package is consumed only outside pkg/.
//
// Grounded on the teacher's pkg/config/config.go Load()/Validate()
// shape and getEnv* helper family, trimmed to the fields this SDK's
// glue layers actually need. LoadFromFile below additionally follows
// the teacher's pkg/config/anchor_config.go LoadAnchorConfig: a YAML
// file with ${VAR_NAME} environment-variable substitution, layered
// over the env-var defaults from Load().
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the gateway/CLI's runtime configuration.
type Config struct {
	// Server
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Chain provider
	ChainProvider         string `yaml:"chain_provider"` // "blockfrost" or "koios"
	BlockfrostProjectID   string `yaml:"blockfrost_project_id"`
	BlockfrostBaseURL     string `yaml:"blockfrost_base_url"`
	KoiosBaseURL          string `yaml:"koios_base_url"`
	Network               string `yaml:"network"` // "mainnet", "preprod", "preview"
	AnchorLabel           int    `yaml:"anchor_label"`
	ConfirmationThreshold int    `yaml:"confirmation_threshold"`

	// Signer
	Ed25519KeyPath string `yaml:"ed25519_key_path"`

	// Payment protocol
	PaymentHeaderName string `yaml:"payment_header_name"`
	PaymentRequired   bool   `yaml:"payment_required"`

	// Accumulator settlement policy
	MaxCommitsBeforeSettlement int   `yaml:"max_commits_before_settlement"`
	MaxTimeBeforeSettlementMs  int64 `yaml:"max_time_before_settlement_ms"`
	HistoryLimit               int   `yaml:"history_limit"`

	// Retry policy
	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`

	// Settlement confirmation-wait policy
	SettlementConfirmationTimeout time.Duration `yaml:"settlement_confirmation_timeout"`
	SettlementPollInterval        time.Duration `yaml:"settlement_poll_interval"`

	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from environment variables, applying safe
// defaults for everything except values that have no safe default
// (there are none required here — unlike the teacher, this SDK's glue
// layers have no secrets that must be explicitly supplied; the signer
// key path defaults to a dev-only generated key when unset).
func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("POI_LISTEN_ADDR", "0.0.0.0:8080"),
		MetricsAddr: getEnv("POI_METRICS_ADDR", "0.0.0.0:9090"),

		ChainProvider:         getEnv("POI_CHAIN_PROVIDER", "blockfrost"),
		BlockfrostProjectID:   getEnv("BLOCKFROST_PROJECT_ID", ""),
		BlockfrostBaseURL:     getEnv("BLOCKFROST_BASE_URL", "https://cardano-preview.blockfrost.io/api/v0"),
		KoiosBaseURL:          getEnv("KOIOS_BASE_URL", "https://preview.koios.rest/api/v1"),
		Network:               getEnv("POI_NETWORK", "preview"),
		AnchorLabel:           getEnvInt("POI_ANCHOR_LABEL", 2222),
		ConfirmationThreshold: getEnvInt("POI_CONFIRMATION_THRESHOLD", 10),

		Ed25519KeyPath: getEnv("POI_ED25519_KEY_PATH", ""),

		PaymentHeaderName: getEnv("POI_PAYMENT_HEADER", "X-PoI-Payment-Proof"),
		PaymentRequired:   getEnvBool("POI_PAYMENT_REQUIRED", false),

		MaxCommitsBeforeSettlement: getEnvInt("POI_MAX_COMMITS_BEFORE_SETTLEMENT", 1000),
		MaxTimeBeforeSettlementMs:  getEnvInt64("POI_MAX_TIME_BEFORE_SETTLEMENT_MS", 15*60*1000),
		HistoryLimit:               getEnvInt("POI_BATCH_HISTORY_LIMIT", 50),

		RetryMaxAttempts: getEnvInt("POI_RETRY_MAX_ATTEMPTS", 5),
		RetryBaseDelay:   getEnvDuration("POI_RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:    getEnvDuration("POI_RETRY_MAX_DELAY", 30*time.Second),

		SettlementConfirmationTimeout: getEnvDuration("POI_SETTLEMENT_CONFIRMATION_TIMEOUT", 10*time.Minute),
		SettlementPollInterval:        getEnvDuration("POI_SETTLEMENT_POLL_INTERVAL", 5*time.Second),

		LogLevel: getEnv("POI_LOG_LEVEL", "info"),
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)(:-(.*?))?\}`)

// LoadFromFile reads configuration from a YAML file, substituting
// ${VAR_NAME} (and ${VAR_NAME:-default}) references against the
// process environment before parsing, and decodes it over Load()'s
// env-var defaults: fields the file does not mention keep the default,
// and any field the file sets (even to a zero value) takes the file's value.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	cfg := Load()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := groups[3]
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks internal consistency of the loaded configuration.
func (c *Config) Validate() error {
	var errs []string

	switch c.ChainProvider {
	case "blockfrost":
		if c.BlockfrostProjectID == "" {
			errs = append(errs, "BLOCKFROST_PROJECT_ID is required when POI_CHAIN_PROVIDER=blockfrost")
		}
	case "koios":
		// Koios requires no project ID.
	default:
		errs = append(errs, fmt.Sprintf("unrecognized POI_CHAIN_PROVIDER %q (want blockfrost or koios)", c.ChainProvider))
	}

	if c.AnchorLabel <= 0 {
		errs = append(errs, "POI_ANCHOR_LABEL must be positive")
	}
	if c.ConfirmationThreshold < 0 {
		errs = append(errs, "POI_CONFIRMATION_THRESHOLD must not be negative")
	}
	if c.MaxCommitsBeforeSettlement <= 0 {
		errs = append(errs, "POI_MAX_COMMITS_BEFORE_SETTLEMENT must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
