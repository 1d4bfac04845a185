package config

import (
	"os"
	"strconv"

	"godex/domain/detest"
	"godex/internal/correction"
	"godex/internal/errors"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// EngineConfig holds the test engine defaults
type EngineConfig struct {
	CorrectionMethod string  `yaml:"correction_method"`
	CorrectionPolicy string  `yaml:"correction_policy"`
	Log10Threshold   float64 `yaml:"log10_threshold"`
	Workers          int     `yaml:"workers"`
	KeepTests        bool    `yaml:"keep_tests"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			CorrectionMethod: correction.DefaultMethod,
			CorrectionPolicy: string(detest.CorrectGlobal),
			Log10Threshold:   -30,
			Workers:          1,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// Load reads configuration from a .env file if present, then environment
// variables, then the YAML file named by GODEX_CONFIG, and validates it
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := Default()
	loadEngineConfig(&config.Engine)
	loadLoggingConfig(&config.Logging)
	config.Server.Addr = getEnvOrDefault("GODEX_HTTP_ADDR", config.Server.Addr)

	if path := os.Getenv("GODEX_CONFIG"); path != "" {
		if err := config.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadEngineConfig(e *EngineConfig) {
	e.CorrectionMethod = getEnvOrDefault("GODEX_CORRECTION_METHOD", e.CorrectionMethod)
	e.CorrectionPolicy = getEnvOrDefault("GODEX_CORRECTION_POLICY", e.CorrectionPolicy)
	e.Log10Threshold = getEnvFloatOrDefault("GODEX_LOG10_THRESHOLD", e.Log10Threshold)
	e.Workers = getEnvIntOrDefault("GODEX_WORKERS", e.Workers)
	e.KeepTests = getEnvBoolOrDefault("GODEX_KEEP_TESTS", e.KeepTests)
}

func loadLoggingConfig(l *LoggingConfig) {
	l.Level = getEnvOrDefault("GODEX_LOG_LEVEL", l.Level)
	l.Format = getEnvOrDefault("GODEX_LOG_FORMAT", l.Format)
}

// overlay replaces fields with the values set in a YAML file.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "parse config file %s", path))
	}
	return nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if _, err := correction.Lookup(c.Engine.CorrectionMethod); err != nil {
		return errors.ConfigInvalid("unknown correction method " + strconv.Quote(c.Engine.CorrectionMethod))
	}
	if _, err := detest.ParseCorrectionPolicy(c.Engine.CorrectionPolicy); err != nil {
		return errors.ConfigInvalid("unknown correction policy " + strconv.Quote(c.Engine.CorrectionPolicy))
	}
	if c.Engine.Workers < 1 {
		return errors.ConfigInvalid("workers must be at least 1")
	}
	if c.Engine.Log10Threshold > 0 {
		return errors.ConfigInvalid("log10 threshold must not be positive")
	}
	if c.Server.Addr == "" {
		return errors.ConfigInvalid("server address is required")
	}
	return nil
}

// Policy returns the parsed correction policy. Call after Validate.
func (c *Config) Policy() detest.CorrectionPolicy {
	p, _ := detest.ParseCorrectionPolicy(c.Engine.CorrectionPolicy)
	return p
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
