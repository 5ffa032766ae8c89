package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/reillywatson/impact/internal/errors"
)

// Config holds all configuration settings
type Config struct {
	GitHub GitHubConfig `mapstructure:"github" yaml:"github"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Report ReportConfig `mapstructure:"report" yaml:"report"`
}

type GitHubConfig struct {
	Token           string  `mapstructure:"token" yaml:"token"`
	RateLimit       float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gt=0"` // Requests per second
	Workers         int     `mapstructure:"workers" yaml:"workers" validate:"min=1,max=32"`
	BreakerFailures int     `mapstructure:"breaker_failures" yaml:"breaker_failures" validate:"min=1"`
}

type CacheConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend" validate:"oneof=file bolt none"`
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

type ReportConfig struct {
	// Empty means every registered metric.
	Metrics []string `mapstructure:"metrics" yaml:"metrics"`
	Format  string   `mapstructure:"format" yaml:"format" validate:"oneof=text json yaml"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		GitHub: GitHubConfig{
			RateLimit:       10,
			Workers:         4,
			BreakerFailures: 5,
		},
		Cache: CacheConfig{
			Backend:   "file",
			Directory: filepath.Join(homeDir, ".impact", "cache"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Report: ReportConfig{
			Format: "text",
		},
	}
}

// Load reads .env files, an optional YAML config file and IMPACT_* environment
// variables on top of Default, then validates the result. An empty path
// searches the standard locations; a missing file there is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("github.token", cfg.GitHub.Token)
	v.SetDefault("github.rate_limit", cfg.GitHub.RateLimit)
	v.SetDefault("github.workers", cfg.GitHub.Workers)
	v.SetDefault("github.breaker_failures", cfg.GitHub.BreakerFailures)
	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.directory", cfg.Cache.Directory)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("report.metrics", cfg.Report.Metrics)
	v.SetDefault("report.format", cfg.Report.Format)

	v.SetEnvPrefix("IMPACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".impact")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".impact"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.NewConfigError("failed to read config").WithCause(err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to unmarshal config").WithCause(err)
	}

	applyEnvOverrides(cfg)
	cfg.Cache.Directory = expandPath(cfg.Cache.Directory)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("invalid configuration: %v", err)).WithCause(err)
	}
	return nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".impact", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[1:])
}
