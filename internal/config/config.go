// Package config loads server configuration from environment variables
// (prefix VELVET) layered over an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Admin    AdminConfig    `yaml:"admin" envconfig:"ADMIN"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// BaseURL is the externally visible base used when templating asset
	// URLs into validation responses.
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL" default:"http://localhost:8080"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/licensing.log"`
}

// PathsConfig contains file system paths.
type PathsConfig struct {
	LicenseFile string `yaml:"license_file" envconfig:"LICENSE_FILE" default:"data/licenses.json"`
	AssetFile   string `yaml:"asset_file" envconfig:"ASSET_FILE" default:"web/assets/pro-theme.css"`
}

// AdminConfig gates the admin dashboard and admin API.
type AdminConfig struct {
	Username string `yaml:"username" envconfig:"USERNAME" default:"admin"`
	// Password is a plaintext password for development setups; it is
	// bcrypt-hashed at load time and never kept around.
	Password string `yaml:"password" envconfig:"PASSWORD"`
	// PasswordHash is a bcrypt hash and takes precedence over Password.
	PasswordHash string        `yaml:"password_hash" envconfig:"PASSWORD_HASH"`
	SessionTTL   time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"12h"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// Load builds the configuration from environment variables, layered over an
// optional YAML file. Environment variables win.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("VELVET", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if path := configFilePath(); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge fills env-config fields that kept their defaults from file values.
// Only fields without envconfig defaults need merging; the defaulted ones
// are authoritative unless the file is explicit, which env overrides anyway.
func merge(fileCfg, envCfg Config) Config {
	if envCfg.Admin.Password == "" {
		envCfg.Admin.Password = fileCfg.Admin.Password
	}
	if envCfg.Admin.PasswordHash == "" {
		envCfg.Admin.PasswordHash = fileCfg.Admin.PasswordHash
	}
	if fileCfg.Server.Port != 0 && os.Getenv("VELVET_SERVER_PORT") == "" {
		envCfg.Server.Port = fileCfg.Server.Port
	}
	if fileCfg.Paths.LicenseFile != "" && os.Getenv("VELVET_PATHS_LICENSE_FILE") == "" {
		envCfg.Paths.LicenseFile = fileCfg.Paths.LicenseFile
	}
	if fileCfg.Paths.AssetFile != "" && os.Getenv("VELVET_PATHS_ASSET_FILE") == "" {
		envCfg.Paths.AssetFile = fileCfg.Paths.AssetFile
	}
	return envCfg
}

// normalize hashes a plaintext admin password so that the rest of the
// application only ever sees a bcrypt hash.
func (c *Config) normalize() error {
	if c.Admin.PasswordHash == "" && c.Admin.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Admin.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		c.Admin.PasswordHash = string(hash)
	}
	c.Admin.Password = ""
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Paths.LicenseFile == "" {
		return fmt.Errorf("license file path must be set")
	}
	if c.Paths.AssetFile == "" {
		return fmt.Errorf("asset file path must be set")
	}
	if c.Admin.SessionTTL <= 0 {
		return fmt.Errorf("admin session TTL must be positive")
	}
	return nil
}

// AdminEnabled reports whether admin login is possible. Without a password
// the admin surface stays locked rather than open.
func (c *Config) AdminEnabled() bool {
	return c.Admin.PasswordHash != ""
}

// CheckAdminPassword verifies a login attempt against the configured hash.
func (c *Config) CheckAdminPassword(password string) bool {
	if !c.AdminEnabled() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Admin.PasswordHash), []byte(password)) == nil
}

func configFilePath() string {
	if path := os.Getenv("VELVET_CONFIG_FILE"); path != "" {
		return path
	}
	for _, location := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns the default configuration. Used by tests.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			BaseURL:         "http://localhost:8080",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/licensing.log",
		},
		Paths: PathsConfig{
			LicenseFile: "data/licenses.json",
			AssetFile:   "web/assets/pro-theme.css",
		},
		Admin: AdminConfig{
			Username:   "admin",
			SessionTTL: 12 * time.Hour,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   25,
			},
		},
	}
}
