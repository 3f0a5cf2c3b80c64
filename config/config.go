package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the full application configuration. It is loaded once in
// main and handed to each component at construction.
type AppConfig struct {
	App       AppSettings     `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Instagram InstagramConfig `yaml:"instagram"`
	CORS      CORSConfig      `yaml:"cors"`
	Cron      CronConfig      `yaml:"cron"`
}

type AppSettings struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Port        string `yaml:"port"`
	Debug       bool   `yaml:"debug"`
	// TrustProxy enables the X-Forwarded-Proto header when a reverse proxy
	// terminates TLS in front of the service.
	TrustProxy bool `yaml:"trust_proxy"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// InstagramConfig covers the Instagram app credentials plus the two
// allow-lists that gate login: which site origins may start the OAuth flow
// and which account usernames may complete it.
type InstagramConfig struct {
	ClientID         string   `yaml:"client_id"`
	ClientSecret     string   `yaml:"client_secret"`
	AuthURL          string   `yaml:"auth_url"`
	TokenURL         string   `yaml:"token_url"`
	GraphURL         string   `yaml:"graph_url"`
	Scopes           []string `yaml:"scopes"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedUsernames []string `yaml:"allowed_usernames"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposeHeaders    []string `yaml:"expose_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

type CronConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// Default returns the configuration used when no config file is present.
func Default() *AppConfig {
	return &AppConfig{
		App: AppSettings{
			Name:        "ins-display",
			Version:     "dev",
			Environment: "development",
			Port:        "8080",
			Debug:       true,
		},
		Database: DatabaseConfig{
			Path: "ins-display.db",
		},
		Instagram: InstagramConfig{
			AuthURL:  "https://www.instagram.com/oauth/authorize",
			TokenURL: "https://api.instagram.com/oauth/access_token",
			GraphURL: "https://graph.instagram.com",
			Scopes:   []string{"instagram_business_basic"},
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Origin", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: false,
		},
		Cron: CronConfig{
			Enabled:  true,
			Schedule: "@hourly",
		},
	}
}

// Fallback returns the defaults with environment overrides applied, for
// deployments that carry no config file at all.
func Fallback() *AppConfig {
	cfg := Default()
	cfg.applyEnvOverrides()
	return cfg
}

// Load reads a YAML config file on top of the defaults and then applies
// environment variable overrides.
func Load(configPath string) (*AppConfig, error) {
	if configPath == "" {
		configPath = "config/app_config.yaml"
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config file (%s): %w", absPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *AppConfig) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.App.Port = port
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		c.App.Environment = env
	}
	if path := os.Getenv("DATABASE_PATH"); path != "" {
		c.Database.Path = path
	}
	if id := os.Getenv("INSTAGRAM_CLIENT_ID"); id != "" {
		c.Instagram.ClientID = id
	}
	if secret := os.Getenv("INSTAGRAM_CLIENT_SECRET"); secret != "" {
		c.Instagram.ClientSecret = secret
	}
}

func (c *AppConfig) IsDebugMode() bool {
	return c.App.Debug
}
