package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		Mode           string   `yaml:"mode"` // gin mode: debug, release or test
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"` // "postgres" or "sqlite"
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret          string        `yaml:"jwt_secret"`
		AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
		ResetTokenTTL      time.Duration `yaml:"reset_token_ttl"`
		ResetSalt          string        `yaml:"reset_salt"`
		RegistrationSecret string        `yaml:"registration_secret"`
	} `yaml:"auth"`
	Admin struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	OpenAI struct {
		APIKey       string        `yaml:"api_key"`
		BaseURL      string        `yaml:"base_url"`
		Model        string        `yaml:"model"`
		RunTimeout   time.Duration `yaml:"run_timeout"`
		IndexTimeout time.Duration `yaml:"index_timeout"`
		PollInterval time.Duration `yaml:"poll_interval"`
		HTTPTimeout  time.Duration `yaml:"http_timeout"`
	} `yaml:"openai"`
	Uploads struct {
		Dir string `yaml:"dir"`
	} `yaml:"uploads"`
	Mail struct {
		ServiceURL  string `yaml:"service_url"`
		APIKey      string `yaml:"api_key"`
		FrontendURL string `yaml:"frontend_url"`
	} `yaml:"mail"`
	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Log struct {
		Debug bool `yaml:"debug"`
	} `yaml:"log"`
}

// LoadConfig reads configuration from the specified YAML file, expands
// environment references in secrets and fills in defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.expandEnv()
	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) expandEnv() {
	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
	c.Auth.ResetSalt = os.ExpandEnv(c.Auth.ResetSalt)
	c.Auth.RegistrationSecret = os.ExpandEnv(c.Auth.RegistrationSecret)
	c.Admin.Password = os.ExpandEnv(c.Admin.Password)
	c.OpenAI.APIKey = os.ExpandEnv(c.OpenAI.APIKey)
	c.Mail.APIKey = os.ExpandEnv(c.Mail.APIKey)
	c.Telegram.BotToken = os.ExpandEnv(c.Telegram.BotToken)
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "5000"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}

	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.ResetTokenTTL == 0 {
		c.Auth.ResetTokenTTL = time.Hour
	}
	if c.Auth.ResetSalt == "" {
		c.Auth.ResetSalt = "password-reset"
	}

	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.RunTimeout == 0 {
		c.OpenAI.RunTimeout = 60 * time.Second
	}
	if c.OpenAI.IndexTimeout == 0 {
		c.OpenAI.IndexTimeout = 5 * time.Minute
	}
	if c.OpenAI.PollInterval == 0 {
		c.OpenAI.PollInterval = time.Second
	}
	if c.OpenAI.HTTPTimeout == 0 {
		c.OpenAI.HTTPTimeout = 30 * time.Second
	}

	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
}

// Validate reports configuration errors that would make the server unusable.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.OpenAI.PollInterval <= 0 {
		return errors.New("openai.poll_interval must be positive")
	}
	if c.OpenAI.RunTimeout <= 0 {
		return errors.New("openai.run_timeout must be positive")
	}
	if c.OpenAI.IndexTimeout <= 0 {
		return errors.New("openai.index_timeout must be positive")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token must be set when telegram is enabled")
	}
	return nil
}
