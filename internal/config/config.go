package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "JOURNAL"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "journal.db"
	defaultLogLevel      = "info"
	defaultCountryCode   = "+1"
	defaultMinPassLength = 8
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	ProviderBaseURL    string
	ProviderAPIKey     string
	SessionToken       string
	ResetRedirectURL   string
	DatabasePath       string
	LogLevel           string
	DefaultCountryCode string
	MinPasswordLength  int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("phone.default_country_code", defaultCountryCode)
	configViper.SetDefault("password.min_length", defaultMinPassLength)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		ProviderBaseURL:    configViper.GetString("provider.base_url"),
		ProviderAPIKey:     configViper.GetString("provider.api_key"),
		SessionToken:       configViper.GetString("provider.session_token"),
		ResetRedirectURL:   configViper.GetString("provider.reset_redirect_url"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		DefaultCountryCode: configViper.GetString("phone.default_country_code"),
		MinPasswordLength:  configViper.GetInt("password.min_length"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.ProviderBaseURL) == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if strings.TrimSpace(c.ProviderAPIKey) == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.MinPasswordLength <= 0 {
		return fmt.Errorf("password.min_length must be positive")
	}
	return nil
}
