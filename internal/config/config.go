// Package config loads application configuration with viper.
//
// Precedence: environment variables (dots become underscores, so
// server.port is read from SERVER_PORT) over an optional config.yaml over
// the defaults below. A .env file in the working directory is loaded first
// via godotenv so local development doesn't need exported variables.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        int
	Environment string
	DBPath      string

	// Google sign-in. Empty ClientID disables the /api/auth/google route.
	GoogleClientID string

	SentryDSN string

	BcryptCost int

	// SessionTTL is the hard expiry horizon for session records;
	// ActiveWindow is the recent-activity cutoff for the online-users view.
	SessionTTL   time.Duration
	ActiveWindow time.Duration
}

// Load reads configuration from .env, config.yaml and the environment.
// A missing .env or config file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("environment", "development")
	viper.SetDefault("db.path", "data/guitargames.db")
	viper.SetDefault("google.client_id", "")
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("auth.bcrypt_cost", 12)
	// Two weeks.
	viper.SetDefault("session.ttl_hours", 14*24)
	viper.SetDefault("session.active_window_minutes", 15)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return Config{
		Port:           viper.GetInt("server.port"),
		Environment:    viper.GetString("environment"),
		DBPath:         viper.GetString("db.path"),
		GoogleClientID: viper.GetString("google.client_id"),
		SentryDSN:      viper.GetString("sentry.dsn"),
		BcryptCost:     viper.GetInt("auth.bcrypt_cost"),
		SessionTTL:     time.Duration(viper.GetInt("session.ttl_hours")) * time.Hour,
		ActiveWindow:   time.Duration(viper.GetInt("session.active_window_minutes")) * time.Minute,
	}, nil
}
