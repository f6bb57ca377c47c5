// Package config loads the server configuration.
//
// Configuration is environment-first: every setting has an env var, and an
// optional YAML file (BENCHVAULT_CONFIG) supplies defaults underneath the
// environment. Settings:
//
//	API_PORT                 listen port (default "8080")
//	MONGO_URI                MongoDB connection string (default mongodb://localhost:27017)
//	MONGO_DATABASE           database name (default "benchvault")
//	MONGO_CONNECT_TIMEOUT_SEC connect/ping timeout (default 5)
//	JWT_SECRET_KEY           HMAC signing secret (required in production)
//	ACCESS_TOKEN_TTL_MIN     access token lifetime in minutes (default 15)
//	REFRESH_TOKEN_TTL_HOURS  refresh token lifetime in hours (default 168)
//	ADMIN_USERNAME           bootstrap admin username (default "admin")
//	ADMIN_PASSWORD           bootstrap admin password (default "benchvault")
//	LOG_LEVEL                zerolog level (default "info")
//	LOG_PRETTY               console output when "true" (default "false")
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings.
type Config struct {
	Port string `yaml:"port"`

	MongoURI       string        `yaml:"mongo_uri"`
	MongoDatabase  string        `yaml:"mongo_database"`
	MongoTimeout   time.Duration `yaml:"-"`
	MongoTimeoutS  int           `yaml:"mongo_connect_timeout_sec"`

	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"-"`
	RefreshTokenTTL time.Duration `yaml:"-"`
	AccessTTLMin    int           `yaml:"access_token_ttl_min"`
	RefreshTTLHours int           `yaml:"refresh_token_ttl_hours"`

	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// Load builds the configuration from the optional YAML file plus the
// environment. Environment variables win over file values.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            "8080",
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "benchvault",
		MongoTimeoutS:   5,
		AccessTTLMin:    15,
		RefreshTTLHours: 168,
		AdminUsername:   "admin",
		AdminPassword:   "benchvault",
		LogLevel:        "info",
	}

	if path := os.Getenv("BENCHVAULT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("API_PORT", cfg.Port)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.MongoTimeoutS = getEnvInt("MONGO_CONNECT_TIMEOUT_SEC", cfg.MongoTimeoutS)
	cfg.JWTSecret = getEnv("JWT_SECRET_KEY", cfg.JWTSecret)
	cfg.AccessTTLMin = getEnvInt("ACCESS_TOKEN_TTL_MIN", cfg.AccessTTLMin)
	cfg.RefreshTTLHours = getEnvInt("REFRESH_TOKEN_TTL_HOURS", cfg.RefreshTTLHours)
	cfg.AdminUsername = getEnv("ADMIN_USERNAME", cfg.AdminUsername)
	cfg.AdminPassword = getEnv("ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = getEnv("LOG_PRETTY", boolStr(cfg.LogPretty)) == "true"

	cfg.MongoTimeout = time.Duration(cfg.MongoTimeoutS) * time.Second
	cfg.AccessTokenTTL = time.Duration(cfg.AccessTTLMin) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(cfg.RefreshTTLHours) * time.Hour

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
