// Package config provides configuration management for the identity service.
// It handles loading and validation of configuration values from environment
// variables, with support for required variables, default values, and
// collective error reporting: every problem is gathered before failing so one
// startup attempt reports the full list.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds connection settings for the PostgreSQL pool.
type DatabaseConfig struct {
	// URL is a postgres:// connection string.
	URL string
	// MaxConns bounds the shared connection pool.
	MaxConns int
	// AcquireTimeout bounds establishing a new database connection.
	AcquireTimeout time.Duration
	// MigrationsPath points at the SQL migration files applied at startup.
	MigrationsPath string
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	JWTSecret     string        // Secret key for signing bearer tokens
	TokenDuration time.Duration // Lifetime of issued bearer tokens
}

// OAuthProviderConfig holds the credentials for one OAuth provider.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// OAuthConfig groups provider credentials and the linking policy.
type OAuthConfig struct {
	Google  OAuthProviderConfig
	Discord OAuthProviderConfig
	// StrictLinking rejects a callback whose email already belongs to a
	// different provider identity instead of creating a second account.
	StrictLinking bool
}

// SMTPConfig holds the outbound mail transport settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// ServerConfig holds HTTP server settings and the URLs the service links to.
type ServerConfig struct {
	Port        string
	AppName     string
	FrontendURL string
	BackendURL  string
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Database *DatabaseConfig
	Auth     *AuthConfig
	OAuth    *OAuthConfig
	SMTP     *SMTPConfig
	Server   *ServerConfig
}

// getRequiredEnv reads a required environment variable, collecting an error
// if it is unset.
func getRequiredEnv(key string, errs *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		*errs = append(*errs, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

// getOptionalEnv reads an optional environment variable with a default.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getOptionalEnvInt reads an optional integer variable, collecting an error
// and falling back to the default when the value does not parse.
func getOptionalEnvInt(key string, defaultValue int, errs *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

// getOptionalEnvBool reads an optional boolean variable.
func getOptionalEnvBool(key string, defaultValue bool, errs *[]string) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueBool, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected boolean, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueBool
}

// getOptionalEnvDuration reads an optional duration variable such as "30s" or
// "24h".
func getOptionalEnvDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the connection pool within sane bounds.
func clampPoolSize(size int, errs *[]string) int {
	if size < 1 {
		*errs = append(*errs, fmt.Sprintf("DB_MAX_CONNS (%d) is less than minimum 1, clamping to 1", size))
		return 1
	}
	if size > 100 {
		*errs = append(*errs, fmt.Sprintf("DB_MAX_CONNS (%d) is greater than maximum 100, clamping to 100", size))
		return 100
	}
	return size
}

// LoadConfig creates an AppConfig from environment variables. It collects all
// errors encountered and returns a single aggregated error if any exist.
func LoadConfig() (*AppConfig, error) {
	var errs []string

	// Database
	databaseURL := getRequiredEnv("DATABASE_URL", &errs)
	maxConns := clampPoolSize(getOptionalEnvInt("DB_MAX_CONNS", 10, &errs), &errs)
	acquireTimeout := getOptionalEnvDuration("DB_ACQUIRE_TIMEOUT", 30*time.Second, &errs)
	migrationsPath := getOptionalEnv("DB_MIGRATIONS_PATH", "./migrations")

	dbConfig := &DatabaseConfig{
		URL:            databaseURL,
		MaxConns:       maxConns,
		AcquireTimeout: acquireTimeout,
		MigrationsPath: migrationsPath,
	}

	// Auth
	authConfig := &AuthConfig{
		JWTSecret:     getRequiredEnv("JWT_SECRET_KEY", &errs),
		TokenDuration: getOptionalEnvDuration("JWT_TOKEN_DURATION", 24*time.Hour, &errs),
	}

	// OAuth providers
	oauthConfig := &OAuthConfig{
		Google: OAuthProviderConfig{
			ClientID:     getRequiredEnv("GOOGLE_CLIENT_ID", &errs),
			ClientSecret: getRequiredEnv("GOOGLE_CLIENT_SECRET", &errs),
		},
		Discord: OAuthProviderConfig{
			ClientID:     getRequiredEnv("DISCORD_CLIENT_ID", &errs),
			ClientSecret: getRequiredEnv("DISCORD_CLIENT_SECRET", &errs),
		},
		StrictLinking: getOptionalEnvBool("OAUTH_STRICT_LINKING", false, &errs),
	}

	// SMTP
	smtpConfig := &SMTPConfig{
		Host:      getRequiredEnv("SMTP_HOST", &errs),
		Port:      getOptionalEnvInt("SMTP_PORT", 587, &errs),
		Username:  getRequiredEnv("SMTP_USERNAME", &errs),
		Password:  getRequiredEnv("SMTP_PASSWORD", &errs),
		FromEmail: getRequiredEnv("SMTP_FROM_EMAIL", &errs),
		FromName:  getOptionalEnv("SMTP_FROM_NAME", "ForMangaReaders"),
	}

	// Server
	serverConfig := &ServerConfig{
		Port:        getOptionalEnv("PORT", "8000"),
		AppName:     getOptionalEnv("APP_NAME", "formanga-auth"),
		FrontendURL: getRequiredEnv("FRONTEND_URL", &errs),
		BackendURL:  getRequiredEnv("BACKEND_URL", &errs),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return &AppConfig{
		Database: dbConfig,
		Auth:     authConfig,
		OAuth:    oauthConfig,
		SMTP:     smtpConfig,
		Server:   serverConfig,
	}, nil
}
