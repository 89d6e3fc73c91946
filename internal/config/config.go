package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	JWT         JWTConfig
	Report      ReportConfig
	Environment string
}

// DatabaseConfig holds MySQL connection settings. MYSQL_* variables take
// precedence; DB_* are accepted as fallbacks.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	MaxConns int
	MaxIdle  int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string
	FrontendURL string
}

// JWTConfig holds token verification settings
type JWTConfig struct {
	Secret string
}

// ReportConfig holds regulator artifact settings: institution code used in
// report numbers, template and font locations, and output directories.
type ReportConfig struct {
	InstitutionCode string
	TemplateDir     string
	FontDir         string
	ArtifactDir     string
	ReceiptDir      string
	ExportHour      string
}

// New builds configuration from the environment.
func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnvFallback("MYSQL_HOST", "DB_HOST", "localhost"),
			Port:     getEnvFallback("MYSQL_PORT", "DB_PORT", "3306"),
			User:     getEnvFallback("MYSQL_USER", "DB_USER", "root"),
			Password: getEnvFallback("MYSQL_PASSWORD", "DB_PASSWORD", ""),
			Database: getEnvFallback("MYSQL_DATABASE", "DB_DATABASE", "siamfx"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MaxIdle:  getEnvInt("DB_MAX_IDLE", 5),
		},
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "dev-secret"),
		},
		Report: ReportConfig{
			InstitutionCode: getEnv("INSTITUTION_CODE", "001"),
			TemplateDir:     getEnv("AMLO_TEMPLATE_DIR", "templates/amlo"),
			FontDir:         getEnv("FONT_DIR", "fonts"),
			ArtifactDir:     getEnv("ARTIFACT_DIR", "manager"),
			ReceiptDir:      getEnv("RECEIPT_DIR", "receipts"),
			ExportHour:      getEnv("BOT_EXPORT_AT", "01:00"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

// DSN returns the MySQL data source name.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Database)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFallback checks the primary key first, then the fallback key.
func getEnvFallback(key, fallbackKey, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return getEnv(fallbackKey, defaultValue)
}

// getEnvInt gets an environment variable as an integer
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
