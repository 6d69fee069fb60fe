// Package config provides configuration management for the campaign service
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ProductionConfig holds every configuration section of the service
type ProductionConfig struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Security   SecurityConfig
	JWT        JWTConfig
	Email      EmailConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
	Cache      CacheConfig
	Payment    PaymentConfig
	Storage    StorageConfig
	Deployment DeploymentConfig
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	Name            string        `env:"DB_NAME" envDefault:"postgres"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD"`
	SSLMode         string        `env:"DB_SSL_MODE" envDefault:"require"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m"`
	SlowQueryLog    bool          `env:"DB_SLOW_QUERY_LOG" envDefault:"true"`
	SlowQueryTime   time.Duration `env:"DB_SLOW_QUERY_TIME" envDefault:"1s"`
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host              string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port              int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	BodyLimit         int           `env:"SERVER_BODY_LIMIT" envDefault:"4194304"`
	TrustedProxies    []string      `env:"SERVER_TRUSTED_PROXIES" envDefault:"127.0.0.1"`
	ProxyHeader       string        `env:"SERVER_PROXY_HEADER" envDefault:"X-Real-IP"`
	EnableCompression bool          `env:"SERVER_ENABLE_COMPRESSION" envDefault:"true"`
	CompressionLevel  int           `env:"SERVER_COMPRESSION_LEVEL" envDefault:"1"`
}

type SecurityConfig struct {
	HSTSMaxAge         int  `env:"HSTS_MAX_AGE" envDefault:"31536000"`
	HSTSIncludeSubDoms bool `env:"HSTS_INCLUDE_SUBDOMAINS" envDefault:"true"`
	HSTSPreload        bool `env:"HSTS_PRELOAD" envDefault:"true"`

	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envDefault:"Origin,Content-Type,Accept,Authorization,X-Requested-With"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	CORSMaxAge       int      `env:"CORS_MAX_AGE" envDefault:"86400"`

	GlobalRateLimit   int           `env:"GLOBAL_RATE_LIMIT" envDefault:"2000"`
	CallbackRateLimit int           `env:"CALLBACK_RATE_LIMIT" envDefault:"120"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	CSPPolicy           string `env:"CSP_POLICY" envDefault:"default-src 'self'"`
	XFrameOptions       string `env:"X_FRAME_OPTIONS" envDefault:"DENY"`
	XContentTypeOptions string `env:"X_CONTENT_TYPE_OPTIONS" envDefault:"nosniff"`
	XSSProtection       string `env:"XSS_PROTECTION" envDefault:"1; mode=block"`
	ReferrerPolicy      string `env:"REFERRER_POLICY" envDefault:"strict-origin-when-cross-origin"`
}

type JWTConfig struct {
	SecretKey      string        `env:"JWT_SECRET_KEY"`
	PrivateKey     string        `env:"JWT_PRIVATE_KEY"`
	PublicKey      string        `env:"JWT_PUBLIC_KEY"`
	UseRSAKeys     bool          `env:"JWT_USE_RSA_KEYS" envDefault:"false"`
	AccessTokenTTL time.Duration `env:"JWT_ACCESS_TOKEN_TTL" envDefault:"24h"`
	Issuer         string        `env:"JWT_ISSUER" envDefault:"orochi-mail"`
	Audience       string        `env:"JWT_AUDIENCE" envDefault:"orochi-mail-api"`
	Algorithm      string        `env:"JWT_ALGORITHM" envDefault:"HS256"`
}

type EmailConfig struct {
	Host      string `env:"EMAIL_HOST"`
	Port      int    `env:"EMAIL_PORT" envDefault:"587"`
	Username  string `env:"EMAIL_USERNAME"`
	Password  string `env:"EMAIL_PASSWORD"`
	FromEmail string `env:"EMAIL_FROM_EMAIL" envDefault:"noreply@orochi-mail.local"`
	FromName  string `env:"EMAIL_FROM_NAME" envDefault:"Orochi Mail"`
}

type LoggingConfig struct {
	Level            string `env:"LOG_LEVEL" envDefault:"info"`
	Format           string `env:"LOG_FORMAT" envDefault:"json"`
	Output           string `env:"LOG_OUTPUT" envDefault:"stdout"`
	FilePath         string `env:"LOG_FILE_PATH" envDefault:"/var/log/orochi-mail/app.log"`
	MaxSize          int    `env:"LOG_MAX_SIZE" envDefault:"100"`
	MaxBackups       int    `env:"LOG_MAX_BACKUPS" envDefault:"10"`
	MaxAge           int    `env:"LOG_MAX_AGE" envDefault:"30"`
	Compress         bool   `env:"LOG_COMPRESS" envDefault:"true"`
	EnableCaller     bool   `env:"LOG_ENABLE_CALLER" envDefault:"true"`
	EnableStacktrace bool   `env:"LOG_ENABLE_STACKTRACE" envDefault:"false"`
	EnableAccessLog  bool   `env:"LOG_ENABLE_ACCESS" envDefault:"true"`
}

type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int    `env:"METRICS_PORT" envDefault:"9090"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

type CacheConfig struct {
	Enabled     bool          `env:"CACHE_ENABLED" envDefault:"true"`
	RedisURL    string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisDB     int           `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix string        `env:"REDIS_PREFIX" envDefault:"orochi-mail:"`
	CatalogTTL  time.Duration `env:"CACHE_CATALOG_TTL" envDefault:"5m"`
}

type PaymentConfig struct {
	BaseURL            string        `env:"PAYMENT_GATEWAY_BASE_URL" envDefault:"https://mipg.atipay.net"`
	APIKey             string        `env:"PAYMENT_GATEWAY_API_KEY"`
	Terminal           string        `env:"PAYMENT_GATEWAY_TERMINAL"`
	CallbackURL        string        `env:"PAYMENT_CALLBACK_URL"`
	Timeout            time.Duration `env:"PAYMENT_GATEWAY_TIMEOUT" envDefault:"15s"`
	FailOnInconclusive bool          `env:"PAYMENT_FAIL_ON_INCONCLUSIVE" envDefault:"false"`
}

type StorageConfig struct {
	HTMLUploadDir string `env:"STORAGE_HTML_UPLOAD_DIR" envDefault:"./uploads/html"`
	MaxHTMLBytes  int64  `env:"STORAGE_MAX_HTML_BYTES" envDefault:"2097152"`
}

type DeploymentConfig struct {
	Environment string `env:"APP_ENV" envDefault:"production"`
	Domain      string `env:"DOMAIN" envDefault:"orochi-mail.local"`
	APIDomain   string `env:"API_DOMAIN" envDefault:"api.orochi-mail.local"`
}

// IsDevelopment reports whether the service runs outside production
func (c DeploymentConfig) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from envFile if it exists. Variables
// already present in the environment win.
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate JWT configuration
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate email configuration if enabled
	if cfg.Email.Host != "" {
		if cfg.Email.Port <= 0 || cfg.Email.Port > 65535 {
			errors = append(errors, "EMAIL_PORT must be between 1 and 65535")
		}
		if cfg.Email.FromEmail == "" {
			errors = append(errors, "EMAIL_FROM_EMAIL is required when EMAIL_HOST is set")
		}
	}

	// Validate logging configuration
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, "LOG_LEVEL must be one of debug, info, warn, error")
	}
	switch cfg.Logging.Output {
	case "stdout", "file", "both":
	default:
		errors = append(errors, "LOG_OUTPUT must be one of stdout, file, both")
	}

	// Validate payment gateway configuration
	if cfg.Payment.BaseURL == "" {
		errors = append(errors, "PAYMENT_GATEWAY_BASE_URL is required")
	}
	if cfg.Payment.APIKey == "" {
		errors = append(errors, "PAYMENT_GATEWAY_API_KEY is required")
	}
	if cfg.Payment.Terminal == "" {
		errors = append(errors, "PAYMENT_GATEWAY_TERMINAL is required")
	}
	if cfg.Payment.CallbackURL == "" {
		errors = append(errors, "PAYMENT_CALLBACK_URL is required")
	}
	if cfg.Payment.Timeout <= 0 {
		errors = append(errors, "PAYMENT_GATEWAY_TIMEOUT must be positive")
	}

	// Validate storage configuration
	if cfg.Storage.HTMLUploadDir == "" {
		errors = append(errors, "STORAGE_HTML_UPLOAD_DIR is required")
	}
	if cfg.Storage.MaxHTMLBytes <= 0 {
		errors = append(errors, "STORAGE_MAX_HTML_BYTES must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
