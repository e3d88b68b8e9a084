package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort    string
	AppEnv      string
	LogLevel    string
	DBDriver    string // postgres | sqlite
	DatabaseDSN string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins string
	UploadPath  string // receipts and other uploads are stored below this directory
	UploadURL   string // public URL prefix the upload directory is served under
	Invoice     InvoiceConfig
}

// InvoiceConfig holds the static issuer block and the pricing constants used by
// the billing engine and the PDF renderer.
type InvoiceConfig struct {
	IssuerName     string
	IssuerAddress  []string
	IssuerPhone    string
	IssuerWebsite  string
	IssuerEmail    string
	LogoPath       string
	TaxRate        float64 // percent, e.g. 2.5
	CurrencyPrefix string
	PaymentInfo    []string
	ThankYou       string
	Compress       bool
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=billing port=5432 sslmode=disable"

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "3000"),
		AppEnv:      getEnv("APP_ENV", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseDSN: getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		TokenTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
		UploadURL:   getEnv("UPLOAD_URL", "/uploads"),
		Invoice: InvoiceConfig{
			IssuerName:     getEnv("INVOICE_ISSUER_NAME", "Mellou"),
			IssuerAddress:  getEnvList("INVOICE_ISSUER_ADDRESS", "|", nil),
			IssuerPhone:    getEnv("INVOICE_ISSUER_PHONE", ""),
			IssuerWebsite:  getEnv("INVOICE_ISSUER_WEBSITE", ""),
			IssuerEmail:    getEnv("INVOICE_ISSUER_EMAIL", ""),
			LogoPath:       getEnv("INVOICE_LOGO_PATH", ""),
			TaxRate:        getEnvFloat("INVOICE_TAX_RATE", 2.5),
			CurrencyPrefix: getEnv("INVOICE_CURRENCY_PREFIX", "Rs."),
			PaymentInfo:    getEnvList("INVOICE_PAYMENT_INFO", "|", nil),
			ThankYou:       getEnv("INVOICE_THANK_YOU", "Thank you for your business!"),
			Compress:       getEnvBool("INVOICE_COMPRESS", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.Invoice.TaxRate < 0 {
		return errors.New("INVOICE_TAX_RATE cannot be negative")
	}
	return nil
}

// IsDevelopment reports whether the server runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// UsesDefaultDSN is used by main to warn about the built-in database credentials.
func (c *Config) UsesDefaultDSN() bool {
	return c.DBDriver == "postgres" && c.DatabaseDSN == defaultDSN
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key, sep string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
