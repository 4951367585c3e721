package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"coffeeshop/internal/domain"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NewRelic NewRelicConfig `yaml:"new_relic"`
	Bakong   BakongConfig   `yaml:"bakong"`
	Payment  PaymentConfig  `yaml:"payment"`
	Events   EventsConfig   `yaml:"events"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `yaml:"port"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `yaml:"app_name"`
	LicenseKey string `yaml:"license_key"`
	Enabled    bool   `yaml:"enabled"`
}

// BakongConfig holds the merchant identity and the payment-switch credentials.
type BakongConfig struct {
	AccountID            string `yaml:"account_id"`
	MerchantName         string `yaml:"merchant_name"`
	MerchantCity         string `yaml:"merchant_city"`
	MobileNumber         string `yaml:"mobile_number"`
	AcquiringBank        string `yaml:"acquiring_bank"`
	StoreLabel           string `yaml:"store_label"`
	TerminalLabel        string `yaml:"terminal_label"`
	PurposeOfTransaction string `yaml:"purpose_of_transaction"`
	LanguagePreference   string `yaml:"language_preference"`
	MerchantNameAlt      string `yaml:"merchant_name_alt"`
	MerchantCityAlt      string `yaml:"merchant_city_alt"`

	APIURL     string        `yaml:"api_url"`
	Token      string        `yaml:"token"`
	APITimeout time.Duration `yaml:"api_timeout"`
}

// PaymentConfig holds KHQR session timing.
type PaymentConfig struct {
	QRTTL            time.Duration   `yaml:"qr_ttl"`
	PollInterval     time.Duration   `yaml:"poll_interval"`
	InitialPollDelay time.Duration   `yaml:"initial_poll_delay"`
	CountdownTick    time.Duration   `yaml:"countdown_tick"`
	DefaultCurrency  domain.Currency `yaml:"default_currency"`
}

// EventsConfig holds RabbitMQ configuration. An empty URL disables publishing.
type EventsConfig struct {
	RabbitURL string `yaml:"rabbit_url"`
	Exchange  string `yaml:"exchange"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Merchant returns the merchant identity used by the KHQR encoder.
func (b BakongConfig) Merchant() domain.MerchantIdentity {
	bank := b.AcquiringBank
	if bank == "" {
		bank = domain.DefaultAcquiringBank
	}
	return domain.MerchantIdentity{
		AccountID:            b.AccountID,
		MerchantName:         b.MerchantName,
		MerchantCity:         b.MerchantCity,
		AcquiringBank:        bank,
		MobileNumber:         b.MobileNumber,
		StoreLabel:           b.StoreLabel,
		TerminalLabel:        b.TerminalLabel,
		PurposeOfTransaction: b.PurposeOfTransaction,
		LanguagePreference:   b.LanguagePreference,
		MerchantNameAlt:      b.MerchantNameAlt,
		MerchantCityAlt:      b.MerchantCityAlt,
	}
}

// MissingMerchantFields returns the env names of required merchant fields that are empty or blank.
func (b BakongConfig) MissingMerchantFields() []string {
	var missing []string
	if strings.TrimSpace(b.AccountID) == "" {
		missing = append(missing, "BAKONG_ACCOUNT_ID")
	}
	if strings.TrimSpace(b.MerchantName) == "" {
		missing = append(missing, "BAKONG_MERCHANT_NAME")
	}
	if strings.TrimSpace(b.MerchantCity) == "" {
		missing = append(missing, "BAKONG_MERCHANT_CITY")
	}
	return missing
}

// MissingAPIFields returns the env names of required verification settings that are empty or blank.
func (b BakongConfig) MissingAPIFields() []string {
	var missing []string
	if strings.TrimSpace(b.APIURL) == "" {
		missing = append(missing, "BAKONG_API_URL")
	}
	if strings.TrimSpace(b.Token) == "" {
		missing = append(missing, "BAKONG_TOKEN")
	}
	return missing
}

// Load reads .env when present, builds the configuration from environment variables,
// then applies CONFIG_FILE if set. Variables already in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               getEnv("SERVER_PORT", "8080"),
			ReadTimeout:        getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:       getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "coffeeshop"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "coffeeshop-payments"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Bakong: BakongConfig{
			AccountID:            os.Getenv("BAKONG_ACCOUNT_ID"),
			MerchantName:         os.Getenv("BAKONG_MERCHANT_NAME"),
			MerchantCity:         os.Getenv("BAKONG_MERCHANT_CITY"),
			MobileNumber:         os.Getenv("BAKONG_MOBILE_NUMBER"),
			AcquiringBank:        getEnv("BAKONG_ACQUIRING_BANK", domain.DefaultAcquiringBank),
			StoreLabel:           os.Getenv("BAKONG_STORE_LABEL"),
			TerminalLabel:        os.Getenv("BAKONG_TERMINAL_LABEL"),
			PurposeOfTransaction: os.Getenv("BAKONG_PURPOSE"),
			LanguagePreference:   getEnv("BAKONG_LANGUAGE", "en"),
			MerchantNameAlt:      os.Getenv("BAKONG_MERCHANT_NAME_ALT"),
			MerchantCityAlt:      os.Getenv("BAKONG_MERCHANT_CITY_ALT"),
			APIURL:               getEnv("BAKONG_API_URL", os.Getenv("BAKONG_PROD_BASE_API_URL_MD5")),
			Token:                os.Getenv("BAKONG_TOKEN"),
			APITimeout:           getDurationEnv("BAKONG_API_TIMEOUT", 30*time.Second),
		},
		Payment: PaymentConfig{
			QRTTL:            getDurationEnv("KHQR_TTL", 5*time.Minute),
			PollInterval:     getDurationEnv("KHQR_POLL_INTERVAL", 3*time.Second),
			InitialPollDelay: getDurationEnv("KHQR_POLL_INITIAL_DELAY", 2*time.Second),
			CountdownTick:    time.Second,
			DefaultCurrency:  domain.Currency(strings.ToUpper(getEnv("KHQR_DEFAULT_CURRENCY", "USD"))),
		},
		Events: EventsConfig{
			RabbitURL: getEnv("RABBITMQ_URL", ""),
			Exchange:  getEnv("EVENTS_EXCHANGE", "coffeeshop.events"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBoolEnv("LOG_PRETTY", false),
		},
	}
}

// ApplyFile overlays the YAML file at path. Keys absent from the file keep their current value.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
