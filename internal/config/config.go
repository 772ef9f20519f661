/**
 * @description
 * This package handles the configuration management for the banking API. It uses
 * the Viper library to read configuration from environment variables (with an
 * optional .env file), providing a centralized way to manage application
 * settings and the monetary limit policy.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - github.com/shopspring/decimal: Exact decimal arithmetic for monetary limits.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the banking API.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string  `mapstructure:"SERVER_PORT"`
	DatabaseURL                string  `mapstructure:"DATABASE_URL"`
	RabbitMQURL                string  `mapstructure:"RABBITMQ_URL"`
	TransferEventExchange      string  `mapstructure:"TRANSFER_EVENT_EXCHANGE"`
	SettlementEventQueue       string  `mapstructure:"SETTLEMENT_EVENT_QUEUE"`
	JWTSecret                  string  `mapstructure:"JWT_SECRET"`
	TokenExpiryMinutes         int     `mapstructure:"TOKEN_EXPIRY_MINUTES"`
	CardEncryptionSecret       string  `mapstructure:"CARD_ENCRYPTION_SECRET"`
	MinTransferAmount          float64 `mapstructure:"MIN_TRANSFER_AMOUNT"`
	MaxTransferAmount          float64 `mapstructure:"MAX_TRANSFER_AMOUNT"`
	MaxExternalTransferAmount  float64 `mapstructure:"MAX_EXTERNAL_TRANSFER_AMOUNT"`
	DailyTransferLimit         float64 `mapstructure:"DAILY_TRANSFER_LIMIT"`
	MinAccountBalance          float64 `mapstructure:"MIN_ACCOUNT_BALANCE"`
	PendingTransferExpiryHours int     `mapstructure:"PENDING_TRANSFER_EXPIRY_HOURS"`
	PendingExpirySchedule      string  `mapstructure:"PENDING_EXPIRY_SCHEDULE"`
	RedisURL                   string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TransferRateLimitPerMinute int     `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	LogLevel                   string  `mapstructure:"LOG_LEVEL"`
	CORSOrigins                string  `mapstructure:"CORS_ORIGINS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TRANSFER_EVENT_EXCHANGE", "banking.transfer_events")
	viper.SetDefault("SETTLEMENT_EVENT_QUEUE", "banking.settlement_updates")
	viper.SetDefault("TOKEN_EXPIRY_MINUTES", 30)
	viper.SetDefault("MIN_TRANSFER_AMOUNT", 0.01)
	viper.SetDefault("MAX_TRANSFER_AMOUNT", 100000.0)
	viper.SetDefault("MAX_EXTERNAL_TRANSFER_AMOUNT", 50000.0)
	viper.SetDefault("DAILY_TRANSFER_LIMIT", 500000.0)
	viper.SetDefault("MIN_ACCOUNT_BALANCE", 0.0)
	viper.SetDefault("PENDING_TRANSFER_EXPIRY_HOURS", 72)
	viper.SetDefault("PENDING_EXPIRY_SCHEDULE", "@hourly")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "banking:rate_limit")
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CORS_ORIGINS", "*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("TRANSFER_EVENT_EXCHANGE")
	_ = viper.BindEnv("SETTLEMENT_EVENT_QUEUE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("TOKEN_EXPIRY_MINUTES")
	_ = viper.BindEnv("CARD_ENCRYPTION_SECRET")
	_ = viper.BindEnv("MIN_TRANSFER_AMOUNT")
	_ = viper.BindEnv("MAX_TRANSFER_AMOUNT")
	_ = viper.BindEnv("MAX_EXTERNAL_TRANSFER_AMOUNT")
	_ = viper.BindEnv("DAILY_TRANSFER_LIMIT")
	_ = viper.BindEnv("MIN_ACCOUNT_BALANCE")
	_ = viper.BindEnv("PENDING_TRANSFER_EXPIRY_HOURS")
	_ = viper.BindEnv("PENDING_EXPIRY_SCHEDULE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("CORS_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	if config.TokenExpiryMinutes <= 0 {
		config.TokenExpiryMinutes = 30
	}
	if config.PendingTransferExpiryHours <= 0 {
		config.PendingTransferExpiryHours = 72
	}
	if strings.TrimSpace(config.PendingExpirySchedule) == "" {
		config.PendingExpirySchedule = "@hourly"
	}
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "banking:rate_limit"
	}
	if config.TransferRateLimitPerMinute <= 0 {
		config.TransferRateLimitPerMinute = 30
	}

	if config.MinTransferAmount < 0 {
		log.Printf("level=warn component=config msg=\"negative minimum transfer amount configured; coercing to zero\" value=%f", config.MinTransferAmount)
		config.MinTransferAmount = 0
	}
	if config.MaxTransferAmount <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive maximum transfer amount configured; restoring default\" value=%f", config.MaxTransferAmount)
		config.MaxTransferAmount = 100000
	}
	if config.MaxExternalTransferAmount <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive external maximum configured; restoring default\" value=%f", config.MaxExternalTransferAmount)
		config.MaxExternalTransferAmount = 50000
	}
	if config.DailyTransferLimit <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive daily transfer limit configured; restoring default\" value=%f", config.DailyTransferLimit)
		config.DailyTransferLimit = 500000
	}

	return
}

// MinTransfer returns the configured minimum transfer amount as a decimal.
func (c Config) MinTransfer() decimal.Decimal {
	return decimal.NewFromFloat(c.MinTransferAmount)
}

// MaxTransfer returns the configured maximum transfer amount as a decimal.
func (c Config) MaxTransfer() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxTransferAmount)
}

// MaxExternalTransfer returns the configured external transfer ceiling as a decimal.
func (c Config) MaxExternalTransfer() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxExternalTransferAmount)
}

// DailyLimit returns the configured rolling daily transfer limit as a decimal.
func (c Config) DailyLimit() decimal.Decimal {
	return decimal.NewFromFloat(c.DailyTransferLimit)
}

// MinBalance returns the configured minimum residual balance as a decimal.
func (c Config) MinBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.MinAccountBalance)
}
