package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BadgerDBPath     string `mapstructure:"BADGERDB_PATH"`
	// DirectoryURL is the base url of the directory API (profiles and OTP confirmation).
	DirectoryURL string `mapstructure:"DIRECTORY_URL"`
	// PaymentScheme prefixes payment URIs, e.g. "zcash".
	PaymentScheme string `mapstructure:"PAYMENT_SCHEME"`
	// PaymentAddress receives edit payments.
	PaymentAddress string `mapstructure:"PAYMENT_ADDRESS"`
	// PaymentAmount is a decimal string; "0" omits the amount from payment URIs.
	PaymentAmount    string `mapstructure:"PAYMENT_AMOUNT"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	ProfileCacheSize int    `mapstructure:"PROFILE_CACHE_SIZE"`
	LinkPreviews     bool   `mapstructure:"LINK_PREVIEWS"`
}

// Amount parses PaymentAmount.
func (c Config) Amount() (decimal.Decimal, error) {
	if c.PaymentAmount == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(c.PaymentAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid PAYMENT_AMOUNT %q: %w", c.PaymentAmount, err)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("PAYMENT_AMOUNT must not be negative")
	}
	return d, nil
}

// Level parses LogLevel.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("BADGERDB_PATH", "./badger_data")
	v.SetDefault("DIRECTORY_URL", "")
	v.SetDefault("PAYMENT_SCHEME", "zcash")
	v.SetDefault("PAYMENT_ADDRESS", "")
	v.SetDefault("PAYMENT_AMOUNT", "0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PROFILE_CACHE_SIZE", 256)
	v.SetDefault("LINK_PREVIEWS", false)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when everything comes from the environment.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	if c.DirectoryURL == "" {
		return errors.New("DIRECTORY_URL is not set")
	}
	if c.PaymentAddress == "" {
		return errors.New("PAYMENT_ADDRESS is not set")
	}
	if _, err := c.Amount(); err != nil {
		return err
	}
	return nil
}
