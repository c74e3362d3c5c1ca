/**
 * @description
 * This package handles configuration management for the access-service. It
 * uses the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */
package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the access-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort         string `mapstructure:"SERVER_PORT"`
	Environment        string `mapstructure:"ENVIRONMENT"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	RabbitMQURL        string `mapstructure:"RABBITMQ_URL"`
	BillingEventQueue  string `mapstructure:"BILLING_EVENT_QUEUE"`
	TokenSecret        string `mapstructure:"TOKEN_SECRET"`
	TokenTTLHours      int    `mapstructure:"TOKEN_TTL_HOURS"`
	StripeAPIBaseURL   string `mapstructure:"STRIPE_API_BASE_URL"`
	StripeAPIKey       string `mapstructure:"STRIPE_API_KEY"`
	StripePriceID      string `mapstructure:"STRIPE_PRICE_ID"`
	CheckoutSuccessURL string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `mapstructure:"CHECKOUT_CANCEL_URL"`
}

// IsProduction reports whether the service runs in a production environment.
// The auth cookie is marked Secure only in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// LoadConfig reads configuration from environment variables and an optional
// .env file at the given path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("BILLING_EVENT_QUEUE", "access_service.subscription_updates")
	viper.SetDefault("TOKEN_TTL_HOURS", 168) // 7 days, matches the cookie Max-Age
	viper.SetDefault("STRIPE_API_BASE_URL", "https://api.stripe.com")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("ENVIRONMENT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("BILLING_EVENT_QUEUE")
	_ = viper.BindEnv("TOKEN_SECRET", "TOKEN_SECRET", "JWT_SECRET")
	_ = viper.BindEnv("TOKEN_TTL_HOURS")
	_ = viper.BindEnv("STRIPE_API_BASE_URL")
	_ = viper.BindEnv("STRIPE_API_KEY")
	_ = viper.BindEnv("STRIPE_PRICE_ID")
	_ = viper.BindEnv("CHECKOUT_SUCCESS_URL")
	_ = viper.BindEnv("CHECKOUT_CANCEL_URL")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// If a platform-provided PORT is set (e.g., Railway/Render), prefer it
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if config.TokenTTLHours <= 0 {
		config.TokenTTLHours = 168
	}
	config.TokenSecret = strings.TrimSpace(config.TokenSecret)
	config.StripeAPIKey = strings.TrimSpace(config.StripeAPIKey)
	config.StripePriceID = strings.TrimSpace(config.StripePriceID)

	return
}
