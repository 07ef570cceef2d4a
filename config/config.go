package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Offer is the one-time product sold on the checkout page. Every value is
// server-side; nothing here can be influenced by a request body.
type Offer struct {
	Name             string `mapstructure:"OFFER_NAME" validate:"required"`
	AmountMinorUnits int64  `mapstructure:"OFFER_AMOUNT" validate:"gt=0"`
	Currency         string `mapstructure:"OFFER_CURRENCY" validate:"required,len=3,lowercase,currency"`
}

// Subscription describes the recurring plan created once the upfront payment
// has been confirmed.
type Subscription struct {
	ProductID        string `mapstructure:"SUBSCRIPTION_PRODUCT_ID" validate:"required"`
	AmountMinorUnits int64  `mapstructure:"SUBSCRIPTION_AMOUNT" validate:"gt=0"`
	Interval         string `mapstructure:"SUBSCRIPTION_INTERVAL" validate:"oneof=day week month year"`
	DelayDays        int    `mapstructure:"SUBSCRIPTION_DELAY_DAYS" validate:"gt=0,lte=730"`
}

// Delay is the offset between the webhook receipt and the first billed cycle.
func (s Subscription) Delay() time.Duration {
	return time.Duration(s.DelayDays) * 24 * time.Hour
}

type Config struct {
	Port string `mapstructure:"PORT" validate:"required,numeric"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	StripeAPIURL        string `mapstructure:"STRIPE_API_URL" validate:"required,url"`

	AppURL     string `mapstructure:"APP_URL" validate:"required,url"`
	CORSOrigin string `mapstructure:"CORS_ORIGIN"`

	DBURL          string `mapstructure:"DB_URL"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE" validate:"required"`

	LokiURL  string `mapstructure:"LOKI_URL"`
	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	AdminJWTSecret string `mapstructure:"ADMIN_JWT_SECRET"`

	Offer        Offer        `mapstructure:",squash"`
	Subscription Subscription `mapstructure:",squash"`
}

// SuccessURL is where the provider sends the customer after paying.
func (c *Config) SuccessURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/success"
}

// CancelURL is where the provider sends the customer after abandoning checkout.
func (c *Config) CancelURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/cancel"
}

var defaults = map[string]interface{}{
	"PORT":                    "3000",
	"STRIPE_API_URL":          "https://api.stripe.com",
	"APP_URL":                 "http://localhost:3000",
	"EVENTS_EXCHANGE":         "checkout_events",
	"LOG_LEVEL":               "info",
	"OFFER_NAME":              "The Video Marketing Machine 90-Day Program",
	"OFFER_AMOUNT":            299700,
	"OFFER_CURRENCY":          "aud",
	"SUBSCRIPTION_AMOUNT":     29700,
	"SUBSCRIPTION_INTERVAL":   "month",
	"SUBSCRIPTION_DELAY_DAYS": 90,
}

var keys = []string{
	"PORT",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"STRIPE_API_URL",
	"APP_URL",
	"CORS_ORIGIN",
	"DB_URL",
	"REDIS_URL",
	"RABBITMQ_URL",
	"EVENTS_EXCHANGE",
	"LOKI_URL",
	"LOG_LEVEL",
	"ADMIN_JWT_SECRET",
	"OFFER_NAME",
	"OFFER_AMOUNT",
	"OFFER_CURRENCY",
	"SUBSCRIPTION_PRODUCT_ID",
	"SUBSCRIPTION_AMOUNT",
	"SUBSCRIPTION_INTERVAL",
	"SUBSCRIPTION_DELAY_DAYS",
}

// Load reads the optional .env file, binds the environment and validates the
// result. It never reads a request; prices are fixed at startup.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for main: a bad configuration stops the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func (c *Config) normalize() {
	c.Offer.Currency = strings.ToLower(strings.TrimSpace(c.Offer.Currency))
	c.Offer.Name = strings.TrimSpace(c.Offer.Name)
	c.Subscription.Interval = strings.ToLower(strings.TrimSpace(c.Subscription.Interval))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.StripeAPIURL = strings.TrimRight(strings.TrimSpace(c.StripeAPIURL), "/")
}

// Validate fails fast on missing secrets and on invalid currency or amounts.
func (c *Config) Validate() error {
	v := validator.New()
	// Stripe takes lowercase codes; iso4217 only knows the uppercase form.
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return v.Var(strings.ToUpper(fl.Field().String()), "iso4217") == nil
	})

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
