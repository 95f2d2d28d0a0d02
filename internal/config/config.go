package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/pricing"
	"github.com/vexa-ai/billing/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Stripe     StripeConfig     `validate:"required"`
	Admin      AdminConfig      `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Pricing    PricingConfig    `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

// StripeConfig carries the provider credentials. The client built from it is
// passed explicitly into the components that need it; nothing reads a global.
type StripeConfig struct {
	SecretKey     string `validate:"required"`
	WebhookSecret string
}

// AdminConfig points at the downstream admin API that owns user records
type AdminConfig struct {
	APIURL   string `validate:"required,url"`
	APIToken string `validate:"required"`
}

type BillingConfig struct {
	// PortalReturnURL is where the customer portal sends users back to
	PortalReturnURL string `validate:"required,url"`
	// ProductName and PriceNickname identify the catalog entries the
	// checkout, portal and trial flows operate on
	ProductName   string `mapstructure:"product_name"`
	PriceNickname string `mapstructure:"price_nickname"`
	// TrialDuration is how long an API-key trial subscription lasts
	TrialDuration time.Duration `mapstructure:"trial_duration"`
	// RevokeOnScheduledCancel zeroes entitlement units as soon as a
	// cancellation is scheduled instead of at the effective date
	RevokeOnScheduledCancel bool `mapstructure:"revoke_on_scheduled_cancel"`
}

// CancellationPolicy maps the flag onto the classifier policy
func (c BillingConfig) CancellationPolicy() types.CancellationPolicy {
	if c.RevokeOnScheduledCancel {
		return types.CancellationPolicyRevokeImmediately
	}
	return types.CancellationPolicyKeepUntilPeriodEnd
}

// PricingConfig is the static price catalog definition. It is the single
// source of truth for both the price preview endpoint and catalog sync.
type PricingConfig struct {
	Currency string            `validate:"required"`
	Interval string            `validate:"required"`
	Tiers    []PriceTierConfig `validate:"required,dive"`
	Slider   SliderConfig      `mapstructure:"slider"`
}

// PriceTierConfig is one tier as written in configuration. UpTo is either a
// positive integer or "inf" for the final unbounded tier.
type PriceTierConfig struct {
	UpTo       string `mapstructure:"up_to" validate:"required"`
	UnitAmount int64  `mapstructure:"unit_amount" validate:"gte=0"`
}

// SliderConfig bounds the quantity selector on the pricing page
type SliderConfig struct {
	MinBots int64 `mapstructure:"min_bots"`
	MaxBots int64 `mapstructure:"max_bots"`
}

// TierTable parses the configured tiers into a validated pricing table.
// A malformed catalog is a fatal configuration error.
func (p PricingConfig) TierTable() (pricing.TierTable, error) {
	table := make(pricing.TierTable, 0, len(p.Tiers))
	for i, tier := range p.Tiers {
		if tier.UpTo == "inf" {
			table = append(table, pricing.Tier{UpTo: nil, UnitAmount: tier.UnitAmount})
			continue
		}
		bound, err := strconv.ParseInt(tier.UpTo, 10, 64)
		if err != nil {
			return nil, ierr.NewError("invalid pricing tier upper bound").
				WithHintf("Tier up_to must be a positive integer or \"inf\", got %q", tier.UpTo).
				WithReportableDetails(map[string]any{"tier_index": i}).
				Mark(ierr.ErrValidation)
		}
		table = append(table, pricing.Tier{UpTo: &bound, UnitAmount: tier.UnitAmount})
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func NewConfig() (*Configuration, error) {
	// Local overrides from .env, ignored when absent
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billing")

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Fail fast on a malformed tier table rather than at first price lookup
	if _, err := config.Pricing.TierTable(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeAPI)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("billing.product_name", "Bot subscription")
	v.SetDefault("billing.price_nickname", "Startup")
	v.SetDefault("billing.trial_duration", time.Hour)
	v.SetDefault("pricing.currency", "usd")
	v.SetDefault("pricing.interval", "month")
	v.SetDefault("pricing.slider.min_bots", 1)
	v.SetDefault("pricing.slider.max_bots", 1000)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// and tests. Pricing mirrors the production bot subscription tiers.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			PortalReturnURL: "http://localhost:3000/dashboard",
			ProductName:     "Bot subscription",
			PriceNickname:   "Startup",
			TrialDuration:   time.Hour,
		},
		Pricing: PricingConfig{
			Currency: "usd",
			Interval: "month",
			Tiers: []PriceTierConfig{
				{UpTo: "1", UnitAmount: 1200},
				{UpTo: "5", UnitAmount: 2400},
				{UpTo: "50", UnitAmount: 2000},
				{UpTo: "200", UnitAmount: 1500},
				{UpTo: "inf", UnitAmount: 1000},
			},
			Slider: SliderConfig{MinBots: 1, MaxBots: 1000},
		},
	}
}
