package metering

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the metering service settings.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"metering"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// SignatureHeader is the HTTP header carrying the gateway's webhook
	// signature.
	SignatureHeader string `env:"BILLING_SIGNATURE_HEADER" envDefault:"Paddle-Signature"`

	// PriceTiers maps the gateway's price IDs to plan tiers, e.g.
	// "pri_basic_m:basic,pri_pro_m:pro,pri_agency_m:agency".
	PriceTiers map[string]string `env:"BILLING_PRICE_TIERS" envSeparator:"," envKeyValSeparator:":"`

	// CatalogPath points to an optional YAML tier catalog. Empty uses the
	// built-in defaults.
	CatalogPath string `env:"PLAN_CATALOG_PATH"`
}

var (
	ErrFailedToLoadConfig = errors.New("failed to load metering config")

	loadEnvOnce sync.Once
)

// LoadConfig reads the service configuration from the environment, loading a
// local .env file first when one exists.
func LoadConfig() (Config, error) {
	loadEnvOnce.Do(func() {
		// The .env file is optional; missing is not an error.
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrFailedToLoadConfig, err)
	}
	return cfg, nil
}
