package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	MinTotalCents int64  `default:"5000" usage:"Minimum financeable cart total in cents" flag:"min-total-cents"`
	Merchant      MerchantConfig
	Affirm        AffirmConfig
	Card          CardConfig
	Session       SessionConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// MerchantConfig identifies the storefront the checkout runs for.
type MerchantConfig struct {
	Name        string `default:"One Point Motors" usage:"Merchant display name"`
	Origin      string `default:"https://onepointmotors.com" usage:"Absolute storefront origin for URL resolution"`
	ConfirmPath string `default:"/checkout/confirm" usage:"Path the lender returns the buyer to on confirmation" flag:"confirm-path"`
	CancelPath  string `default:"/checkout/cancel" usage:"Path the lender returns the buyer to on cancel" flag:"cancel-path"`

	// Fallback identity substituted when buyer data is absent or incomplete.
	FallbackFirstName string `default:"Online" usage:"Fallback identity first name" flag:"fallback-first-name"`
	FallbackLastName  string `default:"Customer" usage:"Fallback identity last name" flag:"fallback-last-name"`
	FallbackLine1     string `default:"821 NE 79th St" usage:"Fallback address line 1" flag:"fallback-line1"`
	FallbackCity      string `default:"Miami" usage:"Fallback address city" flag:"fallback-city"`
	FallbackState     string `default:"FL" usage:"Fallback address state" flag:"fallback-state"`
	FallbackZip       string `default:"33138" usage:"Fallback address zip" flag:"fallback-zip"`
}

// AffirmConfig holds the financing provider settings. The key pair is
// server-side only.
type AffirmConfig struct {
	Env        string        `default:"sandbox" usage:"Lender environment: sandbox or production"`
	PublicKey  string        `usage:"Lender public API key (AFFIRM_PUBLIC_KEY)" flag:"affirm-public-key"`
	PrivateKey string        `usage:"Lender private API key (AFFIRM_PRIVATE_KEY)" flag:"affirm-private-key"`
	Timeout    time.Duration `default:"30s" usage:"Per-call lender timeout"`
}

// CardConfig holds the card processor settings.
type CardConfig struct {
	SecretKey string `usage:"Card processor secret key (STRIPE_SECRET_KEY)" flag:"card-secret-key"`
	APIBase   string `default:"" usage:"Card processor API base URL override" flag:"card-api-base"`
}

// SessionConfig controls the checkout session registry.
type SessionConfig struct {
	TTL           time.Duration `default:"30m" usage:"Unresolved checkout session lifetime"`
	SweepInterval time.Duration `default:"1m" usage:"Session registry sweep interval" flag:"sweep-interval"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like PORT and AFFIRM_PUBLIC_KEY to the CHECKOUT_-prefixed
// configuration. A missing lender key pair is deliberately not a startup
// error: it surfaces per-request as a credential error.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Affirm.PublicKey == "" {
		c.Affirm.PublicKey = os.Getenv("AFFIRM_PUBLIC_KEY")
	}
	if c.Affirm.PrivateKey == "" {
		c.Affirm.PrivateKey = os.Getenv("AFFIRM_PRIVATE_KEY")
	}
	if v := os.Getenv("AFFIRM_ENV"); v != "" && c.Affirm.Env == "sandbox" {
		c.Affirm.Env = v
	}
	if c.Card.SecretKey == "" {
		c.Card.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	}
}
