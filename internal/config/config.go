// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// HandlerTimeout bounds a single request including the gateway call.
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
	// TrustedProxies lists the CIDRs (or single IPs) of reverse proxies whose
	// X-Forwarded-For / X-Real-IP headers are believed. Empty means none.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TrustedPrefixes parses TrustedProxies.
func (h HTTPConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(h.TrustedProxies))
	for _, s := range h.TrustedProxies {
		s = strings.TrimSpace(s)
		if !strings.Contains(s, "/") {
			ip, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("http.trusted_proxies: %q: %w", s, err)
			}
			out = append(out, netip.PrefixFrom(ip.Unmap(), ip.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("http.trusted_proxies: %q: %w", s, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	Provider string `yaml:"provider"` // razorpay | noop
	BaseURL  string `yaml:"base_url"`
	Currency string `yaml:"currency"`
	// Timeout for a single gateway call.
	Timeout time.Duration `yaml:"timeout"`
	// DefaultSetupFee applies when the platform config row has none.
	DefaultSetupFee int64 `yaml:"default_setup_fee"`
	// AllowUnverifiedWebhooks accepts order webhooks for tenants without a webhook secret.
	AllowUnverifiedWebhooks bool   `yaml:"allow_unverified_webhooks"`
	SignatureHeader         string `yaml:"signature_header"`
	EventIDHeader           string `yaml:"event_id_header"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// AuthConfig enables bearer-token checks on user routes when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int64         `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
}

// ProvisioningConfig enables the background resume of stalled provisioning.
// A zero interval disables it.
type ProvisioningConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Security  SecurityConfig  `yaml:"security"`
	Auth      AuthConfig      `yaml:"auth"`
	Admin     AdminConfig     `yaml:"admin"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Provisioning ProvisioningConfig `yaml:"provisioning"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev flags and loads the file they name.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads a yaml file, applies a .env file if present, then environment
// overrides, defaults and validation.
func Load(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Redis.Password, "REDIS_PASSWORD")
	set(&cfg.Security.EncryptionKey, "ENCRYPTION_KEY")
	set(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	set(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	set(&cfg.HTTP.Addr, "HTTP_ADDR")
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.HandlerTimeout <= 0 {
		cfg.HTTP.HandlerTimeout = 25 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "razorpay"
	}
	if cfg.Payment.BaseURL == "" {
		cfg.Payment.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 15 * time.Second
	}
	if cfg.Payment.DefaultSetupFee <= 0 {
		cfg.Payment.DefaultSetupFee = 1200
	}
	if cfg.Payment.SignatureHeader == "" {
		cfg.Payment.SignatureHeader = "X-Razorpay-Signature"
	}
	if cfg.Payment.EventIDHeader == "" {
		cfg.Payment.EventIDHeader = "X-Razorpay-Event-Id"
	}
	if cfg.RateLimit.Limit <= 0 {
		cfg.RateLimit.Limit = 30
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Provisioning.ReconcileInterval > 0 && cfg.Provisioning.StaleAfter <= 0 {
		cfg.Provisioning.StaleAfter = 10 * time.Minute
	}
}

// Validate performs minimal validation of required settings.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if n := len(c.Security.EncryptionKey); n != 16 && n != 24 && n != 32 {
		return errors.New("security.encryption_key must be 16, 24, or 32 bytes")
	}
	if _, err := c.HTTP.TrustedPrefixes(); err != nil {
		return err
	}
	switch c.Payment.Provider {
	case "razorpay", "noop":
	default:
		return fmt.Errorf("payment.provider %q is not supported", c.Payment.Provider)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
