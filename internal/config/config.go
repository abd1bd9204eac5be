// Package config loads process configuration from the environment and store
// rules from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backends accepted by DATABASE_BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the process configuration.
type Config struct {
	Env       string `env:"APP_ENV,default=development"`
	HTTPAddr  string `env:"HTTP_ADDR,default=:8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret  string `env:"SUPABASE_JWT_SECRET"`

	DatabaseBackend string `env:"DATABASE_BACKEND,default=supabase"`
	DatabaseURL     string `env:"DATABASE_URL"`

	RedisURL string        `env:"REDIS_URL"`
	CartTTL  time.Duration `env:"CART_TTL,default=168h"`

	MidtransServerKey  string `env:"MIDTRANS_SERVER_KEY"`
	MidtransClientKey  string `env:"MIDTRANS_CLIENT_KEY"`
	MidtransProduction bool   `env:"MIDTRANS_PRODUCTION,default=false"`
	PaymentFinishURL   string `env:"PAYMENT_FINISH_URL"`

	WhatsAppToken         string `env:"WHATSAPP_TOKEN"`
	WhatsAppPhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppAPIBaseURL    string `env:"WHATSAPP_API_BASE_URL,default=https://graph.facebook.com/v19.0"`

	MediaDriver     string `env:"MEDIA_DRIVER,default=supabase"`
	MediaBucket     string `env:"MEDIA_BUCKET,default=product-images"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3Region        string `env:"S3_REGION,default=ap-southeast-1"`
	S3AccessKey     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string `env:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`

	AdminUserIDs   string  `env:"ADMIN_USER_IDS"`
	CORSOrigins    string  `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=40"`
	// TrustedProxies lists the reverse proxies (IPs or CIDRs) allowed to set X-Forwarded-For.
	TrustedProxies string `env:"TRUSTED_PROXIES"`
	TLSDomains     string `env:"TLS_AUTOCERT_DOMAINS"`
	TLSCacheDir    string `env:"TLS_AUTOCERT_CACHE,default=.autocert"`

	ReconcileSchedule string        `env:"RECONCILE_SCHEDULE,default=@every 5m"`
	PaymentWindow     time.Duration `env:"PAYMENT_WINDOW,default=24h"`

	StoreConfigPath string `env:"STORE_CONFIG,default=config/store.yaml"`

	Store Store
}

// Store holds the merchant-facing rules loaded from YAML.
type Store struct {
	Name              string  `yaml:"name"`
	WhatsAppNumber    string  `yaml:"whatsapp_number"`
	Currency          string  `yaml:"currency"`
	LowStockThreshold int     `yaml:"low_stock_threshold"`
	Pricing           Pricing `yaml:"pricing"`
}

// Pricing feeds the cart rules.
type Pricing struct {
	VolumeDiscountPercent  int   `yaml:"volume_discount_percent"`
	VolumeDiscountMinUnits int   `yaml:"volume_discount_min_units"`
	ShippingFee            int64 `yaml:"shipping_fee"`
	FreeShippingThreshold  int64 `yaml:"free_shipping_threshold"`
}

// DefaultStore returns the built-in store rules.
func DefaultStore() Store {
	return Store{
		Name:              "Lakon Apparel",
		Currency:          "IDR",
		LowStockThreshold: 3,
		Pricing: Pricing{
			VolumeDiscountPercent:  10,
			VolumeDiscountMinUnits: 6,
			ShippingFee:            20000,
			FreeShippingThreshold:  500000,
		},
	}
}

// Load reads .env files (when present), decodes the environment and merges
// store rules from STORE_CONFIG over the defaults.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env (%s): %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	store, err := LoadStoreOrDefault(cfg.StoreConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Store = store

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStoreFromPath loads store rules from a YAML file over the defaults.
func LoadStoreFromPath(path string) (Store, error) {
	store := DefaultStore()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return store, fmt.Errorf("failed to read store config: %w", err)
	}
	if err := yaml.Unmarshal(data, &store); err != nil {
		return store, fmt.Errorf("failed to parse store config: %w", err)
	}
	return store, nil
}

// LoadStoreOrDefault returns the defaults when path does not exist.
func LoadStoreOrDefault(path string) (Store, error) {
	if path == "" {
		return DefaultStore(), nil
	}
	store, err := LoadStoreFromPath(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultStore(), nil
	}
	return store, err
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var problems []string

	switch c.DatabaseBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown DATABASE_BACKEND %q", c.DatabaseBackend))
	}

	switch c.MediaDriver {
	case "supabase":
		if c.SupabaseURL == "" {
			problems = append(problems, "SUPABASE_URL is required for the supabase media driver")
		}
	case "s3":
		if c.S3PublicBaseURL == "" {
			problems = append(problems, "S3_PUBLIC_BASE_URL is required for the s3 media driver")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown MEDIA_DRIVER %q", c.MediaDriver))
	}

	if c.IsProduction() && c.SupabaseJWTSecret == "" {
		problems = append(problems, "SUPABASE_JWT_SECRET is required in production")
	}

	p := c.Store.Pricing
	if p.VolumeDiscountPercent < 0 || p.VolumeDiscountPercent > 100 {
		problems = append(problems, "pricing.volume_discount_percent must be between 0 and 100")
	}
	if p.VolumeDiscountMinUnits < 1 {
		problems = append(problems, "pricing.volume_discount_min_units must be positive")
	}
	if p.ShippingFee < 0 || p.FreeShippingThreshold < 0 {
		problems = append(problems, "pricing amounts must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// CSV splits a comma separated setting, dropping blanks.
func CSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
