package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MemoryBackendDefaults(t *testing.T) {
	t.Setenv("DATABASE_BACKEND", BackendMemory)
	t.Setenv("MEDIA_DRIVER", "memory")
	t.Setenv("STORE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 168*time.Hour, cfg.CartTTL)
	assert.Equal(t, "@every 5m", cfg.ReconcileSchedule)
	assert.Equal(t, DefaultStore(), cfg.Store)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvFileAndStoreYAML(t *testing.T) {
	envFile := writeFile(t, ".env", "DATABASE_BACKEND=memory\nMEDIA_DRIVER=memory\nRATE_LIMIT_RPS=5\n")
	store := writeFile(t, "store.yaml", "name: Toko Uji\npricing:\n  shipping_fee: 15000\n")
	t.Setenv("STORE_CONFIG", store)
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_BACKEND")
		os.Unsetenv("MEDIA_DRIVER")
		os.Unsetenv("RATE_LIMIT_RPS")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, "Toko Uji", cfg.Store.Name)
	assert.Equal(t, int64(15000), cfg.Store.Pricing.ShippingFee)
	// untouched keys keep their defaults
	assert.Equal(t, int64(500000), cfg.Store.Pricing.FreeShippingThreshold)
	assert.Equal(t, 6, cfg.Store.Pricing.VolumeDiscountMinUnits)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	t.Setenv("DATABASE_BACKEND", BackendMemory)
	t.Setenv("MEDIA_DRIVER", "memory")
	t.Setenv("STORE_CONFIG", "")

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{DatabaseBackend: BackendMemory, MediaDriver: "memory", Store: DefaultStore()}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.DatabaseBackend = BackendPostgres
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg = base()
	cfg.DatabaseBackend = "mongo"
	assert.ErrorContains(t, cfg.Validate(), "unknown DATABASE_BACKEND")

	cfg = base()
	cfg.Env = "production"
	assert.ErrorContains(t, cfg.Validate(), "SUPABASE_JWT_SECRET")

	cfg = base()
	cfg.Store.Pricing.VolumeDiscountPercent = 150
	assert.ErrorContains(t, cfg.Validate(), "volume_discount_percent")

	cfg = base()
	cfg.MediaDriver = "s3"
	assert.ErrorContains(t, cfg.Validate(), "S3_PUBLIC_BASE_URL")
}

func TestLoadStoreFromPath_BadYAML(t *testing.T) {
	path := writeFile(t, "store.yaml", "pricing: [unclosed")
	_, err := LoadStoreFromPath(path)
	assert.ErrorContains(t, err, "parse store config")
}

func TestCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, CSV(" a, ,b,"))
	assert.Nil(t, CSV(""))
}
