package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakon-apparel/storefront/internal/config"
	"github.com/lakon-apparel/storefront/internal/database"
)

func TestSeedFileLoadsAndIsIdempotent(t *testing.T) {
	data, err := loadSeed("../../config/seed.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, data.Products)

	repo := database.NewMockRepository()
	ctx := context.Background()

	created, skipped, err := seedProducts(ctx, repo, data)
	require.NoError(t, err)
	assert.Equal(t, len(data.Products), created)
	assert.Zero(t, skipped)

	created, skipped, err = seedProducts(ctx, repo, data)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, len(data.Products), skipped)

	p, err := repo.GetProduct(ctx, "celana-chino-slim")
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Len(t, p.Variants, 3)
}

func TestCartRulesFromStoreConfig(t *testing.T) {
	store := config.DefaultStore()
	store.Pricing.ShippingFee = 15000
	rules := cartRules(store)
	assert.Equal(t, int64(15000), rules.ShippingFee)
	assert.Equal(t, 6, rules.VolumeDiscountMinUnits)
}

func TestReconcileMinAgeCapsAtPaymentWindow(t *testing.T) {
	cfg := &config.Config{PaymentWindow: 0}
	assert.Equal(t, reconcileMinAgeMin, reconcileMinAge(cfg))
	cfg.PaymentWindow = reconcileMinAgeMin / 2
	assert.Equal(t, reconcileMinAgeMin/2, reconcileMinAge(cfg))
}

func TestOpenRepositoryMemoryBackend(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), &config.Config{DatabaseBackend: config.BackendMemory}, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.NoError(t, repo.Ping(context.Background()))
}
