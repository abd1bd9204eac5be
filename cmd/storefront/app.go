package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lakon-apparel/storefront/infra/supabase"
	"github.com/lakon-apparel/storefront/internal/account"
	"github.com/lakon-apparel/storefront/internal/admin"
	"github.com/lakon-apparel/storefront/internal/cart"
	"github.com/lakon-apparel/storefront/internal/catalog"
	"github.com/lakon-apparel/storefront/internal/checkout"
	"github.com/lakon-apparel/storefront/internal/config"
	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/httpapi"
	"github.com/lakon-apparel/storefront/internal/logging"
	"github.com/lakon-apparel/storefront/internal/media"
	"github.com/lakon-apparel/storefront/internal/metrics"
	"github.com/lakon-apparel/storefront/internal/middleware"
	"github.com/lakon-apparel/storefront/internal/notify"
	"github.com/lakon-apparel/storefront/internal/payment"
	"github.com/lakon-apparel/storefront/internal/realtime"
	"github.com/lakon-apparel/storefront/internal/storage/postgres"
)

// app holds the wired services and everything that must be released on exit.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	repo     database.RepositoryInterface
	checkout *checkout.Service
	hub      *realtime.Hub
	limiter  *middleware.RateLimiter
	handler  http.Handler
	closers  []func() error
}

func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(logging.Config{Service: "storefront", Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, log, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("shutdown: close failed")
		}
	}
}

func newSupabaseClient(cfg *config.Config) (*supabase.Client, error) {
	if cfg.SupabaseURL == "" {
		return nil, nil
	}
	return supabase.New(supabase.Config{
		ProjectURL: cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		ServiceKey: cfg.SupabaseServiceKey,
	})
}

// openRepository selects the persistence backend.
func openRepository(ctx context.Context, cfg *config.Config, sb *supabase.Client) (database.RepositoryInterface, func() error, error) {
	switch cfg.DatabaseBackend {
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendMemory:
		return database.NewMockRepository(), func() error { return nil }, nil
	default:
		if sb == nil {
			return nil, nil, fmt.Errorf("supabase backend requires SUPABASE_URL")
		}
		return database.NewRepository(sb), func() error { return nil }, nil
	}
}

func openMedia(ctx context.Context, cfg *config.Config, sb *supabase.Client) (media.Store, error) {
	switch cfg.MediaDriver {
	case "s3":
		return media.NewS3Store(ctx, media.S3Config{
			Bucket:          cfg.MediaBucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
	case "memory":
		return media.NewMemoryStore(""), nil
	default:
		if sb == nil {
			return nil, fmt.Errorf("supabase media driver requires SUPABASE_URL")
		}
		return media.NewSupabaseStore(sb, cfg.MediaBucket), nil
	}
}

func openCartRepository(cfg *config.Config) (cart.Repository, func() error, error) {
	if cfg.RedisURL == "" {
		return cart.NewMemoryRepository(cfg.CartTTL), func() error { return nil }, nil
	}
	client, err := cart.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return cart.NewRedisRepository(client, cfg.CartTTL), client.Close, nil
}

func openGateway(cfg *config.Config, log *logging.Logger) (payment.Gateway, error) {
	if cfg.MidtransServerKey == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("MIDTRANS_SERVER_KEY is required in production")
		}
		log.Warn("MIDTRANS_SERVER_KEY not set; using the fake payment gateway")
		return payment.NewFake("dev-server-key", "http://localhost"+cfg.HTTPAddr+"/dev/pay"), nil
	}
	return payment.NewMidtrans(payment.MidtransConfig{
		ServerKey:  cfg.MidtransServerKey,
		Production: cfg.MidtransProduction,
	})
}

func openNotifier(cfg *config.Config, log *logging.Logger) (notify.Notifier, error) {
	if cfg.WhatsAppToken == "" {
		return notify.NewLinkNotifier(log), nil
	}
	return notify.NewCloudAPINotifier(notify.CloudAPIConfig{
		Token:         cfg.WhatsAppToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		BaseURL:       cfg.WhatsAppAPIBaseURL,
	}, log)
}

func cartRules(s config.Store) cart.Rules {
	return cart.Rules{
		VolumeDiscountPercent:  s.Pricing.VolumeDiscountPercent,
		VolumeDiscountMinUnits: s.Pricing.VolumeDiscountMinUnits,
		ShippingFee:            s.Pricing.ShippingFee,
		FreeShippingThreshold:  s.Pricing.FreeShippingThreshold,
	}
}

// newApp wires every service behind the HTTP handler.
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	sb, err := newSupabaseClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}

	repo, closeRepo, err := openRepository(ctx, cfg, sb)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	a.repo = repo
	a.closers = append(a.closers, closeRepo)

	cartRepo, closeCarts, err := openCartRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("open cart store: %w", err)
	}
	a.closers = append(a.closers, closeCarts)

	images, err := openMedia(ctx, cfg, sb)
	if err != nil {
		return nil, fmt.Errorf("open media store: %w", err)
	}
	gateway, err := openGateway(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}
	notifier, err := openNotifier(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	cors := middleware.NewCORSMiddleware(config.CSV(cfg.CORSOrigins))
	a.hub = realtime.NewHub(cors.CheckOrigin, log)
	a.closers = append(a.closers, func() error { a.hub.Close(); return nil })

	carts := cart.NewService(cartRepo, repo, cartRules(cfg.Store), log)
	a.checkout, err = checkout.New(checkout.Config{
		Orders:   repo,
		Stock:    repo,
		Carts:    carts,
		Gateway:  gateway,
		Notifier: notifier,
		Composer: notify.Composer{
			StoreName:   cfg.Store.Name,
			StoreNumber: cfg.Store.WhatsAppNumber,
		},
		Events:        a.hub,
		PaymentWindow: cfg.PaymentWindow,
		FinishURL:     cfg.PaymentFinishURL,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	adminSvc, err := admin.New(admin.Config{
		Products:          repo,
		Orders:            repo,
		Media:             images,
		Lifecycle:         a.checkout,
		LowStockThreshold: cfg.Store.LowStockThreshold,
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}

	gate := middleware.NewAdminGate(repo, config.CSV(cfg.AdminUserIDs), log)
	var auth account.Authenticator
	if sb != nil {
		auth = sb.Auth()
	}
	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	if err := a.limiter.TrustProxies(config.CSV(cfg.TrustedProxies)); err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	a.handler = httpapi.NewHandler(httpapi.Services{
		Catalog:  catalog.New(catalog.Config{Products: repo, Logger: log}),
		Carts:    carts,
		Checkout: a.checkout,
		Accounts: account.New(auth, repo, gate, log),
		Admin:    adminSvc,
		Feed:     a.hub,
		DB:       repo,
	}, httpapi.Options{
		Logger:        log,
		Auth:          middleware.NewAuthMiddleware(cfg.SupabaseJWTSecret, log),
		AdminGate:     gate,
		CORS:          cors,
		RateLimiter:   a.limiter,
		Metrics:       metrics.Handler(),
		SecureCookies: cfg.IsProduction() || cfg.TLSDomains != "",
	})

	ok = true
	return a, nil
}
