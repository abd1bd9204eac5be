package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/acme/autocert"

	"github.com/lakon-apparel/storefront/internal/config"
	"github.com/lakon-apparel/storefront/internal/jobs"
)

const (
	shutdownTimeout    = 30 * time.Second
	limiterCleanup     = 5 * time.Minute
	reconcileTimeout   = 2 * time.Minute
	reconcileMinAgeMin = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	a.limiter.StartCleanup(ctx, limiterCleanup)

	scheduler := jobs.NewScheduler(log)
	if _, err := scheduler.AddReconcile(jobs.ReconcileJob{
		Schedule: cfg.ReconcileSchedule,
		MinAge:   reconcileMinAge(cfg),
		Timeout:  reconcileTimeout,
	}, a.checkout); err != nil {
		return err
	}
	scheduler.Start()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(server, cfg)
	}()
	log.WithFields(map[string]interface{}{
		"addr":     cfg.HTTPAddr,
		"backend":  cfg.DatabaseBackend,
		"media":    cfg.MediaDriver,
		"env":      cfg.Env,
		"autocert": cfg.TLSDomains != "",
	}).Info("storefront listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("scheduler shutdown")
	}
	log.Info("storefront stopped")
	return nil
}

// listen serves plain HTTP, or HTTPS with Let's Encrypt certificates when
// TLS_AUTOCERT_DOMAINS is set.
func listen(server *http.Server, cfg *config.Config) error {
	domains := config.CSV(cfg.TLSDomains)
	if len(domains) == 0 {
		return server.ListenAndServe()
	}

	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cfg.TLSCacheDir),
	}
	server.Addr = ":https"
	server.TLSConfig = m.TLSConfig()

	challenge := &http.Server{
		Addr:              ":http",
		Handler:           m.HTTPHandler(nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = challenge.ListenAndServe() }()
	defer challenge.Close()

	return server.ListenAndServeTLS("", "")
}

// reconcileMinAge waits a few minutes past creation before asking the
// gateway, and never longer than the payment window.
func reconcileMinAge(cfg *config.Config) time.Duration {
	if cfg.PaymentWindow > 0 && cfg.PaymentWindow < reconcileMinAgeMin {
		return cfg.PaymentWindow
	}
	return reconcileMinAgeMin
}
