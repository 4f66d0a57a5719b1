package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
	"github.com/eclosion-dev/ifttt-core/internal/broker"
	"github.com/eclosion-dev/ifttt-core/internal/config"
	"github.com/eclosion-dev/ifttt-core/internal/httpapi"
	"github.com/eclosion-dev/ifttt-core/internal/realtime"
	"github.com/eclosion-dev/ifttt-core/internal/store"
	"github.com/eclosion-dev/ifttt-core/internal/tunnel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "ifttt-core").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	pool, err := store.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run global-store migrations")
	}
	if err := broker.MigrateBrokerTables(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run broker migrations")
	}

	global := store.NewSecretCache(store.NewPgStore(pool))
	registry := store.NewPgRegistry(pool)

	mgr := broker.NewManager(func(subdomain string) broker.Store {
		return broker.NewPgStore(pool, subdomain)
	})
	compactCtx, cancelCompaction := context.WithCancel(ctx)
	go mgr.RunCompaction(compactCtx)

	proxy := tunnel.NewProxy(&http.Client{}, cfg.OriginHostTemplate)
	notifier := realtime.NewNotifier(nil, cfg.RealtimeURL, cfg.ServiceKey)

	oauthSvc := auth.NewService(auth.Config{
		HMACSecret:         cfg.HMACSecret,
		OAuthClientID:      cfg.OAuthClientID,
		OAuthClientSecret:  cfg.OAuthClientSecret,
		DemoPassword:       cfg.DemoPassword,
		OriginHostTemplate: cfg.OriginHostTemplate,
		DemoLoginURL:       cfg.DemoLoginURL,
	}, global, registry, httpapi.SeedDemoData(mgr))

	deps := &httpapi.Deps{
		ServiceKey: cfg.ServiceKey,
		HMACSecret: cfg.HMACSecret,
		Global:     global,
		Registry:   registry,
		Broker:     mgr,
		Proxy:      proxy,
		Notifier:   notifier,
		OAuth:      oauthSvc,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.Routes(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")
	cancelCompaction()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
