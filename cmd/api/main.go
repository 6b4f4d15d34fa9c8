package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "pnm_gardeners/internal/adapters/http_server"
	"pnm_gardeners/internal/adapters/observability"
	"pnm_gardeners/internal/app"
	"pnm_gardeners/internal/bootstrap"
	"pnm_gardeners/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "api")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// deps
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := bootstrap.OpenStore(startCtx, cfg)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store unavailable")
	}
	defer store.Close()
	if store.Repo == nil {
		cancel()
		log.Fatal().Msg("the API needs a review store; STORE_DRIVER=none is ingest-only")
	}
	cache, cacheCheck := bootstrap.OpenCache(startCtx, cfg)
	cancel()
	if cache != nil {
		defer cache.Close()
	}

	q := app.NewQueryService(store.Repo, bootstrap.CacheOrNil(cache), cfg.CacheTTL)

	checks := map[string]server.Check{}
	if store.Check != nil {
		checks["store"] = store.Check
	}
	if cacheCheck != nil {
		checks["cache"] = cacheCheck
	}

	// http
	srv := server.New(cfg.CORSOrigins...)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Q:      q,
		Proxy:  server.NewImageProxy(cfg.ReviewsRPS*5, cfg.ProxyHosts...),
		Checks: checks,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Bool("cache", cache != nil).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
