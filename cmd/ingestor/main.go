package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"pnm_gardeners/internal/adapters/checkatrade"
	"pnm_gardeners/internal/adapters/jsonfile"
	"pnm_gardeners/internal/adapters/observability"
	"pnm_gardeners/internal/app"
	"pnm_gardeners/internal/bootstrap"
	"pnm_gardeners/internal/domain"
	"pnm_gardeners/internal/shared"
)

func main() {
	cfg := shared.Load()

	file := flag.String("file", cfg.ReviewsFile, "read review markdown from this file instead of fetching the page")
	out := flag.String("out", cfg.ReviewsOut, "also write the assembled reviews to this JSON file")
	dryRun := flag.Bool("dry-run", false, "extract and assemble only; do not touch the store")
	flag.Parse()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "ingestor")

	if *dryRun {
		cfg.StoreDriver = shared.StoreNone
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	log.Info().
		Str("file", *file).
		Str("url", cfg.ReviewsURL).
		Str("store", cfg.StoreDriver).
		Bool("dry_run", *dryRun).
		Msg("ingestor starting")

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store unavailable")
	}
	defer store.Close()
	cache, _ := bootstrap.OpenCache(ctx, cfg)
	if cache != nil {
		defer cache.Close()
	}

	ex, asm, err := bootstrap.Pipeline(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("postcode table")
	}

	var src domain.ReviewSource
	if *file == "" {
		client, err := checkatrade.New(cfg.ReviewsURL, cfg.ReviewsRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize reviews page client")
		}
		src = client
	}

	ing := app.NewIngestionService(src, store.Repo, bootstrap.CacheOrNil(cache), ex, asm)
	// the file store already is the artifact
	if *out != "" && !(cfg.StoreDriver == shared.StoreFile && *out == cfg.ReviewsOut) {
		ing.WithArtifact(jsonfile.New(*out))
	}

	var rep app.Report
	if *file != "" {
		b, err := os.ReadFile(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("read review markdown failed")
		}
		rep, err = ing.IngestMarkdown(ctx, "file", string(b))
		if err != nil {
			log.Fatal().Err(err).Msg("ingest failed")
		}
	} else {
		rep, err = ing.IngestPage(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("ingest failed")
		}
	}

	log.Info().
		Str("source", rep.Source).
		Int("segments", rep.Segments).
		Int("parsed", rep.Parsed).
		Int("skipped", rep.Skipped).
		Int("stored", rep.Stored).
		Msg("ingestion completed")
}
