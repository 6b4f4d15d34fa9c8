package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pnm_gardeners/internal/adapters/drive"
	"pnm_gardeners/internal/adapters/observability"
	"pnm_gardeners/internal/app"
	"pnm_gardeners/internal/bootstrap"
	"pnm_gardeners/internal/domain"
	"pnm_gardeners/internal/shared"
)

func main() {
	cfg := shared.Load()

	replace := flag.Bool("replace", false, "replace the stored set instead of appending")
	strict := flag.Bool("strict", false, "abort when any folder fails to list")
	dryRun := flag.Bool("dry-run", false, "list and group only; do not touch the store")
	flag.Parse()

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "photoloader")

	if *dryRun {
		cfg.StoreDriver = shared.StoreNone
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	folders := drive.ParseFolders(cfg.DriveFolders)
	if len(folders) == 0 {
		log.Fatal().Msg("DRIVE_FOLDERS is empty; expected Service=folderID,...")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	log.Info().
		Int("folders", len(folders)).
		Int("workers", cfg.Workers).
		Bool("replace", *replace).
		Msg("photoloader starting")

	client, err := drive.New(cfg.DriveBaseURL, cfg.DriveAPIKey, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize drive client")
	}
	var photos domain.PhotoSource = client

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store unavailable")
	}
	defer store.Close()
	cache, _ := bootstrap.OpenCache(ctx, cfg)
	if cache != nil {
		defer cache.Close()
	}
	_, asm, err := bootstrap.Pipeline(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("postcode table")
	}

	// results are slotted by service so the grouping order is stable across runs
	services := drive.Services(folders)
	perService := make([][]domain.PhotoItem, len(services))

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i, svc := range services {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(gctx, 1); err != nil {
			break // group context cancelled by a strict failure
		}
		i, svc := i, svc
		g.Go(func() error {
			defer sem.Release(1)

			files, err := photos.ListFolder(gctx, folders[svc])
			if err != nil {
				log.Warn().Str("service", svc).Err(err).Msg("list folder failed")
				if *strict {
					return err
				}
				return nil
			}
			items := app.MapPhotos(svc, files, cfg.FallbackRating)
			mu.Lock()
			perService[i] = items
			mu.Unlock()
			log.Info().Str("service", svc).Int("photos", len(items)).Msg("folder listed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("folder listing aborted")
	}

	var items []domain.PhotoItem
	for _, s := range perService {
		items = append(items, s...)
	}

	ing := app.NewIngestionService(nil, store.Repo, bootstrap.CacheOrNil(cache), nil, asm)
	rep, err := ing.IngestPhotos(ctx, items, cfg.DriveRatingScale, *replace)
	if err != nil {
		log.Fatal().Err(err).Int("photos", len(items)).Msg("photo ingest failed")
	}

	log.Info().
		Int("photos", rep.Segments).
		Int("reviews", rep.Parsed).
		Int("stored", rep.Stored).
		Msg("photo ingestion completed")
}
