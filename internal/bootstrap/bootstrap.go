// Package bootstrap builds the adapters and services the binaries share from
// a loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pnm_gardeners/internal/adapters/jsonfile"
	redisad "pnm_gardeners/internal/adapters/redis"
	"pnm_gardeners/internal/app"
	"pnm_gardeners/internal/domain"
	"pnm_gardeners/internal/extract"
	"pnm_gardeners/internal/geo"
	"pnm_gardeners/internal/shared"
	mongostore "pnm_gardeners/internal/storage/mongo"
	mysqlrepo "pnm_gardeners/internal/storage/mysql"
)

// Check is a named readiness check.
type Check = func(ctx context.Context) error

// Store is the opened repository plus what the caller needs to check and close it.
type Store struct {
	Repo  domain.ReviewRepository // nil for the "none" driver
	Check Check
	Close func()
}

// OpenStore connects the configured repository and verifies it answers.
func OpenStore(ctx context.Context, cfg shared.Config) (Store, error) {
	switch cfg.StoreDriver {
	case shared.StoreMySQL:
		db, err := mysqlrepo.Open(cfg.MySQLDSN)
		if err != nil {
			return Store{}, fmt.Errorf("mysql open: %w", err)
		}
		repo := mysqlrepo.New(db)
		if err := repo.Ping(ctx); err != nil {
			_ = db.Close()
			return Store{}, fmt.Errorf("mysql ping: %w", err)
		}
		log.Info().Msg("database connection ok")
		return Store{Repo: repo, Check: repo.Ping, Close: func() { _ = db.Close() }}, nil

	case shared.StoreMongo:
		repo, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			return Store{}, err
		}
		if err := repo.Ping(ctx); err != nil {
			return Store{}, fmt.Errorf("mongo ping: %w", err)
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("mongo index creation failed")
		}
		log.Info().Str("db", cfg.MongoDB).Msg("mongo connection ok")
		return Store{Repo: repo, Check: repo.Ping, Close: func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = repo.Close(cctx)
		}}, nil

	case shared.StoreFile:
		st := jsonfile.New(cfg.ReviewsOut)
		log.Info().Str("file", st.Path()).Msg("using JSON file store")
		return Store{Repo: st, Close: func() {}}, nil

	case shared.StoreNone:
		return Store{Close: func() {}}, nil
	}
	return Store{}, shared.ErrUnknownStore
}

// OpenCache returns the redis cache when REDIS_ADDR is set, else nil.
// An unreachable redis is logged and skipped; the API works uncached.
func OpenCache(ctx context.Context, cfg shared.Config) (*redisad.Cache, Check) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := c.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; running without cache")
		_ = c.Close()
		return nil, nil
	}
	return c, c.Ping
}

// Resolver loads the postcode table (embedded unless POSTCODE_TABLE is set).
func Resolver(cfg shared.Config) (*geo.Resolver, error) {
	t := geo.DefaultTable()
	if cfg.PostcodeTable != "" {
		var err error
		if t, err = geo.LoadTableFile(cfg.PostcodeTable); err != nil {
			return nil, err
		}
	}
	r := geo.NewResolver(t)
	if _, ok := r.Lookup(cfg.FallbackPostcode); !ok {
		log.Warn().Str("fallback", cfg.FallbackPostcode).Msg("fallback postcode not in table; keeping table default")
	}
	return r.WithFallback(cfg.FallbackPostcode), nil
}

// Pipeline builds the extractor and assembler from config.
func Pipeline(cfg shared.Config) (*extract.Extractor, *app.Assembler, error) {
	res, err := Resolver(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := extract.DefaultOptions()
	opts.FallbackRating = cfg.FallbackRating
	opts.FallbackPostcode = res.FallbackCode()
	ex := extract.New(opts, &log.Logger)
	return ex, app.NewAssembler(res, cfg.RatingScale, cfg.Jitter), nil
}

// CacheOrNil keeps a nil *redisad.Cache from becoming a non-nil interface.
func CacheOrNil(c *redisad.Cache) domain.Cache {
	if c == nil {
		return nil
	}
	return c
}
