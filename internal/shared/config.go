package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Store drivers.
const (
	StoreMySQL = "mysql"
	StoreMongo = "mongo"
	StoreFile  = "file"
	StoreNone  = "none"
)

var (
	ErrUnknownStore     = errors.New("STORE_DRIVER must be one of: mysql, mongo, file, none")
	ErrMissingDSN       = errors.New("MYSQL_DSN is required for the mysql store")
	ErrMissingMongoURL  = errors.New("MONGO_URL is required for the mongo store")
	ErrInvalidScale     = errors.New("RATING_SCALE must be positive")
	ErrInvalidFallback  = errors.New("FALLBACK_RATING must lie within [1, RATING_SCALE]")
	ErrInvalidWorkers   = errors.New("INGEST_WORKERS must be at least 1")
	ErrMissingStorePath = errors.New("REVIEWS_OUT is required for the file store")
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	CORSOrigins []string

	StoreDriver string
	MySQLDSN    string
	MongoURL    string
	MongoDB     string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	ReviewsURL  string
	ReviewsRPS  int
	ReviewsFile string
	ReviewsOut  string
	ProxyHosts  []string

	DriveBaseURL     string
	DriveAPIKey      string
	DriveFolders     string
	DriveRatingScale float64
	Workers          int

	PostcodeTable    string
	FallbackPostcode string
	FallbackRating   float64
	RatingScale      float64
	Jitter           bool
}

// Load reads configuration from the environment, after an optional .env file.
func Load() Config {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer config value")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric config value")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		CORSOrigins: list(env("CORS_ORIGINS", "https://pnmgardeners.co.uk,http://localhost:3000")),

		StoreDriver: strings.ToLower(env("STORE_DRIVER", StoreMySQL)),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/pnm?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		MongoURL:    env("MONGO_URL", ""),
		MongoDB:     env("MONGO_DB", "pnm_gardeners"),

		RedisAddr: env("REDIS_ADDR", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		RedisPass: env("REDIS_PASSWORD", ""),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		ReviewsURL:  env("REVIEWS_URL", "https://www.checkatrade.com/trades/pnmgardeners/reviews"),
		ReviewsRPS:  atoi("REVIEWS_RPS", 2),
		ReviewsFile: env("REVIEWS_FILE", ""),
		ReviewsOut:  env("REVIEWS_OUT", ""),
		ProxyHosts:  list(env("PROXY_HOSTS", "storage.googleapis.com,drive.google.com")),

		DriveBaseURL:     env("DRIVE_BASE_URL", "https://www.googleapis.com"),
		DriveAPIKey:      env("DRIVE_API_KEY", ""),
		DriveFolders:     env("DRIVE_FOLDERS", ""),
		DriveRatingScale: atof("DRIVE_RATING_SCALE", 10),
		Workers:          atoi("INGEST_WORKERS", 4),

		PostcodeTable:    env("POSTCODE_TABLE", ""),
		FallbackPostcode: strings.ToUpper(env("FALLBACK_POSTCODE", "SW11")),
		FallbackRating:   atof("FALLBACK_RATING", 10),
		RatingScale:      atof("RATING_SCALE", 10),
		Jitter:           envBool("JITTER", false),
	}
	return c
}

// Validate reports the first setting the binaries cannot run with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return ErrMissingDSN
		}
	case StoreMongo:
		if c.MongoURL == "" {
			return ErrMissingMongoURL
		}
	case StoreFile:
		if c.ReviewsOut == "" {
			return ErrMissingStorePath
		}
	case StoreNone:
	default:
		return fmt.Errorf("%w (got %q)", ErrUnknownStore, c.StoreDriver)
	}
	if c.RatingScale <= 0 {
		return ErrInvalidScale
	}
	if c.FallbackRating < 1 || c.FallbackRating > c.RatingScale {
		return ErrInvalidFallback
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
