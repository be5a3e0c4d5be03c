package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"venue_finder/internal/app"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	StoreDriver string // mysql | memory
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration
	OpTimeout   time.Duration

	// Query tuning
	PageSize       int
	TopMinReviews  int
	TopLimit       int
	MaxDistanceM   float64
	SlugMaxRetries int

	// Seeder
	SeedFile    string
	SeedWorkers int
	SeedRPS     int
}

// Load reads the environment, after merging an optional .env file.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer setting")
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ":9100"),
		StoreDriver:    env("STORE_DRIVER", "mysql"),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/venues?parseTime=true&charset=utf8mb4&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		OpTimeout:      time.Duration(atoi("OP_TIMEOUT_MS", 5000)) * time.Millisecond,
		PageSize:       atoi("PAGE_SIZE", 6),
		TopMinReviews:  atoi("TOP_MIN_REVIEWS", 2),
		TopLimit:       atoi("TOP_LIMIT", 10),
		MaxDistanceM:   float64(atoi("GEO_MAX_DISTANCE_METERS", 10000)),
		SlugMaxRetries: atoi("SLUG_MAX_RETRIES", 5),
		SeedFile:       env("SEED_FILE", "data/seed.json"),
		SeedWorkers:    atoi("SEED_WORKERS", 8),
		SeedRPS:        atoi("SEED_RPS", 50),
	}
	if c.PageSize <= 0 {
		log.Warn().Int("page_size", c.PageSize).Msg("PAGE_SIZE must be positive; using 6")
		c.PageSize = 6
	}
	return c
}

// AppOptions projects the query and write tunables for the service layer.
func (c Config) AppOptions() app.Options {
	return app.Options{
		PageSize:       c.PageSize,
		TopMinReviews:  c.TopMinReviews,
		TopLimit:       c.TopLimit,
		MaxDistanceM:   c.MaxDistanceM,
		SlugMaxRetries: c.SlugMaxRetries,
		OpTimeout:      c.OpTimeout,
		CacheTTL:       c.CacheTTL,
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
