package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"venue_finder/internal/adapters/observability"
	redisad "venue_finder/internal/adapters/redis"
	"venue_finder/internal/app"
	"venue_finder/internal/shared"
	mysqlrepo "venue_finder/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "seeder", cfg.LogLevel)

	log.Info().
		Str("file", cfg.SeedFile).
		Int("workers", cfg.SeedWorkers).
		Int("rps", cfg.SeedRPS).
		Msg("seeder starting")

	raw, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("read seed file failed")
	}
	var fixture app.SeedFile
	if err := json.Unmarshal(raw, &fixture); err != nil {
		log.Fatal().Err(err).Msg("decode seed file failed")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")
	if err := mysqlrepo.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	seeder := app.NewSeedService(repo, app.NewVenueService(repo, cache, cfg.AppOptions()))

	// Users first: venues reference their authors.
	for _, u := range fixture.Users {
		if err := seeder.SeedUser(ctx, u); err != nil {
			log.Warn().Str("id", u.ID).Err(err).Msg("user skipped")
		}
	}

	limiter := rate.NewLimiter(rate.Limit(max(cfg.SeedRPS, 1)), max(cfg.SeedWorkers, 1))
	sem := semaphore.NewWeighted(int64(max(cfg.SeedWorkers, 1)))
	var (
		wg              sync.WaitGroup
		ok, failed, bad atomic.Int64
	)

	for _, sv := range fixture.Venues {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("seeding interrupted")
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			sem.Release(1)
			log.Warn().Err(err).Msg("seeding interrupted")
			break
		}

		wg.Add(1)
		go func(sv app.SeedVenue) {
			defer wg.Done()
			defer sem.Release(1)

			v, skipped, err := seeder.SeedVenue(ctx, sv)
			bad.Add(int64(skipped))
			if err != nil {
				failed.Add(1)
				log.Warn().Str("name", sv.Name).Err(err).Msg("venue failed")
				return
			}
			ok.Add(1)
			log.Debug().Str("slug", v.Slug).Int("reviews", len(sv.Reviews)-skipped).Msg("venue seeded")
		}(sv)
	}

	wg.Wait()
	log.Info().
		Int64("venues", ok.Load()).
		Int64("failed", failed.Load()).
		Int64("reviews_skipped", bad.Load()).
		Msg("seeding completed")
}
