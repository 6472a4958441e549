package main

import (
	"context"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_rates/internal/adapters/observability"
	redisad "hotel_rates/internal/adapters/redis"
	"hotel_rates/internal/adapters/supplier"
	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/shared"
	"hotel_rates/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("base", cfg.SupplierBase).
		Int("workers", cfg.Workers).
		Int("hotels", len(cfg.HotelIDs)).
		Msg("importer starting")
	if len(cfg.HotelIDs) == 0 {
		log.Fatal().Msg("IMPORT_HOTEL_IDS is empty; nothing to import")
	}

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store failed")
	}
	defer closeStore()

	client, err := supplier.New(cfg.SupplierBase, cfg.SupplierKey, cfg.SupplierRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize supplier client")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}

	// supplier rows are authoritative: they never carry a preview token
	cmds := app.NewCommandService(store, cache, app.CommitOptions{
		MaxAttempts: cfg.CommitMaxAttempts,
		Timeout:     cfg.CommitTimeout,
		RetryBase:   50 * time.Millisecond,
	})
	imp := app.NewImportService(client, cmds)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)

	for _, id := range cfg.HotelIDs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("import interrupted")
			break
		}

		wg.Add(1)
		go func(hotelID int64) {
			defer wg.Done()
			defer sem.Release(1)

			rep, err := imp.ImportHotel(ctx, hotelID)
			if err != nil {
				failed.Add(1)
				log.Warn().Int64("hotel", hotelID).Err(err).Msg("import failed")
				return
			}
			log.Info().
				Int64("hotel", hotelID).
				Int("fetched", rep.Fetched).
				Int("committed", rep.Committed).
				Int("invalid", rep.Invalid).
				Bool("missing", rep.Missing).
				Msg("import ok")
		}(id)
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		closeStore()
		log.Fatal().Int64("failed", n).Msg("import completed with failures")
	}
	log.Info().Msg("import completed")
}
