package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "hotel_rates/internal/adapters/http_server"
	"hotel_rates/internal/adapters/observability"
	redisad "hotel_rates/internal/adapters/redis"
	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/shared"
	"hotel_rates/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store failed")
	}
	defer closeStore()

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			// listing still works, straight from the store
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, cache disabled")
			_ = rc.Close()
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	q := app.NewQueryService(store, cache, cfg.CacheTTL)
	c := app.NewCommandService(store, cache, app.CommitOptions{
		MaxAttempts:  cfg.CommitMaxAttempts,
		Timeout:      cfg.CommitTimeout,
		RequireToken: cfg.CommitRequireToken,
		RetryBase:    50 * time.Millisecond,
	})

	srv := server.New(15 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: c})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("store", cfg.StoreDriver).
		Bool("cache", cache != nil).
		Bool("require_token", cfg.CommitRequireToken).
		Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
