// Package storage picks the PeriodStore backend named by STORE_DRIVER.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"hotel_rates/internal/domain"
	"hotel_rates/internal/shared"
	"hotel_rates/internal/storage/memory"
	mysqlrepo "hotel_rates/internal/storage/mysql"
	pgrepo "hotel_rates/internal/storage/postgres"
)

// Open connects the configured store. The returned close func is never nil.
func Open(ctx context.Context, cfg shared.Config) (domain.PeriodStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), noop, nil
	case "mysql":
		db, err := openDB(ctx, "mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, noop, err
		}
		return mysqlrepo.New(db, cfg.LockTimeout), db.Close, nil
	case "postgres":
		db, err := openDB(ctx, "postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return pgrepo.New(db, cfg.LockTimeout), db.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown STORE_DRIVER %q (want mysql, postgres or memory)", cfg.StoreDriver)
	}
}

func openDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	log.Info().Str("driver", driver).Msg("database connection ok")
	return db, nil
}
