package domain

import "context"

// PeriodStore is the persistence collaborator. Reads outside WithinGroup are
// snapshot reads and take no lock.
type PeriodStore interface {
	ListPeriods(ctx context.Context, key GroupKey) ([]PricingPeriod, error)
	GetPeriod(ctx context.Context, id string) (PricingPeriod, error)
	DeletePeriod(ctx context.Context, id string) error

	// WithinGroup runs fn in one transaction holding the exclusive write lock
	// of key. If fn returns an error nothing fn did is persisted.
	WithinGroup(ctx context.Context, key GroupKey, fn func(tx PeriodTx) error) error
}

// PeriodTx is the list / delete-many / create-many contract executed inside
// one atomic transaction scope.
type PeriodTx interface {
	ListPeriods(ctx context.Context, key GroupKey) ([]PricingPeriod, error)
	DeleteMany(ctx context.Context, ids []string) error
	// CreateMany persists periods without ids and returns them with ids assigned.
	CreateMany(ctx context.Context, ps []PricingPeriod) ([]PricingPeriod, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// RateFeed is an upstream supplier / channel manager publishing contracted rates.
type RateFeed interface {
	GetRates(ctx context.Context, hotelID int64) ([]map[string]any, error)
}
