package app

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"hotel_rates/internal/domain"
)

// Listings are cached under rates:<group>:<gen>. Every write stores a fresh
// gen, so a fill computed from a read that raced the write lands on a key no
// reader asks for again.
const (
	genTTL       = 24 * time.Hour
	maxListTTL   = genTTL / 2 // a listing must expire well before its gen can
	noGeneration = "0"
)

func genKey(k domain.GroupKey) string { return "rates:gen:" + k.String() }

func listKey(k domain.GroupKey, gen string) string { return "rates:" + k.String() + ":" + gen }

func currentGen(ctx context.Context, c domain.Cache, k domain.GroupKey) (string, error) {
	var gen string
	ok, err := c.Get(ctx, genKey(k), &gen)
	if err != nil {
		return "", err
	}
	if !ok || gen == "" {
		return noGeneration, nil
	}
	return gen, nil
}

func bumpGen(ctx context.Context, c domain.Cache, k domain.GroupKey) error {
	return c.Set(ctx, genKey(k), ulid.Make().String(), int(genTTL.Seconds()))
}
