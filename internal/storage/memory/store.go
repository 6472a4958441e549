// Package memory is an in-process PeriodStore. Writes inside WithinGroup are
// staged and applied all at once when fn succeeds, so a failing transaction
// leaves no trace. Used for local runs and unit tests.
package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"hotel_rates/internal/domain"
)

type Store struct {
	mu      sync.RWMutex
	periods map[string]domain.PricingPeriod

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		periods: map[string]domain.PricingPeriod{},
		locks:   map[string]*sync.Mutex{},
	}
}

// Seed inserts periods as-is, assigning ids where missing.
func (s *Store) Seed(ps ...domain.PricingPeriod) []domain.PricingPeriod {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PricingPeriod, 0, len(ps))
	for _, p := range ps {
		if p.ID == "" {
			p.ID = ulid.Make().String()
		}
		s.periods[p.ID] = p
		out = append(out, p)
	}
	return out
}

func (s *Store) ListPeriods(ctx context.Context, key domain.GroupKey) ([]domain.PricingPeriod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(key, nil), nil
}

func (s *Store) listLocked(key domain.GroupKey, deleted map[string]bool) []domain.PricingPeriod {
	var out []domain.PricingPeriod
	for id, p := range s.periods {
		if deleted[id] || !p.Group.Equal(key) {
			continue
		}
		out = append(out, p)
	}
	domain.SortPeriods(out)
	return out
}

func (s *Store) GetPeriod(ctx context.Context, id string) (domain.PricingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.periods[id]
	if !ok {
		return domain.PricingPeriod{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *Store) DeletePeriod(ctx context.Context, id string) error {
	p, err := s.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	lock := s.groupLock(p.Group)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.periods, id)
	return nil
}

func (s *Store) groupLock(key domain.GroupKey) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	k := key.String()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

func (s *Store) WithinGroup(ctx context.Context, key domain.GroupKey, fn func(tx domain.PeriodTx) error) error {
	lock := s.groupLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "begin", Err: err}
	}
	tx := &memTx{s: s, deleted: map[string]bool{}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "commit", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range tx.deleted {
		delete(s.periods, id)
	}
	for _, p := range tx.created {
		s.periods[p.ID] = p
	}
	return nil
}

type memTx struct {
	s       *Store
	deleted map[string]bool
	created []domain.PricingPeriod
}

func (t *memTx) ListPeriods(ctx context.Context, key domain.GroupKey) ([]domain.PricingPeriod, error) {
	t.s.mu.RLock()
	out := t.s.listLocked(key, t.deleted)
	t.s.mu.RUnlock()
	for _, p := range t.created {
		if p.Group.Equal(key) {
			out = append(out, p)
		}
	}
	domain.SortPeriods(out)
	return out, nil
}

func (t *memTx) DeleteMany(ctx context.Context, ids []string) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, id := range ids {
		if _, ok := t.s.periods[id]; !ok || t.deleted[id] {
			return domain.ErrNotFound
		}
		t.deleted[id] = true
	}
	return nil
}

func (t *memTx) CreateMany(ctx context.Context, ps []domain.PricingPeriod) ([]domain.PricingPeriod, error) {
	out := make([]domain.PricingPeriod, 0, len(ps))
	for _, p := range ps {
		p.ID = ulid.Make().String()
		t.created = append(t.created, p)
		out = append(out, p)
	}
	return out, nil
}
