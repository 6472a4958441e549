// Package postgres stores rate periods in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

type Repo struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func New(db *sql.DB, lockTimeout time.Duration) *Repo {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Repo{db: db, lockTimeout: lockTimeout}
}

func mealArg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func (r *Repo) ListPeriods(ctx context.Context, key domain.GroupKey) ([]domain.PricingPeriod, error) {
	ps, err := listPeriods(ctx, r.db, key)
	if err != nil {
		return nil, storageErr("list periods", err)
	}
	return ps, nil
}

func (r *Repo) GetPeriod(ctx context.Context, id string) (domain.PricingPeriod, error) {
	p, err := scanPeriod(r.db.QueryRowContext(ctx, getPeriodSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PricingPeriod{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PricingPeriod{}, storageErr("get period", err)
	}
	return p, nil
}

func (r *Repo) DeletePeriod(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deletePeriodSQL, id)
	if err != nil {
		return storageErr("delete period", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// WithinGroup takes the group's session advisory lock on a dedicated
// connection, then runs fn in a SERIALIZABLE transaction on that connection.
// The snapshot is taken after the lock is granted, so a commit that queued
// behind another sees its rows. The lock is released after commit or rollback.
func (r *Repo) WithinGroup(ctx context.Context, key domain.GroupKey, fn func(tx domain.PeriodTx) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return storageErr("acquire conn", err)
	}
	defer conn.Close()

	name := "rates:" + key.String()
	if err := r.lockGroup(ctx, conn, name); err != nil {
		return err
	}
	defer func() {
		// ctx may already be done; the lock must still go back
		if _, uerr := conn.ExecContext(context.Background(), groupUnlockSQL, name); uerr != nil {
			log.Warn().Err(uerr).Str("lock", name).Msg("release lock failed, dropping conn")
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return storageErr("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&periodTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	committed = true
	return nil
}

// lockGroup waits at most lockTimeout for the session lock. A timeout is
// lock_not_available and so retryable.
func (r *Repo) lockGroup(ctx context.Context, conn *sql.Conn, name string) error {
	// SET does not take bind parameters
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("%s%d", lockTimeoutSQL, r.lockTimeout.Milliseconds())); err != nil {
		return storageErr("lock timeout", err)
	}
	_, err := conn.ExecContext(ctx, groupLockSQL, name)
	if _, rerr := conn.ExecContext(context.Background(), resetLockTimeoutSQL); rerr != nil {
		log.Warn().Err(rerr).Msg("reset lock_timeout failed")
	}
	if err != nil {
		return storageErr("lock group", err)
	}
	return nil
}

type periodTx struct{ tx *sql.Tx }

func (t *periodTx) ListPeriods(ctx context.Context, key domain.GroupKey) ([]domain.PricingPeriod, error) {
	ps, err := listPeriods(ctx, t.tx, key)
	if err != nil {
		return nil, storageErr("list periods", err)
	}
	return ps, nil
}

func (t *periodTx) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := t.tx.ExecContext(ctx, deleteManySQL, pq.Array(ids))
	if err != nil {
		return storageErr("delete periods", err)
	}
	if n, _ := res.RowsAffected(); n != int64(len(ids)) {
		return fmt.Errorf("deleted %d of %d periods: %w", n, len(ids), domain.ErrNotFound)
	}
	return nil
}

func (t *periodTx) CreateMany(ctx context.Context, ps []domain.PricingPeriod) ([]domain.PricingPeriod, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	stmt, err := t.tx.PrepareContext(ctx, insertPeriodSQL)
	if err != nil {
		return nil, storageErr("prepare insert", err)
	}
	defer stmt.Close()

	out := make([]domain.PricingPeriod, 0, len(ps))
	for _, p := range ps {
		p.ID = ulid.Make().String()
		if _, err := stmt.ExecContext(ctx,
			p.ID,
			p.Group.HotelID,
			p.Group.RoomTypeID,
			p.Group.OccupancyTypeID,
			mealArg(p.Group.MealPlanID),
			p.Range.Start.Format(domain.DateLayout),
			p.Range.End.Format(domain.DateLayout),
			p.Price.String(),
		); err != nil {
			return nil, storageErr("create periods", err)
		}
		out = append(out, p)
	}
	return out, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listPeriods(ctx context.Context, q queryer, key domain.GroupKey) ([]domain.PricingPeriod, error) {
	rows, err := q.QueryContext(ctx, listGroupSQL, key.HotelID, key.RoomTypeID, key.OccupancyTypeID, mealArg(key.MealPlanID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PricingPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPeriod(s interface{ Scan(dest ...any) error }) (domain.PricingPeriod, error) {
	var (
		p          domain.PricingPeriod
		meal       sql.NullInt64
		start, end time.Time
		price      decimal.Decimal
	)
	if err := s.Scan(&p.ID, &p.Group.HotelID, &p.Group.RoomTypeID, &p.Group.OccupancyTypeID,
		&meal, &start, &end, &price); err != nil {
		return domain.PricingPeriod{}, err
	}
	if meal.Valid {
		m := meal.Int64
		p.Group.MealPlanID = &m
	}
	p.Range = domain.NewDateRange(start, end)
	p.Price = price
	return p, nil
}

// serialization_failure, deadlock_detected, lock_not_available
var retryableCodes = map[pq.ErrorCode]bool{"40001": true, "40P01": true, "55P03": true}

func storageErr(op string, err error) error {
	var pe *pq.Error
	retry := errors.As(err, &pe) && retryableCodes[pe.Code]
	if errors.Is(err, driver.ErrBadConn) {
		retry = true
	}
	return &domain.StorageError{Op: op, Err: err, Retryable: retry}
}
