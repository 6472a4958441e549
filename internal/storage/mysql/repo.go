package mysql

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func groupArgs(k domain.GroupKey) []any {
	return []any{k.HotelID, k.RoomTypeID, k.OccupancyTypeID, valInt64(k.MealPlanID)}
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

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

func (r *Repo) ListPeriods(ctx context.Context, key domain.GroupKey) ([]domain.PricingPeriod, error) {
	ps, err := listPeriods(ctx, r.db, listGroupSQL, key)
	if err != nil {
		return nil, storageErr("list periods", err)
	}
	return ps, nil
}

func (r *Repo) GetPeriod(ctx context.Context, id string) (domain.PricingPeriod, error) {
	p, err := scanPeriod(r.db.QueryRowContext(ctx, getPeriodSQL, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.PricingPeriod{}, domain.ErrNotFound
		}
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

// WithinGroup takes the group's advisory lock on a dedicated connection, runs
// fn in a READ COMMITTED transaction on that same connection, and releases the
// lock after commit or rollback.
func (r *Repo) WithinGroup(ctx context.Context, key domain.GroupKey, fn func(tx domain.PeriodTx) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return storageErr("acquire conn", err)
	}
	defer conn.Close()

	name := lockName(key)
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, getLockSQL, name, int(r.lockTimeout.Seconds())).Scan(&got); err != nil {
		return storageErr("lock group", err)
	}
	if !got.Valid || got.Int64 != 1 {
		return &domain.StorageError{Op: "lock group", Err: fmt.Errorf("timed out waiting for %s", name), Retryable: true}
	}
	defer func() {
		// ctx may already be done; the lock must still go back
		if _, rerr := conn.ExecContext(context.Background(), releaseLockSQL, name); rerr != nil {
			log.Warn().Err(rerr).Str("lock", name).Msg("release lock failed")
		}
	}()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
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

// lockName stays within MySQL's 64 character limit; long keys are hashed.
func lockName(k domain.GroupKey) string {
	name := "rates:" + k.String()
	if len(name) <= 64 {
		return name
	}
	sum := sha1.Sum([]byte(name))
	return "rates:" + hex.EncodeToString(sum[:])
}

type periodTx struct{ tx *sql.Tx }

func (t *periodTx) ListPeriods(ctx context.Context, key domain.GroupKey) ([]domain.PricingPeriod, error) {
	ps, err := listPeriods(ctx, t.tx, listGroupForUpdateSQL, key)
	if err != nil {
		return nil, storageErr("list periods", err)
	}
	return ps, nil
}

func (t *periodTx) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := t.tx.ExecContext(ctx, deleteManyPrefix+marks+")", args...)
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
	out := make([]domain.PricingPeriod, 0, len(ps))
	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*8) // 8 params per row
	for _, p := range ps {
		p.ID = ulid.Make().String()
		values = append(values, "(?,?,?,?,?,?,?,?)")
		args = append(args,
			p.ID,
			p.Group.HotelID,
			p.Group.RoomTypeID,
			p.Group.OccupancyTypeID,
			valInt64(p.Group.MealPlanID),
			p.Range.Start.Format(domain.DateLayout),
			p.Range.End.Format(domain.DateLayout),
			p.Price.String(),
		)
		out = append(out, p)
	}
	if _, err := t.tx.ExecContext(ctx, insertPeriodsPrefix+strings.Join(values, ","), args...); err != nil {
		return nil, storageErr("create periods", err)
	}
	return out, nil
}

func listPeriods(ctx context.Context, q queryer, query string, key domain.GroupKey) ([]domain.PricingPeriod, error) {
	rows, err := q.QueryContext(ctx, query, groupArgs(key)...)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanPeriod(s scanner) (domain.PricingPeriod, error) {
	var (
		p          domain.PricingPeriod
		meal       sql.NullInt64
		start, end time.Time
		price      decimal.Decimal
	)
	if err := s.Scan(
		&p.ID,
		&p.Group.HotelID,
		&p.Group.RoomTypeID,
		&p.Group.OccupancyTypeID,
		&meal,
		&start, &end,
		&price,
	); err != nil {
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

// Retryable: deadlock, lock wait timeout, NOWAIT lock failure, dropped conn.
var retryableCodes = map[uint16]bool{1213: true, 1205: true, 3572: true}

func storageErr(op string, err error) error {
	var me *mysqldrv.MySQLError
	retry := errors.As(err, &me) && retryableCodes[me.Number]
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysqldrv.ErrInvalidConn) {
		retry = true
	}
	return &domain.StorageError{Op: op, Err: err, Retryable: retry}
}
