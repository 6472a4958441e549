package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_rates/internal/adapters/observability"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/shared"
)

type CommitOptions struct {
	MaxAttempts  int           // transaction attempts on retryable storage errors
	Timeout      time.Duration // per-attempt transaction deadline, 0 = none
	RequireToken bool          // reject commits that carry no preview token
	RetryBase    time.Duration // first backoff delay
}

func DefaultCommitOptions() CommitOptions {
	return CommitOptions{MaxAttempts: 3, Timeout: 5 * time.Second, RetryBase: 50 * time.Millisecond}
}

type CommandService struct {
	store domain.PeriodStore
	cache domain.Cache
	opts  CommitOptions
}

func NewCommandService(s domain.PeriodStore, c domain.Cache, opts CommitOptions) *CommandService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &CommandService{store: s, cache: c, opts: opts}
}

// Commit inserts c into its group, splitting whatever it overlaps. The plan is
// re-derived inside the transaction; when token (from Preview) is non-empty
// and the freshly computed plan touches a different set of periods, Commit
// returns a *domain.ConflictError and writes nothing.
func (s *CommandService) Commit(ctx context.Context, c domain.Candidate, token string) (domain.CommitResult, error) {
	if err := c.Validate(); err != nil {
		observability.ObserveCommit(observability.Outcome(err), 0, 0)
		return domain.CommitResult{}, err
	}
	if s.opts.RequireToken && token == "" {
		err := &domain.ValidationError{Problems: []domain.FieldProblem{{Field: "previewToken", Reason: "required"}}}
		observability.ObserveCommit(observability.Outcome(err), 0, 0)
		return domain.CommitResult{}, err
	}

	var (
		res      domain.CommitResult
		replaced int
		err      error
		attempt  int
	)
	for attempt = 1; ; attempt++ {
		res, replaced, err = s.commitOnce(ctx, c, token)
		if err == nil || !domain.IsRetryable(err) || attempt >= s.opts.MaxAttempts {
			break
		}
		log.Warn().Err(err).Str("group", c.Group.String()).Int("attempt", attempt).Msg("commit retry")
		if !shared.SleepCtx(ctx, shared.Backoff(attempt-1, s.opts.RetryBase)) {
			break
		}
	}
	observability.ObserveCommit(observability.Outcome(err), attempt, replaced)
	if err != nil {
		return domain.CommitResult{}, err
	}

	s.invalidate(ctx, c.Group)
	log.Info().
		Str("group", c.Group.String()).
		Str("range", c.Range.String()).
		Int("deleted", len(res.Deleted)).
		Int("created", len(res.Created)).
		Int("attempts", attempt).
		Msg("rate period committed")
	return res, nil
}

func (s *CommandService) commitOnce(ctx context.Context, c domain.Candidate, token string) (domain.CommitResult, int, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	var (
		res      domain.CommitResult
		replaced int
	)
	err := s.store.WithinGroup(ctx, c.Group, func(tx domain.PeriodTx) error {
		existing, err := tx.ListPeriods(ctx, c.Group)
		if err != nil {
			return err
		}
		plan, err := planFor(c, existing)
		if err != nil {
			if token != "" && errors.Is(err, domain.ErrNotFound) {
				// the edited period went away after the preview
				return &domain.ConflictError{Group: c.Group, Expected: token}
			}
			return err
		}
		if token != "" {
			if actual := plan.Fingerprint(); actual != token {
				return &domain.ConflictError{Group: c.Group, Expected: token, Actual: actual, Affected: plan.AffectedIDs()}
			}
		}

		if len(plan.ToDelete) > 0 {
			if err := tx.DeleteMany(ctx, plan.ToDelete); err != nil {
				return err
			}
		}
		toCreate := make([]domain.PricingPeriod, 0, len(plan.ToCreate))
		for _, p := range plan.ToCreate {
			toCreate = append(toCreate, p.Period())
		}
		created, err := tx.CreateMany(ctx, toCreate)
		if err != nil {
			return err
		}

		after, err := tx.ListPeriods(ctx, c.Group)
		if err != nil {
			return err
		}
		if a, b, ok := domain.CheckNonOverlapping(after); !ok {
			// abort: persisting this would break the group invariant
			return fmt.Errorf("commit %s: %s overlaps %s", c.Group, a.Label(), b.Label())
		}

		replaced = len(plan.Affected)
		res = domain.CommitResult{
			Created: domain.ViewsOf(created),
			Deleted: append([]string{}, plan.ToDelete...),
			Periods: domain.ViewsOf(after),
		}
		return nil
	})
	return res, replaced, err
}

// DeletePeriod removes one period. Nothing is split.
func (s *CommandService) DeletePeriod(ctx context.Context, id string) error {
	p, err := s.store.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePeriod(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, p.Group)
	log.Info().Str("id", id).Str("group", p.Group.String()).Msg("rate period deleted")
	return nil
}

func (s *CommandService) invalidate(ctx context.Context, k domain.GroupKey) {
	if s.cache == nil {
		return
	}
	if err := bumpGen(ctx, s.cache, k); err != nil {
		log.Warn().Err(err).Str("group", k.String()).Msg("cache invalidation failed")
	}
}
