package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"hotel_rates/internal/domain"
)

type QueryService struct {
	store    domain.PeriodStore
	cache    domain.Cache
	cacheTTL time.Duration
	sf       singleflight.Group
}

func NewQueryService(s domain.PeriodStore, c domain.Cache, ttl time.Duration) *QueryService {
	if ttl > maxListTTL {
		ttl = maxListTTL
	}
	return &QueryService{store: s, cache: c, cacheTTL: ttl}
}

// ListPeriods returns the group's periods, ordered by start date. The cache is
// bypassed while its generation cannot be read.
func (s *QueryService) ListPeriods(ctx context.Context, key domain.GroupKey) (domain.GroupPeriods, error) {
	ck := ""
	if s.cache != nil {
		gen, err := currentGen(ctx, s.cache, key)
		if err == nil {
			ck = listKey(key, gen)
		}
	}
	var out domain.GroupPeriods
	if ck != "" {
		if ok, _ := s.cache.Get(ctx, ck, &out); ok {
			return copyGroupPeriods(out), nil
		}
	}
	flight := ck
	if flight == "" {
		flight = "nocache:" + key.String()
	}
	v, err, _ := s.sf.Do(flight, func() (any, error) {
		ps, err := s.store.ListPeriods(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("list periods %s: %w", key, err)
		}
		page := domain.GroupPeriods{Items: domain.ViewsOf(ps)}
		if ck != "" {
			_ = s.cache.Set(ctx, ck, page, int(s.cacheTTL.Seconds()))
		}
		return page, nil
	})
	if err != nil {
		return domain.GroupPeriods{}, err
	}
	return copyGroupPeriods(v.(domain.GroupPeriods)), nil
}

// Preview shows what committing c would do. It reads a fresh snapshot, takes
// no lock and writes nothing, so it can be repeated freely.
func (s *QueryService) Preview(ctx context.Context, c domain.Candidate) (domain.PreviewResult, error) {
	if err := c.Validate(); err != nil {
		return domain.PreviewResult{}, err
	}
	existing, err := s.store.ListPeriods(ctx, c.Group)
	if err != nil {
		return domain.PreviewResult{}, fmt.Errorf("preview %s: %w", c.Group, err)
	}
	plan, err := planFor(c, existing)
	if err != nil {
		return domain.PreviewResult{}, err
	}
	return renderPreview(plan), nil
}

// planFor runs detection and resolution over one snapshot of the group.
func planFor(c domain.Candidate, existing []domain.PricingPeriod) (domain.ResolutionPlan, error) {
	if c.ExcludeID != "" && !containsID(existing, c.ExcludeID) {
		return domain.ResolutionPlan{}, fmt.Errorf("period %s in group %s: %w", c.ExcludeID, c.Group, domain.ErrNotFound)
	}
	overlapping := domain.FindOverlapping(existing, c.Group, c.Range, c.ExcludeID)
	return domain.Resolve(c, overlapping), nil
}

func containsID(ps []domain.PricingPeriod, id string) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}

func renderPreview(plan domain.ResolutionPlan) domain.PreviewResult {
	res := domain.PreviewResult{
		WillSplit:        plan.WillSplit,
		AffectedPeriods:  domain.ViewsOf(plan.Affected),
		ResultingPeriods: make([]domain.PlannedView, 0, len(plan.ToCreate)),
		ToDelete:         append([]string{}, plan.ToDelete...),
		Token:            plan.Fingerprint(),
	}
	for _, p := range plan.ToCreate {
		res.ResultingPeriods = append(res.ResultingPeriods, domain.PlannedViewOf(p))
	}
	switch n := len(plan.Affected); {
	case n == 0:
		res.Message = "No existing period overlaps; the new period will be added as is."
	case n == 1:
		res.Message = fmt.Sprintf("1 existing period will be split or replaced; %d period(s) will result.", len(plan.ToCreate))
	default:
		res.Message = fmt.Sprintf("%d existing periods will be split or replaced; %d period(s) will result.", n, len(plan.ToCreate))
	}
	return res
}

// copy slice so callers never alias a cached or shared singleflight value
func copyGroupPeriods(in domain.GroupPeriods) domain.GroupPeriods {
	out := domain.GroupPeriods{Items: make([]domain.PeriodView, len(in.Items))}
	copy(out.Items, in.Items)
	return out
}
