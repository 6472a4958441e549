package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// PlannedPeriod is a period the plan will create. Fragments keep the price of
// the period they were split from; the candidate itself has IsNew set.
type PlannedPeriod struct {
	Group     GroupKey
	Range     DateRange
	Price     decimal.Decimal
	IsNew     bool
	SplitFrom string // source period id, fragments only
}

func (p PlannedPeriod) Period() PricingPeriod {
	return PricingPeriod{Group: p.Group, Range: p.Range, Price: p.Price}
}

// ResolutionPlan is the diff that inserting a candidate applies to its group.
type ResolutionPlan struct {
	Candidate Candidate
	Affected  []PricingPeriod // overlapping periods, as detected
	ToDelete  []string
	ToCreate  []PlannedPeriod // ascending by start date
	WillSplit bool
}

// FindOverlapping filters a snapshot down to the periods of key that share a
// day with r, skipping excludeID. Result is ordered by start date then id.
func FindOverlapping(periods []PricingPeriod, key GroupKey, r DateRange, excludeID string) []PricingPeriod {
	var out []PricingPeriod
	for _, p := range periods {
		if !p.Group.Equal(key) {
			continue
		}
		if excludeID != "" && p.ID == excludeID {
			continue
		}
		if Overlaps(p.Range, r) {
			out = append(out, p)
		}
	}
	SortPeriods(out)
	return out
}

// SortPeriods orders periods by start date, then id.
func SortPeriods(ps []PricingPeriod) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].Range.Start.Equal(ps[j].Range.Start) {
			return ps[i].Range.Start.Before(ps[j].Range.Start)
		}
		return ps[i].ID < ps[j].ID
	})
}

// Resolve computes what inserting c does to the periods it overlaps: every
// overlapped period is deleted and whatever part of it lies outside c is
// recreated at its old price. c is appended as the new period. No I/O.
func Resolve(c Candidate, overlapping []PricingPeriod) ResolutionPlan {
	affected := append([]PricingPeriod(nil), overlapping...)
	SortPeriods(affected)

	plan := ResolutionPlan{Candidate: c, Affected: affected, WillSplit: len(affected) > 0}
	if c.ExcludeID != "" {
		plan.ToDelete = append(plan.ToDelete, c.ExcludeID)
	}
	for _, existing := range affected {
		plan.ToDelete = append(plan.ToDelete, existing.ID)
		if Contains(c.Range, existing.Range) {
			continue // replaced whole
		}
		for _, frag := range FragmentsOutside(existing.Range, c.Range) {
			plan.ToCreate = append(plan.ToCreate, PlannedPeriod{
				Group:     existing.Group,
				Range:     frag,
				Price:     existing.Price,
				SplitFrom: existing.ID,
			})
		}
	}
	plan.ToCreate = append(plan.ToCreate, PlannedPeriod{
		Group: c.Group,
		Range: c.Range,
		Price: c.Price,
		IsNew: true,
	})
	sort.SliceStable(plan.ToCreate, func(i, j int) bool {
		return plan.ToCreate[i].Range.Start.Before(plan.ToCreate[j].Range.Start)
	})
	return plan
}

// Fingerprint identifies the candidate and the set of periods the plan
// touches. Equal fingerprints mean the same split of the same insert.
func (p ResolutionPlan) Fingerprint() string {
	var b strings.Builder
	c := p.Candidate
	b.WriteString(c.Group.String())
	b.WriteByte('|')
	b.WriteString(c.Range.String())
	b.WriteByte('|')
	b.WriteString(c.Price.String())
	b.WriteByte('|')
	b.WriteString(c.ExcludeID)
	b.WriteByte('\n')
	for _, a := range p.Affected {
		b.WriteString(a.ID)
		b.WriteByte('|')
		b.WriteString(a.Range.String())
		b.WriteByte('|')
		b.WriteString(a.Price.String())
		b.WriteByte('\n')
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// AffectedIDs lists the ids of the overlapped periods in plan order.
func (p ResolutionPlan) AffectedIDs() []string {
	ids := make([]string, 0, len(p.Affected))
	for _, a := range p.Affected {
		ids = append(ids, a.ID)
	}
	return ids
}

// CheckNonOverlapping returns the first pair of periods of the same group that
// share a day, or ok=true if there is none.
func CheckNonOverlapping(ps []PricingPeriod) (a, b PricingPeriod, ok bool) {
	byGroup := map[string][]PricingPeriod{}
	for _, p := range ps {
		k := p.Group.String()
		byGroup[k] = append(byGroup[k], p)
	}
	for _, list := range byGroup {
		SortPeriods(list)
		for i := 1; i < len(list); i++ {
			if Overlaps(list[i-1].Range, list[i].Range) {
				return list[i-1], list[i], false
			}
		}
	}
	return PricingPeriod{}, PricingPeriod{}, true
}
