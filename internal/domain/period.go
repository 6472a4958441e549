package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// GroupKey scopes non-overlap enforcement: one hotel, room type, occupancy
// type and (optional) meal plan.
type GroupKey struct {
	HotelID         int64
	RoomTypeID      int64
	OccupancyTypeID int64
	MealPlanID      *int64 // nil = room only / no meal plan
}

// String is the canonical form used for cache keys, lock names and logs.
func (k GroupKey) String() string {
	meal := "-"
	if k.MealPlanID != nil {
		meal = strconv.FormatInt(*k.MealPlanID, 10)
	}
	return fmt.Sprintf("%d:%d:%d:%s", k.HotelID, k.RoomTypeID, k.OccupancyTypeID, meal)
}

func (k GroupKey) Equal(o GroupKey) bool {
	if k.HotelID != o.HotelID || k.RoomTypeID != o.RoomTypeID || k.OccupancyTypeID != o.OccupancyTypeID {
		return false
	}
	if k.MealPlanID == nil || o.MealPlanID == nil {
		return k.MealPlanID == nil && o.MealPlanID == nil
	}
	return *k.MealPlanID == *o.MealPlanID
}

type PricingPeriod struct {
	ID    string // empty until persisted
	Group GroupKey
	Range DateRange
	Price decimal.Decimal
}

// Label is the human-readable line shown in previews.
func (p PricingPeriod) Label() string {
	return fmt.Sprintf("%s @ %s", p.Range, FormatPrice(p.Price))
}

// Stored prices are DECIMAL(14,4).
const MaxPriceScale = 4

var priceLimit = decimal.New(1, 10)

// FormatPrice renders at least two decimals and never rounds: 100 is
// "100.00", 99.999 stays "99.999".
func FormatPrice(d decimal.Decimal) string {
	places := 0
	if s := d.String(); strings.Contains(s, ".") {
		places = len(s) - strings.IndexByte(s, '.') - 1
	}
	if places < 2 {
		places = 2
	}
	return d.StringFixed(int32(places))
}

// Candidate is a period a caller wants to insert. ExcludeID is set when the
// candidate replaces (edits) an existing period.
type Candidate struct {
	Group     GroupKey
	Range     DateRange
	Price     decimal.Decimal
	ExcludeID string
}

// Validate rejects malformed candidates before any overlap computation.
func (c Candidate) Validate() error {
	var probs []FieldProblem
	if c.Group.HotelID <= 0 {
		probs = append(probs, FieldProblem{Field: "hotelId", Reason: "required"})
	}
	if c.Group.RoomTypeID <= 0 {
		probs = append(probs, FieldProblem{Field: "roomTypeId", Reason: "required"})
	}
	if c.Group.OccupancyTypeID <= 0 {
		probs = append(probs, FieldProblem{Field: "occupancyTypeId", Reason: "required"})
	}
	if c.Group.MealPlanID != nil && *c.Group.MealPlanID <= 0 {
		probs = append(probs, FieldProblem{Field: "mealPlanId", Reason: "must be positive when set"})
	}
	if c.Range.Start.IsZero() {
		probs = append(probs, FieldProblem{Field: "startDate", Reason: "required"})
	}
	if c.Range.End.IsZero() {
		probs = append(probs, FieldProblem{Field: "endDate", Reason: "required"})
	}
	if !c.Range.Start.IsZero() && !c.Range.End.IsZero() && !c.Range.Valid() {
		probs = append(probs, FieldProblem{Field: "endDate", Reason: "must not be before startDate"})
	}
	switch {
	case c.Price.IsNegative():
		probs = append(probs, FieldProblem{Field: "price", Reason: "must be >= 0"})
	case !c.Price.Equal(c.Price.Truncate(MaxPriceScale)):
		probs = append(probs, FieldProblem{Field: "price", Reason: fmt.Sprintf("at most %d decimal places", MaxPriceScale)})
	case c.Price.GreaterThanOrEqual(priceLimit):
		probs = append(probs, FieldProblem{Field: "price", Reason: "must be less than " + priceLimit.String()})
	}
	if len(probs) > 0 {
		return &ValidationError{Problems: probs}
	}
	return nil
}

// Period returns the candidate as an unpersisted period.
func (c Candidate) Period() PricingPeriod {
	return PricingPeriod{Group: c.Group, Range: c.Range, Price: c.Price}
}
