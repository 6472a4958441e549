package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

/********** alias registries (single source of truth) **********/

var rateAliases = map[string][]string{
	"room_type": {"room_type_id", "roomTypeId", "room.id", "room_id"},
	"occupancy": {"occupancy_type_id", "occupancyTypeId", "occupancy.id", "occupancy_id"},
	"meal_plan": {"meal_plan_id", "mealPlanId", "board.id", "board_id"},
	"start":     {"start_date", "startDate", "date_from", "from", "valid_from"},
	"end":       {"end_date", "endDate", "date_to", "to", "valid_to"},
	"price":     {"price", "amount", "rate", "price.amount", "net_price"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstStrAlias: first non-empty string for a named alias set.
func firstStrAlias(m map[string]any, key string) string {
	for _, p := range rateAliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// firstInt64Alias: int64 from an alias set (float64/int/string). Values that
// are present but not whole numbers are an error, never truncated.
func firstInt64Alias(m map[string]any, key string) (*int64, error) {
	for _, k := range rateAliases[key] {
		switch v := lookupAny(m, k).(type) {
		case float64:
			if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
				return nil, fmt.Errorf("%s %v is not an integer id", k, v)
			}
			x := int64(v)
			return &x, nil
		case int:
			x := int64(v)
			return &x, nil
		case int64:
			x := v
			return &x, nil
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s %q is not an integer id", k, s)
			}
			return &n, nil
		}
	}
	return nil, nil
}

// firstDecimalAlias: price from an alias set; accepts "120,50" too.
func firstDecimalAlias(m map[string]any, key string) (decimal.Decimal, bool) {
	for _, k := range rateAliases[key] {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return decimal.NewFromFloat(v), true
		case int:
			return decimal.NewFromInt(int64(v)), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if d, err := decimal.NewFromString(s); err == nil {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func orZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

/********** mappers **********/

// mapRate turns one supplier rate row into a candidate. Missing fields are
// left zero so Validate reports them; unparseable dates are an error here.
func mapRate(hotelID int64, m map[string]any) (domain.Candidate, error) {
	c := domain.Candidate{Group: domain.GroupKey{HotelID: hotelID}}
	room, err := firstInt64Alias(m, "room_type")
	if err != nil {
		return c, err
	}
	occ, err := firstInt64Alias(m, "occupancy")
	if err != nil {
		return c, err
	}
	meal, err := firstInt64Alias(m, "meal_plan")
	if err != nil {
		return c, err
	}
	c.Group.RoomTypeID = orZero(room)
	c.Group.OccupancyTypeID = orZero(occ)
	c.Group.MealPlanID = meal

	if s := firstStrAlias(m, "start"); s != "" {
		d, err := domain.ParseDay(s)
		if err != nil {
			return c, fmt.Errorf("start date %q: %w", s, err)
		}
		c.Range.Start = d
	}
	if s := firstStrAlias(m, "end"); s != "" {
		d, err := domain.ParseDay(s)
		if err != nil {
			return c, fmt.Errorf("end date %q: %w", s, err)
		}
		c.Range.End = d
	}
	if price, ok := firstDecimalAlias(m, "price"); ok {
		c.Price = price
	} else {
		return c, fmt.Errorf("price missing")
	}
	return c, nil
}
