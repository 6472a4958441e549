package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

func TestCandidateValidate(t *testing.T) {
	ok := candidate(rng(1, 1, 1, 31), 100)
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}

	bad := domain.Candidate{
		Group: domain.GroupKey{HotelID: 1},
		Range: rng(1, 31, 1, 1),
		Price: decimal.NewFromInt(-1),
	}
	err := bad.Validate()
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *ValidationError, got %T", err)
	}
	fields := map[string]bool{}
	for _, p := range ve.Problems {
		fields[p.Field] = true
	}
	for _, f := range []string{"roomTypeId", "occupancyTypeId", "endDate", "price"} {
		if !fields[f] {
			t.Errorf("expected a problem for %s, got %+v", f, ve.Problems)
		}
	}
}

func TestCandidateValidate_PriceLimits(t *testing.T) {
	cases := []struct {
		price string
		ok    bool
	}{
		{"99.999", true},
		{"1.5000", true},
		{"1.50000", true}, // trailing zeros are not extra precision
		{"9999999999.9999", true},
		{"1.23456", false},
		{"10000000000", false},
	}
	for _, tc := range cases {
		c := candidate(rng(1, 1, 1, 31), 0)
		c.Price = decimal.RequireFromString(tc.price)
		err := c.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.price, err)
		}
		if !tc.ok && !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: want ErrValidation, got %v", tc.price, err)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	for in, want := range map[string]string{
		"100":      "100.00",
		"100.0000": "100.00",
		"90.5":     "90.50",
		"99.999":   "99.999",
		"0.0001":   "0.0001",
	} {
		if got := domain.FormatPrice(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatPrice(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestCandidateValidate_MissingDates(t *testing.T) {
	c := domain.Candidate{Group: key, Price: decimal.Zero}
	var ve *domain.ValidationError
	if !errors.As(c.Validate(), &ve) || len(ve.Problems) != 2 {
		t.Fatalf("want startDate and endDate problems, got %v", c.Validate())
	}
}

func TestGroupKey_StringAndEqual(t *testing.T) {
	meal := int64(4)
	withMeal := domain.GroupKey{HotelID: 1, RoomTypeID: 2, OccupancyTypeID: 3, MealPlanID: &meal}
	roomOnly := domain.GroupKey{HotelID: 1, RoomTypeID: 2, OccupancyTypeID: 3}

	if got := withMeal.String(); got != "1:2:3:4" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := roomOnly.String(); got != "1:2:3:-" {
		t.Fatalf("unexpected key %q", got)
	}
	if withMeal.Equal(roomOnly) || roomOnly.Equal(withMeal) {
		t.Fatal("meal plan must be part of the key")
	}
	other := int64(4)
	if !withMeal.Equal(domain.GroupKey{HotelID: 1, RoomTypeID: 2, OccupancyTypeID: 3, MealPlanID: &other}) {
		t.Fatal("equal meal plans by value should be equal keys")
	}
}

func TestParseDay(t *testing.T) {
	d, err := domain.ParseDay("2026-02-28")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Equal(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v", d)
	}
	if _, err := domain.ParseDay("28/02/2026"); err == nil {
		t.Fatal("expected parse error")
	}
}
