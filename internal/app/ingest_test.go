package app_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/storage/memory"
)

type fakeFeed struct {
	rows map[int64][]map[string]any
	err  error
}

func (f *fakeFeed) GetRates(ctx context.Context, hotelID int64) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	rows, ok := f.rows[hotelID]
	if !ok {
		return nil, fmt.Errorf("supplier: %w", domain.ErrNotFound)
	}
	return rows, nil
}

func TestImportHotel_AppliesRowsInFeedOrder(t *testing.T) {
	feed := &fakeFeed{rows: map[int64][]map[string]any{
		42: {
			{"room_type_id": 3.0, "occupancy_type_id": 2.0, "date_from": "2026-01-01", "date_to": "2026-01-31", "price": "100.00"},
			// later row splits the first one
			{"roomTypeId": "3", "occupancy": map[string]any{"id": 2.0}, "startDate": "2026-01-10", "endDate": "2026-01-20", "amount": 150.0},
			// missing price
			{"room_type_id": 3.0, "occupancy_type_id": 2.0, "date_from": "2026-02-01", "date_to": "2026-02-05"},
			// reversed dates fail validation
			{"room_type_id": 3.0, "occupancy_type_id": 2.0, "date_from": "2026-03-10", "date_to": "2026-03-01", "price": 90.0},
		},
	}}
	st := memory.New()
	cmd := app.NewCommandService(st, nil, testOpts())
	imp := app.NewImportService(feed, cmd)

	rep, err := imp.ImportHotel(context.Background(), 42)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if rep.Fetched != 4 || rep.Committed != 2 || rep.Invalid != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	want := []string{"2026-01-01..2026-01-09 @ 100.00", "2026-01-10..2026-01-20 @ 150.00", "2026-01-21..2026-01-31 @ 100.00"}
	if got := listLabels(t, st); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestImportHotel_MissingHotelIsNotAnError(t *testing.T) {
	imp := app.NewImportService(&fakeFeed{}, app.NewCommandService(memory.New(), nil, testOpts()))
	rep, err := imp.ImportHotel(context.Background(), 7)
	if err != nil || !rep.Missing {
		t.Fatalf("want missing report, got %+v / %v", rep, err)
	}
}

func TestImportHotel_FeedErrorBubblesUp(t *testing.T) {
	boom := errors.New("remote 502")
	imp := app.NewImportService(&fakeFeed{err: boom}, app.NewCommandService(memory.New(), nil, testOpts()))
	if _, err := imp.ImportHotel(context.Background(), 7); !errors.Is(err, boom) {
		t.Fatalf("want feed error, got %v", err)
	}
}

func TestImportHotel_StorageErrorStops(t *testing.T) {
	feed := &fakeFeed{rows: map[int64][]map[string]any{
		42: {{"room_type_id": 3.0, "occupancy_type_id": 2.0, "date_from": "2026-01-01", "date_to": "2026-01-31", "price": "100"}},
	}}
	st := &faultyStore{Store: memory.New(), failures: 100}
	imp := app.NewImportService(feed, app.NewCommandService(st, nil, testOpts()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := imp.ImportHotel(ctx, 42); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("want storage error, got %v", err)
	}
}
