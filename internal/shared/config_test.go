package shared

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("COMMIT_MAX_ATTEMPTS", "")
	t.Setenv("IMPORT_HOTEL_IDS", "")
	c := Load()
	if c.StoreDriver != "mysql" {
		t.Fatalf("default driver: %s", c.StoreDriver)
	}
	if c.CommitMaxAttempts != 3 || c.CommitTimeout != 5*time.Second {
		t.Fatalf("unexpected commit defaults: %+v", c)
	}
	if len(c.HotelIDs) != 0 {
		t.Fatalf("no hotels expected, got %v", c.HotelIDs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("COMMIT_MAX_ATTEMPTS", "0")
	t.Setenv("COMMIT_REQUIRE_TOKEN", "true")
	t.Setenv("IMPORT_HOTEL_IDS", "10, 20,x,30")
	c := Load()
	if c.StoreDriver != "postgres" {
		t.Fatalf("driver should be lowercased, got %s", c.StoreDriver)
	}
	if c.CommitMaxAttempts != 1 {
		t.Fatalf("attempts floor is 1, got %d", c.CommitMaxAttempts)
	}
	if !c.CommitRequireToken {
		t.Fatal("strict token mode should be on")
	}
	if want := []int64{10, 20, 30}; len(c.HotelIDs) != 3 || c.HotelIDs[2] != want[2] {
		t.Fatalf("want %v, got %v", want, c.HotelIDs)
	}
}
