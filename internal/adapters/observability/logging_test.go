package observability_test

import (
	"testing"

	"github.com/rs/zerolog"

	"hotel_rates/internal/adapters/observability"
)

func TestNewLogger_Level(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := observability.NewLogger("prod", in).GetLevel(); got != want {
			t.Errorf("level %q: got %v want %v", in, got, want)
		}
	}
}
