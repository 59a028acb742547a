package reports

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestLinearForecast(t *testing.T) {
	if got := LinearForecast(nil); !got.IsZero() {
		t.Fatalf("empty series: expected 0, got %s", got)
	}

	if got := LinearForecast([]decimal.Decimal{d(42)}); !got.Equal(d(42)) {
		t.Fatalf("single point: expected 42, got %s", got)
	}

	// perfectly linear series continues the line
	got := LinearForecast([]decimal.Decimal{d(10), d(20), d(30)})
	if !got.Equal(d(40)) {
		t.Fatalf("linear series: expected 40, got %s", got)
	}

	// flat series stays flat
	got = LinearForecast([]decimal.Decimal{d(100), d(100), d(100), d(100)})
	if !got.Equal(d(100)) {
		t.Fatalf("flat series: expected 100, got %s", got)
	}

	// declining profit forecasts below the last observation
	got = LinearForecast([]decimal.Decimal{d(300), d(200), d(100)})
	if !got.Equal(d(0)) {
		t.Fatalf("declining series: expected 0, got %s", got)
	}
}
