package conviction

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/model"
)

func run(t *testing.T, events []model.TradeEvent, q Query) []model.ScreenerResult {
	t.Helper()
	results, err := NewScreener(DefaultCalibration()).Run(events, q, testNow)
	if err != nil {
		t.Fatalf("unexpected screener error: %v", err)
	}
	return results
}

func tickersOf(results []model.ScreenerResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Ticker
	}
	return out
}

// --- Validation ---

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Query)
		want   error
	}{
		{"negative days", func(q *Query) { q.Days = -1 }, ErrInvalidWindow},
		{"zero days is all time", func(q *Query) { q.Days = 0 }, nil},
		{"zero min_buyers", func(q *Query) { q.MinBuyers = 0 }, ErrInvalidMinBuyers},
		{"negative min_value", func(q *Query) {
			q.MinValue = decimal.NullDecimal{Decimal: d(-1), Valid: true}
		}, ErrInvalidMinValue},
		{"zero limit", func(q *Query) { q.Limit = 0 }, ErrInvalidLimit},
		{"limit above cap", func(q *Query) { q.Limit = MaxLimit + 1 }, ErrInvalidLimit},
		{"unknown sort", func(q *Query) { q.SortBy = "alphabetical" }, ErrInvalidSort},
		{"defaults valid", func(q *Query) {}, nil},
	}
	for _, tt := range tests {
		q := DefaultQuery()
		tt.modify(&q)
		err := q.Validate()
		if tt.want == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestParseSortField_Alias(t *testing.T) {
	// The frontend sends sort_by=conviction.
	got, err := ParseSortField("conviction")
	if err != nil || got != SortConviction {
		t.Errorf("expected conviction alias to parse, got %v (%v)", got, err)
	}
	if _, err := ParseSortField("bogus"); !errors.Is(err, ErrInvalidSort) {
		t.Errorf("expected ErrInvalidSort, got %v", err)
	}
}

// --- Filtering ---

func TestRun_MinBuyersExcludes(t *testing.T) {
	events := []model.TradeEvent{
		purchase("SOLO", "a", "", 1e9, 1), // huge score, one buyer
		purchase("DUO", "a", "", 100, 1),
		purchase("DUO", "b", "", 100, 1),
	}

	q := DefaultQuery()
	q.MinBuyers = 2
	results := run(t, events, q)

	if !reflect.DeepEqual(tickersOf(results), []string{"DUO"}) {
		t.Errorf("min_buyers=2 should exclude SOLO regardless of score, got %v", tickersOf(results))
	}
}

func TestRun_MinBuyersMonotonic(t *testing.T) {
	events := []model.TradeEvent{
		purchase("A", "x", "", 100, 1),
		purchase("B", "x", "", 100, 1), purchase("B", "y", "", 100, 1),
		purchase("C", "x", "", 100, 1), purchase("C", "y", "", 100, 1), purchase("C", "z", "", 100, 1),
	}

	prev := -1
	for minBuyers := 1; minBuyers <= 4; minBuyers++ {
		q := DefaultQuery()
		q.MinBuyers = minBuyers
		n := len(run(t, events, q))
		if prev >= 0 && n > prev {
			t.Errorf("raising min_buyers to %d grew the result set: %d > %d", minBuyers, n, prev)
		}
		prev = n
	}
}

func TestRun_ClusterFlagIndependentOfFilter(t *testing.T) {
	events := []model.TradeEvent{
		purchase("SOLO", "a", "", 100, 1),
		purchase("DUO", "a", "", 100, 1),
		purchase("DUO", "b", "", 100, 1),
	}

	// min_buyers=1 keeps both; the flag still uses the fixed threshold 2.
	results := run(t, events, DefaultQuery())
	for _, r := range results {
		want := r.DistinctBuyers >= 2
		if r.IsCluster != want {
			t.Errorf("%s: is_cluster=%v with %d buyers", r.Ticker, r.IsCluster, r.DistinctBuyers)
		}
	}
}

func TestRun_OfficerOnly(t *testing.T) {
	events := []model.TradeEvent{
		purchase("EXEC", "a", "Chief Executive Officer", 100, 1),
		purchase("OWNR", "b", "10% Owner", 100, 1),
	}

	q := DefaultQuery()
	q.OfficerOnly = true
	results := run(t, events, q)

	if !reflect.DeepEqual(tickersOf(results), []string{"EXEC"}) {
		t.Errorf("officer_only should keep EXEC only, got %v", tickersOf(results))
	}
}

func TestRun_MinValue(t *testing.T) {
	events := []model.TradeEvent{
		purchase("BIG", "a", "", 250000, 1),
		purchase("SMALL", "b", "", 5000, 1),
	}

	q := DefaultQuery()
	q.MinValue = decimal.NullDecimal{Decimal: d(100000), Valid: true}
	results := run(t, events, q)

	if !reflect.DeepEqual(tickersOf(results), []string{"BIG"}) {
		t.Errorf("min_value=100000 should keep BIG only, got %v", tickersOf(results))
	}
}

// --- Ordering ---

func TestRun_SortByConvictionDescending(t *testing.T) {
	events := []model.TradeEvent{
		purchase("LOW", "a", "", 100, 1),
		purchase("HIGH", "a", "CEO", 1000000, 1),
		purchase("HIGH", "b", "CFO", 1000000, 1),
		purchase("MID", "a", "", 50000, 1),
	}

	results := run(t, events, DefaultQuery())
	want := []string{"HIGH", "MID", "LOW"}
	if !reflect.DeepEqual(tickersOf(results), want) {
		t.Errorf("expected order %v, got %v", want, tickersOf(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].ConvictionScore > results[i-1].ConvictionScore {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestRun_TieBreakDeterministic(t *testing.T) {
	// Identical purchases: equal scores, equal values → ticker ascending.
	events := []model.TradeEvent{
		purchase("ZZZ", "a", "", 1000, 1),
		purchase("AAA", "a", "", 1000, 1),
		purchase("MMM", "a", "", 1000, 1),
	}

	want := []string{"AAA", "MMM", "ZZZ"}
	for i := 0; i < 5; i++ {
		results := run(t, events, DefaultQuery())
		if !reflect.DeepEqual(tickersOf(results), want) {
			t.Fatalf("run %d: expected %v, got %v", i, want, tickersOf(results))
		}
	}
}

func TestRun_TieBreakByTotalValue(t *testing.T) {
	// Same buyer count, sort by buyers: richer ticker first.
	events := []model.TradeEvent{
		purchase("POOR", "a", "", 1000, 1),
		purchase("RICH", "a", "", 9000, 1),
	}

	q := DefaultQuery()
	q.SortBy = SortBuyers
	results := run(t, events, q)

	if !reflect.DeepEqual(tickersOf(results), []string{"RICH", "POOR"}) {
		t.Errorf("equal buyers should tie-break on total value, got %v", tickersOf(results))
	}
}

func TestRun_SortByLatest(t *testing.T) {
	events := []model.TradeEvent{
		purchase("OLD", "a", "", 100, 20),
		purchase("NEW", "a", "", 100, 1),
	}

	q := DefaultQuery()
	q.SortBy = SortLatest
	results := run(t, events, q)

	if !reflect.DeepEqual(tickersOf(results), []string{"NEW", "OLD"}) {
		t.Errorf("expected newest first, got %v", tickersOf(results))
	}
}

func TestRun_LimitTruncates(t *testing.T) {
	events := []model.TradeEvent{
		purchase("A", "a", "", 100, 1),
		purchase("B", "a", "", 200, 1),
		purchase("C", "a", "", 300, 1),
	}

	q := DefaultQuery()
	q.Limit = 2
	results := run(t, events, q)

	if len(results) != 2 {
		t.Errorf("expected 2 results after truncation, got %d", len(results))
	}
}

func TestRun_Idempotent(t *testing.T) {
	events := []model.TradeEvent{
		purchase("AAPL", "a", "CEO", 50000, 2),
		purchase("AAPL", "b", "", 10000, 10),
		purchase("MSFT", "c", "CFO", 75000, 5),
		sale("AAPL", "d", 3),
	}

	first := run(t, events, DefaultQuery())
	second := run(t, events, DefaultQuery())

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must produce identical, identically-ordered output")
	}
}

func TestRun_EmptyHistory(t *testing.T) {
	results := run(t, nil, DefaultQuery())
	if len(results) != 0 {
		t.Errorf("empty history should produce empty output, got %d", len(results))
	}
}

func TestRun_InvalidQueryRejected(t *testing.T) {
	q := DefaultQuery()
	q.Days = -7
	_, err := NewScreener(DefaultCalibration()).Run(nil, q, testNow)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}
