package conviction

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/model"
)

func scoreOf(t *testing.T, events []model.TradeEvent, days int) float64 {
	t.Helper()
	aggs := Aggregate(events, days, testNow)
	if len(aggs) != 1 {
		t.Fatalf("expected 1 aggregate, got %d", len(aggs))
	}
	return DefaultCalibration().Score(aggs[0], days, testNow)
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// Single $50k CFO purchase today, 30-day window:
// log10(50000) ≈ 4.699 × 1.5 officer × 1.0 decay ≈ 7.05, no cluster bonus.
func TestScore_SingleOfficerPurchase(t *testing.T) {
	events := []model.TradeEvent{
		purchase("ACME", "jane|cfo", "CFO", 50000, 0),
	}

	got := scoreOf(t, events, 30)
	if !near(got, 7.05, 0.01) {
		t.Errorf("expected score ≈ 7.05, got %f", got)
	}
}

// Two distinct non-officers buy $10k each today, 90-day window:
// 2 × log10(10000) = 8, plus (2-1) × 5 cluster bonus = 13.
func TestScore_ClusterBonus(t *testing.T) {
	events := []model.TradeEvent{
		purchase("ACME", "a", "10% Owner", 10000, 0),
		purchase("ACME", "b", "Beneficial Owner", 10000, 0),
	}

	got := scoreOf(t, events, 90)
	if !near(got, 13, 0.001) {
		t.Errorf("expected score ≈ 13, got %f", got)
	}
}

func TestScore_OfficerOutweighsNonOfficer(t *testing.T) {
	officer := scoreOf(t, []model.TradeEvent{
		purchase("ACME", "a", "President", 10000, 0),
	}, 30)
	plain := scoreOf(t, []model.TradeEvent{
		purchase("ACME", "a", "10% Owner", 10000, 0),
	}, 30)

	if !near(officer, plain*1.5, 0.001) {
		t.Errorf("officer score %f should be 1.5× plain score %f", officer, plain)
	}
}

func TestScore_RecencyDecay(t *testing.T) {
	fresh := scoreOf(t, []model.TradeEvent{purchase("ACME", "a", "", 10000, 0)}, 100)
	mid := scoreOf(t, []model.TradeEvent{purchase("ACME", "a", "", 10000, 50)}, 100)

	if !near(mid, fresh*0.5, 0.01) {
		t.Errorf("half-window-old purchase should score half: fresh=%f mid=%f", fresh, mid)
	}
}

func TestScore_DecayFloor(t *testing.T) {
	// A purchase from the very start of the window still counts at 20%.
	fresh := scoreOf(t, []model.TradeEvent{purchase("ACME", "a", "", 10000, 0)}, 30)
	boundary := scoreOf(t, []model.TradeEvent{purchase("ACME", "a", "", 10000, 30)}, 30)

	if !near(boundary, fresh*0.2, 0.01) {
		t.Errorf("boundary purchase should hit the 0.2 floor: fresh=%f boundary=%f", fresh, boundary)
	}
}

func TestScore_AllTimeNoDecay(t *testing.T) {
	// days == AllTime: no decay regardless of age.
	old := scoreOf(t, []model.TradeEvent{purchase("ACME", "a", "", 10000, 2000)}, AllTime)
	fresh := scoreOf(t, []model.TradeEvent{purchase("ACME", "a", "", 10000, 0)}, AllTime)

	if !near(old, fresh, 0.001) {
		t.Errorf("all-time window must not decay: old=%f fresh=%f", old, fresh)
	}
}

func TestScore_MissingValueContributesZero(t *testing.T) {
	// log10(max(nil→1)) = 0: the event adds nothing but still exists.
	got := scoreOf(t, []model.TradeEvent{
		event("ACME", "a", "CEO", model.TxPurchase, decimal.NullDecimal{}, 0),
	}, 30)

	if got != 0 {
		t.Errorf("missing value should contribute 0, got %f", got)
	}
}

func TestScore_NonNegative(t *testing.T) {
	histories := [][]model.TradeEvent{
		{purchase("ACME", "a", "", 0, 0)},
		{purchase("ACME", "a", "", 0.5, 29)},
		{event("ACME", "a", "", model.TxPurchase, decimal.NullDecimal{}, 15)},
		{purchase("ACME", "a", "CEO", 1, 30), purchase("ACME", "b", "", 1, 30)},
	}
	for i, events := range histories {
		if got := scoreOf(t, events, 30); got < 0 {
			t.Errorf("history %d: score must be non-negative, got %f", i, got)
		}
	}
}

func TestIsCluster(t *testing.T) {
	tests := []struct {
		buyers int
		want   bool
	}{
		{0, false},
		{1, false},
		{2, true},
		{5, true},
	}
	for _, tt := range tests {
		if got := IsCluster(tt.buyers); got != tt.want {
			t.Errorf("IsCluster(%d) = %v, want %v", tt.buyers, got, tt.want)
		}
	}
}
