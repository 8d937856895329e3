package conviction

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/filing"
	"github.com/insiderdesk/signal-engine/internal/model"
)

var (
	// ErrInvalidWindow is returned when days is negative. 0 is the
	// all-time sentinel, not an error.
	ErrInvalidWindow = errors.New("conviction: days must be 0 (all time) or positive")

	// ErrInvalidMinBuyers is returned when min_buyers < 1.
	ErrInvalidMinBuyers = errors.New("conviction: min_buyers must be at least 1")

	// ErrInvalidMinValue is returned when min_value is negative.
	ErrInvalidMinValue = errors.New("conviction: min_value must be non-negative")

	// ErrInvalidLimit is returned when limit is outside (0, MaxLimit].
	ErrInvalidLimit = errors.New("conviction: limit must be between 1 and 200")

	// ErrInvalidSort is returned for unknown sort_by values.
	ErrInvalidSort = errors.New("conviction: unknown sort_by value")
)

// SortField selects the primary descending sort key of screener output.
type SortField string

const (
	SortConviction SortField = "conviction_score"
	SortTotalValue SortField = "total_value"
	SortBuyers     SortField = "distinct_buyers"
	SortLatest     SortField = "latest_trade_date"
)

// Screener query limits and defaults.
const (
	DefaultDays  = 90
	DefaultLimit = 200
	MaxLimit     = 200
)

// ParseSortField validates a sort_by value. "conviction" is accepted as an
// alias for "conviction_score" since that is what the frontend sends.
func ParseSortField(s string) (SortField, error) {
	switch s {
	case "", "conviction", string(SortConviction):
		return SortConviction, nil
	case string(SortTotalValue):
		return SortTotalValue, nil
	case string(SortBuyers):
		return SortBuyers, nil
	case string(SortLatest):
		return SortLatest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

// Query holds the caller-supplied screener parameters.
type Query struct {
	Days        int                 // look-back window, 0 = all time
	MinBuyers   int                 // minimum distinct in-window buyers
	MinValue    decimal.NullDecimal // minimum in-window purchase value
	OfficerOnly bool                // require >= 1 officer-class purchase
	SortBy      SortField
	Limit       int
}

// DefaultQuery returns the screener defaults: 90-day window, any buyer
// count, all roles, ranked by conviction, capped at 200 rows.
func DefaultQuery() Query {
	return Query{
		Days:      DefaultDays,
		MinBuyers: 1,
		SortBy:    SortConviction,
		Limit:     DefaultLimit,
	}
}

// Validate rejects malformed queries. These surface as 4xx to callers;
// nothing here is retryable.
func (q Query) Validate() error {
	if q.Days < 0 {
		return ErrInvalidWindow
	}
	if q.MinBuyers < 1 {
		return ErrInvalidMinBuyers
	}
	if q.MinValue.Valid && q.MinValue.Decimal.IsNegative() {
		return ErrInvalidMinValue
	}
	if q.Limit <= 0 || q.Limit > MaxLimit {
		return ErrInvalidLimit
	}
	if _, err := ParseSortField(string(q.SortBy)); err != nil {
		return err
	}
	return nil
}

// Screener turns a trade history and a query into a ranked result list.
// Stateless apart from its calibration; safe for concurrent use.
type Screener struct {
	cal Calibration
}

// NewScreener creates a screener with the given scoring calibration.
func NewScreener(cal Calibration) *Screener {
	return &Screener{cal: cal}
}

// Run aggregates, filters, scores, sorts, and truncates. Pure: identical
// inputs produce identical, identically-ordered output.
func (s *Screener) Run(events []model.TradeEvent, q Query, now time.Time) ([]model.ScreenerResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	aggs := Aggregate(events, q.Days, now)

	results := make([]model.ScreenerResult, 0, len(aggs))
	for _, agg := range aggs {
		if agg.DistinctBuyers < q.MinBuyers {
			continue
		}
		if q.OfficerOnly && !hasOfficerPurchase(agg) {
			continue
		}
		if q.MinValue.Valid && agg.TotalValue.LessThan(q.MinValue.Decimal) {
			continue
		}
		results = append(results, model.ScreenerResult{
			TickerAggregate: agg,
			ConvictionScore: s.cal.Score(agg, q.Days, now),
			IsCluster:       IsCluster(agg.DistinctBuyers),
			Price:           latestPrice(agg),
		})
	}

	sortResults(results, q.SortBy)

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func hasOfficerPurchase(agg model.TickerAggregate) bool {
	for _, e := range agg.Purchases {
		if filing.IsOfficer(e.InsiderTitle) {
			return true
		}
	}
	return false
}

// latestPrice is the per-share price from the newest in-window purchase
// that carries one.
func latestPrice(agg model.TickerAggregate) decimal.NullDecimal {
	var best model.TradeEvent
	bestIdx := -1
	var price decimal.NullDecimal
	for i, e := range agg.Purchases {
		if !e.Price.Valid {
			continue
		}
		if !price.Valid || newerPurchase(e, i, best, bestIdx) {
			best, bestIdx, price = e, i, e.Price
		}
	}
	return price
}

// sortResults orders descending by the primary key, breaking ties by
// total value descending then ticker ascending, so repeated calls never
// reorder equal entries.
func sortResults(results []model.ScreenerResult, field SortField) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if c := comparePrimary(a, b, field); c != 0 {
			return c > 0
		}
		if c := a.TotalValue.Cmp(b.TotalValue); c != 0 {
			return c > 0
		}
		return a.Ticker < b.Ticker
	})
}

// comparePrimary returns >0 if a outranks b on the sort field.
func comparePrimary(a, b model.ScreenerResult, field SortField) int {
	switch field {
	case SortTotalValue:
		return a.TotalValue.Cmp(b.TotalValue)
	case SortBuyers:
		return a.DistinctBuyers - b.DistinctBuyers
	case SortLatest:
		return a.LatestTradeDate.Compare(b.LatestTradeDate)
	default: // SortConviction
		switch {
		case a.ConvictionScore > b.ConvictionScore:
			return 1
		case a.ConvictionScore < b.ConvictionScore:
			return -1
		}
		return 0
	}
}
