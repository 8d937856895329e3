// Package conviction implements the insider activity scoring engine:
// per-ticker aggregation over a rolling look-back window, conviction
// scoring with recency decay and officer weighting, cluster-buy detection,
// and the screener that filters and ranks the results.
//
// The whole package is a pure function of (trade history, query, now):
// no I/O, no shared state, safe for concurrent use.
//
// All monetary values use shopspring/decimal, never float64 for money.
// Scores are ranks, not money; scoring internals run on float64 because
// log10 and decay are transcendental.
package conviction

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/model"
)

// AllTime is the sentinel window meaning "no look-back cutoff".
const AllTime = 0

// Aggregate groups trade events by ticker over the look-back window ending
// at now. days == AllTime disables the cutoff. One TickerAggregate is
// produced per ticker with at least one in-window Purchase; tickers with
// sales or grants only never qualify. Events without a trade date are
// ignored entirely.
//
// Results are sorted by ticker for determinism; callers re-order.
func Aggregate(events []model.TradeEvent, days int, now time.Time) []model.TickerAggregate {
	var windowStart time.Time
	if days > AllTime {
		windowStart = now.AddDate(0, 0, -days)
	}

	type rollup struct {
		agg       model.TickerAggregate
		buyers    map[string]struct{}
		latest    model.TradeEvent
		latestIdx int
		hasLatest bool
	}

	rollups := make(map[string]*rollup)

	for i, e := range events {
		if e.TradeDate.IsZero() {
			continue
		}

		r, ok := rollups[e.Ticker]
		if !ok {
			r = &rollup{
				agg: model.TickerAggregate{
					Ticker:      e.Ticker,
					WindowStart: windowStart,
					WindowEnd:   now,
					TotalValue:  decimal.Zero,
				},
				buyers: make(map[string]struct{}),
			}
			rollups[e.Ticker] = r
		}
		if r.agg.CompanyName == "" && e.CompanyName != "" {
			r.agg.CompanyName = e.CompanyName
		}

		// All-time counts are independent of the window.
		switch e.TransactionType {
		case model.TxPurchase:
			r.agg.TotalBuysEver++
		case model.TxSale:
			r.agg.TotalSellsEver++
		}

		if e.TransactionType != model.TxPurchase || !inWindow(e.TradeDate, windowStart, now, days) {
			continue
		}

		r.agg.TotalTrades++
		r.agg.Purchases = append(r.agg.Purchases, e)
		r.agg.TotalValue = r.agg.TotalValue.Add(purchaseValue(e))
		if e.InsiderID != "" {
			r.buyers[e.InsiderID] = struct{}{}
		}
		if !r.hasLatest || newerPurchase(e, i, r.latest, r.latestIdx) {
			r.latest, r.latestIdx, r.hasLatest = e, i, true
		}
	}

	out := make([]model.TickerAggregate, 0, len(rollups))
	for _, r := range rollups {
		if r.agg.TotalTrades == 0 {
			continue
		}
		r.agg.DistinctBuyers = len(r.buyers)
		r.agg.LatestTradeDate = r.latest.TradeDate
		r.agg.LatestInsider = r.latest.InsiderName
		r.agg.LatestTitle = r.latest.InsiderTitle
		out = append(out, r.agg)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func inWindow(d, windowStart, now time.Time, days int) bool {
	if days == AllTime {
		return true
	}
	return !d.Before(windowStart) && !d.After(now)
}

// purchaseValue is the summable value of a purchase: missing or negative
// values count as zero rather than poisoning the total.
func purchaseValue(e model.TradeEvent) decimal.Decimal {
	if !e.Value.Valid || e.Value.Decimal.IsNegative() {
		return decimal.Zero
	}
	return e.Value.Decimal
}

// newerPurchase decides whether candidate should replace current as the
// latest in-window purchase. Equal trade dates fall back to filing date,
// then scrape time, then input order.
func newerPurchase(cand model.TradeEvent, candIdx int, cur model.TradeEvent, curIdx int) bool {
	if !cand.TradeDate.Equal(cur.TradeDate) {
		return cand.TradeDate.After(cur.TradeDate)
	}
	if !cand.FilingDate.Equal(cur.FilingDate) {
		return cand.FilingDate.After(cur.FilingDate)
	}
	if !cand.ScrapedAt.Equal(cur.ScrapedAt) {
		return cand.ScrapedAt.After(cur.ScrapedAt)
	}
	return candIdx > curIdx
}
