package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/model"
)

// MemoryStore implements Store with an in-memory slice. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	events []model.TradeEvent
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertTrade(_ context.Context, e *model.TradeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context, f TradeFilter) ([]model.TradeEvent, error) {
	s.mu.RLock()
	matched := s.filter(f)
	s.mu.RUnlock()

	// Newest trade first, scrape time as tie-break, matching the SQL stores.
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].TradeDate.Equal(matched[j].TradeDate) {
			return matched[i].TradeDate.After(matched[j].TradeDate)
		}
		return matched[i].ScrapedAt.After(matched[j].ScrapedAt)
	})

	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (s *MemoryStore) CountTrades(_ context.Context, f TradeFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f.Limit = 0
	return len(s.filter(f)), nil
}

func (s *MemoryStore) History(_ context.Context) ([]model.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TradeEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryStore) Tickers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range s.events {
		seen[e.Ticker] = struct{}{}
	}
	tickers := make([]string, 0, len(seen))
	for t := range seen {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers, nil
}

func (s *MemoryStore) TickerSummary(_ context.Context, ticker string) (*model.TickerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &model.TickerSummary{
		Ticker:             ticker,
		TotalPurchaseValue: decimal.Zero,
		TotalSaleValue:     decimal.Zero,
	}
	for _, e := range s.events {
		if e.Ticker != ticker {
			continue
		}
		switch e.TransactionType {
		case model.TxPurchase:
			summary.TotalPurchases++
			if e.Value.Valid {
				summary.TotalPurchaseValue = summary.TotalPurchaseValue.Add(e.Value.Decimal)
			}
		case model.TxSale:
			summary.TotalSales++
			if e.Value.Valid {
				summary.TotalSaleValue = summary.TotalSaleValue.Add(e.Value.Decimal)
			}
		}
	}
	return summary, nil
}

// filter returns copies of events matching f, in insertion order.
// Callers must hold at least a read lock.
func (s *MemoryStore) filter(f TradeFilter) []model.TradeEvent {
	var matched []model.TradeEvent
	for _, e := range s.events {
		if f.Ticker != "" && e.Ticker != f.Ticker {
			continue
		}
		if f.Type != "" && e.TransactionType != f.Type {
			continue
		}
		if !f.Since.IsZero() && e.TradeDate.Before(f.Since) {
			continue
		}
		if f.MinValue.Valid {
			if !e.Value.Valid || e.Value.Decimal.LessThan(f.MinValue.Decimal) {
				continue
			}
		}
		matched = append(matched, e)
	}
	return matched
}
