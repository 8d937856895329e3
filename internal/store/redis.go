package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/insiderdesk/signal-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: the full history the screener consumes,
// the ticker list, and per-ticker summaries. Inserts go to the primary and
// invalidate the affected keys; the next read re-populates.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Writes (write to primary, invalidate cache) ---

func (s *CachedStore) InsertTrade(ctx context.Context, e *model.TradeEvent) error {
	if err := s.primary.InsertTrade(ctx, e); err != nil {
		return err
	}
	s.rdb.Del(ctx, historyKey, tickersKey, summaryKey(e.Ticker))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) History(ctx context.Context) ([]model.TradeEvent, error) {
	data, err := s.rdb.Get(ctx, historyKey).Bytes()
	if err == nil {
		var events []model.TradeEvent
		if json.Unmarshal(data, &events) == nil {
			return events, nil
		}
	}

	events, err := s.primary.History(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		s.rdb.Set(ctx, historyKey, data, s.ttl)
	}
	return events, nil
}

func (s *CachedStore) Tickers(ctx context.Context) ([]string, error) {
	data, err := s.rdb.Get(ctx, tickersKey).Bytes()
	if err == nil {
		var tickers []string
		if json.Unmarshal(data, &tickers) == nil {
			return tickers, nil
		}
	}

	tickers, err := s.primary.Tickers(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(tickers); err == nil {
		s.rdb.Set(ctx, tickersKey, data, s.ttl)
	}
	return tickers, nil
}

func (s *CachedStore) TickerSummary(ctx context.Context, ticker string) (*model.TickerSummary, error) {
	data, err := s.rdb.Get(ctx, summaryKey(ticker)).Bytes()
	if err == nil {
		var summary model.TickerSummary
		if json.Unmarshal(data, &summary) == nil {
			return &summary, nil
		}
	}

	summary, err := s.primary.TickerSummary(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(summary); err == nil {
		s.rdb.Set(ctx, summaryKey(ticker), data, s.ttl)
	}
	return summary, nil
}

// --- Passthrough (not cached; filter space is unbounded) ---

func (s *CachedStore) ListTrades(ctx context.Context, f TradeFilter) ([]model.TradeEvent, error) {
	return s.primary.ListTrades(ctx, f)
}

func (s *CachedStore) CountTrades(ctx context.Context, f TradeFilter) (int, error) {
	return s.primary.CountTrades(ctx, f)
}

// --- Cache keys ---

const (
	historyKey = "trades:history"
	tickersKey = "trades:tickers"
)

func summaryKey(ticker string) string { return "summary:" + ticker }
