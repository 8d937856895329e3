// Package store defines the persistence interface for the trade event
// history. Implementations include PostgreSQL (source of truth), SQLite
// (single-user local mode), Redis (read-through cache), and in-memory
// (for testing).
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/model"
)

// TradeFilter narrows trade event listings. Zero values mean "no filter".
type TradeFilter struct {
	Ticker   string
	Type     model.TransactionType
	Since    time.Time // include trades on or after this date
	MinValue decimal.NullDecimal
	Limit    int // 0 = unlimited
}

// Store is the persistence interface. The event history is append-only:
// there is no update or delete path.
type Store interface {
	// InsertTrade appends an immutable trade event.
	InsertTrade(ctx context.Context, e *model.TradeEvent) error

	// ListTrades returns events matching the filter, newest trade first.
	ListTrades(ctx context.Context, f TradeFilter) ([]model.TradeEvent, error)

	// CountTrades returns the number of events matching the filter,
	// ignoring its Limit.
	CountTrades(ctx context.Context, f TradeFilter) (int, error)

	// History returns the full event history, the screener's input.
	History(ctx context.Context) ([]model.TradeEvent, error)

	// Tickers returns the distinct tickers seen, ascending.
	Tickers(ctx context.Context) ([]string, error)

	// TickerSummary returns all-time purchase/sale totals for one ticker.
	TickerSummary(ctx context.Context, ticker string) (*model.TickerSummary, error)
}
