package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func nd(f float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(f), Valid: true}
}

var baseDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s Store, events ...model.TradeEvent) {
	t.Helper()
	for i := range events {
		if err := s.InsertTrade(context.Background(), &events[i]); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
}

func trade(id, ticker string, tx model.TransactionType, value decimal.NullDecimal, daysOffset int) model.TradeEvent {
	return model.TradeEvent{
		ID:              id,
		Ticker:          ticker,
		InsiderID:       "insider-" + id,
		TransactionType: tx,
		Value:           value,
		TradeDate:       baseDate.AddDate(0, 0, daysOffset),
		ScrapedAt:       baseDate.AddDate(0, 0, daysOffset).Add(time.Hour),
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s,
		trade("1", "AAPL", model.TxPurchase, nd(100), 0),
		trade("2", "AAPL", model.TxPurchase, nd(200), 5),
		trade("3", "AAPL", model.TxPurchase, nd(300), 2),
	)

	events, err := s.ListTrades(context.Background(), TradeFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if !reflect.DeepEqual(ids, []string{"2", "3", "1"}) {
		t.Errorf("expected newest first, got %v", ids)
	}
}

func TestMemoryStore_Filters(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s,
		trade("1", "AAPL", model.TxPurchase, nd(100), 0),
		trade("2", "AAPL", model.TxSale, nd(5000), 1),
		trade("3", "MSFT", model.TxPurchase, nd(9000), 2),
		trade("4", "MSFT", model.TxPurchase, decimal.NullDecimal{}, 3),
	)
	ctx := context.Background()

	byTicker, _ := s.ListTrades(ctx, TradeFilter{Ticker: "MSFT"})
	if len(byTicker) != 2 {
		t.Errorf("ticker filter: expected 2, got %d", len(byTicker))
	}

	byType, _ := s.ListTrades(ctx, TradeFilter{Type: model.TxPurchase})
	if len(byType) != 3 {
		t.Errorf("type filter: expected 3, got %d", len(byType))
	}

	since, _ := s.ListTrades(ctx, TradeFilter{Since: baseDate.AddDate(0, 0, 2)})
	if len(since) != 2 {
		t.Errorf("since filter: expected 2, got %d", len(since))
	}

	// min_value excludes null-value rows.
	byValue, _ := s.ListTrades(ctx, TradeFilter{MinValue: nd(1000)})
	if len(byValue) != 2 {
		t.Errorf("min_value filter: expected 2, got %d", len(byValue))
	}

	limited, _ := s.ListTrades(ctx, TradeFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit: expected 1, got %d", len(limited))
	}
}

func TestMemoryStore_CountIgnoresLimit(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s,
		trade("1", "AAPL", model.TxPurchase, nd(100), 0),
		trade("2", "AAPL", model.TxPurchase, nd(100), 1),
		trade("3", "AAPL", model.TxPurchase, nd(100), 2),
	)

	count, err := s.CountTrades(context.Background(), TradeFilter{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3 (limit ignored), got %d", count)
	}
}

func TestMemoryStore_HistoryKeepsInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s,
		trade("1", "AAPL", model.TxPurchase, nd(100), 5),
		trade("2", "MSFT", model.TxSale, nd(200), 0),
	)

	events, err := s.History(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].ID != "1" || events[1].ID != "2" {
		t.Errorf("history should preserve insertion order, got %v", events)
	}
}

func TestMemoryStore_Tickers(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s,
		trade("1", "MSFT", model.TxPurchase, nd(100), 0),
		trade("2", "AAPL", model.TxSale, nd(200), 1),
		trade("3", "AAPL", model.TxPurchase, nd(300), 2),
	)

	tickers, err := s.Tickers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(tickers, []string{"AAPL", "MSFT"}) {
		t.Errorf("expected deduplicated ascending tickers, got %v", tickers)
	}
}

func TestMemoryStore_TickerSummary(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s,
		trade("1", "AAPL", model.TxPurchase, nd(1000), 0),
		trade("2", "AAPL", model.TxPurchase, nd(2500), 1),
		trade("3", "AAPL", model.TxSale, nd(400), 2),
		trade("4", "AAPL", model.TxOther, nd(99), 3),
		trade("5", "MSFT", model.TxPurchase, nd(7777), 4),
	)

	summary, err := s.TickerSummary(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalPurchases != 2 || summary.TotalSales != 1 {
		t.Errorf("expected 2 purchases / 1 sale, got %d / %d",
			summary.TotalPurchases, summary.TotalSales)
	}
	if !summary.TotalPurchaseValue.Equal(d(3500)) {
		t.Errorf("expected purchase value 3500, got %s", summary.TotalPurchaseValue)
	}
	if !summary.TotalSaleValue.Equal(d(400)) {
		t.Errorf("expected sale value 400, got %s", summary.TotalSaleValue)
	}
}
