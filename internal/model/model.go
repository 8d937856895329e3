// Package model defines the core domain types shared across the signal engine.
// All monetary values use shopspring/decimal, never float64 for money.
// Scores are ranks, not money, and stay float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the classification of an insider filing, decided once
// at ingestion. Downstream code never re-derives it from free text.
type TransactionType string

const (
	TxPurchase TransactionType = "Purchase"
	TxSale     TransactionType = "Sale"
	TxOther    TransactionType = "Other"
)

// TradeEvent is an immutable record of one insider transaction.
// Once ingested, these are never modified or deleted.
type TradeEvent struct {
	ID              string              `json:"id" db:"id"`
	Ticker          string              `json:"ticker" db:"ticker"`
	CompanyName     string              `json:"company_name,omitempty" db:"company_name"`
	InsiderID       string              `json:"insider_id" db:"insider_id"`
	InsiderName     string              `json:"insider_name,omitempty" db:"insider_name"`
	InsiderTitle    string              `json:"insider_title,omitempty" db:"insider_title"`
	TransactionType TransactionType     `json:"transaction_type" db:"transaction_type"`
	Price           decimal.NullDecimal `json:"price" db:"price"` // per-share, USD
	Qty             decimal.NullDecimal `json:"qty" db:"qty"`
	Value           decimal.NullDecimal `json:"value" db:"value"` // total, USD, >= 0 when present
	TradeDate       time.Time           `json:"trade_date" db:"trade_date"`
	FilingDate      time.Time           `json:"filing_date,omitempty" db:"filing_date"`
	ScrapedAt       time.Time           `json:"scraped_at" db:"scraped_at"`
}

// TickerAggregate is the per-ticker rollup for one screener window.
// Recomputed per query, never persisted, never mutated once built.
type TickerAggregate struct {
	Ticker          string          `json:"ticker"`
	CompanyName     string          `json:"company_name,omitempty"`
	WindowStart     time.Time       `json:"window_start"`
	WindowEnd       time.Time       `json:"window_end"`
	DistinctBuyers  int             `json:"distinct_buyers"`
	TotalTrades     int             `json:"total_trades"` // in-window purchases
	TotalValue      decimal.Decimal `json:"total_value"`  // in-window purchase value
	TotalBuysEver   int             `json:"total_buys_ever"`
	TotalSellsEver  int             `json:"total_sells_ever"`
	LatestTradeDate time.Time       `json:"latest_trade_date"`
	LatestInsider   string          `json:"latest_insider,omitempty"`
	LatestTitle     string          `json:"latest_title,omitempty"`

	// Purchases holds the in-window Purchase events the aggregate was built
	// from; the scorer consumes them. Not part of the wire format.
	Purchases []TradeEvent `json:"-"`
}

// ScreenerResult is one qualifying ticker in the screener output.
// Ordering is applied by the screener per request, not inherent here.
type ScreenerResult struct {
	TickerAggregate
	ConvictionScore float64             `json:"conviction_score"`
	IsCluster       bool                `json:"is_cluster"`
	Price           decimal.NullDecimal `json:"price"` // latest filing price seen for the ticker
}

// TickerSummary aggregates all-time insider activity for one ticker.
type TickerSummary struct {
	Ticker             string          `json:"ticker"`
	TotalPurchases     int             `json:"total_insider_purchases"`
	TotalSales         int             `json:"total_insider_sales"`
	TotalPurchaseValue decimal.Decimal `json:"total_insider_purchase_value"`
	TotalSaleValue     decimal.Decimal `json:"total_insider_sale_value"`
}
