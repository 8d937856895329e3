package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/insiderdesk/signal-engine/internal/model"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store backed by a local SQLite database. This is
// the single-user deployment mode: one file, no server. Decimals are
// stored as TEXT to keep exact values; timestamps as Unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trade_events (
	id               TEXT PRIMARY KEY,
	ticker           TEXT NOT NULL,
	company_name     TEXT NOT NULL DEFAULT '',
	insider_id       TEXT NOT NULL DEFAULT '',
	insider_name     TEXT NOT NULL DEFAULT '',
	insider_title    TEXT NOT NULL DEFAULT '',
	transaction_type TEXT NOT NULL,
	price            TEXT,
	qty              TEXT,
	value            TEXT,
	trade_date       INTEGER NOT NULL,
	filing_date      INTEGER,
	scraped_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_events_ticker ON trade_events(ticker);
CREATE INDEX IF NOT EXISTS idx_trade_events_trade_date ON trade_events(trade_date);
`

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertTrade(ctx context.Context, e *model.TradeEvent) error {
	var filingDate any
	if !e.FilingDate.IsZero() {
		filingDate = e.FilingDate.UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trade_events
		   (id, ticker, company_name, insider_id, insider_name, insider_title,
		    transaction_type, price, qty, value, trade_date, filing_date, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Ticker, e.CompanyName, e.InsiderID, e.InsiderName, e.InsiderTitle,
		string(e.TransactionType),
		nullDecimalArg(e.Price), nullDecimalArg(e.Qty), nullDecimalArg(e.Value),
		e.TradeDate.UnixNano(), filingDate, e.ScrapedAt.UnixNano(),
	)
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, f TradeFilter) ([]model.TradeEvent, error) {
	where, args := buildSQLiteFilter(f)
	q := `SELECT ` + sqliteColumns + ` FROM trade_events` + where +
		` ORDER BY trade_date DESC, scraped_at DESC`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteTrades(rows)
}

func (s *SQLiteStore) CountTrades(ctx context.Context, f TradeFilter) (int, error) {
	where, args := buildSQLiteFilter(f)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_events`+where, args...).Scan(&count)
	return count, err
}

func (s *SQLiteStore) History(ctx context.Context) ([]model.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM trade_events ORDER BY scraped_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteTrades(rows)
}

func (s *SQLiteStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ticker FROM trade_events ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func (s *SQLiteStore) TickerSummary(ctx context.Context, ticker string) (*model.TickerSummary, error) {
	summary := &model.TickerSummary{
		Ticker:             ticker,
		TotalPurchaseValue: decimal.Zero,
		TotalSaleValue:     decimal.Zero,
	}

	// SQLite has no exact NUMERIC; sum the TEXT decimals in Go instead.
	rows, err := s.db.QueryContext(ctx,
		`SELECT transaction_type, value FROM trade_events WHERE ticker = ?`, ticker)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var txType string
		var valueS sql.NullString
		if err := rows.Scan(&txType, &valueS); err != nil {
			return nil, err
		}
		var v decimal.Decimal
		if valueS.Valid {
			v, _ = decimal.NewFromString(valueS.String)
		}
		switch model.TransactionType(txType) {
		case model.TxPurchase:
			summary.TotalPurchases++
			summary.TotalPurchaseValue = summary.TotalPurchaseValue.Add(v)
		case model.TxSale:
			summary.TotalSales++
			summary.TotalSaleValue = summary.TotalSaleValue.Add(v)
		}
	}
	return summary, rows.Err()
}

const sqliteColumns = `id, ticker, company_name, insider_id, insider_name, insider_title,
       transaction_type, price, qty, value, trade_date, filing_date, scraped_at`

func buildSQLiteFilter(f TradeFilter) (string, []any) {
	var conds []string
	var args []any

	if f.Ticker != "" {
		conds = append(conds, "ticker = ?")
		args = append(args, f.Ticker)
	}
	if f.Type != "" {
		conds = append(conds, "transaction_type = ?")
		args = append(args, string(f.Type))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "trade_date >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if f.MinValue.Valid {
		conds = append(conds, "CAST(value AS REAL) >= ?")
		args = append(args, f.MinValue.Decimal.InexactFloat64())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanSQLiteTrades(rows *sql.Rows) ([]model.TradeEvent, error) {
	var events []model.TradeEvent
	for rows.Next() {
		var e model.TradeEvent
		var txType string
		var priceS, qtyS, valueS sql.NullString
		var tradeDate, scrapedAt int64
		var filingDate sql.NullInt64

		if err := rows.Scan(&e.ID, &e.Ticker, &e.CompanyName, &e.InsiderID,
			&e.InsiderName, &e.InsiderTitle, &txType,
			&priceS, &qtyS, &valueS,
			&tradeDate, &filingDate, &scrapedAt); err != nil {
			return nil, err
		}

		e.TransactionType = model.TransactionType(txType)
		e.Price = parseSQLiteDecimal(priceS)
		e.Qty = parseSQLiteDecimal(qtyS)
		e.Value = parseSQLiteDecimal(valueS)
		e.TradeDate = time.Unix(0, tradeDate).UTC()
		e.ScrapedAt = time.Unix(0, scrapedAt).UTC()
		if filingDate.Valid {
			e.FilingDate = time.Unix(0, filingDate.Int64).UTC()
		}

		events = append(events, e)
	}
	return events, rows.Err()
}

func parseSQLiteDecimal(s sql.NullString) decimal.NullDecimal {
	if !s.Valid {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
