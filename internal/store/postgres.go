package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const tradeColumns = `id, ticker, company_name, insider_id, insider_name, insider_title,
       transaction_type, price::TEXT, qty::TEXT, value::TEXT,
       trade_date, filing_date, scraped_at`

func (s *PostgresStore) InsertTrade(ctx context.Context, e *model.TradeEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_events
		   (id, ticker, company_name, insider_id, insider_name, insider_title,
		    transaction_type, price, qty, value, trade_date, filing_date, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11, $12, $13)`,
		e.ID, e.Ticker, e.CompanyName, e.InsiderID, e.InsiderName, e.InsiderTitle,
		string(e.TransactionType),
		nullDecimalArg(e.Price), nullDecimalArg(e.Qty), nullDecimalArg(e.Value),
		e.TradeDate, nullTimeArg(e.FilingDate), e.ScrapedAt,
	)
	return err
}

func (s *PostgresStore) ListTrades(ctx context.Context, f TradeFilter) ([]model.TradeEvent, error) {
	where, args := buildFilter(f)
	q := `SELECT ` + tradeColumns + ` FROM trade_events` + where +
		` ORDER BY trade_date DESC, scraped_at DESC`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) CountTrades(ctx context.Context, f TradeFilter) (int, error) {
	where, args := buildFilter(f)
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_events`+where, args...).Scan(&count)
	return count, err
}

func (s *PostgresStore) History(ctx context.Context) ([]model.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trade_events ORDER BY scraped_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
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

func (s *PostgresStore) TickerSummary(ctx context.Context, ticker string) (*model.TickerSummary, error) {
	var summary model.TickerSummary
	var buyValueS, sellValueS string

	err := s.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE transaction_type = 'Purchase'),
		   COUNT(*) FILTER (WHERE transaction_type = 'Sale'),
		   COALESCE(SUM(value) FILTER (WHERE transaction_type = 'Purchase'), 0)::TEXT,
		   COALESCE(SUM(value) FILTER (WHERE transaction_type = 'Sale'), 0)::TEXT
		 FROM trade_events WHERE ticker = $1`, ticker).
		Scan(&summary.TotalPurchases, &summary.TotalSales, &buyValueS, &sellValueS)
	if err != nil {
		return nil, fmt.Errorf("ticker summary %s: %w", ticker, err)
	}

	summary.Ticker = ticker
	summary.TotalPurchaseValue, _ = decimal.NewFromString(buyValueS)
	summary.TotalSaleValue, _ = decimal.NewFromString(sellValueS)
	return &summary, nil
}

// buildFilter renders a TradeFilter as a WHERE clause with positional args.
func buildFilter(f TradeFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Ticker != "" {
		add("ticker = $%d", f.Ticker)
	}
	if f.Type != "" {
		add("transaction_type = $%d", string(f.Type))
	}
	if !f.Since.IsZero() {
		add("trade_date >= $%d", f.Since)
	}
	if f.MinValue.Valid {
		add("value >= $%d::NUMERIC", f.MinValue.Decimal.String())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nullDecimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func nullTimeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// pgxRows is the subset of pgx.Rows scanTrades needs.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTrades(rows pgxRows) ([]model.TradeEvent, error) {
	var events []model.TradeEvent
	for rows.Next() {
		var e model.TradeEvent
		var txType string
		var priceS, qtyS, valueS *string
		var filingDate *time.Time

		if err := rows.Scan(&e.ID, &e.Ticker, &e.CompanyName, &e.InsiderID,
			&e.InsiderName, &e.InsiderTitle, &txType,
			&priceS, &qtyS, &valueS,
			&e.TradeDate, &filingDate, &e.ScrapedAt); err != nil {
			return nil, err
		}

		e.TransactionType = model.TransactionType(txType)
		e.Price = parseNullDecimal(priceS)
		e.Qty = parseNullDecimal(qtyS)
		e.Value = parseNullDecimal(valueS)
		if filingDate != nil {
			e.FilingDate = *filingDate
		}

		events = append(events, e)
	}
	return events, rows.Err()
}

func parseNullDecimal(s *string) decimal.NullDecimal {
	if s == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
