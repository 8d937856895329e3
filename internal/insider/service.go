// Package insider provides the HTTP handlers for ingesting insider trade
// events and serving trade listings, ticker summaries, and the signals
// screener.
//
// All monetary values use shopspring/decimal, never float64 for money.
package insider

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insiderdesk/signal-engine/internal/conviction"
	"github.com/insiderdesk/signal-engine/internal/filing"
	"github.com/insiderdesk/signal-engine/internal/metrics"
	"github.com/insiderdesk/signal-engine/internal/model"
	"github.com/insiderdesk/signal-engine/internal/store"
)

// List endpoint limits. The screener has its own caps in conviction.
const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Service handles trade ingestion and read queries. It holds no mutable
// state of its own: ingestion is append-only and the screener is a pure
// read, so concurrent requests need no coordination here.
type Service struct {
	store    store.Store
	screener *conviction.Screener
	wsHub    *WSHub // optional hub for real-time broadcasts
}

// NewService creates a new insider service with the given scoring
// calibration. Pass nil for hub if broadcasting is not needed.
func NewService(st store.Store, cal conviction.Calibration, hub *WSHub) *Service {
	return &Service{
		store:    st,
		screener: conviction.NewScreener(cal),
		wsHub:    hub,
	}
}

// --- Request types ---

// IngestRequest is the JSON body for POST /trades: one raw filing row.
// The transaction type is free text from the source feed and is classified
// here, once, into the enum.
type IngestRequest struct {
	Ticker          string              `json:"ticker"`
	CompanyName     string              `json:"company_name"`
	InsiderName     string              `json:"insider_name"`
	InsiderTitle    string              `json:"insider_title"`
	InsiderCIK      string              `json:"insider_cik"`
	TransactionType string              `json:"transaction_type"`
	Price           decimal.NullDecimal `json:"price"`
	Qty             decimal.NullDecimal `json:"qty"`
	Value           decimal.NullDecimal `json:"value"`
	TradeDate       string              `json:"trade_date"`  // YYYY-MM-DD
	FilingDate      string              `json:"filing_date"` // optional
}

// --- HTTP Handlers ---

// IngestTrade handles POST /api/v1/trades
func (s *Service) IngestTrade(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ticker, err := filing.NormalizeTicker(req.Ticker)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tradeDate, err := parseDate(req.TradeDate)
	if err != nil || tradeDate.IsZero() {
		writeError(w, "trade_date is required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	var filingDate time.Time
	if req.FilingDate != "" {
		if filingDate, err = parseDate(req.FilingDate); err != nil {
			writeError(w, "invalid filing_date (YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
	}

	if req.Value.Valid && req.Value.Decimal.IsNegative() {
		writeError(w, "value must be non-negative", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	event := &model.TradeEvent{
		ID:              uuid.New().String(),
		Ticker:          ticker,
		CompanyName:     req.CompanyName,
		InsiderID:       filing.InsiderKey(req.InsiderCIK, req.InsiderName, req.InsiderTitle),
		InsiderName:     req.InsiderName,
		InsiderTitle:    req.InsiderTitle,
		TransactionType: filing.Classify(req.TransactionType),
		Price:           req.Price,
		Qty:             req.Qty,
		Value:           req.Value,
		TradeDate:       tradeDate,
		FilingDate:      filingDate,
		ScrapedAt:       now,
	}

	ctx := r.Context()
	if err := s.store.InsertTrade(ctx, event); err != nil {
		writeError(w, "failed to store trade event", http.StatusInternalServerError)
		return
	}

	metrics.FilingsIngested.WithLabelValues(string(event.TransactionType)).Inc()
	slog.Info("filing ingested",
		"id", event.ID,
		"ticker", event.Ticker,
		"type", string(event.TransactionType),
		"insider", event.InsiderName,
		"trade_date", event.TradeDate.Format("2006-01-02"),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:            "filing_ingested",
			Ticker:          event.Ticker,
			TransactionType: string(event.TransactionType),
			InsiderName:     event.InsiderName,
			Value:           nullDecimalString(event.Value),
			TradeDate:       event.TradeDate.Format("2006-01-02"),
		})
	}

	if event.TransactionType == model.TxPurchase {
		s.checkClusterAlert(r, event)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(event)
}

// checkClusterAlert broadcasts a cluster alert when the ingested purchase
// makes its ticker a cluster buy within the default screener window.
func (s *Service) checkClusterAlert(r *http.Request, event *model.TradeEvent) {
	if s.wsHub == nil {
		return
	}

	now := time.Now().UTC()
	recent, err := s.store.ListTrades(r.Context(), store.TradeFilter{
		Ticker: event.Ticker,
		Type:   model.TxPurchase,
		Since:  now.AddDate(0, 0, -conviction.DefaultDays),
	})
	if err != nil {
		slog.Warn("cluster check skipped", "ticker", event.Ticker, "err", err)
		return
	}

	buyers := make(map[string]struct{})
	for _, e := range recent {
		if e.InsiderID != "" {
			buyers[e.InsiderID] = struct{}{}
		}
	}
	if !conviction.IsCluster(len(buyers)) {
		return
	}

	metrics.ClusterAlerts.Inc()
	slog.Info("cluster buy detected", "ticker", event.Ticker, "distinct_buyers", len(buyers))
	s.wsHub.Broadcast(WSMessage{
		Type:           "cluster_alert",
		Ticker:         event.Ticker,
		DistinctBuyers: len(buyers),
		InsiderName:    event.InsiderName,
		TradeDate:      event.TradeDate.Format("2006-01-02"),
	})
}

// ListTrades handles GET /api/v1/trades
// Filters: ?ticker= &type= &days= &min_value= &limit=
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	f, err := parseTradeFilter(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.store.ListTrades(r.Context(), f)
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.TradeEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// CountTrades handles GET /api/v1/trades/count
func (s *Service) CountTrades(w http.ResponseWriter, r *http.Request) {
	f, err := parseTradeFilter(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	count, err := s.store.CountTrades(r.Context(), f)
	if err != nil {
		writeError(w, "failed to count trades", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"count": count})
}

// ListTickers handles GET /api/v1/tickers
func (s *Service) ListTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := s.store.Tickers(r.Context())
	if err != nil {
		writeError(w, "failed to list tickers", http.StatusInternalServerError)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tickers)
}

// GetTickerSummary handles GET /api/v1/tickers/{ticker}/summary
func (s *Service) GetTickerSummary(w http.ResponseWriter, r *http.Request) {
	ticker, err := filing.NormalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := s.store.TickerSummary(r.Context(), ticker)
	if err != nil {
		writeError(w, "failed to load ticker summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// RunScreener handles GET /api/v1/screener
// Query: ?days= &min_buyers= &min_value= &officer_only= &sort_by= &limit=
func (s *Service) RunScreener(w http.ResponseWriter, r *http.Request) {
	q, err := parseScreenerQuery(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.store.History(r.Context())
	if err != nil {
		// Collaborator failure: propagate, do not retry here.
		writeError(w, "trade history unavailable", http.StatusInternalServerError)
		return
	}

	start := time.Now()
	results, err := s.screener.Run(events, q, time.Now().UTC())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	metrics.ScreenerRequests.WithLabelValues(string(q.SortBy)).Inc()
	metrics.ScreenerLatency.Observe(time.Since(start).Seconds())
	metrics.ScreenerResults.Observe(float64(len(results)))
	slog.Info("screener run",
		"days", q.Days,
		"min_buyers", q.MinBuyers,
		"officer_only", q.OfficerOnly,
		"sort_by", string(q.SortBy),
		"results", len(results),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// --- Query parsing ---

func parseTradeFilter(r *http.Request) (store.TradeFilter, error) {
	var f store.TradeFilter
	q := r.URL.Query()

	if t := q.Get("ticker"); t != "" {
		ticker, err := filing.NormalizeTicker(t)
		if err != nil {
			return f, err
		}
		f.Ticker = ticker
	}

	if t := q.Get("type"); t != "" {
		switch strings.ToLower(t) {
		case "purchase":
			f.Type = model.TxPurchase
		case "sale":
			f.Type = model.TxSale
		case "other":
			f.Type = model.TxOther
		default:
			return f, errors.New("type must be purchase, sale, or other")
		}
	}

	days, err := intParam(q.Get("days"), 0)
	if err != nil || days < 0 {
		return f, errors.New("days must be a non-negative integer")
	}
	if days > 0 {
		f.Since = time.Now().UTC().AddDate(0, 0, -days)
	}

	if v := q.Get("min_value"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return f, errors.New("min_value must be a non-negative number")
		}
		f.MinValue = decimal.NullDecimal{Decimal: d, Valid: true}
	}

	limit, err := intParam(q.Get("limit"), defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		return f, errors.New("limit must be between 1 and 500")
	}
	f.Limit = limit

	return f, nil
}

func parseScreenerQuery(r *http.Request) (conviction.Query, error) {
	q := conviction.DefaultQuery()
	params := r.URL.Query()

	days, err := intParam(params.Get("days"), q.Days)
	if err != nil {
		return q, errors.New("days must be an integer")
	}
	q.Days = days

	minBuyers, err := intParam(params.Get("min_buyers"), q.MinBuyers)
	if err != nil {
		return q, errors.New("min_buyers must be an integer")
	}
	q.MinBuyers = minBuyers

	if v := params.Get("min_value"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return q, errors.New("min_value must be a number")
		}
		q.MinValue = decimal.NullDecimal{Decimal: d, Valid: true}
	}

	switch strings.ToLower(params.Get("officer_only")) {
	case "", "false", "0", "no":
	case "true", "1", "yes":
		q.OfficerOnly = true
	default:
		return q, errors.New("officer_only must be a boolean")
	}

	sortBy, err := conviction.ParseSortField(params.Get("sort_by"))
	if err != nil {
		return q, err
	}
	q.SortBy = sortBy

	limit, err := intParam(params.Get("limit"), q.Limit)
	if err != nil {
		return q, errors.New("limit must be an integer")
	}
	q.Limit = limit

	// Range checks (days >= 0, min_buyers >= 1, limit bounds) are the
	// screener's own validation; let it produce the canonical errors.
	return q, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullDecimalString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
