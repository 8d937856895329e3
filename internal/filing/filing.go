// Package filing normalizes raw insider filing rows at the ingestion edge:
// ticker validation, transaction-type classification, insider identity keys,
// and officer-title detection.
//
// Classification happens exactly once, here. Scoring and display code work
// with the resulting enum and never re-derive meaning from free text.
package filing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/insiderdesk/signal-engine/internal/model"
)

var (
	// ErrInvalidTicker is returned for symbols that do not look like a
	// US-listed ticker after normalization.
	ErrInvalidTicker = errors.New("filing: invalid ticker symbol")
)

// tickerRegex matches normalized symbols: 1-10 chars, uppercase letters
// first, optional digits / class suffixes (BRK.B, RDS-A).
var tickerRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}([.\-][A-Z0-9]{1,4})?$`)

// NormalizeTicker uppercases and validates a raw ticker symbol.
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerRegex.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, raw)
	}
	return t, nil
}

// Classify maps a free-text transaction description to the enum.
// Source feeds use OpenInsider-style codes ("P - Purchase", "S - Sale + OE",
// "A - Grant", "M - OptEx", ...). Anything that is neither an open-market
// purchase nor a sale is Other: grants, option exercises, gifts, and tax
// withholding carry no buy/sell conviction.
func Classify(raw string) model.TransactionType {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return model.TxOther
	}

	switch {
	case strings.Contains(s, "purchase"):
		return model.TxPurchase
	case strings.Contains(s, "sale"):
		return model.TxSale
	}

	// Bare single-letter SEC Form 4 codes without the description.
	switch s {
	case "p", "buy":
		return model.TxPurchase
	case "s", "sell":
		return model.TxSale
	}
	return model.TxOther
}

// InsiderKey derives the stable identity of a filer. A filer CIK wins when
// present; otherwise the name+title pair identifies the insider, which is
// how the source feed disambiguates filers without CIKs. Returns "" when
// the row carries no identity at all.
func InsiderKey(cik, name, title string) string {
	if c := strings.TrimSpace(cik); c != "" {
		return "cik:" + c
	}
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return ""
	}
	return n + "|" + strings.ToLower(strings.TrimSpace(title))
}

// officerKeywords classify a filer title as officer/executive class.
// "Chief Executive Officer" etc. match via the "Officer" substring.
var officerKeywords = []string{"ceo", "cfo", "president", "officer", "director"}

// IsOfficer reports whether a filer title is officer/executive class.
func IsOfficer(title string) bool {
	t := strings.ToLower(title)
	for _, kw := range officerKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}
