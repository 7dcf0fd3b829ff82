package fulfillment

import (
	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
)

// LedgerEntry is the per-upstream-line breakdown shown next to a document.
type LedgerEntry struct {
	LineID    string          `json:"line_id"`
	ItemCode  string          `json:"item_code"`
	Ordered   decimal.Decimal `json:"ordered"`
	Committed decimal.Decimal `json:"committed"`
	Reserved  decimal.Decimal `json:"reserved"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Ledger builds the breakdown for every line of an upstream document.
func Ledger(upstream documents.TradeDocument, downstream []DownstreamLine) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(upstream.Lines))
	for _, line := range upstream.Lines {
		committed := Consumed(line, downstream)
		all := Consumed(line, downstream, Basis(Reserved))
		entries = append(entries, LedgerEntry{
			LineID:    line.ID,
			ItemCode:  line.ItemCode,
			Ordered:   line.Quantity,
			Committed: committed,
			Reserved:  all.Sub(committed),
			Remaining: Remaining(line, downstream),
		})
	}
	return entries
}

// AnyRemaining reports whether at least one line still has a positive remaining quantity.
func AnyRemaining(upstream documents.TradeDocument, downstream []DownstreamLine, opts ...Option) bool {
	for _, line := range upstream.Lines {
		if Remaining(line, downstream, opts...).IsPositive() {
			return true
		}
	}
	return false
}
