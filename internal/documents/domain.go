// Package documents holds the trade document model shared by every chain kind and the lifecycle
// state machine that gates its mutability.
package documents

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// DOCUMENT KIND
// ============================================================================

// Kind identifies a trade document type along the chain.
type Kind string

const (
	KindOrder         Kind = "Order"         // Sales order
	KindDelivery      Kind = "Delivery"      // Delivery note derived from an order
	KindReturn        Kind = "Return"        // Sales return derived from a delivery
	KindReceipt       Kind = "Receipt"       // Purchase receipt derived from a purchase order
	KindPurchaseOrder Kind = "PurchaseOrder" // Upstream of a receipt
)

// ParseKind converts external input into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown document kind %q", s)
	}
	return k, nil
}

// IsValid checks if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindOrder, KindDelivery, KindReturn, KindReceipt, KindPurchaseOrder:
		return true
	default:
		return false
	}
}

// ============================================================================
// DOCUMENT ENTITY
// ============================================================================

// UpstreamRef is a weak reference to the line a derived line was copied from.
type UpstreamRef struct {
	Kind       Kind   `json:"kind"`
	DocumentID string `json:"document_id"`
	LineID     string `json:"line_id"`
}

// LineItem is a single row of a trade document.
type LineItem struct {
	ID           string          `json:"id,omitempty"`
	ItemCode     string          `json:"item_code"`
	ItemName     string          `json:"item_name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
	Warehouse    string          `json:"warehouse,omitempty"`
	UOM          string          `json:"uom,omitempty"`
	QtyPrecision int32           `json:"qty_precision"`
	Upstream     *UpstreamRef    `json:"upstream,omitempty"`
	DeliveredQty decimal.Decimal `json:"delivered_qty"`
	ReturnedQty  decimal.Decimal `json:"returned_qty"`
	ReturnReason ReturnReason    `json:"return_reason,omitempty"`
	ReturnNotes  string          `json:"return_notes,omitempty"`
}

// TradeDocument is a header plus its ordered lines.
type TradeDocument struct {
	ID          string     `json:"id,omitempty"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Company     string     `json:"company"`
	Party       string     `json:"party"`
	PostingDate time.Time  `json:"posting_date"`
	Currency    string     `json:"currency,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Remarks     string     `json:"remarks,omitempty"`
	DraftKey    string     `json:"draft_key,omitempty"`
	Lines       []LineItem `json:"lines"`
}

// ListFilter narrows a header listing.
type ListFilter struct {
	Company  string
	Party    string
	Statuses []Status
	Offset   int
	Limit    int
}

// RoundQty rounds a quantity to the line's stock-unit precision.
func (l LineItem) RoundQty(q decimal.Decimal) decimal.Decimal {
	return q.Round(l.QtyPrecision)
}

// ComputeAmount returns quantity × rate at two-decimal rounding.
func ComputeAmount(qty, rate decimal.Decimal) decimal.Decimal {
	return qty.Mul(rate).Round(2)
}

// WithQuantity returns a copy of the line with the quantity replaced and the amount recomputed.
func (l LineItem) WithQuantity(q decimal.Decimal) LineItem {
	l.Quantity = l.RoundQty(q)
	l.Amount = ComputeAmount(l.Quantity, l.Rate)
	return l
}

// IsDerived reports whether the line was copied from an upstream line.
func (l LineItem) IsDerived() bool {
	return l.Upstream != nil && l.Upstream.LineID != ""
}

// Recalculate restores the amount invariant on every line.
func (d *TradeDocument) Recalculate() {
	for i := range d.Lines {
		d.Lines[i] = d.Lines[i].WithQuantity(d.Lines[i].Quantity)
	}
}

// Total sums line amounts.
func (d TradeDocument) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Amount)
	}
	return total
}

// PositiveLines counts lines with a quantity above zero.
func (d TradeDocument) PositiveLines() int {
	n := 0
	for _, l := range d.Lines {
		if l.Quantity.IsPositive() {
			n++
		}
	}
	return n
}

// Line finds a line by ID.
func (d TradeDocument) Line(id string) (LineItem, bool) {
	for _, l := range d.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return LineItem{}, false
}

// UpstreamDocuments lists the distinct upstream documents referenced by the lines, in first-seen order.
func (d TradeDocument) UpstreamDocuments() []UpstreamRef {
	seen := make(map[string]struct{})
	var refs []UpstreamRef
	for _, l := range d.Lines {
		if !l.IsDerived() {
			continue
		}
		key := string(l.Upstream.Kind) + "/" + l.Upstream.DocumentID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, UpstreamRef{Kind: l.Upstream.Kind, DocumentID: l.Upstream.DocumentID})
	}
	return refs
}

// ============================================================================
// RETURN REASONS
// ============================================================================

// ReturnReason is the predefined reason attached to a returned line.
type ReturnReason string

const (
	ReasonDamaged         ReturnReason = "Damaged"
	ReasonWrongItem       ReturnReason = "Wrong Item"
	ReasonQualityIssue    ReturnReason = "Quality Issue"
	ReasonCustomerRequest ReturnReason = "Customer Request"
	ReasonExpired         ReturnReason = "Expired"
	ReasonOther           ReturnReason = "Other"
)

// IsValid checks if the reason is one of the predefined values.
func (r ReturnReason) IsValid() bool {
	switch r {
	case ReasonDamaged, ReasonWrongItem, ReasonQualityIssue, ReasonCustomerRequest, ReasonExpired, ReasonOther:
		return true
	default:
		return false
	}
}
