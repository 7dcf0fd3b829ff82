// Package fulfillment computes how much of an upstream line is still available to downstream documents.
// Remaining quantities are derived from the chain on every call and never stored.
package fulfillment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// DownstreamLine is a line of a downstream document together with the header fields the tracker needs.
type DownstreamLine struct {
	Line       documents.LineItem
	DocumentID string
	Status     documents.Status
}

// ConsumptionBasis selects which downstream statuses count as consumption.
type ConsumptionBasis int

const (
	// Committed counts Submitted and Completed documents.
	Committed ConsumptionBasis = iota
	// Reserved additionally counts Draft documents.
	Reserved
)

type options struct {
	basis    ConsumptionBasis
	excluded string
}

// Option tunes a Remaining computation.
type Option func(*options)

// Excluding ignores lines belonging to the given document, typically the document under validation.
func Excluding(documentID string) Option {
	return func(o *options) { o.excluded = documentID }
}

// Basis sets the consumption basis. Defaults to Committed.
func Basis(b ConsumptionBasis) Option {
	return func(o *options) { o.basis = b }
}

func (o options) counts(d DownstreamLine) bool {
	if o.excluded != "" && d.DocumentID == o.excluded {
		return false
	}
	switch d.Status {
	case documents.StatusSubmitted, documents.StatusCompleted:
		return true
	case documents.StatusDraft:
		return o.basis == Reserved
	default:
		return false
	}
}

func references(upstream documents.LineItem, d DownstreamLine) bool {
	return d.Line.IsDerived() && d.Line.Upstream.LineID == upstream.ID
}

// Consumed sums downstream quantities referencing upstream under the given options.
func Consumed(upstream documents.LineItem, downstream []DownstreamLine, opts ...Option) decimal.Decimal {
	o := options{basis: Committed}
	for _, opt := range opts {
		opt(&o)
	}
	total := decimal.Zero
	for _, d := range downstream {
		if !references(upstream, d) || !o.counts(d) {
			continue
		}
		total = total.Add(d.Line.Quantity.Abs())
	}
	return total
}

// Remaining returns upstream.Quantity minus consumption, clamped at zero.
func Remaining(upstream documents.LineItem, downstream []DownstreamLine, opts ...Option) decimal.Decimal {
	rem := upstream.Quantity.Sub(Consumed(upstream, downstream, opts...))
	if rem.IsNegative() {
		return decimal.Zero
	}
	return upstream.RoundQty(rem)
}

// Overconsumed reports whether downstream consumption exceeds the upstream quantity. It indicates data
// created outside this service, since submits are re-validated.
func Overconsumed(upstream documents.LineItem, downstream []DownstreamLine) bool {
	return Consumed(upstream, downstream).GreaterThan(upstream.Quantity)
}

// ExceededError describes a request above the remaining quantity.
type ExceededError struct {
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("jumlah %s melebihi sisa %s", shared.FormatQty(e.Requested), shared.FormatQty(e.Remaining))
}

// Unwrap exposes ErrFulfillmentExceeded to errors.Is.
func (e *ExceededError) Unwrap() error { return shared.ErrFulfillmentExceeded }

// ValidateRequested compares both quantities at the given precision. It never clamps the request.
func ValidateRequested(requested, remaining decimal.Decimal, precision int32) error {
	if requested.IsNegative() {
		return shared.Invalid("quantity", "jumlah tidak boleh negatif")
	}
	r := requested.Round(precision)
	rem := remaining.Round(precision)
	if r.GreaterThan(rem) {
		return &ExceededError{Requested: r, Remaining: rem}
	}
	return nil
}

// LineError attaches a line identifier to a validation failure.
type LineError struct {
	LineID   string
	ItemCode string
	Err      error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("baris %s (%s): %v", e.LineID, e.ItemCode, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }
