package warkat

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// ModeWarkat is the mode of payment that marks an entry as a warkat.
const ModeWarkat = "Warkat"

// DefaultBounceReason is used when the user gives no reason.
const DefaultBounceReason = "Warkat ditolak"

// State tracks the settlement outcome of an instrument.
type State string

const (
	StateOpen    State = ""
	StateCleared State = "Cleared"
	StateBounced State = "Bounced"
)

// Settlement errors.
var (
	ErrAlreadyCleared  = shared.Conflict("warkat sudah dicairkan")
	ErrAlreadyBounced  = shared.Conflict("warkat sudah ditolak")
	ErrNotAvailable    = shared.Conflict("aksi warkat tidak tersedia untuk pembayaran ini")
	ErrSettlementBusy  = shared.Conflict("aksi warkat lain sedang diproses")
	ErrFutureClearance = shared.Invalid("clearance_date", "tanggal kliring tidak boleh melewati hari ini")
)

// Reference links a payment to an invoice or order.
type Reference struct {
	DocType   string          `json:"doctype"`
	Name      string          `json:"name"`
	Allocated decimal.Decimal `json:"allocated"`
}

// PaymentEntry is the ERP payment document as seen by the settlement engine.
type PaymentEntry struct {
	ID            string           `json:"id"`
	Direction     Direction        `json:"direction"`
	ModeOfPayment string           `json:"mode_of_payment"`
	Status        documents.Status `json:"status"`
	ClearanceDate *time.Time       `json:"clearance_date,omitempty"`
	WarkatState   State            `json:"warkat_state,omitempty"`
	WarkatNumber  string           `json:"warkat_number,omitempty"`
	WarkatDate    *time.Time       `json:"warkat_date,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	Company       string           `json:"company"`
	PartyType     string           `json:"party_type"`
	Party         string           `json:"party"`
	PostingDate   time.Time        `json:"posting_date"`
	References    []Reference      `json:"references,omitempty"`
}

// IsWarkat reports whether the entry was paid by warkat.
func (p PaymentEntry) IsWarkat() bool {
	return p.ModeOfPayment == ModeWarkat
}

// Outstanding reports whether the instrument is submitted and still awaiting clearance or bounce.
func (p PaymentEntry) Outstanding() bool {
	return p.IsWarkat() &&
		(p.Direction == DirectionPay || p.Direction == DirectionReceive) &&
		p.Status == documents.StatusSubmitted &&
		p.ClearanceDate == nil &&
		p.WarkatState == StateOpen
}

// Actions lists the settlement actions available on the entry.
func (p PaymentEntry) Actions() []Action {
	if !p.Outstanding() {
		return nil
	}
	return []Action{ActionClear, ActionBounce}
}

// checkOpen returns the precise reason an entry cannot be settled.
func (p PaymentEntry) checkOpen() error {
	switch {
	case p.ClearanceDate != nil || p.WarkatState == StateCleared:
		return ErrAlreadyCleared
	case p.WarkatState == StateBounced:
		return ErrAlreadyBounced
	case !p.Outstanding():
		return ErrNotAvailable
	}
	return nil
}

// ReferenceDate is the warkat due date when known, otherwise the posting date.
func (p PaymentEntry) ReferenceDate() time.Time {
	if p.WarkatDate != nil && !p.WarkatDate.IsZero() {
		return *p.WarkatDate
	}
	return p.PostingDate
}

// AgeDays returns whole days since the reference date. A warkat not yet due has age zero.
func (p PaymentEntry) AgeDays(today time.Time) int {
	ref := p.ReferenceDate()
	if ref.IsZero() || ref.After(today) {
		return 0
	}
	return int(today.Sub(ref).Hours() / 24)
}
