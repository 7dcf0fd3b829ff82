package documents

import (
	"fmt"
	"time"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// ============================================================================
// DOCUMENT STATUS
// ============================================================================

// Status represents the lifecycle shared by every trade document kind.
type Status string

const (
	StatusDraft     Status = "Draft"     // Header and lines fully mutable
	StatusSubmitted Status = "Submitted" // Lines locked, whitelist of header fields editable
	StatusCompleted Status = "Completed" // All downstream obligations satisfied
	StatusCancelled Status = "Cancelled" // Excluded from remaining-quantity sums, never deleted
)

// Event triggers a lifecycle transition.
type Event string

const (
	EventSubmit   Event = "submit"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

// Action is a user-visible operation available on a document.
type Action string

const (
	ActionView     Action = "view"
	ActionEdit     Action = "edit"
	ActionSubmit   Action = "submit"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Lifecycle errors.
var (
	ErrInvalidTransition = shared.Conflict("transisi status tidak diizinkan")
	ErrFieldLocked       = shared.Conflict("field tidak dapat diubah pada status ini")
	ErrLinesLocked       = shared.Conflict("baris tidak dapat diubah pada status ini")
	ErrNoPositiveLines   = shared.Invalid("lines", "minimal satu baris harus memiliki jumlah lebih dari nol")
)

type transitionKey struct {
	from  Status
	event Event
}

// transitions is the single transition table consumed by every document kind.
var transitions = map[transitionKey]Status{
	{StatusDraft, EventSubmit}:       StatusSubmitted,
	{StatusDraft, EventCancel}:       StatusCancelled,
	{StatusSubmitted, EventComplete}: StatusCompleted,
	{StatusSubmitted, EventCancel}:   StatusCancelled,
}

// submittedWhitelist lists header fields that stay editable after submit.
var submittedWhitelist = map[string]bool{
	FieldNotes:   true,
	FieldRemarks: true,
}

// Header field names understood by ApplyHeaderPatch.
const (
	FieldParty       = "party"
	FieldPostingDate = "posting_date"
	FieldCurrency    = "currency"
	FieldNotes       = "notes"
	FieldRemarks     = "remarks"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition exists.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanEditLines reports whether line composition and values may change.
func (s Status) CanEditLines() bool {
	return s == StatusDraft
}

// CanEditField reports whether a header field may change in this status.
func (s Status) CanEditField(field string) bool {
	switch s {
	case StatusDraft:
		return true
	case StatusSubmitted:
		return submittedWhitelist[field]
	default:
		return false
	}
}

// Next returns the status reached by applying event, or ErrInvalidTransition.
func (s Status) Next(event Event) (Status, error) {
	next, ok := transitions[transitionKey{from: s, event: event}]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, s)
	}
	return next, nil
}

// Actions lists what the user may do with a document in this status.
func (s Status) Actions() []Action {
	actions := []Action{ActionView}
	switch s {
	case StatusDraft:
		actions = append(actions, ActionEdit, ActionSubmit, ActionCancel)
	case StatusSubmitted:
		actions = append(actions, ActionEdit, ActionComplete, ActionCancel)
	}
	return actions
}

// HeaderPatch carries optional header changes.
type HeaderPatch struct {
	Party       *string    `json:"party,omitempty"`
	PostingDate *time.Time `json:"posting_date,omitempty"`
	Currency    *string    `json:"currency,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Remarks     *string    `json:"remarks,omitempty"`
}

// Fields lists the header fields the patch touches.
func (p HeaderPatch) Fields() []string {
	var fields []string
	if p.Party != nil {
		fields = append(fields, FieldParty)
	}
	if p.PostingDate != nil {
		fields = append(fields, FieldPostingDate)
	}
	if p.Currency != nil {
		fields = append(fields, FieldCurrency)
	}
	if p.Notes != nil {
		fields = append(fields, FieldNotes)
	}
	if p.Remarks != nil {
		fields = append(fields, FieldRemarks)
	}
	return fields
}

// ApplyHeaderPatch applies the patch if every touched field is editable, otherwise nothing changes.
func ApplyHeaderPatch(doc TradeDocument, patch HeaderPatch) (TradeDocument, error) {
	for _, f := range patch.Fields() {
		if !doc.Status.CanEditField(f) {
			return doc, fmt.Errorf("%w: %s in %s", ErrFieldLocked, f, doc.Status)
		}
	}
	if patch.Party != nil {
		doc.Party = *patch.Party
	}
	if patch.PostingDate != nil {
		doc.PostingDate = *patch.PostingDate
	}
	if patch.Currency != nil {
		doc.Currency = *patch.Currency
	}
	if patch.Notes != nil {
		doc.Notes = *patch.Notes
	}
	if patch.Remarks != nil {
		doc.Remarks = *patch.Remarks
	}
	return doc, nil
}

// CheckLineEdit rejects replacing lines of a document that is not a draft.
func CheckLineEdit(current TradeDocument) error {
	if !current.Status.CanEditLines() {
		return fmt.Errorf("%w: %s", ErrLinesLocked, current.Status)
	}
	return nil
}

// CheckSubmittable applies the local part of the submit guard: the transition must exist and at least
// one line must carry a positive quantity. Remaining-quantity re-validation is done by the caller against
// live chain state.
func CheckSubmittable(doc TradeDocument) error {
	if _, err := doc.Status.Next(EventSubmit); err != nil {
		return err
	}
	if doc.PositiveLines() == 0 {
		return ErrNoPositiveLines
	}
	return nil
}
