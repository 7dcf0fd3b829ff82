package erp

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
)

type wireReference struct {
	ReferenceDoctype string          `json:"reference_doctype"`
	ReferenceName    string          `json:"reference_name"`
	AllocatedAmount  decimal.Decimal `json:"allocated_amount"`
}

type wirePayment struct {
	Name           string          `json:"name"`
	DocStatus      int             `json:"docstatus"`
	PaymentType    string          `json:"payment_type"`
	ModeOfPayment  string          `json:"mode_of_payment"`
	ClearanceDate  string          `json:"clearance_date"`
	WarkatStatus   string          `json:"custom_warkat_status"`
	ReferenceNo    string          `json:"reference_no"`
	ReferenceDate  string          `json:"reference_date"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	Company        string          `json:"company"`
	PartyType      string          `json:"party_type"`
	Party          string          `json:"party"`
	PostingDate    string          `json:"posting_date"`
	References     []wireReference `json:"references"`
}

var paymentFields = []string{
	"name", "docstatus", "payment_type", "mode_of_payment", "clearance_date", "custom_warkat_status",
	"reference_no", "reference_date", "paid_amount", "received_amount", "company", "party_type", "party",
	"posting_date",
}

func paymentToDomain(w wirePayment) warkat.PaymentEntry {
	e := warkat.PaymentEntry{
		ID:            w.Name,
		ModeOfPayment: w.ModeOfPayment,
		Status:        statusFromWire(w.DocStatus, "", 0),
		WarkatState:   warkat.State(w.WarkatStatus),
		WarkatNumber:  w.ReferenceNo,
		Company:       w.Company,
		PartyType:     w.PartyType,
		Party:         w.Party,
		PostingDate:   parseDate(w.PostingDate),
	}
	// internal transfers keep an empty direction and are never eligible
	if d, err := warkat.ParseDirection(w.PaymentType); err == nil {
		e.Direction = d
	}
	if e.Direction == warkat.DirectionReceive {
		e.Amount = w.ReceivedAmount
	} else {
		e.Amount = w.PaidAmount
	}
	if t := parseDate(w.ClearanceDate); !t.IsZero() {
		e.ClearanceDate = &t
	}
	if t := parseDate(w.ReferenceDate); !t.IsZero() {
		e.WarkatDate = &t
	}
	for _, r := range w.References {
		e.References = append(e.References, warkat.Reference{
			DocType:   r.ReferenceDoctype,
			Name:      r.ReferenceName,
			Allocated: r.AllocatedAmount,
		})
	}
	return e
}

// GetPaymentEntry loads a Payment Entry.
func (g *Gateway) GetPaymentEntry(ctx context.Context, id string) (warkat.PaymentEntry, error) {
	var w wirePayment
	if err := g.client.GetDocument(ctx, "Payment Entry", id, &w); err != nil {
		return warkat.PaymentEntry{}, err
	}
	return paymentToDomain(w), nil
}

// ListWarkat lists submitted warkat payments of a company without a clearance date, oldest first.
func (g *Gateway) ListWarkat(ctx context.Context, company string, direction warkat.Direction) ([]warkat.PaymentEntry, error) {
	filters := []Filter{
		Eq("company", company),
		Eq("mode_of_payment", warkat.ModeWarkat),
		Eq("docstatus", 1),
		{"clearance_date", "is", "not set"},
	}
	if direction != "" {
		filters = append(filters, Eq("payment_type", string(direction)))
	}
	var rows []wirePayment
	err := g.client.ListDocuments(ctx, "Payment Entry", Query{
		Filters: filters,
		Fields:  paymentFields,
		Limit:   Unbounded,
		OrderBy: "posting_date asc",
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]warkat.PaymentEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, paymentToDomain(r))
	}
	return out, nil
}

// PostJournal inserts and submits a Journal Entry. The idempotency key is stored on the journal.
func (g *Gateway) PostJournal(ctx context.Context, req warkat.JournalRequest) (string, error) {
	accounts := make([]map[string]any, 0, len(req.Lines))
	for _, l := range req.Lines {
		row := map[string]any{
			"account":                    l.Account,
			"debit_in_account_currency":  l.Debit.InexactFloat64(),
			"credit_in_account_currency": l.Credit.InexactFloat64(),
			"reference_type":             "Payment Entry",
			"reference_name":             req.Reference,
		}
		if l.Party != "" {
			row["party_type"] = l.PartyType
			row["party"] = l.Party
		}
		accounts = append(accounts, row)
	}
	payload := map[string]any{
		"doctype":                "Journal Entry",
		"voucher_type":           "Journal Entry",
		"company":                req.Company,
		"posting_date":           req.PostingDate.Format(time.DateOnly),
		"user_remark":            req.Remark,
		"custom_idempotency_key": req.IdempotencyKey,
		"custom_warkat_payment":  req.Reference,
		"accounts":               accounts,
	}
	if req.ChequeNo != "" {
		payload["cheque_no"] = req.ChequeNo
		cheque := req.PostingDate
		if req.ChequeDate != nil {
			cheque = *req.ChequeDate
		}
		payload["cheque_date"] = cheque.Format(time.DateOnly)
	}

	var created struct {
		Name string `json:"name"`
	}
	if err := g.client.Insert(ctx, "Journal Entry", payload, &created); err != nil {
		return "", err
	}
	if created.Name == "" {
		return "", fmt.Errorf("erp: journal entry created without name")
	}
	if err := g.client.Submit(ctx, "Journal Entry", created.Name); err != nil {
		return "", fmt.Errorf("submit journal %s: %w", created.Name, err)
	}
	return created.Name, nil
}

// MarkCleared sets the clearance date on a submitted Payment Entry.
func (g *Gateway) MarkCleared(ctx context.Context, id string, clearance time.Time) error {
	return g.client.Update(ctx, "Payment Entry", id, map[string]any{
		"clearance_date":       clearance.Format(time.DateOnly),
		"custom_warkat_status": string(warkat.StateCleared),
	}, nil)
}

// MarkBounced closes a Payment Entry for further warkat actions.
func (g *Gateway) MarkBounced(ctx context.Context, id, reason string) error {
	return g.client.Update(ctx, "Payment Entry", id, map[string]any{
		"custom_warkat_status":        string(warkat.StateBounced),
		"custom_warkat_bounce_reason": reason,
	}, nil)
}
