package warkat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/lock"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// JournalLine is one row of a posting request.
type JournalLine struct {
	Account   string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	PartyType string
	Party     string
}

// JournalRequest is a balanced two-row journal submitted to the ERP.
type JournalRequest struct {
	Company     string
	PostingDate time.Time
	Reference   string
	ChequeNo    string
	ChequeDate  *time.Time
	Remark      string
	// IdempotencyKey is stored on the journal so a retried post can be found.
	IdempotencyKey string
	Lines          []JournalLine
}

// Backend is the ERP surface the settlement engine needs.
type Backend interface {
	GetPaymentEntry(ctx context.Context, id string) (PaymentEntry, error)
	ListWarkat(ctx context.Context, company string, direction Direction) ([]PaymentEntry, error)
	PostJournal(ctx context.Context, req JournalRequest) (string, error)
	MarkCleared(ctx context.Context, id string, clearance time.Time) error
	MarkBounced(ctx context.Context, id, reason string) error
}

// SettlementRecorder counts settlement outcomes.
type SettlementRecorder interface {
	RecordSettlement(direction, action string, err error)
}

// ClearCommand carries the user's input for a clear.
type ClearCommand struct {
	BankAccount   string
	ClearanceDate time.Time
}

// BounceCommand carries the user's input for a bounce.
type BounceCommand struct {
	Reason string
}

// Result describes a completed settlement.
type Result struct {
	Entry         PaymentEntry `json:"entry"`
	Action        Action       `json:"action"`
	JournalEntry  string       `json:"journal_entry"`
	DebitAccount  string       `json:"debit_account"`
	CreditAccount string       `json:"credit_account"`
	Message       string       `json:"message"`
}

// Service performs warkat clear and bounce.
type Service struct {
	backend Backend
	book    AccountBook
	locker  lock.Locker
	audit   shared.AuditRecorder
	metrics SettlementRecorder
	logger  *slog.Logger
}

// NewService constructs the settlement service.
func NewService(backend Backend, book AccountBook, locker lock.Locker, audit shared.AuditRecorder, metrics SettlementRecorder, logger *slog.Logger) *Service {
	if locker == nil {
		locker = lock.NewMemory()
	}
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, book: book, locker: locker, audit: audit, metrics: metrics, logger: logger}
}

// Get returns a payment entry of the scope's company.
func (s *Service) Get(ctx context.Context, scope shared.Scope, id string) (PaymentEntry, error) {
	if err := scope.Validate(); err != nil {
		return PaymentEntry{}, err
	}
	entry, err := s.backend.GetPaymentEntry(ctx, id)
	if err != nil {
		return PaymentEntry{}, err
	}
	if err := owned(scope, entry); err != nil {
		return PaymentEntry{}, err
	}
	return entry, nil
}

// owned hides entries of other companies.
func owned(scope shared.Scope, entry PaymentEntry) error {
	if entry.Company != scope.Company {
		return fmt.Errorf("%w: payment entry %s", shared.ErrNotFound, entry.ID)
	}
	return nil
}

// ListOutstanding returns submitted warkat without a clearance date, oldest first.
func (s *Service) ListOutstanding(ctx context.Context, scope shared.Scope, direction Direction) ([]PaymentEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.backend.ListWarkat(ctx, scope.Company, direction)
	if err != nil {
		return nil, fmt.Errorf("list warkat: %w", err)
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Outstanding() {
			out = append(out, e)
		}
	}
	return out, nil
}

// Clear posts the clearing journal for the entry. The entry value is checked before any backend call and
// re-read under the per-entry lock before posting.
func (s *Service) Clear(ctx context.Context, scope shared.Scope, entry PaymentEntry, cmd ClearCommand) (Result, error) {
	if err := owned(scope, entry); err != nil {
		return Result{}, err
	}
	if err := entry.checkOpen(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(cmd.BankAccount) == "" {
		return Result{}, shared.Invalid("bank_account", "akun bank wajib dipilih")
	}
	if cmd.ClearanceDate.IsZero() {
		return Result{}, shared.Invalid("clearance_date", "tanggal kliring wajib diisi")
	}
	clearance := dateOnly(cmd.ClearanceDate)
	if clearance.After(scope.Today()) {
		return Result{}, ErrFutureClearance
	}
	res, err := s.settle(ctx, scope, entry, ActionClear, cmd.BankAccount, clearance, "Pencairan warkat "+entry.ID,
		func(ctx context.Context, journal string) error {
			if err := s.backend.MarkCleared(ctx, entry.ID, clearance); err != nil {
				return fmt.Errorf("mark cleared %s (journal %s): %w", entry.ID, journal, err)
			}
			return nil
		})
	if err != nil {
		return Result{}, err
	}
	res.Entry.ClearanceDate = &clearance
	res.Entry.WarkatState = StateCleared
	res.Message = fmt.Sprintf("Warkat %s berhasil dicairkan", entry.ID)
	s.record(ctx, scope, shared.AuditWarkatClear, res, map[string]any{"clearance_date": clearance.Format(time.DateOnly)})
	return res, nil
}

// Bounce posts the reversal journal for the entry and closes it for further warkat actions.
func (s *Service) Bounce(ctx context.Context, scope shared.Scope, entry PaymentEntry, cmd BounceCommand) (Result, error) {
	if err := owned(scope, entry); err != nil {
		return Result{}, err
	}
	if err := entry.checkOpen(); err != nil {
		return Result{}, err
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = DefaultBounceReason
	}
	res, err := s.settle(ctx, scope, entry, ActionBounce, "", scope.Today(), reason,
		func(ctx context.Context, journal string) error {
			if err := s.backend.MarkBounced(ctx, entry.ID, reason); err != nil {
				return fmt.Errorf("mark bounced %s (journal %s): %w", entry.ID, journal, err)
			}
			return nil
		})
	if err != nil {
		return Result{}, err
	}
	res.Entry.WarkatState = StateBounced
	res.Message = fmt.Sprintf("Warkat %s berhasil ditolak", entry.ID)
	s.record(ctx, scope, shared.AuditWarkatBounce, res, map[string]any{"reason": reason})
	return res, nil
}

// ClearByID loads the entry and clears it.
func (s *Service) ClearByID(ctx context.Context, scope shared.Scope, id string, cmd ClearCommand) (Result, error) {
	entry, err := s.Get(ctx, scope, id)
	if err != nil {
		return Result{}, err
	}
	return s.Clear(ctx, scope, entry, cmd)
}

// BounceByID loads the entry and bounces it.
func (s *Service) BounceByID(ctx context.Context, scope shared.Scope, id string, cmd BounceCommand) (Result, error) {
	entry, err := s.Get(ctx, scope, id)
	if err != nil {
		return Result{}, err
	}
	return s.Bounce(ctx, scope, entry, cmd)
}

// settle posts the journal and marks the entry while holding the per-entry lock. The entry is re-read under
// the lock so a concurrent settlement that already landed is rejected.
func (s *Service) settle(ctx context.Context, scope shared.Scope, entry PaymentEntry, action Action, bank string, postingDate time.Time, remark string, mark func(context.Context, string) error) (res Result, err error) {
	if err := scope.Validate(); err != nil {
		return Result{}, err
	}
	posting := Settle(entry.Direction, action)
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordSettlement(string(entry.Direction), string(action), err)
		}
	}()

	debit, err := s.book.Account(posting.Debit, bank, scope.CompanyAbbr)
	if err != nil {
		return Result{}, err
	}
	credit, err := s.book.Account(posting.Credit, bank, scope.CompanyAbbr)
	if err != nil {
		return Result{}, err
	}

	h, err := s.locker.TryObtain(ctx, shared.WarkatLockKey(entry.ID), time.Minute)
	if errors.Is(err, lock.ErrNotObtained) {
		return Result{}, ErrSettlementBusy
	}
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = h.Release(context.WithoutCancel(ctx)) }()

	current, err := s.backend.GetPaymentEntry(ctx, entry.ID)
	if err != nil {
		return Result{}, fmt.Errorf("reload payment entry %s: %w", entry.ID, err)
	}
	if err := owned(scope, current); err != nil {
		return Result{}, err
	}
	if err := current.checkOpen(); err != nil {
		return Result{}, err
	}
	if current.Direction != entry.Direction {
		return Result{}, ErrNotAvailable
	}
	if !current.Amount.IsPositive() {
		return Result{}, shared.Invalid("amount", "nominal warkat harus lebih dari nol")
	}

	req := JournalRequest{
		Company:        scope.Company,
		PostingDate:    postingDate,
		Reference:      current.ID,
		ChequeNo:       current.WarkatNumber,
		ChequeDate:     current.WarkatDate,
		Remark:         remark,
		IdempotencyKey: uuid.NewString(),
		Lines: []JournalLine{
			s.line(posting.Debit, debit, current, true),
			s.line(posting.Credit, credit, current, false),
		},
	}
	journal, err := s.backend.PostJournal(ctx, req)
	if err != nil {
		s.logger.Error("warkat journal rejected",
			slog.String("payment_entry", current.ID),
			slog.String("action", string(action)),
			slog.Any("error", err))
		return Result{}, err
	}
	s.logger.Info("warkat journal posted",
		slog.String("payment_entry", current.ID),
		slog.String("action", string(action)),
		slog.String("journal_entry", journal))
	if err := mark(ctx, journal); err != nil {
		return Result{}, err
	}
	return Result{Entry: current, Action: action, JournalEntry: journal, DebitAccount: debit, CreditAccount: credit}, nil
}

func (s *Service) line(role Role, account string, entry PaymentEntry, debit bool) JournalLine {
	l := JournalLine{Account: account, Debit: decimal.Zero, Credit: decimal.Zero}
	if debit {
		l.Debit = entry.Amount
	} else {
		l.Credit = entry.Amount
	}
	if PartyRole(role) {
		l.PartyType = entry.PartyType
		l.Party = entry.Party
	}
	return l
}

func (s *Service) record(ctx context.Context, scope shared.Scope, action string, res Result, meta map[string]any) {
	meta["journal_entry"] = res.JournalEntry
	meta["direction"] = string(res.Entry.Direction)
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    scope.Actor,
		Company:  scope.Company,
		Action:   action,
		Entity:   "Payment Entry",
		EntityID: res.Entry.ID,
		Meta:     meta,
		At:       time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
