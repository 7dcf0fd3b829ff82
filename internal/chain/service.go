package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/fulfillment"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/lock"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/internal/submission"
)

const upstreamLockTTL = 30 * time.Second

var (
	// ErrUpstreamCancelled is returned when a derived line points at a cancelled source.
	ErrUpstreamCancelled = shared.Conflict("dokumen sumber sudah dibatalkan")
	// ErrReturnNotesRequired is returned for a return line with reason Other and no notes.
	ErrReturnNotesRequired = shared.Invalid("return_notes", "catatan wajib diisi untuk alasan Lainnya")
)

// Recorder counts rejected saves and submits.
type Recorder interface {
	RecordGuardRejection(kind string)
	RecordSubmitRejection(kind, reason string)
}

// Service saves, submits and cancels chain documents.
type Service struct {
	backend Backend
	guard   *submission.Guard
	locker  lock.Locker
	audit   shared.AuditRecorder
	metrics Recorder
	logger  *slog.Logger
}

// NewService constructs the service.
func NewService(backend Backend, guard *submission.Guard, locker lock.Locker, audit shared.AuditRecorder, metrics Recorder, logger *slog.Logger) *Service {
	if guard == nil {
		guard = submission.NewMemoryGuard(0)
	}
	if locker == nil {
		locker = lock.NewMemory()
	}
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, guard: guard, locker: locker, audit: audit, metrics: metrics, logger: logger}
}

// ============================================================================
// SAVE
// ============================================================================

// SaveDraft creates or updates the draft identified by key. Concurrent saves of one key are serialized by
// the submission guard: one creates, later ones update the created document.
func (s *Service) SaveDraft(ctx context.Context, scope shared.Scope, key string, doc documents.TradeDocument) (saved documents.TradeDocument, err error) {
	if err := scope.Validate(); err != nil {
		return documents.TradeDocument{}, err
	}
	doc, err = prepare(scope, key, doc)
	if err != nil {
		return documents.TradeDocument{}, err
	}

	decision, err := s.guard.Begin(ctx, key)
	if err != nil {
		if errors.Is(err, submission.ErrSubmissionInFlight) && s.metrics != nil {
			s.metrics.RecordGuardRejection(string(doc.Kind))
		}
		return documents.TradeDocument{}, err
	}
	defer func() {
		var finishErr error
		if err != nil {
			finishErr = s.guard.Fail(ctx, key, err)
		} else {
			finishErr = s.guard.Succeed(ctx, key, saved.ID)
		}
		if finishErr != nil {
			s.logger.Error("submission guard finish failed", slog.String("draft_key", key), slog.Any("error", finishErr))
		}
	}()

	if decision.Reconcile {
		existing, found, err := s.backend.FindByDraftKey(ctx, doc.Kind, key)
		if err != nil {
			return documents.TradeDocument{}, fmt.Errorf("reconcile draft %s: %w", key, err)
		}
		if found {
			s.logger.Info("draft reconciled after unknown outcome", slog.String("draft_key", key), slog.String("id", existing.ID))
			decision = submission.Decision{Op: submission.OpUpdate, DocumentID: existing.ID}
		}
	}

	exclude := ""
	if decision.Op == submission.OpUpdate {
		exclude = decision.DocumentID
	}
	if err := s.validateChain(ctx, doc, exclude); err != nil {
		return documents.TradeDocument{}, err
	}

	if decision.Op == submission.OpUpdate {
		var current documents.TradeDocument
		if current, err = s.backend.Get(ctx, doc.Kind, decision.DocumentID); err != nil {
			return documents.TradeDocument{}, err
		}
		if err = documents.CheckLineEdit(current); err != nil {
			return documents.TradeDocument{}, err
		}
		doc.ID = current.ID
		saved, err = s.backend.Replace(ctx, doc)
	} else {
		saved, err = s.backend.Create(ctx, doc)
	}
	if err != nil {
		s.logger.Error("save draft failed",
			slog.String("kind", string(doc.Kind)),
			slog.String("draft_key", key),
			slog.String("op", string(decision.Op)),
			slog.Any("error", err))
		return documents.TradeDocument{}, err
	}
	if saved.ID == "" {
		saved.ID = doc.ID
	}
	s.record(ctx, scope, shared.AuditDocumentSave, saved, map[string]any{"op": string(decision.Op), "draft_key": key})
	return saved, nil
}

// prepare applies the local rules: known kind, party present, no negative quantity, return reasons,
// zero-quantity lines pruned and amounts recomputed.
func prepare(scope shared.Scope, key string, doc documents.TradeDocument) (documents.TradeDocument, error) {
	if !doc.Kind.IsValid() {
		return doc, shared.Invalid("kind", "jenis dokumen tidak dikenal")
	}
	if strings.TrimSpace(doc.Party) == "" {
		return doc, shared.Invalid("party", "pihak wajib diisi")
	}
	if doc.PostingDate.IsZero() {
		doc.PostingDate = scope.Today()
	}
	doc.Company = scope.Company
	doc.DraftKey = key
	doc.Status = documents.StatusDraft

	kept := make([]documents.LineItem, 0, len(doc.Lines))
	for i, l := range doc.Lines {
		if l.Quantity.IsNegative() {
			return doc, shared.Invalid(fmt.Sprintf("lines[%d].quantity", i), "jumlah tidak boleh negatif")
		}
		if strings.TrimSpace(l.ItemCode) == "" {
			return doc, shared.Invalid(fmt.Sprintf("lines[%d].item_code", i), "kode barang wajib diisi")
		}
		l = l.WithQuantity(l.Quantity)
		if l.Quantity.IsZero() {
			continue
		}
		if doc.Kind == documents.KindReturn {
			if err := checkReturnLine(i, l); err != nil {
				return doc, err
			}
		}
		kept = append(kept, l)
	}
	if len(kept) == 0 {
		return doc, documents.ErrNoPositiveLines
	}
	doc.Lines = kept
	return doc, nil
}

func checkReturnLine(i int, l documents.LineItem) error {
	if !l.IsDerived() {
		return shared.Invalid(fmt.Sprintf("lines[%d].upstream", i), "baris retur harus berasal dari surat jalan")
	}
	if !l.ReturnReason.IsValid() {
		return shared.Invalid(fmt.Sprintf("lines[%d].return_reason", i), "alasan retur wajib dipilih")
	}
	if l.ReturnReason == documents.ReasonOther && strings.TrimSpace(l.ReturnNotes) == "" {
		return fmt.Errorf("lines[%d]: %w", i, ErrReturnNotesRequired)
	}
	return nil
}

// validateChain checks every derived line against the live committed remaining of its upstream line,
// ignoring the document being saved.
func (s *Service) validateChain(ctx context.Context, doc documents.TradeDocument, exclude string) error {
	var errs []error
	for _, ref := range doc.UpstreamDocuments() {
		pair, err := PairFor(ref.Kind, doc.Kind)
		if err != nil {
			return err
		}
		upstream, err := s.backend.Get(ctx, ref.Kind, ref.DocumentID)
		if err != nil {
			return fmt.Errorf("load %s %s: %w", ref.Kind, ref.DocumentID, err)
		}
		if upstream.Status == documents.StatusCancelled {
			return fmt.Errorf("%w: %s", ErrUpstreamCancelled, ref.DocumentID)
		}
		if upstream.Status == documents.StatusDraft {
			return fmt.Errorf("%w: %s %s", ErrSourceNotEligible, ref.Kind, ref.DocumentID)
		}
		downstream, err := s.backend.Downstream(ctx, pair.Source, ref.DocumentID, pair.Target)
		if err != nil {
			return fmt.Errorf("load %s of %s: %w", pair.Target, ref.DocumentID, err)
		}
		requested := requestedPerLine(doc, ref.DocumentID)
		for _, up := range upstream.Lines {
			want, ok := requested[up.ID]
			if !ok {
				continue
			}
			remaining := fulfillment.Remaining(up, downstream, fulfillment.Excluding(exclude))
			if err := fulfillment.ValidateRequested(want, remaining, up.QtyPrecision); err != nil {
				errs = append(errs, &fulfillment.LineError{LineID: up.ID, ItemCode: up.ItemCode, Err: err})
			}
			delete(requested, up.ID)
		}
		for lineID := range requested {
			errs = append(errs, shared.Invalid("upstream", fmt.Sprintf("baris %s tidak ada di %s", lineID, ref.DocumentID)))
		}
	}
	return errors.Join(errs...)
}

// requestedPerLine sums the quantities the document asks from each line of one upstream document.
func requestedPerLine(doc documents.TradeDocument, upstreamID string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, l := range doc.Lines {
		if !l.IsDerived() || l.Upstream.DocumentID != upstreamID {
			continue
		}
		out[l.Upstream.LineID] = out[l.Upstream.LineID].Add(l.Quantity)
	}
	return out
}

// ============================================================================
// SUBMIT / CANCEL
// ============================================================================

// Submit submits the draft saved under key. Upstream documents are locked in a fixed order and every
// derived line is re-validated against live state, so two drafts over the same remaining quantity cannot
// both be submitted.
func (s *Service) Submit(ctx context.Context, scope shared.Scope, kind documents.Kind, key string) (documents.TradeDocument, error) {
	if err := scope.Validate(); err != nil {
		return documents.TradeDocument{}, err
	}
	doc, err := s.byDraftKey(ctx, kind, key)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	if err := documents.CheckSubmittable(doc); err != nil {
		s.rejectSubmit(kind, "local", err)
		return documents.TradeDocument{}, err
	}

	release, err := s.lockUpstreams(ctx, doc)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	defer release()

	if err := s.validateChain(ctx, doc, doc.ID); err != nil {
		s.rejectSubmit(kind, "remaining", err)
		return documents.TradeDocument{}, err
	}
	if err := s.backend.Submit(ctx, kind, doc.ID); err != nil {
		s.rejectSubmit(kind, "backend", err)
		s.logger.Error("submit rejected", slog.String("kind", string(kind)), slog.String("id", doc.ID), slog.Any("error", err))
		return documents.TradeDocument{}, err
	}
	doc.Status = documents.StatusSubmitted
	s.record(ctx, scope, shared.AuditDocumentSubmit, doc, map[string]any{"draft_key": key})
	return doc, nil
}

func (s *Service) byDraftKey(ctx context.Context, kind documents.Kind, key string) (documents.TradeDocument, error) {
	entry, err := s.guard.Peek(ctx, key)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	switch entry.State {
	case submission.StateInFlight:
		return documents.TradeDocument{}, submission.ErrSubmissionInFlight
	case submission.StateCreated:
		return s.backend.Get(ctx, kind, entry.DocumentID)
	}
	doc, found, err := s.backend.FindByDraftKey(ctx, kind, key)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	if !found {
		return documents.TradeDocument{}, fmt.Errorf("%w: draf %s belum disimpan", shared.ErrNotFound, key)
	}
	return doc, nil
}

// lockUpstreams obtains the per-upstream locks in sorted order and returns a release func.
func (s *Service) lockUpstreams(ctx context.Context, doc documents.TradeDocument) (func(), error) {
	refs := doc.UpstreamDocuments()
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, shared.UpstreamLockKey(string(ref.Kind), ref.DocumentID))
	}
	sort.Strings(keys)

	handles := make([]lock.Handle, 0, len(keys))
	release := func() {
		rctx := context.WithoutCancel(ctx)
		for i := len(handles) - 1; i >= 0; i-- {
			_ = handles[i].Release(rctx)
		}
	}
	for _, k := range keys {
		h, err := s.locker.Obtain(ctx, k, upstreamLockTTL)
		if err != nil {
			release()
			return nil, fmt.Errorf("lock %s: %w", k, err)
		}
		handles = append(handles, h)
	}
	return release, nil
}

func (s *Service) rejectSubmit(kind documents.Kind, reason string, err error) {
	if s.metrics == nil || err == nil {
		return
	}
	s.metrics.RecordSubmitRejection(string(kind), reason)
}

// Cancel discards a draft or cancels a submitted document.
func (s *Service) Cancel(ctx context.Context, scope shared.Scope, kind documents.Kind, id string) (documents.TradeDocument, error) {
	doc, err := s.load(ctx, scope, kind, id)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	next, err := doc.Status.Next(documents.EventCancel)
	if err != nil {
		return documents.TradeDocument{}, fmt.Errorf("%w: %s %s", err, kind, doc.Status)
	}
	if doc.Status == documents.StatusDraft {
		err = s.backend.Discard(ctx, kind, id)
	} else {
		err = s.backend.Cancel(ctx, kind, id)
	}
	if err != nil {
		return documents.TradeDocument{}, err
	}
	meta := map[string]any{"from": string(doc.Status)}
	doc.Status = next
	s.record(ctx, scope, shared.AuditDocumentCancel, doc, meta)
	return doc, nil
}

// ============================================================================
// READ / PATCH
// ============================================================================

// LineView carries the live remaining quantity of a derived line's upstream, the document itself excluded.
type LineView struct {
	LineID    string           `json:"line_id"`
	Remaining *decimal.Decimal `json:"remaining,omitempty"`
}

// DocumentView is a document with the actions its status allows and its chain position.
type DocumentView struct {
	Document documents.TradeDocument   `json:"document"`
	Actions  []documents.Action        `json:"actions"`
	Lines    []LineView                `json:"lines"`
	Ledger   []fulfillment.LedgerEntry `json:"ledger,omitempty"`
}

// GetDocument loads a document with its actions, per-line remaining and, for a source kind, the ledger of
// its downstream consumption.
func (s *Service) GetDocument(ctx context.Context, scope shared.Scope, kind documents.Kind, id string) (DocumentView, error) {
	doc, err := s.load(ctx, scope, kind, id)
	if err != nil {
		return DocumentView{}, err
	}
	view := DocumentView{Document: doc, Actions: doc.Status.Actions()}

	remaining := make(map[string]decimal.Decimal)
	for _, ref := range doc.UpstreamDocuments() {
		upstream, err := s.backend.Get(ctx, ref.Kind, ref.DocumentID)
		if err != nil {
			return DocumentView{}, err
		}
		downstream, err := s.backend.Downstream(ctx, ref.Kind, ref.DocumentID, kind)
		if err != nil {
			return DocumentView{}, err
		}
		for _, up := range upstream.Lines {
			remaining[ref.DocumentID+"/"+up.ID] = fulfillment.Remaining(up, downstream, fulfillment.Excluding(doc.ID))
		}
	}
	for _, l := range doc.Lines {
		lv := LineView{LineID: l.ID}
		if l.IsDerived() {
			if r, ok := remaining[l.Upstream.DocumentID+"/"+l.Upstream.LineID]; ok {
				lv.Remaining = &r
			}
		}
		view.Lines = append(view.Lines, lv)
	}

	if pair, ok := PairFrom(kind); ok && doc.Status != documents.StatusDraft {
		downstream, err := s.backend.Downstream(ctx, kind, doc.ID, pair.Target)
		if err != nil {
			return DocumentView{}, err
		}
		view.Ledger = fulfillment.Ledger(doc, downstream)
	}
	return view, nil
}

// PatchHeader applies a header patch under the mutability policy of the document's status.
func (s *Service) PatchHeader(ctx context.Context, scope shared.Scope, kind documents.Kind, id string, patch documents.HeaderPatch) (documents.TradeDocument, error) {
	doc, err := s.load(ctx, scope, kind, id)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return doc, nil
	}
	updated, err := documents.ApplyHeaderPatch(doc, patch)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	if err := s.backend.PatchHeader(ctx, updated, fields); err != nil {
		return documents.TradeDocument{}, err
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, scope shared.Scope, kind documents.Kind, id string) (documents.TradeDocument, error) {
	if err := scope.Validate(); err != nil {
		return documents.TradeDocument{}, err
	}
	if !kind.IsValid() {
		return documents.TradeDocument{}, shared.Invalid("kind", "jenis dokumen tidak dikenal")
	}
	doc, err := s.backend.Get(ctx, kind, id)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	if doc.Company != "" && doc.Company != scope.Company {
		return documents.TradeDocument{}, fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, id)
	}
	return doc, nil
}

func (s *Service) record(ctx context.Context, scope shared.Scope, action string, doc documents.TradeDocument, meta map[string]any) {
	meta["status"] = string(doc.Status)
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    scope.Actor,
		Company:  scope.Company,
		Action:   action,
		Entity:   string(doc.Kind),
		EntityID: doc.ID,
		Meta:     meta,
		At:       time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
