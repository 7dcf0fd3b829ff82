package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/fulfillment"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/internal/stock"
)

const testCompany = "PT Maju Jaya"

var testScope = shared.Scope{
	Company:     testCompany,
	CompanyAbbr: "MJ",
	Actor:       "sari@majujaya.co.id",
	Now:         func() time.Time { return time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC) },
}

// fakeBackend keeps documents in memory and derives downstream lines from them.
type fakeBackend struct {
	mu      sync.Mutex
	docs    map[string]documents.TradeDocument
	seq     int
	creates int
	// landThenFail stores the next created document and still reports a transient error.
	landThenFail bool
	submitErr    error
}

func newFakeBackend(docs ...documents.TradeDocument) *fakeBackend {
	f := &fakeBackend{docs: make(map[string]documents.TradeDocument)}
	for _, d := range docs {
		f.docs[docKey(d.Kind, d.ID)] = d
	}
	return f
}

func docKey(kind documents.Kind, id string) string { return string(kind) + "/" + id }

func (f *fakeBackend) Get(_ context.Context, kind documents.Kind, id string) (documents.TradeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[docKey(kind, id)]
	if !ok {
		return documents.TradeDocument{}, fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, id)
	}
	return clone(d), nil
}

func (f *fakeBackend) List(_ context.Context, kind documents.Kind, filter documents.ListFilter) ([]documents.TradeDocument, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []documents.TradeDocument
	for _, d := range f.docs {
		if d.Kind != kind || d.Company != filter.Company {
			continue
		}
		if filter.Party != "" && d.Party != filter.Party {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(d.Status, filter.Statuses) {
			continue
		}
		all = append(all, documents.TradeDocument{ID: d.ID, Kind: d.Kind, Status: d.Status, Company: d.Company, Party: d.Party})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

// statusIn mirrors the docstatus filter: Submitted also matches Completed.
func statusIn(s documents.Status, want []documents.Status) bool {
	for _, w := range want {
		if s == w || (w == documents.StatusSubmitted && s == documents.StatusCompleted) {
			return true
		}
	}
	return false
}

func (f *fakeBackend) Downstream(_ context.Context, upstreamKind documents.Kind, upstreamID string, downstreamKind documents.Kind) ([]fulfillment.DownstreamLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fulfillment.DownstreamLine
	for _, d := range f.docs {
		if d.Kind != downstreamKind {
			continue
		}
		for _, l := range d.Lines {
			if l.Upstream == nil || l.Upstream.Kind != upstreamKind || l.Upstream.DocumentID != upstreamID {
				continue
			}
			out = append(out, fulfillment.DownstreamLine{Line: l, DocumentID: d.ID, Status: d.Status})
		}
	}
	return out, nil
}

func (f *fakeBackend) FindByDraftKey(_ context.Context, kind documents.Kind, key string) (documents.TradeDocument, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.Kind == kind && d.DraftKey == key && d.Status != documents.StatusCancelled {
			return clone(d), true, nil
		}
	}
	return documents.TradeDocument{}, false, nil
}

func (f *fakeBackend) Create(_ context.Context, doc documents.TradeDocument) (documents.TradeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.creates++
	doc.ID = fmt.Sprintf("%s-%04d", doc.Kind, f.seq)
	for i := range doc.Lines {
		doc.Lines[i].ID = fmt.Sprintf("%s-row-%d", doc.ID, i+1)
	}
	f.docs[docKey(doc.Kind, doc.ID)] = clone(doc)
	if f.landThenFail {
		f.landThenFail = false
		return documents.TradeDocument{}, &shared.TransientError{Op: "erp insert", Err: context.DeadlineExceeded}
	}
	return clone(doc), nil
}

func (f *fakeBackend) Replace(_ context.Context, doc documents.TradeDocument) (documents.TradeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := docKey(doc.Kind, doc.ID)
	if _, ok := f.docs[k]; !ok {
		return documents.TradeDocument{}, shared.ErrNotFound
	}
	for i := range doc.Lines {
		if doc.Lines[i].ID == "" {
			doc.Lines[i].ID = fmt.Sprintf("%s-row-%d", doc.ID, i+1)
		}
	}
	f.docs[k] = clone(doc)
	return clone(doc), nil
}

func (f *fakeBackend) PatchHeader(_ context.Context, doc documents.TradeDocument, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[docKey(doc.Kind, doc.ID)] = clone(doc)
	return nil
}

func (f *fakeBackend) setStatus(kind documents.Kind, id string, status documents.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := docKey(kind, id)
	d, ok := f.docs[k]
	if !ok {
		return shared.ErrNotFound
	}
	d.Status = status
	f.docs[k] = d
	return nil
}

func (f *fakeBackend) Submit(_ context.Context, kind documents.Kind, id string) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	return f.setStatus(kind, id, documents.StatusSubmitted)
}

func (f *fakeBackend) Cancel(_ context.Context, kind documents.Kind, id string) error {
	return f.setStatus(kind, id, documents.StatusCancelled)
}

func (f *fakeBackend) Discard(_ context.Context, kind documents.Kind, id string) error {
	return f.setStatus(kind, id, documents.StatusCancelled)
}

func (f *fakeBackend) count(kind documents.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.docs {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func clone(d documents.TradeDocument) documents.TradeDocument {
	lines := make([]documents.LineItem, len(d.Lines))
	copy(lines, d.Lines)
	d.Lines = lines
	return d
}

type fakeStock struct {
	levels map[string][]stock.Snapshot
}

func (f fakeStock) StockLevels(_ context.Context, _, itemCode string) ([]stock.Snapshot, error) {
	levels, ok := f.levels[itemCode]
	if !ok {
		return nil, fmt.Errorf("bin %s unavailable", itemCode)
	}
	return levels, nil
}

// ============================================================================
// FIXTURES
// ============================================================================

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func salesOrder(id string, status documents.Status, quantities ...int64) documents.TradeDocument {
	doc := documents.TradeDocument{
		ID:          id,
		Kind:        documents.KindOrder,
		Status:      status,
		Company:     testCompany,
		Party:       "Toko Sinar",
		PostingDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Currency:    "IDR",
	}
	for i, q := range quantities {
		doc.Lines = append(doc.Lines, documents.LineItem{
			ID:        fmt.Sprintf("%s-row-%d", id, i+1),
			ItemCode:  fmt.Sprintf("BRG-%d", i+1),
			Quantity:  qty(q),
			Rate:      decimal.NewFromInt(15000),
			Amount:    documents.ComputeAmount(qty(q), decimal.NewFromInt(15000)),
			Warehouse: "Gudang Utama - MJ",
			UOM:       "Nos",
		})
	}
	return doc
}

// derived builds a downstream document taking the given quantity from each upstream line in order.
func derived(kind documents.Kind, id string, status documents.Status, upstream documents.TradeDocument, quantities ...int64) documents.TradeDocument {
	doc := documents.TradeDocument{
		ID:          id,
		Kind:        kind,
		Status:      status,
		Company:     testCompany,
		Party:       upstream.Party,
		PostingDate: time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
	}
	for i, q := range quantities {
		up := upstream.Lines[i]
		line := documents.LineItem{
			ID:       fmt.Sprintf("%s-row-%d", id, i+1),
			ItemCode: up.ItemCode,
			Quantity: qty(q),
			Rate:     up.Rate,
			Upstream: &documents.UpstreamRef{Kind: upstream.Kind, DocumentID: upstream.ID, LineID: up.ID},
		}
		if kind == documents.KindReturn {
			line.ReturnReason = documents.ReasonDamaged
		}
		doc.Lines = append(doc.Lines, line.WithQuantity(line.Quantity))
	}
	return doc
}

// draftFrom builds an unsaved request document against the upstream.
func draftFrom(kind documents.Kind, upstream documents.TradeDocument, quantities ...int64) documents.TradeDocument {
	doc := derived(kind, "", documents.StatusDraft, upstream, quantities...)
	for i := range doc.Lines {
		doc.Lines[i].ID = ""
	}
	return doc
}
