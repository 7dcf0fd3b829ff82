package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/fulfillment"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/internal/stock"
)

var (
	// ErrSourceNotEligible is returned when a draft is requested from a source that cannot feed the target.
	ErrSourceNotEligible = shared.Conflict("dokumen sumber tidak dapat dijadikan dasar dokumen baru")
)

// Candidate is a source document that can feed the target kind, with its fulfillment breakdown.
type Candidate struct {
	Document documents.TradeDocument   `json:"document"`
	Ledger   []fulfillment.LedgerEntry `json:"ledger"`
}

// DraftLine is a materialized line with the limits the editor must respect.
type DraftLine struct {
	documents.LineItem
	MaxQuantity decimal.Decimal  `json:"max_quantity"`
	Stock       stock.Annotation `json:"stock"`
}

// Draft is an unsaved target document derived from a source.
type Draft struct {
	Key      string                  `json:"key"`
	Pair     Pair                    `json:"pair"`
	SourceID string                  `json:"source_id"`
	Document documents.TradeDocument `json:"document"`
	Lines    []DraftLine             `json:"lines"`
}

// Resolver lists candidates and materializes drafts.
type Resolver struct {
	backend Backend
	stock   *stock.Resolver
	logger  *slog.Logger
}

// NewResolver constructs a resolver. The stock resolver may be nil, in which case drafts carry no annotations.
func NewResolver(backend Backend, stockResolver *stock.Resolver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{backend: backend, stock: stockResolver, logger: logger}
}

// Pager walks the candidate list one ERP page at a time.
type Pager struct {
	resolver *Resolver
	scope    shared.Scope
	pair     Pair
	party    string
	offset   int
	limit    int
	total    int
	fetched  bool
}

// Candidates returns a pager over the source documents eligible for the pair.
func (r *Resolver) Candidates(scope shared.Scope, source, target documents.Kind, party string) (*Pager, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	pair, err := PairFor(source, target)
	if err != nil {
		return nil, err
	}
	_, limit := shared.NormalizePage(0, 0)
	return &Pager{resolver: r, scope: scope, pair: pair, party: party, limit: limit}, nil
}

// Seek positions the pager at an offset with a page size.
func (p *Pager) Seek(offset, limit int) *Pager {
	p.offset, p.limit = shared.NormalizePage(offset, limit)
	return p
}

// Done reports whether the last page has been fetched.
func (p *Pager) Done() bool {
	return p.fetched && p.offset >= p.total
}

// Offset is the position of the next page.
func (p *Pager) Offset() int { return p.offset }

// Total is the number of source documents in the status window, known after the first fetch.
func (p *Pager) Total() int { return p.total }

// Next fetches the next page of source documents and returns the eligible ones. A page can be empty while
// later pages still hold candidates.
func (p *Pager) Next(ctx context.Context) ([]Candidate, error) {
	if p.Done() {
		return nil, nil
	}
	headers, total, err := p.resolver.backend.List(ctx, p.pair.Source, documents.ListFilter{
		Company:  p.scope.Company,
		Party:    p.party,
		Statuses: []documents.Status{documents.StatusSubmitted},
		Offset:   p.offset,
		Limit:    p.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.pair.Source, err)
	}
	p.fetched = true
	p.total = total
	p.offset += len(headers)
	if len(headers) == 0 {
		p.offset = total
	}

	results := make([]*Candidate, len(headers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, h := range headers {
		if h.Status != documents.StatusSubmitted {
			continue
		}
		g.Go(func() error {
			c, ok, err := p.resolver.evaluate(gctx, p.pair, h.ID)
			if err != nil {
				return err
			}
			if ok {
				results[i] = &c
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// evaluate loads a source with its downstream lines and applies the eligibility rules of the pair.
func (r *Resolver) evaluate(ctx context.Context, pair Pair, sourceID string) (Candidate, bool, error) {
	source, downstream, err := r.load(ctx, pair, sourceID)
	if err != nil {
		return Candidate{}, false, err
	}
	c := Candidate{Document: source, Ledger: fulfillment.Ledger(source, downstream)}
	return c, eligible(pair, source, downstream), nil
}

func (r *Resolver) load(ctx context.Context, pair Pair, sourceID string) (documents.TradeDocument, []fulfillment.DownstreamLine, error) {
	source, err := r.backend.Get(ctx, pair.Source, sourceID)
	if err != nil {
		return documents.TradeDocument{}, nil, fmt.Errorf("load %s %s: %w", pair.Source, sourceID, err)
	}
	downstream, err := r.backend.Downstream(ctx, pair.Source, sourceID, pair.Target)
	if err != nil {
		return documents.TradeDocument{}, nil, fmt.Errorf("load %s of %s: %w", pair.Target, sourceID, err)
	}
	return source, downstream, nil
}

// eligible: a return needs a submitted delivery; a copy-forward needs committed remaining that is not
// already covered by drafts.
func eligible(pair Pair, source documents.TradeDocument, downstream []fulfillment.DownstreamLine) bool {
	if source.Status != documents.StatusSubmitted {
		return false
	}
	if pair.IsReturn() {
		return true
	}
	return fulfillment.AnyRemaining(source, downstream) &&
		fulfillment.AnyRemaining(source, downstream, fulfillment.Basis(fulfillment.Reserved))
}

// Materialize builds a new draft from the source. Copy-forward lines start at the full committed remaining
// quantity; return lines start at zero and are opted in by the user.
func (r *Resolver) Materialize(ctx context.Context, scope shared.Scope, pair Pair, sourceID string) (Draft, error) {
	if err := scope.Validate(); err != nil {
		return Draft{}, err
	}
	if _, err := PairFor(pair.Source, pair.Target); err != nil {
		return Draft{}, err
	}
	source, downstream, err := r.load(ctx, pair, sourceID)
	if err != nil {
		return Draft{}, err
	}
	if source.Company != "" && source.Company != scope.Company {
		return Draft{}, fmt.Errorf("%w: %s %s", shared.ErrNotFound, pair.Source, sourceID)
	}
	if !eligible(pair, source, downstream) {
		return Draft{}, fmt.Errorf("%w: %s %s (%s)", ErrSourceNotEligible, pair.Source, sourceID, source.Status)
	}

	key := uuid.NewString()
	doc := documents.TradeDocument{
		Kind:        pair.Target,
		Status:      documents.StatusDraft,
		Company:     scope.Company,
		Party:       source.Party,
		PostingDate: scope.Today(),
		Currency:    source.Currency,
		DraftKey:    key,
	}
	lines := make([]DraftLine, 0, len(source.Lines))
	for _, up := range source.Lines {
		remaining := fulfillment.Remaining(up, downstream)
		line := documents.LineItem{
			ItemCode:     up.ItemCode,
			ItemName:     up.ItemName,
			Rate:         up.Rate,
			Warehouse:    up.Warehouse,
			UOM:          up.UOM,
			QtyPrecision: up.QtyPrecision,
			Upstream:     &documents.UpstreamRef{Kind: pair.Source, DocumentID: source.ID, LineID: up.ID},
		}
		if pair.IsReturn() {
			line = line.WithQuantity(decimal.Zero)
		} else {
			line = line.WithQuantity(remaining)
		}
		lines = append(lines, DraftLine{LineItem: line, MaxQuantity: remaining})
	}

	if r.stock != nil && len(lines) > 0 {
		items := make([]documents.LineItem, len(lines))
		for i := range lines {
			items[i] = lines[i].LineItem
		}
		for i, a := range r.stock.AnnotateLines(ctx, scope, items) {
			lines[i].Stock = a
		}
	}

	for _, l := range lines {
		doc.Lines = append(doc.Lines, l.LineItem)
	}
	r.logger.Info("draft materialized",
		slog.String("source", string(pair.Source)),
		slog.String("source_id", sourceID),
		slog.String("target", string(pair.Target)),
		slog.String("draft_key", key))
	return Draft{Key: key, Pair: pair, SourceID: source.ID, Document: doc, Lines: lines}, nil
}
