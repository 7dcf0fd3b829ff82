// Package stock annotates document lines with live warehouse availability. Lookups are never cached;
// failures degrade to a zero snapshot flagged with warnings instead of an error.
package stock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// DefaultLowThreshold is the available quantity below which a LowStock warning is raised.
const DefaultLowThreshold = 10

// Snapshot is the stock position of one item in one warehouse.
type Snapshot struct {
	ItemCode  string          `json:"item_code"`
	Warehouse string          `json:"warehouse"`
	Available decimal.Decimal `json:"available"`
	Actual    decimal.Decimal `json:"actual"`
	Reserved  decimal.Decimal `json:"reserved"`
}

// Warning flags an availability condition.
type Warning string

const (
	WarningOutOfStock   Warning = "OutOfStock"
	WarningLowStock     Warning = "LowStock"
	WarningLookupFailed Warning = "LookupFailed"
)

// Annotation is a snapshot plus the warnings derived from it.
type Annotation struct {
	Snapshot Snapshot  `json:"snapshot"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Has reports whether the annotation carries the warning.
func (a Annotation) Has(w Warning) bool {
	for _, got := range a.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

// Backend returns per-warehouse stock levels of an item for a company.
type Backend interface {
	StockLevels(ctx context.Context, company, itemCode string) ([]Snapshot, error)
}

// FailureRecorder counts lookup failures.
type FailureRecorder interface {
	RecordStockFailure()
}

// Resolver answers availability questions against the backend.
type Resolver struct {
	backend   Backend
	logger    *slog.Logger
	failures  FailureRecorder
	threshold decimal.Decimal
	flight    singleflight.Group
}

// NewResolver constructs a resolver. A non-positive threshold falls back to DefaultLowThreshold.
func NewResolver(backend Backend, threshold int, logger *slog.Logger, failures FailureRecorder) *Resolver {
	if threshold <= 0 {
		threshold = DefaultLowThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		backend:   backend,
		logger:    logger,
		failures:  failures,
		threshold: decimal.NewFromInt(int64(threshold)),
	}
}

// Resolve returns the annotation for one item in one warehouse.
func (r *Resolver) Resolve(ctx context.Context, scope shared.Scope, itemCode, warehouse string) Annotation {
	levels, err := r.levels(ctx, scope.Company, itemCode)
	if err != nil {
		return r.failed(itemCode, warehouse, err)
	}
	for _, s := range levels {
		if s.Warehouse == warehouse {
			return r.annotate(s)
		}
	}
	return r.failed(itemCode, warehouse, nil)
}

// ResolveBest picks the candidate warehouse with the highest available quantity. With no candidates every
// warehouse reported by the backend is considered.
func (r *Resolver) ResolveBest(ctx context.Context, scope shared.Scope, itemCode string, candidates []string) Annotation {
	levels, err := r.levels(ctx, scope.Company, itemCode)
	if err != nil {
		return r.failed(itemCode, "", err)
	}
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c] = true
	}
	var best *Snapshot
	for i := range levels {
		s := levels[i]
		if len(allowed) > 0 && !allowed[s.Warehouse] {
			continue
		}
		if best == nil || s.Available.GreaterThan(best.Available) {
			best = &s
		}
	}
	if best == nil {
		warehouse := ""
		if len(candidates) > 0 {
			warehouse = candidates[0]
		}
		return r.failed(itemCode, warehouse, nil)
	}
	return r.annotate(*best)
}

// AnnotateLines resolves every line concurrently and returns annotations in line order. Lines without a
// warehouse use ResolveBest over all warehouses.
func (r *Resolver) AnnotateLines(ctx context.Context, scope shared.Scope, lines []documents.LineItem) []Annotation {
	out := make([]Annotation, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, line := range lines {
		g.Go(func() error {
			if line.Warehouse == "" {
				out[i] = r.ResolveBest(gctx, scope, line.ItemCode, nil)
			} else {
				out[i] = r.Resolve(gctx, scope, line.ItemCode, line.Warehouse)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// levels collapses identical in-flight lookups. Results are not retained after the call returns.
func (r *Resolver) levels(ctx context.Context, company, itemCode string) ([]Snapshot, error) {
	if r.backend == nil {
		return nil, fmt.Errorf("stock backend not configured")
	}
	v, err, _ := r.flight.Do(company+"\x00"+itemCode, func() (any, error) {
		return r.backend.StockLevels(ctx, company, itemCode)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Snapshot), nil
}

func (r *Resolver) annotate(s Snapshot) Annotation {
	a := Annotation{Snapshot: s}
	switch {
	case !s.Available.IsPositive():
		a.Warnings = append(a.Warnings, WarningOutOfStock)
	case s.Available.LessThan(r.threshold):
		a.Warnings = append(a.Warnings, WarningLowStock)
	}
	return a
}

func (r *Resolver) failed(itemCode, warehouse string, err error) Annotation {
	if err != nil {
		r.logger.Warn("stock lookup failed",
			slog.String("item_code", itemCode),
			slog.String("warehouse", warehouse),
			slog.Any("error", err))
		if r.failures != nil {
			r.failures.RecordStockFailure()
		}
	}
	return Annotation{
		Snapshot: Snapshot{
			ItemCode:  itemCode,
			Warehouse: warehouse,
			Available: decimal.Zero,
			Actual:    decimal.Zero,
			Reserved:  decimal.Zero,
		},
		Warnings: []Warning{WarningLookupFailed, WarningOutOfStock},
	}
}
