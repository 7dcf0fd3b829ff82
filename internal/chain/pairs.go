// Package chain derives downstream trade documents from upstream ones: it lists the source documents a
// target can be created from, materializes drafts, and saves and submits them with live re-validation of
// remaining quantities.
package chain

import (
	"context"
	"fmt"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/fulfillment"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// ErrUnsupportedPair is returned for a source/target combination the chain does not know.
var ErrUnsupportedPair = shared.Invalid("target", "pasangan dokumen sumber dan tujuan tidak didukung")

// Pair is a supported source → target derivation.
type Pair struct {
	Source documents.Kind `json:"source"`
	Target documents.Kind `json:"target"`
}

// Supported pairs.
var (
	OrderToDelivery   = Pair{Source: documents.KindOrder, Target: documents.KindDelivery}
	PurchaseToReceipt = Pair{Source: documents.KindPurchaseOrder, Target: documents.KindReceipt}
	DeliveryToReturn  = Pair{Source: documents.KindDelivery, Target: documents.KindReturn}
)

var supportedPairs = map[Pair]struct{}{
	OrderToDelivery:   {},
	PurchaseToReceipt: {},
	DeliveryToReturn:  {},
}

// PairFor validates a combination.
func PairFor(source, target documents.Kind) (Pair, error) {
	p := Pair{Source: source, Target: target}
	if _, ok := supportedPairs[p]; !ok {
		return Pair{}, fmt.Errorf("%w: %s → %s", ErrUnsupportedPair, source, target)
	}
	return p, nil
}

// PairTargeting returns the pair whose target is the given kind.
func PairTargeting(target documents.Kind) (Pair, bool) {
	for p := range supportedPairs {
		if p.Target == target {
			return p, true
		}
	}
	return Pair{}, false
}

// PairFrom returns the pair whose source is the given kind.
func PairFrom(source documents.Kind) (Pair, bool) {
	for p := range supportedPairs {
		if p.Source == source {
			return p, true
		}
	}
	return Pair{}, false
}

// IsReturn reports whether the target reverses its source.
func (p Pair) IsReturn() bool {
	return p == DeliveryToReturn
}

// Backend is the ERP surface the chain needs.
type Backend interface {
	Get(ctx context.Context, kind documents.Kind, id string) (documents.TradeDocument, error)
	List(ctx context.Context, kind documents.Kind, f documents.ListFilter) ([]documents.TradeDocument, int, error)
	Downstream(ctx context.Context, upstreamKind documents.Kind, upstreamID string, downstreamKind documents.Kind) ([]fulfillment.DownstreamLine, error)
	FindByDraftKey(ctx context.Context, kind documents.Kind, key string) (documents.TradeDocument, bool, error)
	Create(ctx context.Context, doc documents.TradeDocument) (documents.TradeDocument, error)
	Replace(ctx context.Context, doc documents.TradeDocument) (documents.TradeDocument, error)
	PatchHeader(ctx context.Context, doc documents.TradeDocument, fields []string) error
	Submit(ctx context.Context, kind documents.Kind, id string) error
	Cancel(ctx context.Context, kind documents.Kind, id string) error
	Discard(ctx context.Context, kind documents.Kind, id string) error
}
