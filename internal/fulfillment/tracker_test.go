package fulfillment

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

func qty(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func orderLine(q string) documents.LineItem {
	return documents.LineItem{ID: "SOI-1", ItemCode: "ITEM-A", Quantity: qty(q)}
}

func delivery(docID, q string, status documents.Status) DownstreamLine {
	return DownstreamLine{
		DocumentID: docID,
		Status:     status,
		Line: documents.LineItem{
			ID:       docID + "-1",
			ItemCode: "ITEM-A",
			Quantity: qty(q),
			Upstream: &documents.UpstreamRef{Kind: documents.KindOrder, DocumentID: "SO-1", LineID: "SOI-1"},
		},
	}
}

func TestRemainingWithoutDownstreamIsUpstreamQuantity(t *testing.T) {
	assert.True(t, Remaining(orderLine("100"), nil).Equal(qty("100")))
}

func TestPartialDeliveryWalkthrough(t *testing.T) {
	upstream := orderLine("100")
	chain := []DownstreamLine{delivery("DN-1", "60", documents.StatusSubmitted)}

	rem := Remaining(upstream, chain)
	require.True(t, rem.Equal(qty("40")), "got %s", rem)

	err := ValidateRequested(qty("50"), rem, 0)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.ErrorIs(t, err, shared.ErrFulfillmentExceeded)
	assert.True(t, exceeded.Remaining.Equal(qty("40")))

	require.NoError(t, ValidateRequested(qty("40"), rem, 0))
	chain = append(chain, delivery("DN-2", "40", documents.StatusSubmitted))
	assert.True(t, Remaining(upstream, chain).IsZero())
	assert.Error(t, ValidateRequested(qty("1"), Remaining(upstream, chain), 0))
}

func TestRemainingNeverNegative(t *testing.T) {
	upstream := orderLine("10")
	var chain []DownstreamLine
	for i := 0; i < 5; i++ {
		chain = append(chain, delivery(fmt.Sprintf("DN-%d", i), "4", documents.StatusSubmitted))
		rem := Remaining(upstream, chain)
		assert.False(t, rem.IsNegative(), "step %d", i)
	}
	assert.True(t, Overconsumed(upstream, chain))
}

func TestCancellingRestoresConsumption(t *testing.T) {
	upstream := orderLine("100")
	chain := []DownstreamLine{
		delivery("DN-1", "30", documents.StatusSubmitted),
		delivery("DN-2", "50", documents.StatusSubmitted),
	}
	assert.True(t, Remaining(upstream, chain).Equal(qty("20")))

	chain[1].Status = documents.StatusCancelled
	assert.True(t, Remaining(upstream, chain).Equal(qty("70")))
}

func TestBasisAndExclusion(t *testing.T) {
	upstream := orderLine("100")
	chain := []DownstreamLine{
		delivery("DN-1", "30", documents.StatusSubmitted),
		delivery("DN-2", "50", documents.StatusDraft),
		delivery("DN-3", "20", documents.StatusCompleted),
	}

	assert.True(t, Remaining(upstream, chain).Equal(qty("50")))
	assert.True(t, Remaining(upstream, chain, Basis(Reserved)).IsZero())
	assert.True(t, Remaining(upstream, chain, Excluding("DN-1")).Equal(qty("80")))
}

func TestRemainingIgnoresOtherLines(t *testing.T) {
	upstream := orderLine("10")
	other := delivery("DN-1", "10", documents.StatusSubmitted)
	other.Line.Upstream.LineID = "SOI-2"
	unlinked := delivery("DN-2", "10", documents.StatusSubmitted)
	unlinked.Line.Upstream = nil

	assert.True(t, Remaining(upstream, []DownstreamLine{other, unlinked}).Equal(qty("10")))
}

func TestReturnsCountAbsoluteQuantities(t *testing.T) {
	delivered := documents.LineItem{ID: "DNI-1", Quantity: qty("8")}
	ret := DownstreamLine{
		DocumentID: "RET-1",
		Status:     documents.StatusSubmitted,
		Line: documents.LineItem{
			Quantity: qty("-3"),
			Upstream: &documents.UpstreamRef{Kind: documents.KindDelivery, DocumentID: "DN-1", LineID: "DNI-1"},
		},
	}
	assert.True(t, Remaining(delivered, []DownstreamLine{ret}).Equal(qty("5")))
}

func TestValidateRequestedPrecision(t *testing.T) {
	assert.NoError(t, ValidateRequested(qty("2.504"), qty("2.5"), 2))
	assert.Error(t, ValidateRequested(qty("2.51"), qty("2.5"), 2))
	assert.ErrorIs(t, ValidateRequested(qty("-1"), qty("2"), 0), shared.ErrValidation)
}

func TestLedger(t *testing.T) {
	upstream := documents.TradeDocument{Lines: []documents.LineItem{orderLine("100")}}
	chain := []DownstreamLine{
		delivery("DN-1", "30", documents.StatusSubmitted),
		delivery("DN-2", "20", documents.StatusDraft),
		delivery("DN-3", "40", documents.StatusCancelled),
	}
	entries := Ledger(upstream, chain)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Committed.Equal(qty("30")))
	assert.True(t, entries[0].Reserved.Equal(qty("20")))
	assert.True(t, entries[0].Remaining.Equal(qty("70")))
	assert.True(t, AnyRemaining(upstream, chain, Basis(Reserved)))
}
