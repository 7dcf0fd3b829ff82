package documents

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		event   Event
		want    Status
		wantErr bool
	}{
		{StatusDraft, EventSubmit, StatusSubmitted, false},
		{StatusDraft, EventCancel, StatusCancelled, false},
		{StatusSubmitted, EventComplete, StatusCompleted, false},
		{StatusSubmitted, EventCancel, StatusCancelled, false},
		{StatusDraft, EventComplete, StatusDraft, true},
		{StatusSubmitted, EventSubmit, StatusSubmitted, true},
		{StatusCompleted, EventCancel, StatusCompleted, true},
		{StatusCancelled, EventSubmit, StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := tt.from.Next(tt.event)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminalStatusesHaveNoEditAction(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		assert.True(t, s.IsTerminal())
		assert.Equal(t, []Action{ActionView}, s.Actions())
		assert.False(t, s.CanEditLines())
		assert.False(t, s.CanEditField(FieldNotes))
	}
}

func TestActions(t *testing.T) {
	assert.Equal(t, []Action{ActionView, ActionEdit, ActionSubmit, ActionCancel}, StatusDraft.Actions())
	assert.Equal(t, []Action{ActionView, ActionEdit, ActionComplete, ActionCancel}, StatusSubmitted.Actions())
}

func TestApplyHeaderPatch(t *testing.T) {
	doc := TradeDocument{Kind: KindOrder, Status: StatusSubmitted, Party: "CUST-1", Notes: "old"}

	t.Run("whitelisted field on submitted document", func(t *testing.T) {
		got, err := ApplyHeaderPatch(doc, HeaderPatch{Notes: strPtr("new")})
		require.NoError(t, err)
		assert.Equal(t, "new", got.Notes)
	})

	t.Run("locked field leaves document unchanged", func(t *testing.T) {
		got, err := ApplyHeaderPatch(doc, HeaderPatch{Notes: strPtr("new"), Party: strPtr("CUST-2")})
		require.ErrorIs(t, err, ErrFieldLocked)
		assert.Equal(t, "CUST-1", got.Party)
		assert.Equal(t, "old", got.Notes)
	})

	t.Run("draft accepts any field", func(t *testing.T) {
		draft := doc
		draft.Status = StatusDraft
		date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		got, err := ApplyHeaderPatch(draft, HeaderPatch{Party: strPtr("CUST-2"), PostingDate: &date})
		require.NoError(t, err)
		assert.Equal(t, "CUST-2", got.Party)
		assert.Equal(t, date, got.PostingDate)
	})

	t.Run("cancelled rejects whitelist too", func(t *testing.T) {
		cancelled := doc
		cancelled.Status = StatusCancelled
		_, err := ApplyHeaderPatch(cancelled, HeaderPatch{Remarks: strPtr("x")})
		assert.ErrorIs(t, err, ErrFieldLocked)
	})
}

func TestCheckSubmittable(t *testing.T) {
	doc := TradeDocument{
		Status: StatusDraft,
		Lines: []LineItem{
			{ItemCode: "A", Quantity: decimal.Zero},
		},
	}
	assert.ErrorIs(t, CheckSubmittable(doc), ErrNoPositiveLines)

	doc.Lines = append(doc.Lines, LineItem{ItemCode: "B", Quantity: decimal.NewFromInt(1)})
	assert.NoError(t, CheckSubmittable(doc))

	doc.Status = StatusSubmitted
	assert.ErrorIs(t, CheckSubmittable(doc), ErrInvalidTransition)
	assert.ErrorIs(t, CheckLineEdit(doc), ErrLinesLocked)
}

func TestLineAmountFollowsQuantity(t *testing.T) {
	line := LineItem{Rate: decimal.RequireFromString("1250.555"), QtyPrecision: 0}
	got := line.WithQuantity(decimal.RequireFromString("3.4"))
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(3)))
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("3751.67")))
}

func TestUpstreamDocumentsDeduplicates(t *testing.T) {
	doc := TradeDocument{Lines: []LineItem{
		{Upstream: &UpstreamRef{Kind: KindOrder, DocumentID: "SO-1", LineID: "a"}},
		{Upstream: &UpstreamRef{Kind: KindOrder, DocumentID: "SO-1", LineID: "b"}},
		{Upstream: &UpstreamRef{Kind: KindOrder, DocumentID: "SO-2", LineID: "c"}},
		{},
	}}
	refs := doc.UpstreamDocuments()
	require.Len(t, refs, 2)
	assert.Equal(t, "SO-1", refs[0].DocumentID)
	assert.Equal(t, "SO-2", refs[1].DocumentID)
}
