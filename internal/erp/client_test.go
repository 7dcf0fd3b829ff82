package erp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", APIKey: "k", APISecret: "s", Timeout: 2 * time.Second}, nil)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func encodeServerMessages(t *testing.T, messages ...string) string {
	t.Helper()
	var items []string
	for _, m := range messages {
		raw, err := json.Marshal(map[string]string{"message": m})
		require.NoError(t, err)
		items = append(items, string(raw))
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)
	return string(raw)
}

func TestParseErrorPrefersServerMessages(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"_server_messages": encodeServerMessages(t, "<b>Stok</b> tidak cukup"),
		"exc":              "Traceback\nValidationError: ignored",
		"message":          "ignored too",
	})
	require.NoError(t, err)

	got := parseError(http.StatusExpectationFailed, body)
	var rejection *shared.BackendRejection
	require.ErrorAs(t, got, &rejection)
	assert.Equal(t, "Stok tidak cukup", rejection.Message)
	assert.False(t, rejection.PeriodClosed)
}

func TestParseErrorFallsBackToLastExcLine(t *testing.T) {
	body := []byte(`{"exc":"[\"Traceback (most recent call last):\\n  File x\\nfrappe.exceptions.ValidationError: Posting date falls in a closed accounting period\"]"}`)

	got := parseError(http.StatusExpectationFailed, body)
	var rejection *shared.BackendRejection
	require.ErrorAs(t, got, &rejection)
	assert.Equal(t, "Posting date falls in a closed accounting period", rejection.Message)
	assert.True(t, rejection.PeriodClosed)
}

func TestParseErrorMessageThenException(t *testing.T) {
	got := parseError(http.StatusBadRequest, []byte(`{"message":"Qty must be positive"}`))
	assert.Equal(t, "Qty must be positive", got.Error())

	got = parseError(http.StatusInternalServerError, []byte(`{"exception":"frappe.exceptions.LinkValidationError: Customer X not found"}`))
	assert.Equal(t, "Customer X not found", got.Error())

	got = parseError(http.StatusInternalServerError, []byte(`<html>boom</html>`))
	assert.True(t, errors.Is(got, shared.ErrBackendRejected))
	assert.Contains(t, got.Error(), "500")
}

func TestParseErrorClassifies(t *testing.T) {
	assert.ErrorIs(t, parseError(http.StatusNotFound, []byte(`{}`)), shared.ErrNotFound)
	assert.ErrorIs(t, parseError(http.StatusForbidden, []byte(`{"exc_type":"DoesNotExistError"}`)), shared.ErrNotFound)
	assert.ErrorIs(t, parseError(http.StatusBadGateway, nil), shared.ErrTransient)
	assert.ErrorIs(t, parseError(http.StatusGatewayTimeout, nil), shared.ErrTransient)
}

func TestClientSendsTokenAndDecodesData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token k:s", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/resource/Sales Order/SO-0001", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"name": "SO-0001", "docstatus": 1}})
	})

	var doc struct {
		Name      string `json:"name"`
		DocStatus int    `json:"docstatus"`
	}
	require.NoError(t, client.GetDocument(context.Background(), "Sales Order", "SO-0001", &doc))
	assert.Equal(t, "SO-0001", doc.Name)
	assert.Equal(t, 1, doc.DocStatus)
}

func TestClientListEncodesQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, `[["company","=","ACME"]]`, q.Get("filters"))
		assert.Equal(t, `["name"]`, q.Get("fields"))
		assert.Equal(t, "0", q.Get("limit_page_length"))
		assert.Equal(t, "creation desc", q.Get("order_by"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]string{{"name": "A"}, {"name": "B"}}})
	})

	var rows []struct {
		Name string `json:"name"`
	}
	err := client.ListDocuments(context.Background(), "Sales Order", Query{
		Filters: []Filter{Eq("company", "ACME")},
		Fields:  []string{"name"},
		Limit:   Unbounded,
		OrderBy: "creation desc",
	}, &rows)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestClientTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	client := NewClient(Config{BaseURL: srv.URL}, nil)

	err := client.Ping(context.Background())
	assert.ErrorIs(t, err, shared.ErrTransient)
}

func TestClientUpdateRequiresName(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	err := client.Update(context.Background(), "Sales Order", "", map[string]any{}, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

type recordingObserver struct {
	ops []string
}

func (o *recordingObserver) ObserveERP(op string, _ time.Time, _ error) {
	o.ops = append(o.ops, op)
}

func TestClientReportsToObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": 3})
	}))
	t.Cleanup(srv.Close)
	obs := &recordingObserver{}
	client := NewClient(Config{BaseURL: srv.URL}, obs)

	n, err := client.Count(context.Background(), "Sales Order", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"frappe.client.get_count"}, obs.ops)
}
