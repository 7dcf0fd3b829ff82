package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"not found", fmt.Errorf("get: %w", shared.ErrNotFound), http.StatusNotFound, ""},
		{"validation", shared.Invalid("party", "wajib diisi"), http.StatusBadRequest, ""},
		{"company", shared.ErrCompanyRequired, http.StatusBadRequest, ""},
		{"conflict", shared.Conflict("sudah dibatalkan"), http.StatusConflict, ""},
		{"exceeded", fmt.Errorf("line 1: %w", shared.ErrFulfillmentExceeded), http.StatusConflict, "fulfillment-exceeded"},
		{"rejected", shared.NewBackendRejection(417, "Insufficient stock"), http.StatusUnprocessableEntity, ""},
		{"period", shared.NewBackendRejection(417, "Accounting period is closed"), http.StatusUnprocessableEntity, "period-closed"},
		{"transient", &shared.TransientError{Op: "erp", Err: errors.New("reset")}, http.StatusBadGateway, ""},
		{"internal", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.typ, body.Type)
			assert.Equal(t, tc.status, body.Status)
		})
	}
}

type bindTarget struct {
	Party    string `json:"party" validate:"required"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

func TestBind(t *testing.T) {
	var ok bindTarget
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"party":"Toko Sinar","currency":"IDR"}`))
	require.NoError(t, Bind(req, &ok))
	assert.Equal(t, "Toko Sinar", ok.Party)

	var missing bindTarget
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"currency":"IDR"}`))
	err := Bind(req, &missing)
	require.ErrorIs(t, err, shared.ErrValidation)
	var invalid *shared.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "party", invalid.Field)

	var unknown bindTarget
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"party":"x","extra":1}`))
	assert.ErrorIs(t, Bind(req, &unknown), ErrBadRequest)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&offset=abc", nil)
	assert.Equal(t, 25, QueryInt(req, "limit", 10))
	assert.Equal(t, 0, QueryInt(req, "offset", 0))
	assert.Equal(t, 7, QueryInt(req, "missing", 7))
}
