package stock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

func stockRouter(resolver *Resolver, s shared.Scope) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithScope(req.Context(), s)))
		})
	})
	NewHandler(nil, resolver).MountRoutes(r)
	return r
}

func TestHandlerAvailability(t *testing.T) {
	backend := &fakeBackend{levels: map[string][]Snapshot{
		"A": {snap("A", "Gudang Utama", 3), snap("A", "Cabang", 40)},
	}}
	router := stockRouter(NewResolver(backend, 10, nil, nil), scope)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/A?warehouse=Gudang%20Utama", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var single Annotation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &single))
	assert.Equal(t, "Gudang Utama", single.Snapshot.Warehouse)
	assert.True(t, single.Has(WarningLowStock))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/A?warehouse=Gudang%20Utama,Cabang", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var best Annotation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &best))
	assert.Equal(t, "Cabang", best.Snapshot.Warehouse)
	assert.Empty(t, best.Warnings)
}

func TestHandlerRequiresCompany(t *testing.T) {
	router := stockRouter(NewResolver(&fakeBackend{}, 10, nil, nil), shared.Scope{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/A", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
