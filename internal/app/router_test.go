package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhe2en832/erp-next-system-sub000/internal/observability"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestScopeMiddlewarePrefersHeaders(t *testing.T) {
	fixed := time.Date(2026, 5, 2, 23, 30, 0, 0, time.UTC)
	cfg := &Config{DefaultCompany: "PT Maju Jaya", CompanyAbbr: "MJ"}

	var got shared.Scope
	h := ScopeMiddleware(cfg, func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = shared.ScopeFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "PT Maju Jaya", got.Company)
	assert.Equal(t, "MJ", got.CompanyAbbr)
	assert.Equal(t, "anonymous", got.Actor)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), got.Today())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCompany, "PT Sinar Abadi")
	req.Header.Set(HeaderCompanyAbbr, "SA")
	req.Header.Set(HeaderUser, "budi@sinar.co.id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "PT Sinar Abadi", got.Company)
	assert.Equal(t, "SA", got.CompanyAbbr)
	assert.Equal(t, "budi@sinar.co.id", got.Actor)
}

func TestRouterHealthAndReadiness(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{AppEnv: "staging"}, ERP: stubPinger{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	router = NewRouter(RouterParams{ERP: stubPinger{err: errors.New("dial tcp: refused")}})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")
}

func TestRouterExposesMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{Metrics: metrics})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tradechain_http_requests_total"))
}

func TestConfigValidate(t *testing.T) {
	valid := Config{ERPBaseURL: "https://erp.example.co.id", GuardBackend: GuardBackendRedis, WarkatAgingDays: 14}
	require.NoError(t, valid.validate())

	missingSecret := valid
	missingSecret.ERPAPIKey = "key"
	assert.Error(t, missingSecret.validate())

	badGuard := valid
	badGuard.GuardBackend = "etcd"
	assert.Error(t, badGuard.validate())

	noAging := valid
	noAging.WarkatAgingDays = 0
	assert.Error(t, noAging.validate())

	assert.Equal(t, "Warkat Masuk", (&Config{WarkatMasukAccount: "Warkat Masuk"}).AccountBook().WarkatMasuk)
}
