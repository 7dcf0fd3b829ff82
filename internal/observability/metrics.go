package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/dhe2en832/erp-next-system-sub000/internal/jobs"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	erpDuration     *prometheus.HistogramVec
	settlements     *prometheus.CounterVec
	guardRejections *prometheus.CounterVec
	stockFailures   prometheus.Counter
	submitRejects   *prometheus.CounterVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradechain_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradechain_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	erpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradechain_erp_request_duration_seconds",
		Help:    "Durasi panggilan ke ERP per operasi dan hasil.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "outcome"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradechain_warkat_settlements_total",
		Help: "Jumlah kliring dan tolakan warkat per arah dan hasil.",
	}, []string{"direction", "action", "outcome"})
	guard := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradechain_submission_guard_rejections_total",
		Help: "Simpan yang ditolak karena penyimpanan lain sedang berjalan.",
	}, []string{"kind"})
	stock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tradechain_stock_lookup_failures_total",
		Help: "Kegagalan pencarian stok yang diganti dengan snapshot nol.",
	})
	submitRejects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradechain_submit_rejections_total",
		Help: "Submit dokumen yang ditolak per alasan.",
	}, []string{"kind", "reason"})
	registry.MustRegister(requests, duration, erpDuration, settlements, guard, stock, submitRejects)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		erpDuration:     erpDuration,
		settlements:     settlements,
		guardRejections: guard,
		stockFailures:   stock,
		submitRejects:   submitRejects,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Jobs mengembalikan metrik pekerjaan latar yang terdaftar pada registry yang sama.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// ObserveERP mencatat durasi satu panggilan ERP.
func (m *Metrics) ObserveERP(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.erpDuration.WithLabelValues(op, outcome).Observe(time.Since(started).Seconds())
}

// RecordSettlement menghitung satu aksi warkat.
func (m *Metrics) RecordSettlement(direction, action string, err error) {
	if m == nil {
		return
	}
	outcome := "posted"
	if err != nil {
		outcome = "failed"
	}
	m.settlements.WithLabelValues(direction, action, outcome).Inc()
}

// RecordGuardRejection menghitung simpan yang ditolak penjaga pengiriman.
func (m *Metrics) RecordGuardRejection(kind string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(kind).Inc()
}

// RecordStockFailure menghitung kegagalan pencarian stok.
func (m *Metrics) RecordStockFailure() {
	if m == nil {
		return
	}
	m.stockFailures.Inc()
}

// RecordSubmitRejection menghitung submit yang ditolak.
func (m *Metrics) RecordSubmitRejection(kind, reason string) {
	if m == nil {
		return
	}
	m.submitRejects.WithLabelValues(kind, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
