package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/dhe2en832/erp-next-system-sub000/internal/jobs"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
)

type stubLister struct {
	entries map[warkat.Direction][]warkat.PaymentEntry
	err     error
	scopes  []shared.Scope
}

func (s *stubLister) ListOutstanding(_ context.Context, scope shared.Scope, direction warkat.Direction) ([]warkat.PaymentEntry, error) {
	s.scopes = append(s.scopes, scope)
	if s.err != nil {
		return nil, s.err
	}
	return s.entries[direction], nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWarkatAgingScan(t *testing.T) {
	due := day(2026, 3, 20)
	lister := &stubLister{entries: map[warkat.Direction][]warkat.PaymentEntry{
		warkat.DirectionReceive: {
			{ID: "ACC-PAY-0001", PostingDate: day(2026, 3, 1), Amount: decimal.NewFromInt(2500000)},
			{ID: "ACC-PAY-0002", PostingDate: day(2026, 3, 1), WarkatDate: &due, Amount: decimal.NewFromInt(1000000)},
			{ID: "ACC-PAY-0003", PostingDate: day(2026, 3, 31), Amount: decimal.NewFromInt(750000)},
		},
		warkat.DirectionPay: {
			{ID: "ACC-PAY-0010", PostingDate: day(2026, 3, 18), Amount: decimal.NewFromInt(5000000)},
		},
	}}
	job := NewWarkatAgingJob(lister, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()), "PT Maju Jaya", 14)
	job.clock = func() time.Time { return time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC) }

	reports, err := job.Scan(context.Background(), WarkatAgingPayload{})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	receive := reports[0]
	assert.Equal(t, warkat.DirectionReceive, receive.Direction)
	assert.Equal(t, 3, receive.Outstanding)
	require.Len(t, receive.Aged, 1)
	assert.Equal(t, "ACC-PAY-0001", receive.Aged[0].ID)

	pay := reports[1]
	require.Len(t, pay.Aged, 1, "posted exactly on the cutoff counts as aged")
	assert.Equal(t, "ACC-PAY-0010", pay.Aged[0].ID)

	require.Len(t, lister.scopes, 2)
	assert.Equal(t, "PT Maju Jaya", lister.scopes[0].Company)
	assert.Equal(t, agingActor, lister.scopes[0].Actor)
}

func TestWarkatAgingHandle(t *testing.T) {
	lister := &stubLister{entries: map[warkat.Direction][]warkat.PaymentEntry{}}
	job := NewWarkatAgingJob(lister, nil, nil, "", 14)

	task, err := NewWarkatAgingTask("PT Sinar Abadi", 30)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, "PT Sinar Abadi", lister.scopes[0].Company)

	lister.err = errors.New("erp unavailable")
	assert.Error(t, job.Handle(context.Background(), task))

	bad := asynq.NewTask(TaskWarkatAging, []byte("{"))
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	var nilJob *WarkatAgingJob
	assert.Error(t, nilJob.Handle(context.Background(), task))
}

type memorySink struct {
	mu   sync.Mutex
	logs []shared.AuditLog
	err  error
}

func (s *memorySink) Record(_ context.Context, log shared.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func TestAuditRecordJob(t *testing.T) {
	sink := &memorySink{}
	job := NewAuditRecordJob(sink, nil, nil)

	entry := shared.AuditLog{
		Actor:    "sari@majujaya.co.id",
		Company:  "PT Maju Jaya",
		Action:   shared.AuditWarkatClear,
		Entity:   "Payment Entry",
		EntityID: "ACC-PAY-0001",
		Meta:     map[string]any{"journal": "ACC-JV-0001"},
		At:       time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}
	task, err := NewAuditRecordTask(entry)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sink.logs, 1)
	assert.Equal(t, entry.EntityID, sink.logs[0].EntityID)
	assert.Equal(t, "ACC-JV-0001", sink.logs[0].Meta["journal"])

	_, err = NewAuditRecordTask(shared.AuditLog{Action: shared.AuditWarkatClear})
	assert.Error(t, err)

	invalid, _ := json.Marshal(shared.AuditLog{Action: "x"})
	assert.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskAuditRecord, invalid)), asynq.SkipRetry)

	sink.err = errors.New("connection reset")
	assert.Error(t, job.Handle(context.Background(), task))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsHealthHandler(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Pending)
	assert.Equal(t, 1, body.Retry)

	r = chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("redis down")}, nil).MountRoutes(r)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
