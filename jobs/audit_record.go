package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dhe2en832/erp-next-system-sub000/internal/jobs"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// AuditRecordJob writes queued audit records to the sink.
type AuditRecordJob struct {
	Sink    shared.AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditRecordJob initialises the audit handler.
func NewAuditRecordJob(sink shared.AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRecordJob{Sink: sink, Logger: logger, Metrics: metrics}
}

// Handle persists one record. Malformed payloads are dropped.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sink == nil {
		return errors.New("audit record: handler not configured")
	}
	var log shared.AuditLog
	if err := json.Unmarshal(t.Payload(), &log); err != nil {
		return fmt.Errorf("audit record: decode: %v: %w", err, asynq.SkipRetry)
	}
	if err := log.Validate(); err != nil {
		return fmt.Errorf("audit record: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskAuditRecord)
	defer func() {
		err = tracker.End(err)
	}()
	if err := j.Sink.Record(ctx, log); err != nil {
		j.Logger.Error("audit record failed",
			slog.String("action", log.Action),
			slog.String("entity_id", log.EntityID),
			slog.Any("error", err))
		return err
	}
	return nil
}
