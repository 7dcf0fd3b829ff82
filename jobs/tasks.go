package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWarkatAging scans outstanding warkat for entries past the aging threshold.
	TaskWarkatAging = "warkat:aging"
	// TaskAuditRecord persists one audit record.
	TaskAuditRecord = "audit:record"
)

// WarkatAgingPayload selects the company and threshold of an aging scan.
type WarkatAgingPayload struct {
	Company string `json:"company"`
	Days    int    `json:"days"`
}

// NewWarkatAgingTask constructs an Asynq task for the warkat aging scan.
func NewWarkatAgingTask(company string, days int) (*asynq.Task, error) {
	body, err := json.Marshal(WarkatAgingPayload{Company: company, Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarkatAging, body, asynq.Queue(QueueDefault), asynq.Timeout(5*time.Minute)), nil
}

// NewAuditRecordTask wraps an audit record for asynchronous persistence.
func NewAuditRecordTask(log shared.AuditLog) (*asynq.Task, error) {
	if err := log.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(log)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, body, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}
