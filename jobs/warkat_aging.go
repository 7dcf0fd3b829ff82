package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dhe2en832/erp-next-system-sub000/internal/jobs"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
)

const agingActor = "system:warkat-aging"

// OutstandingLister returns Submitted warkat without a clearance date.
type OutstandingLister interface {
	ListOutstanding(ctx context.Context, scope shared.Scope, direction warkat.Direction) ([]warkat.PaymentEntry, error)
}

// AgingReport summarises one direction of an aging scan.
type AgingReport struct {
	Direction   warkat.Direction
	Outstanding int
	Aged        []warkat.PaymentEntry
}

// WarkatAgingJob flags warkat that stayed uncleared longer than the threshold.
type WarkatAgingJob struct {
	Lister         OutstandingLister
	Logger         *slog.Logger
	Metrics        *jobmetrics.Metrics
	DefaultCompany string
	DefaultDays    int
	clock          func() time.Time
}

// NewWarkatAgingJob initialises the aging scan handler.
func NewWarkatAgingJob(lister OutstandingLister, logger *slog.Logger, metrics *jobmetrics.Metrics, company string, days int) *WarkatAgingJob {
	return &WarkatAgingJob{
		Lister:         lister,
		Logger:         logger,
		Metrics:        metrics,
		DefaultCompany: company,
		DefaultDays:    days,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the aging scan.
func (j *WarkatAgingJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Lister == nil {
		return errors.New("warkat aging: handler not configured")
	}
	var payload WarkatAgingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskWarkatAging)
	defer func() {
		err = tracker.End(err)
	}()

	reports, err := j.Scan(ctx, payload)
	if err != nil {
		j.logger().Error("scan failed", slog.String("company", payload.Company), slog.Any("error", err))
		return err
	}
	for _, r := range reports {
		for _, e := range r.Aged {
			j.logger().Warn("warkat not cleared",
				slog.String("payment_entry", e.ID),
				slog.String("direction", string(r.Direction)),
				slog.String("party", e.Party),
				slog.String("warkat_number", e.WarkatNumber),
				slog.String("amount", e.Amount.StringFixed(2)),
				slog.Time("since", e.ReferenceDate()),
			)
		}
	}
	return nil
}

// Scan lists outstanding warkat per direction and publishes the counts.
func (j *WarkatAgingJob) Scan(ctx context.Context, payload WarkatAgingPayload) ([]AgingReport, error) {
	if payload.Company == "" {
		payload.Company = j.DefaultCompany
	}
	if payload.Days <= 0 {
		payload.Days = j.DefaultDays
	}
	if payload.Days <= 0 {
		payload.Days = 14
	}
	now := j.now()
	scope := shared.Scope{Company: payload.Company, Actor: agingActor, Now: func() time.Time { return now }}
	cutoff := scope.Today().AddDate(0, 0, -payload.Days)

	reports := make([]AgingReport, 0, 2)
	for _, dir := range []warkat.Direction{warkat.DirectionReceive, warkat.DirectionPay} {
		entries, err := j.Lister.ListOutstanding(ctx, scope, dir)
		if err != nil {
			return nil, err
		}
		report := AgingReport{Direction: dir, Outstanding: len(entries), Aged: Aged(entries, cutoff)}
		j.Metrics.SetWarkatAging(payload.Company, string(dir), report.Outstanding, len(report.Aged))
		reports = append(reports, report)
	}
	j.logger().Info("completed warkat aging scan",
		slog.String("company", payload.Company),
		slog.Int("days", payload.Days),
		slog.Int("receive_aged", len(reports[0].Aged)),
		slog.Int("pay_aged", len(reports[1].Aged)),
	)
	return reports, nil
}

// Aged returns the entries whose reference date is on or before cutoff.
func Aged(entries []warkat.PaymentEntry, cutoff time.Time) []warkat.PaymentEntry {
	var out []warkat.PaymentEntry
	for _, e := range entries {
		if !e.ReferenceDate().After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func (j *WarkatAgingJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskWarkatAging))
	}
	return slog.Default().With(slog.String("job", TaskWarkatAging))
}

func (j *WarkatAgingJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
