package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
	"github.com/dhe2en832/erp-next-system-sub000/jobs"
)

type stubLister struct {
	entries map[warkat.Direction][]warkat.PaymentEntry
	err     error
}

func (s stubLister) ListOutstanding(_ context.Context, _ shared.Scope, direction warkat.Direction) ([]warkat.PaymentEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entries[direction], nil
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -n)
}

func TestAgingCommandJSONReportsAgedEntries(t *testing.T) {
	lister := stubLister{entries: map[warkat.Direction][]warkat.PaymentEntry{
		warkat.DirectionReceive: {
			{ID: "ACC-PAY-0001", Party: "Toko Sinar", WarkatNumber: "BG-771", Amount: decimal.NewFromInt(2500000), PostingDate: daysAgo(30)},
			{ID: "ACC-PAY-0002", Party: "Toko Sinar", Amount: decimal.NewFromInt(100000), PostingDate: daysAgo(1)},
		},
	}}
	job := jobs.NewWarkatAgingJob(lister, nil, nil, "PT Maju Jaya", 14)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := AgingCommand(context.Background(), job, AgingOptions{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 10, exitCode, stderr.String())

	var summary AgingSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Equal(t, "PT Maju Jaya", summary.Company)
	require.Equal(t, 14, summary.Days)
	require.Len(t, summary.Entries, 1)
	require.Equal(t, "ACC-PAY-0001", summary.Entries[0].PaymentEntry)
	require.Equal(t, "Receive", summary.Entries[0].Direction)
	require.Equal(t, "2500000.00", summary.Entries[0].Amount)
}

func TestAgingCommandHumanClean(t *testing.T) {
	job := jobs.NewWarkatAgingJob(stubLister{}, nil, nil, "PT Maju Jaya", 14)
	stdout := new(bytes.Buffer)
	exitCode := AgingCommand(context.Background(), job, AgingOptions{Days: 7, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "no warkat older than 7 days")
}

func TestAgingCommandErrors(t *testing.T) {
	stderr := new(bytes.Buffer)
	job := jobs.NewWarkatAgingJob(stubLister{}, nil, nil, "", 14)
	require.Equal(t, 1, AgingCommand(context.Background(), job, AgingOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "--company is required")

	stderr.Reset()
	job = jobs.NewWarkatAgingJob(stubLister{err: errors.New("erp down")}, nil, nil, "PT Maju Jaya", 14)
	require.Equal(t, 1, AgingCommand(context.Background(), job, AgingOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "erp down")
}

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, nil }

func (s stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "sched-1", Type: jobs.TaskWarkatAging}}, nil
}

func (s stubInspector) Close() error { return nil }

func TestJobsCLITrigger(t *testing.T) {
	enq := &stubEnqueuer{}
	c := &JobsCLI{client: enq, inspector: stubInspector{}}

	info, err := c.Trigger(context.Background(), jobs.TaskWarkatAging, TriggerParams{Company: "PT Maju Jaya", Days: 7})
	require.NoError(t, err)
	require.Equal(t, jobs.TaskWarkatAging, info.Type)
	require.Len(t, enq.tasks, 1)

	var payload jobs.WarkatAgingPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "PT Maju Jaya", payload.Company)
	require.Equal(t, 7, payload.Days)

	_, err = c.Trigger(context.Background(), "report:unknown", TriggerParams{})
	require.Error(t, err)
}

func TestJobsCommandStats(t *testing.T) {
	c := &JobsCLI{client: &stubEnqueuer{}, inspector: stubInspector{info: &asynq.QueueInfo{Pending: 3, Retry: 1}}}
	stdout := new(bytes.Buffer)
	require.Equal(t, 0, jobsCommand(context.Background(), c, nil, []string{"stats"}, stdout, new(bytes.Buffer)))

	var stats QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Equal(t, jobs.QueueDefault, stats.Queue)
	require.Equal(t, 3, stats.Pending)
	require.Equal(t, 1, stats.Retry)

	stdout.Reset()
	require.Equal(t, 0, jobsCommand(context.Background(), c, nil, []string{"scheduled", "-n", "5"}, stdout, new(bytes.Buffer)))
	require.Contains(t, stdout.String(), "sched-1")

	require.Equal(t, 2, jobsCommand(context.Background(), c, nil, []string{"purge"}, stdout, new(bytes.Buffer)))
}

func TestAgingCommandHumanTable(t *testing.T) {
	lister := stubLister{entries: map[warkat.Direction][]warkat.PaymentEntry{
		warkat.DirectionPay: {
			{ID: "ACC-PAY-0009", Party: "CV Sumber Rejeki", WarkatNumber: "CEK-12", Amount: decimal.NewFromInt(1250000), PostingDate: daysAgo(20)},
		},
	}}
	job := jobs.NewWarkatAgingJob(lister, nil, nil, "PT Maju Jaya", 14)
	stdout := new(bytes.Buffer)
	require.Equal(t, 10, AgingCommand(context.Background(), job, AgingOptions{Stdout: stdout, Stderr: new(bytes.Buffer)}))
	require.Contains(t, stdout.String(), "1 warkat older than 14 days")
	require.Contains(t, stdout.String(), "ACC-PAY-0009")
	require.Contains(t, stdout.String(), "1.250.000,00")
}
