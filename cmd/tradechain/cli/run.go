// Package cli implements the operational subcommands of the tradechain binary.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/dhe2en832/erp-next-system-sub000/internal/app"
	"github.com/dhe2en832/erp-next-system-sub000/internal/erp"
	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
	"github.com/dhe2en832/erp-next-system-sub000/jobs"
)

const usage = `usage:
  tradechain                              start the HTTP server
  tradechain ping                         check the ERP connection
  tradechain warkat aging [-company C] [-days N] [-json]
  tradechain jobs trigger warkat:aging [-company C] [-days N]
  tradechain jobs stats
  tradechain jobs scheduled [-n N]
`

// Run executes a subcommand and returns the process exit code.
func Run(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "ping":
		if err := erp.NewClient(cfg.ERP(), nil).Ping(ctx); err != nil {
			_, _ = fmt.Fprintf(stderr, "ping: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(stdout, "erp ok")
		return 0
	case "warkat":
		return runWarkat(ctx, cfg, logger, args[1:], stdout, stderr)
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}

func runWarkat(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "aging" {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet("warkat aging", flag.ContinueOnError)
	fs.SetOutput(stderr)
	company := fs.String("company", cfg.DefaultCompany, "company to scan")
	days := fs.Int("days", cfg.WarkatAgingDays, "aging threshold in days")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	gateway := erp.NewGateway(erp.NewClient(cfg.ERP(), nil))
	service := warkat.NewService(gateway, cfg.AccountBook(), nil, nil, nil, logger)
	job := jobs.NewWarkatAgingJob(service, logger, nil, cfg.DefaultCompany, cfg.WarkatAgingDays)
	return AgingCommand(ctx, job, AgingOptions{
		Company:    *company,
		Days:       *days,
		JSONOutput: *asJSON,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	c := NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = c.Close() }()
	return jobsCommand(ctx, c, cfg, args, stdout, stderr)
}

func jobsCommand(ctx context.Context, c *JobsCLI, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(stderr, "jobs trigger: job name required")
			return 2
		}
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		company := fs.String("company", cfg.DefaultCompany, "company")
		days := fs.Int("days", cfg.WarkatAgingDays, "aging threshold in days")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		info, err := c.Trigger(ctx, args[1], TriggerParams{Company: *company, Days: *days})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		_ = json.NewEncoder(stdout).Encode(stats)
		return 0
	case "scheduled":
		fs := flag.NewFlagSet("jobs scheduled", flag.ContinueOnError)
		fs.SetOutput(stderr)
		n := fs.Int("n", 10, "page size")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		tasks, err := c.ListScheduled(*n)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs scheduled: %v\n", err)
			return 1
		}
		for _, t := range tasks {
			_, _ = fmt.Fprintf(stdout, "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
		}
		return 0
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}
