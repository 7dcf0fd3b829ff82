package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/jobs"
)

// AgingOptions defines available flags for the warkat aging command.
type AgingOptions struct {
	Company    string
	Days       int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// AgingSummary describes the JSON response for warkat aging.
type AgingSummary struct {
	OK      bool         `json:"ok"`
	Company string       `json:"company"`
	Days    int          `json:"days"`
	Entries []AgingEntry `json:"entries"`
}

// AgingEntry is one uncleared warkat past the threshold.
type AgingEntry struct {
	PaymentEntry string `json:"payment_entry"`
	Direction    string `json:"direction"`
	Party        string `json:"party"`
	WarkatNumber string `json:"warkat_number,omitempty"`
	Amount       string `json:"amount"`
	PostingDate  string `json:"posting_date"`
}

// AgingCommand runs the aging scan in-process and prints the aged entries. It exits with 10 when any
// entry is past the threshold.
func AgingCommand(ctx context.Context, job *jobs.WarkatAgingJob, opts AgingOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Company == "" && job.DefaultCompany == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "warkat aging: --company is required when DEFAULT_COMPANY is not set")
		return 1
	}
	payload := jobs.WarkatAgingPayload{Company: opts.Company, Days: opts.Days}
	reports, err := job.Scan(ctx, payload)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "warkat aging: %v\n", err)
		return 1
	}

	summary := AgingSummary{Company: opts.Company, Days: opts.Days, Entries: []AgingEntry{}}
	if summary.Company == "" {
		summary.Company = job.DefaultCompany
	}
	if summary.Days <= 0 {
		summary.Days = job.DefaultDays
	}
	for _, r := range reports {
		for _, e := range r.Aged {
			summary.Entries = append(summary.Entries, AgingEntry{
				PaymentEntry: e.ID,
				Direction:    string(r.Direction),
				Party:        e.Party,
				WarkatNumber: e.WarkatNumber,
				Amount:       e.Amount.StringFixed(2),
				PostingDate:  e.PostingDate.Format("2006-01-02"),
			})
		}
	}
	summary.OK = len(summary.Entries) == 0

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "warkat aging: encode json: %v\n", err)
			return 1
		}
	} else {
		renderAgingHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func renderAgingHuman(w io.Writer, summary AgingSummary) {
	if summary.OK {
		_, _ = fmt.Fprintf(w, "%s: no warkat older than %d days\n", summary.Company, summary.Days)
		return
	}
	_, _ = fmt.Fprintf(w, "%s: %d warkat older than %d days\n", summary.Company, len(summary.Entries), summary.Days)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ENTRY\tDIRECTION\tPARTY\tNUMBER\tAMOUNT\tPOSTED")
	for _, e := range summary.Entries {
		amount, err := decimal.NewFromString(e.Amount)
		if err == nil {
			e.Amount = shared.FormatAmount(amount)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.PaymentEntry, e.Direction, e.Party, e.WarkatNumber, e.Amount, e.PostingDate)
	}
	_ = tw.Flush()
}
