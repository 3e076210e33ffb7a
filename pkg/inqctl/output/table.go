package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/storage"
)

const maxErrorWidth = 60

func WriteDeliveryTable(w io.Writer, records []delivery.Record) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCHANNEL\tSTATUS\tRETRIES\tCREATED\tUPDATED\tLAST_ERROR")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n", r.ID, r.Channel, r.Status, r.RetryCount,
			formatTime(r.CreatedAt), formatTime(r.UpdatedAt), truncate(r.LastError, maxErrorWidth))
	}
	_ = tw.Flush()
}

func WriteSweepResult(w io.Writer, res delivery.SweepResult) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROCESSED\tSENT\tRETRYING\tFAILED\tESCALATED\tERRORS")
	_, _ = fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n", res.Processed, res.Sent, res.Retrying, res.Failed, res.Escalated, res.Errors)
	_ = tw.Flush()
}

func WritePurgeStats(w io.Writer, stats storage.PurgeStats) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TABLE\tREMOVED")
	_, _ = fmt.Fprintf(tw, "failed_emails\t%d\n", stats.Deliveries)
	_, _ = fmt.Fprintf(tw, "rate_limits\t%d\n", stats.Counters)
	_, _ = fmt.Fprintf(tw, "duplicate_attempts\t%d\n", stats.Audit)
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// truncate shortens s to n runes and flattens newlines.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "-"
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
