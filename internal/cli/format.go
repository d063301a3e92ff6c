package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/nfc-timecontrol/internal/client"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
)

const timestampLayout = "2006-01-02 15:04"

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatMinutes renders a duration in minutes as "2h 05m" or "45m".
func formatMinutes(m int64) string {
	if m < 0 {
		m = 0
	}
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

// formatTimestamp renders t in local time, or "-" for the zero time.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timestampLayout)
}

// printScan prints the outcome of a scan in text format.
func printScan(w io.Writer, res *client.ScanResponse) {
	if res.Ignored {
		fmt.Fprintf(w, "Not an ntc tag (%s), ignored.\n", res.Reason)
		return
	}
	v := res.Visit
	switch res.Action {
	case visit.CheckIn:
		fmt.Fprintf(w, "%s: %s at %s\n", res.Label, v.Place, formatTimestamp(v.CheckIn))
	case visit.CheckOut:
		fmt.Fprintf(w, "%s: %s after %s\n", res.Label, v.Place, formatMinutes(v.Minutes(time.Time{})))
	default:
		fmt.Fprintf(w, "%s: %s\n", res.Label, v.Place)
	}
}

// printSummaryTable prints place summaries as a formatted table.
func printSummaryTable(w io.Writer, sums []*visit.Summary) error {
	if len(sums) == 0 {
		fmt.Fprintln(w, "No places recorded yet. Scan a tag to check in.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "PLACE\tVISITS\tTOTAL\tSTATE\tLAST CHECK-IN"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(tw, "-----\t------\t-----\t-----\t-------------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, s := range sums {
		state := "out"
		if s.Open {
			state = "in"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			truncate(s.Place, 40), s.Visits, formatMinutes(s.TotalMinutes), state, formatTimestamp(s.LastCheckIn)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(w, "\nTotal: %d places\n", len(sums))
	return nil
}

// printVisitTable prints the visits of a place, newest first.
func printVisitTable(w io.Writer, place string, visits []*client.VisitEntry) error {
	if len(visits) == 0 {
		fmt.Fprintf(w, "No visits recorded for %s.\n", place)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tCHECK-IN\tCHECK-OUT\tDURATION"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(tw, "--\t--------\t---------\t--------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	var total int64
	for _, v := range visits {
		out := "(open)"
		if v.CheckOut != nil {
			out = formatTimestamp(*v.CheckOut)
			total += v.Minutes
		}
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			v.ID, formatTimestamp(v.CheckIn), out, formatMinutes(v.Minutes)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(w, "\n%d visits, %s total\n", len(visits), formatMinutes(total))
	return nil
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
