package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/nfc-timecontrol/internal/client"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
)

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		minutes  int64
		expected string
	}{
		{0, "0m"},
		{45, "45m"},
		{60, "1h 00m"},
		{125, "2h 05m"},
		{-3, "0m"},
	}

	for _, tt := range tests {
		if got := formatMinutes(tt.minutes); got != tt.expected {
			t.Errorf("formatMinutes(%d) = %q, want %q", tt.minutes, got, tt.expected)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(time.Time{}); got != "-" {
		t.Errorf("zero time = %q, want -", got)
	}
	ts := time.Date(2026, 2, 8, 9, 30, 0, 0, time.Local)
	if got := formatTimestamp(ts); got != "2026-02-08 09:30" {
		t.Errorf("formatTimestamp = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world!", 8, "hello..."},
		{"multibyte", "東京オフィス本社", 6, "東京オ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncate(tt.input, tt.max)
			if result != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, result, tt.expected)
			}
		})
	}
}

func TestPrintScan(t *testing.T) {
	in := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)
	out := in.Add(95 * time.Minute)

	tests := []struct {
		name string
		res  *client.ScanResponse
		want string
	}{
		{
			name: "ignored",
			res:  &client.ScanResponse{Ignored: true, Reason: "not our tag"},
			want: "Not an ntc tag (not our tag), ignored.",
		},
		{
			name: "check in",
			res:  &client.ScanResponse{Action: visit.CheckIn, Label: "Checked in", Visit: &visit.Visit{Place: "Office", CheckIn: in}},
			want: "Checked in: Office at",
		},
		{
			name: "check out",
			res:  &client.ScanResponse{Action: visit.CheckOut, Label: "Checked out", Visit: &visit.Visit{Place: "Office", CheckIn: in, CheckOut: &out}},
			want: "Checked out: Office after 1h 35m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printScan(&buf, tt.res)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrintVisitTable(t *testing.T) {
	in := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)
	out := in.Add(30 * time.Minute)

	var buf bytes.Buffer
	err := printVisitTable(&buf, "Office", []*client.VisitEntry{
		{Visit: visit.Visit{ID: 2, Place: "Office", CheckIn: in.Add(time.Hour)}, Minutes: 10},
		{Visit: visit.Visit{ID: 1, Place: "Office", CheckIn: in, CheckOut: &out}, Minutes: 30},
	})
	if err != nil {
		t.Fatalf("print: %v", err)
	}

	s := buf.String()
	if !strings.Contains(s, "(open)") {
		t.Error("expected open marker")
	}
	if !strings.Contains(s, "2 visits, 30m total") {
		t.Errorf("missing totals line: %s", s)
	}

	buf.Reset()
	if err := printVisitTable(&buf, "Gym", nil); err != nil {
		t.Fatalf("print empty: %v", err)
	}
	if !strings.Contains(buf.String(), "No visits recorded for Gym.") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestPrintSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	err := printSummaryTable(&buf, []*visit.Summary{
		{Place: "Gym", Visits: 1, Open: true},
		{Place: "Office", Visits: 3, TotalMinutes: 200},
	})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	s := buf.String()
	for _, want := range []string{"Gym", "Office", "3h 20m", "Total: 2 places"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}
