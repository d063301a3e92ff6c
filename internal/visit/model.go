// Package visit provides the check-in/check-out domain model and data access.
package visit

import "time"

// Action is what a scan did to a place.
type Action string

const (
	CheckIn  Action = "check_in"
	CheckOut Action = "check_out"
)

// Label returns a human-readable label for the action.
func (a Action) Label() string {
	switch a {
	case CheckIn:
		return "Checked in"
	case CheckOut:
		return "Checked out"
	default:
		return string(a)
	}
}

// Visit is one stay at a place. CheckOut is nil while the visit is open.
type Visit struct {
	ID       int64      `json:"id"`
	Place    string     `json:"place"`
	CheckIn  time.Time  `json:"check_in"`
	CheckOut *time.Time `json:"check_out,omitempty"`
}

// IsOpen reports whether the visit has no check-out yet.
func (v *Visit) IsOpen() bool {
	return v.CheckOut == nil
}

// Minutes returns the whole minutes spent on the visit. Open visits are
// measured up to now. The result is never negative.
func (v *Visit) Minutes(now time.Time) int64 {
	end := now
	if v.CheckOut != nil {
		end = *v.CheckOut
	}
	return minutesBetween(v.CheckIn, end)
}

// ScanResult is the outcome of recording a scan.
type ScanResult struct {
	Action Action `json:"action"`
	Visit  *Visit `json:"visit"`
}

// Summary aggregates the visits of one place.
type Summary struct {
	Place        string    `json:"place"`
	Visits       int64     `json:"visits"`
	TotalMinutes int64     `json:"total_minutes"`
	Open         bool      `json:"open"`
	LastCheckIn  time.Time `json:"last_check_in"`
}

// minutesBetween returns whole minutes from start to end, truncated, and 0
// when end precedes start.
func minutesBetween(start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Minute)
}
