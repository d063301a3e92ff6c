// Package location picks a position estimate from several providers.
package location

import "time"

// Fix is a last-known position reported by one provider. Accuracy is the
// radius in meters; smaller is better.
type Fix struct {
	Provider string    `json:"provider" validate:"required"`
	Lat      float64   `json:"lat" validate:"latitude"`
	Lng      float64   `json:"lng" validate:"longitude"`
	Accuracy float64   `json:"accuracy" validate:"gte=0"`
	Time     time.Time `json:"time"`
}

// Best returns the fix with the smallest accuracy radius. Nil fixes are
// skipped, and ties keep the earlier fix. It returns nil when no fix is given.
func Best(fixes []*Fix) *Fix {
	var best *Fix
	for _, f := range fixes {
		if f == nil {
			continue
		}
		if best == nil || f.Accuracy < best.Accuracy {
			best = f
		}
	}
	return best
}
