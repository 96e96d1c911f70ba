// Package analytics derives maintenance statistics from a vehicle's service
// history. Every function is pure: the input slice is never modified and
// degenerate input (no services, one service, zero elapsed time) produces a
// zero value instead of an error.
package analytics

import (
	"slices"
	"time"

	"github.com/ukydev/vehicle-service-log/internal/models"
)

// excluded tags remove a service from the owner's own history.
const excluded = models.TagPreviousOwner | models.TagOffroad

// Classify returns the services that belong to the current owner and are
// not off-road work, most recent first.
func Classify(services []models.Service) []models.Service {
	own := make([]models.Service, 0, len(services))
	for _, s := range services {
		if s.Tags.HasAny(excluded) {
			continue
		}
		own = append(own, s)
	}
	slices.SortStableFunc(own, func(a, b models.Service) int {
		return b.Date.Compare(a.Date)
	})
	return own
}

// Visibility selects which service categories a listing shows.
type Visibility struct {
	PreviousOwner bool
	Own           bool
	Offroad       bool
}

// ShowAll is the default visibility.
var ShowAll = Visibility{PreviousOwner: true, Own: true, Offroad: true}

// Filter keeps the services whose category is visible. A service tagged
// both previous-owner and off-road is hidden if either category is hidden.
func Filter(services []models.Service, v Visibility) []models.Service {
	out := make([]models.Service, 0, len(services))
	for _, s := range services {
		if s.IsPreviousOwner() && !v.PreviousOwner {
			continue
		}
		if !s.Tags.HasAny(excluded) && !v.Own {
			continue
		}
		if s.IsOffroad() && !v.Offroad {
			continue
		}
		out = append(out, s)
	}
	return out
}

// daysBetween returns the whole days from b to a, truncated toward zero.
func daysBetween(a, b time.Time) int {
	return int(a.Sub(b) / (24 * time.Hour))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
