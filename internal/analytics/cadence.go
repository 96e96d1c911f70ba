package analytics

import (
	"math"
	"time"

	"github.com/ukydev/vehicle-service-log/internal/models"
)

// Reliability is the label derived from service cadence.
type Reliability string

const (
	ReliabilityHigh   Reliability = "high"
	ReliabilityMedium Reliability = "medium"
	ReliabilityLow    Reliability = "low"
)

const (
	highCadenceDays   = 60
	mediumCadenceDays = 30
)

// ReliabilityFor maps a cadence in days onto a reliability label. Longer
// gaps between visits mean a more reliable vehicle.
func ReliabilityFor(cadenceDays int) Reliability {
	switch {
	case cadenceDays > highCadenceDays:
		return ReliabilityHigh
	case cadenceDays > mediumCadenceDays:
		return ReliabilityMedium
	default:
		return ReliabilityLow
	}
}

// CadenceDays is the mean absolute gap in days between consecutive services
// of a date-descending list, rounded to the nearest day. Fewer than two
// services have no cadence and yield 0.
func CadenceDays(services []models.Service) int {
	if len(services) < 2 {
		return 0
	}
	total := 0
	for i := 0; i < len(services)-1; i++ {
		total += abs(daysBetween(services[i].Date, services[i+1].Date))
	}
	return int(math.Round(float64(total) / float64(len(services)-1)))
}

// TotalCost sums base and item costs over services.
func TotalCost(services []models.Service) float64 {
	total := 0.0
	for _, s := range services {
		total += s.TotalCost()
	}
	return total
}

// MonthlyAverageCost spreads the total cost over the fractional number of
// months between the oldest and newest service of a date-descending list.
// When no time has elapsed the total itself is returned.
func MonthlyAverageCost(services []models.Service) float64 {
	if len(services) == 0 {
		return 0
	}
	total := TotalCost(services)
	newest := services[0].Date
	oldest := services[len(services)-1].Date
	months := monthsBetween(oldest, newest)
	if months > 0 {
		return total / months
	}
	return total
}

// monthsBetween returns the fractional number of calendar months from
// "from" to "to". Whole months are counted by stepping the calendar (with
// end-of-month clamping) and the remainder is the fraction of the adjacent
// month that has elapsed.
func monthsBetween(from, to time.Time) float64 {
	if to.Day() < from.Day() {
		return -monthsBetween(to, from)
	}
	whole := (from.Year()-to.Year())*12 + int(from.Month()-to.Month())
	anchor := addMonths(to, whole)
	before := from.Before(anchor)

	var next time.Time
	var span time.Duration
	if before {
		next = addMonths(to, whole-1)
		span = anchor.Sub(next)
	} else {
		next = addMonths(to, whole+1)
		span = next.Sub(anchor)
	}
	if span == 0 {
		return float64(-whole)
	}
	m := -(float64(whole) + float64(from.Sub(anchor))/float64(span))
	if m == 0 {
		return 0
	}
	return m
}

// addMonths moves t by n calendar months, clamping the day to the last day
// of the target month instead of overflowing into the next one.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
