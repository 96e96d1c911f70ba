package analytics

import (
	"slices"
	"time"

	"github.com/ukydev/vehicle-service-log/internal/models"
)

// monthKeyLayout must stay zero padded so string order equals calendar order.
const monthKeyLayout = "2006-01"

// MonthlySummary aggregates the services of one calendar month.
type MonthlySummary struct {
	Month        string  `json:"month"` // YYYY-MM
	Label        string  `json:"label"` // e.g. "April 2021"
	ServiceCount int     `json:"service_count"`
	TotalCost    float64 `json:"total_cost"`
}

// AverageCost is the mean cost per service in the month.
func (m MonthlySummary) AverageCost() float64 {
	if m.ServiceCount == 0 {
		return 0
	}
	return m.TotalCost / float64(m.ServiceCount)
}

// MonthlyStats buckets services by calendar month (UTC), most recent month
// first.
func MonthlyStats(services []models.Service) []MonthlySummary {
	if len(services) == 0 {
		return []MonthlySummary{}
	}

	buckets := make(map[string]*MonthlySummary)
	for _, s := range services {
		key := s.Date.UTC().Format(monthKeyLayout)
		b, ok := buckets[key]
		if !ok {
			b = &MonthlySummary{Month: key, Label: monthLabel(key)}
			buckets[key] = b
		}
		b.ServiceCount++
		b.TotalCost += s.TotalCost()
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	slices.Reverse(keys)

	stats := make([]MonthlySummary, 0, len(keys))
	for _, k := range keys {
		stats = append(stats, *buckets[k])
	}
	return stats
}

func monthLabel(key string) string {
	t, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return key
	}
	return t.Format("January 2006")
}
