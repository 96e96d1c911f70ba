package analytics

import "github.com/ukydev/vehicle-service-log/internal/models"

// Summary is every statistic derived for one vehicle.
type Summary struct {
	ServiceCount       int              `json:"service_count"`
	Monthly            []MonthlySummary `json:"monthly"`
	CadenceDays        int              `json:"cadence_days"`
	Reliability        Reliability      `json:"reliability"`
	MonthlyAverageCost float64          `json:"monthly_average_cost"`
	TotalMileage       int              `json:"total_mileage"`
	YearlyMileage      int              `json:"yearly_mileage"`
}

// Summarize classifies the full service history of a vehicle and derives
// the statistics from the owner's own services.
func Summarize(services []models.Service) Summary {
	own := Classify(services)
	cadence := CadenceDays(own)
	return Summary{
		ServiceCount:       len(own),
		Monthly:            MonthlyStats(own),
		CadenceDays:        cadence,
		Reliability:        ReliabilityFor(cadence),
		MonthlyAverageCost: MonthlyAverageCost(own),
		TotalMileage:       TotalMileage(own),
		YearlyMileage:      YearlyMileage(own),
	}
}

// CostBreakdown splits the spend on a vehicle by service category.
type CostBreakdown struct {
	Total         float64 `json:"total"`
	Own           float64 `json:"own"` // everything but previous-owner work
	PreviousOwner float64 `json:"previous_owner"`
	Offroad       float64 `json:"offroad"`
}

// Breakdown totals the cost of every service by category. Off-road work is
// part of Own unless it also predates the current ownership.
func Breakdown(services []models.Service) CostBreakdown {
	var b CostBreakdown
	for _, s := range services {
		cost := s.TotalCost()
		b.Total += cost
		if s.IsPreviousOwner() {
			b.PreviousOwner += cost
		} else {
			b.Own += cost
		}
		if s.IsOffroad() {
			b.Offroad += cost
		}
	}
	return b
}
