package analytics

import (
	"math"

	"github.com/ukydev/vehicle-service-log/internal/models"
)

const daysPerYear = 365

// minSamples is the number of services needed to measure a distance rate.
const minSamples = 2

// TotalMileage is the distance between the oldest and newest service of a
// date-descending list. Odometer replacements or typos can make it
// negative; the value is reported as is.
func TotalMileage(services []models.Service) int {
	if len(services) == 0 {
		return 0
	}
	return services[0].Mileage - services[len(services)-1].Mileage
}

// YearlyMileage projects kilometers per year from a date-descending list.
// Small services are the preferred sample because they happen on a regular
// schedule; with fewer than two of them the oldest and newest services of
// the whole list are used instead.
func YearlyMileage(services []models.Service) int {
	small := make([]models.Service, 0, len(services))
	for _, s := range services {
		if s.IsSmallService() {
			small = append(small, s)
		}
	}
	if len(small) < minSamples {
		return spanRate(services)
	}
	return pairwiseRate(small)
}

// spanRate measures the rate between the newest and oldest entry.
func spanRate(services []models.Service) int {
	if len(services) < minSamples {
		return 0
	}
	newest := services[0]
	oldest := services[len(services)-1]
	days := daysBetween(newest.Date, oldest.Date)
	if days == 0 {
		return 0
	}
	km := newest.Mileage - oldest.Mileage
	return annualize(float64(km), float64(days))
}

// pairwiseRate sums absolute distance and day gaps over adjacent entries.
func pairwiseRate(services []models.Service) int {
	totalKm, totalDays := 0, 0
	for i := 0; i < len(services)-1; i++ {
		totalKm += abs(services[i].Mileage - services[i+1].Mileage)
		totalDays += abs(daysBetween(services[i].Date, services[i+1].Date))
	}
	if totalDays == 0 {
		return 0
	}
	return annualize(float64(totalKm), float64(totalDays))
}

func annualize(km, days float64) int {
	return int(math.Round(km / days * daysPerYear))
}
