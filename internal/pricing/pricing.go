// Package pricing holds the static rate card used for savings estimates on
// rightsizing recommendations. Rates are indicative on-demand prices, not a
// billing source of truth.
package pricing

import "strings"

// sizeLadder orders instance sizes from smallest to largest. Downsizing
// recommends the next rung down within the same family.
var sizeLadder = []string{"nano", "micro", "small", "medium", "large", "xlarge", "2xlarge", "4xlarge"}

// hourlyRates maps known size classes to USD per hour.
var hourlyRates = map[string]float64{
	"t3.micro":  0.0104,
	"t3.small":  0.0208,
	"t3.medium": 0.0416,
	"m5.large":  0.096,
	"m5.xlarge": 0.192,
}

// defaultHourlyRate is used for size classes missing from the rate card.
const defaultHourlyRate = 0.05

// HourlyRate returns the on-demand hourly rate for a size class.
func HourlyRate(sizeClass string) float64 {
	if rate, ok := hourlyRates[sizeClass]; ok {
		return rate
	}
	return defaultHourlyRate
}

// DownsizeOf returns the next smaller size class in the same family, or
// false when the class is already the smallest or not of the family.size
// form.
func DownsizeOf(sizeClass string) (string, bool) {
	family, size, ok := strings.Cut(sizeClass, ".")
	if !ok {
		return "", false
	}
	for i, s := range sizeLadder {
		if s == size {
			if i == 0 {
				return "", false
			}
			return family + "." + sizeLadder[i-1], true
		}
	}
	return "", false
}

// MonthlySavings estimates the monthly saving of moving between size
// classes, assuming continuous operation over a 24x30 hour month.
func MonthlySavings(from, to string) float64 {
	diff := HourlyRate(from) - HourlyRate(to)
	if diff < 0 {
		return 0
	}
	return diff * 24 * 30
}
