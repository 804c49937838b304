/*
calendar.go - Business-day calendar for payment date adjustment

PURPOSE:
  Implements the fixed Mexican national holiday calendar used to adjust
  scheduled payment dates. A payment can never fall on a weekend or an
  observed holiday; it is rolled back to the nearest preceding business day.

OBSERVANCE RULES:
  Each holiday is first shifted to its own observed weekday using the
  "nearest workday" substitution:
    - Falls on Saturday -> observed the Friday before
    - Falls on Sunday   -> observed the Monday after
  Note the Saturday rule can push an observance across a year boundary
  (New Year on a Saturday is observed Dec 31 of the previous year).

ROLLBACK:
  After observance, payment dates that land on a weekend or an observed
  holiday are walked backward one day at a time until a business day is
  found.

SEE ALSO:
  - schedule.go: Applies AdjustPaymentDate to every generated date
*/
package amortization

import "time"

// holidayRule is a fixed month/day national holiday.
type holidayRule struct {
	Name  string
	Month time.Month
	Day   int
}

// The seven Mexican national holidays recognized by the calendar.
var mexicanHolidays = []holidayRule{
	{"New Year", time.January, 1},
	{"Constitution Day", time.February, 5},
	{"Benito Juarez Birthday", time.March, 21},
	{"Labor Day", time.May, 1},
	{"Independence Day", time.September, 16},
	{"Revolution Day", time.November, 20},
	{"Christmas", time.December, 25},
}

// observed returns the observed date of a holiday rule for a given year,
// applying the nearest-workday substitution.
func (h holidayRule) observed(year int) time.Time {
	d := time.Date(year, h.Month, h.Day, 0, 0, 0, 0, time.UTC)
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// IsObservedHoliday reports whether date is an observed national holiday.
// Observances from the surrounding years are considered because the
// nearest-workday rule can cross a year boundary.
func IsObservedHoliday(date time.Time) bool {
	date = truncateToDay(date)
	for year := date.Year() - 1; year <= date.Year()+1; year++ {
		for _, h := range mexicanHolidays {
			if h.observed(year).Equal(date) {
				return true
			}
		}
	}
	return false
}

// IsBusinessDay reports whether date is neither a weekend nor an observed
// holiday.
func IsBusinessDay(date time.Time) bool {
	wd := date.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !IsObservedHoliday(date)
}

// AdjustPaymentDate rolls date backward to the nearest preceding business
// day. Dates already on a business day are returned unchanged.
func AdjustPaymentDate(date time.Time) time.Time {
	date = truncateToDay(date)
	for !IsBusinessDay(date) {
		date = date.AddDate(0, 0, -1)
	}
	return date
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
