package lifecycle

import "time"

// ExpectedExpiry adds warranty months in calendar months. When the target month is
// shorter than the production day the result clamps to the month's last day, so
// Jan 31 + 1 month is Feb 28 (or 29), never early March.
func ExpectedExpiry(production time.Time, warrantyMonths int) time.Time {
	y, m, d := production.Date()
	first := time.Date(y, m+time.Month(warrantyMonths), 1,
		production.Hour(), production.Minute(), production.Second(), production.Nanosecond(),
		production.Location())
	last := daysIn(first.Year(), first.Month(), production.Location())
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
