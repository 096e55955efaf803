package advance

import "time"

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// CountWeekdays counts Monday-Friday dates in [from, to], both inclusive.
func CountWeekdays(from, to time.Time) int {
	start, end := dateOnly(from), dateOnly(to)
	count := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if isWeekday(day) {
			count++
		}
	}
	return count
}

func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// MonthWeekdays returns the weekdays from the 1st through ref and the
// weekdays in the whole month of ref.
func MonthWeekdays(ref time.Time) (worked, total int) {
	start := MonthStart(ref)
	return CountWeekdays(start, ref), CountWeekdays(start, MonthEnd(ref))
}

// IsBillingDate reports whether t falls on the 15th or the last calendar day
// of its month.
func IsBillingDate(t time.Time) bool {
	day := t.Day()
	return day == 15 || day == MonthEnd(t).Day()
}
