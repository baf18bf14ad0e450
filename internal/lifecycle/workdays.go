package lifecycle

import "time"

// CivilDay returns the calendar date of t as midnight UTC. Date-only values
// (stored as midnight UTC) keep their written date; any other instant is
// read in loc first.
func CivilDay(t time.Time, loc *time.Location) time.Time {
	if !isDateOnly(t) && loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isDateOnly reports whether t is a plain date as ParseDate produces it.
func isDateOnly(t time.Time) bool {
	if t.Location() != time.UTC {
		return false
	}
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// evalZone picks the zone both operands are read in: end's, unless end is
// a plain date, then start's.
func evalZone(start, end time.Time) *time.Location {
	if !isDateOnly(end) {
		return end.Location()
	}
	return start.Location()
}

// WorkingDays counts Monday-Friday dates in (start, end]: the start date is
// excluded, the end date included, and time of day is ignored. Instants are
// compared as dates in end's zone (start's when end is a plain date), so a
// UTC timestamp and a local evaluation time agree on what "today" is.
// WorkingDays(d, d) == 0 and a full calendar week always yields 5.
func WorkingDays(start, end time.Time) int {
	loc := evalZone(start, end)
	s, e := CivilDay(start, loc), CivilDay(end, loc)
	if !e.After(s) {
		return 0
	}
	n := 0
	for d := s.AddDate(0, 0, 1); !d.After(e); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

// calendarDaysBetween is the signed number of calendar dates from start to
// end, read in the same zone as WorkingDays.
func calendarDaysBetween(start, end time.Time) int {
	loc := evalZone(start, end)
	return int(CivilDay(end, loc).Sub(CivilDay(start, loc)).Hours() / 24)
}

// EvaluationTime places t in loc for classification. A plain date becomes
// midnight of that date in loc; any other instant is converted.
func EvaluationTime(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if isDateOnly(t) {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return t.In(loc)
}
