package appointment

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateWithYearPattern = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
	dateNoYearPattern   = regexp.MustCompile(`(\d{2})\.(\d{2})\.`)
)

// yearWrapWindow is how many months back a year-less date may lie before it
// is read as belonging to next year.
const yearWrapWindow = 6

// Dated is any record carrying the shop's free-text date and time columns.
type Dated interface {
	DateText() string
	TimeText() string
}

// DateTime is a parsed slot. Month is 1-12.
type DateTime struct {
	Year         int
	Month        int
	Day          int
	Hour         int
	Minute       int
	YearInferred bool
}

// In returns the slot as an instant in loc, truncated to the minute.
func (d DateTime) In(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, 0, 0, loc)
}

// ParseDateTime reads "Di, 13.01.2026"/"13.01." together with "10:00".
// A missing year is filled in with InferYear relative to now.
// ok is false when either field cannot be read or is out of range, including
// days past the end of the month.
func ParseDateTime(date, clock string, now time.Time) (DateTime, bool) {
	var dt DateTime

	if m := dateWithYearPattern.FindStringSubmatch(date); m != nil {
		dt.Day, _ = strconv.Atoi(m[1])
		dt.Month, _ = strconv.Atoi(m[2])
		dt.Year, _ = strconv.Atoi(m[3])
	} else if m := dateNoYearPattern.FindStringSubmatch(date); m != nil {
		dt.Day, _ = strconv.Atoi(m[1])
		dt.Month, _ = strconv.Atoi(m[2])
		dt.Year = InferYear(dt.Month, now)
		dt.YearInferred = true
	} else {
		return DateTime{}, false
	}

	if dt.Month < 1 || dt.Month > 12 || dt.Day < 1 || dt.Day > daysIn(dt.Year, dt.Month) {
		return DateTime{}, false
	}

	hour, minute, ok := parseClock(clock)
	if !ok {
		return DateTime{}, false
	}
	dt.Hour = hour
	dt.Minute = minute

	return dt, true
}

// daysIn returns the length of a 1-12 month.
func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func parseClock(s string) (int, int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}

	return hour, minute, true
}

// InferYear picks the year for a 1-12 month shown without one. The shop never
// lists slots more than about half a year old, so a month lying further back
// than that has wrapped into next year.
func InferYear(month int, now time.Time) int {
	if month < int(now.Month())-yearWrapWindow {
		return now.Year() + 1
	}
	return now.Year()
}

// IsUpcoming reports whether the record starts at or after now. The slot has
// minute precision, now does not. Records that cannot be parsed count as
// upcoming.
func IsUpcoming(r Dated, now time.Time) bool {
	dt, ok := ParseDateTime(r.DateText(), r.TimeText(), now)
	if !ok {
		return true
	}
	return !dt.In(now.Location()).Before(now)
}

// FilterPast returns the records that are not yet in the past, in input order.
func FilterPast[T Dated](records []T, now time.Time) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if IsUpcoming(r, now) {
			out = append(out, r)
		}
	}
	return out
}
