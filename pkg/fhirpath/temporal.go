package fhirpath

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Precision is the finest component present in a temporal value.
type Precision int

const (
	PrecisionYear Precision = iota + 1
	PrecisionMonth
	PrecisionDay
	PrecisionHour
	PrecisionMinute
	PrecisionSecond
	PrecisionMillisecond
)

// Date is a calendar date with year, month or day precision.
type Date struct {
	Time      time.Time
	Precision Precision
}

// DateTime is a point in time with any precision from year to millisecond.
type DateTime struct {
	Time      time.Time
	Precision Precision
	// Zoned is set when the source carried a time zone offset.
	Zoned bool
}

// Time is a time of day.
type Time struct {
	Hour, Minute, Second, Millisecond int
	Precision                         Precision
}

// ParseDate parses YYYY, YYYY-MM or YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	layouts := []struct {
		layout string
		prec   Precision
	}{
		{"2006-01-02", PrecisionDay},
		{"2006-01", PrecisionMonth},
		{"2006", PrecisionYear},
	}
	for _, l := range layouts {
		if len(s) != len(l.layout) {
			continue
		}
		t, err := time.Parse(l.layout, s)
		if err == nil {
			return Date{Time: t, Precision: l.prec}, nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

// ParseDateTime parses a partial or full ISO 8601 date-time, with an optional offset.
func ParseDateTime(s string) (DateTime, error) {
	datePart, timePart, hasTime := strings.Cut(s, "T")
	d, err := ParseDate(datePart)
	if err != nil {
		return DateTime{}, fmt.Errorf("invalid dateTime %q", s)
	}
	if !hasTime || timePart == "" {
		return DateTime{Time: d.Time, Precision: d.Precision}, nil
	}
	if d.Precision != PrecisionDay {
		return DateTime{}, fmt.Errorf("invalid dateTime %q", s)
	}

	loc := time.UTC
	zoned := false
	if strings.HasSuffix(timePart, "Z") {
		timePart = strings.TrimSuffix(timePart, "Z")
		zoned = true
	} else if i := strings.LastIndexAny(timePart, "+-"); i > 0 {
		offset, err := parseOffset(timePart[i:])
		if err != nil {
			return DateTime{}, fmt.Errorf("invalid dateTime %q", s)
		}
		loc = time.FixedZone("", offset)
		timePart = timePart[:i]
		zoned = true
	}
	clock, err := ParseTime(timePart)
	if err != nil {
		return DateTime{}, fmt.Errorf("invalid dateTime %q", s)
	}
	t := time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(),
		clock.Hour, clock.Minute, clock.Second, clock.Millisecond*int(time.Millisecond), loc)
	return DateTime{Time: t, Precision: clock.Precision, Zoned: zoned}, nil
}

// ParseTime parses hh, hh:mm, hh:mm:ss or hh:mm:ss.fff.
func ParseTime(s string) (Time, error) {
	parts := strings.Split(s, ":")
	if len(parts) == 0 || len(parts) > 3 {
		return Time{}, fmt.Errorf("invalid time %q", s)
	}
	var t Time
	fields := []*int{&t.Hour, &t.Minute, &t.Second}
	limits := []int{23, 59, 59}
	for i, p := range parts {
		if i == 2 {
			if sec, frac, ok := strings.Cut(p, "."); ok {
				if frac == "" || len(frac) > 9 {
					return Time{}, fmt.Errorf("invalid time %q", s)
				}
				ms, err := strconv.Atoi((frac + "00")[:3])
				if err != nil {
					return Time{}, fmt.Errorf("invalid time %q", s)
				}
				t.Millisecond = ms
				t.Precision = PrecisionMillisecond
				p = sec
			}
		}
		if len(p) != 2 {
			return Time{}, fmt.Errorf("invalid time %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return Time{}, fmt.Errorf("invalid time %q", s)
		}
		*fields[i] = n
	}
	if t.Precision == 0 {
		t.Precision = PrecisionHour + Precision(len(parts)-1)
	}
	return t, nil
}

func parseOffset(s string) (int, error) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	hh, mm, ok := strings.Cut(s[1:], ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	return sign * (h*3600 + m*60), nil
}

func (d Date) String() string {
	switch d.Precision {
	case PrecisionYear:
		return d.Time.Format("2006")
	case PrecisionMonth:
		return d.Time.Format("2006-01")
	default:
		return d.Time.Format("2006-01-02")
	}
}

func (dt DateTime) String() string {
	if dt.Precision <= PrecisionDay {
		return Date{Time: dt.Time, Precision: dt.Precision}.String()
	}
	var layout string
	switch dt.Precision {
	case PrecisionHour:
		layout = "2006-01-02T15"
	case PrecisionMinute:
		layout = "2006-01-02T15:04"
	case PrecisionSecond:
		layout = "2006-01-02T15:04:05"
	default:
		layout = "2006-01-02T15:04:05.000"
	}
	if dt.Zoned {
		layout += "Z07:00"
	}
	return dt.Time.Format(layout)
}

func (t Time) String() string {
	switch t.Precision {
	case PrecisionHour:
		return fmt.Sprintf("%02d", t.Hour)
	case PrecisionMinute:
		return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
	case PrecisionMillisecond:
		return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour, t.Minute, t.Second, t.Millisecond)
	default:
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
}

// components lays a temporal value out as [year, month, day, hour, minute, second, ms].
func components(v any) ([]int, Precision, bool) {
	switch x := v.(type) {
	case Date:
		t := x.Time
		return []int{t.Year(), int(t.Month()), t.Day(), 0, 0, 0, 0}, x.Precision, true
	case DateTime:
		t := x.Time
		if x.Zoned {
			t = t.UTC()
		}
		return []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(),
			t.Nanosecond() / int(time.Millisecond)}, x.Precision, true
	case Time:
		// Times occupy the hour..ms slots; the date slots are fixed so they compare equal.
		return []int{0, 0, 0, x.Hour, x.Minute, x.Second, x.Millisecond}, x.Precision, true
	}
	return nil, 0, false
}

// compareTemporal returns -1, 0 or 1, or ok=false when precision makes the result unknown.
func compareTemporal(a, b any) (int, bool) {
	_, aTime := a.(Time)
	_, bTime := b.(Time)
	if aTime != bTime {
		return 0, false
	}
	ca, pa, okA := components(a)
	cb, pb, okB := components(b)
	if !okA || !okB {
		return 0, false
	}
	start := 0
	if aTime {
		start = 3
	}
	common := min(pa, pb)
	for i := start; i < int(common); i++ {
		if ca[i] != cb[i] {
			if ca[i] < cb[i] {
				return -1, true
			}
			return 1, true
		}
	}
	if pa != pb {
		return 0, false
	}
	return 0, true
}

// calendarUnits maps calendar keywords and UCUM codes to a canonical unit.
var calendarUnits = map[string]string{
	"year": "year", "years": "year", "a": "year",
	"month": "month", "months": "month", "mo": "month",
	"week": "week", "weeks": "week", "wk": "week",
	"day": "day", "days": "day", "d": "day",
	"hour": "hour", "hours": "hour", "h": "hour",
	"minute": "minute", "minutes": "minute", "min": "minute",
	"second": "second", "seconds": "second", "s": "second",
	"millisecond": "millisecond", "milliseconds": "millisecond", "ms": "millisecond",
}

func addCalendar(t time.Time, q Quantity, sign int) (time.Time, error) {
	unit, ok := calendarUnits[q.Unit]
	if !ok {
		return t, typeErr("cannot add quantity in unit '%s' to a date", q.Unit)
	}
	n := int(q.Value) * sign
	switch unit {
	case "year":
		return addMonths(t, 12*n), nil
	case "month":
		return addMonths(t, n), nil
	case "week":
		return t.AddDate(0, 0, 7*n), nil
	case "day":
		return t.AddDate(0, 0, n), nil
	case "hour":
		return t.Add(time.Duration(n) * time.Hour), nil
	case "minute":
		return t.Add(time.Duration(n) * time.Minute), nil
	case "second":
		return t.Add(time.Duration(q.Value*float64(sign)*float64(time.Second))), nil
	default:
		return t.Add(time.Duration(n) * time.Millisecond), nil
	}
}

// addMonths moves t by n calendar months, clamping the day to the last day of the
// target month: 2020-01-31 + 1 month is 2020-02-29.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	last := target.AddDate(0, 1, -1).Day()
	return target.AddDate(0, 0, min(t.Day(), last)-1)
}
