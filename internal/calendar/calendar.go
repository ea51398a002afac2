// Package calendar converts UNIX timestamps to proleptic Gregorian civil
// dates using integer arithmetic only, and formats the bucket keys used for
// grouping traces by period.
package calendar

import "fmt"

const (
	secondsPerDay = 86400
	// daysPer400Years is the length of a full Gregorian leap cycle.
	daysPer400Years = 146097
)

var daysPerMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// weekdayNames is indexed by Zeller's h: 0 is Saturday.
var weekdayNames = [7]string{
	"Saturday", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday",
}

// Date is a UTC civil date and time of day.
type Date struct {
	Year    int
	Month   int // 1-12
	Day     int // 1-31
	Hour    int
	Minute  int
	Second  int
	YearDay int // 1-366
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInYear(year int) int64 {
	if IsLeap(year) {
		return 366
	}
	return 365
}

func daysInMonth(year, month int) int64 {
	if month == 2 && IsLeap(year) {
		return 29
	}
	return int64(daysPerMonth[month-1])
}

// FromUnix converts seconds since the epoch to a civil date by skipping
// whole 400-year cycles and then subtracting whole years and whole months.
func FromUnix(sec int64) Date {
	days := sec / secondsPerDay
	rem := sec % secondsPerDay
	if rem < 0 {
		rem += secondsPerDay
		days--
	}

	year := 1970 + 400*int(floorDiv(days, daysPer400Years))
	days = floorMod(days, daysPer400Years)
	for days >= daysInYear(year) {
		days -= daysInYear(year)
		year++
	}
	for days < 0 {
		year--
		days += daysInYear(year)
	}
	yearDay := int(days) + 1

	month := 1
	for days >= daysInMonth(year, month) {
		days -= daysInMonth(year, month)
		month++
	}

	return Date{
		Year:    year,
		Month:   month,
		Day:     int(days) + 1,
		Hour:    int(rem / 3600),
		Minute:  int(rem % 3600 / 60),
		Second:  int(rem % 60),
		YearDay: yearDay,
	}
}

// Zeller returns the day of week of d by Zeller's congruence:
// 0 is Saturday, 1 Sunday, ..., 6 Friday.
func (d Date) Zeller() int {
	q, m, y := d.Day, d.Month, d.Year
	if m < 3 {
		m += 12
		y--
	}
	k := int(floorMod(int64(y), 100))
	j := int(floorDiv(int64(y), 100))
	return int(floorMod(int64(q+13*(m+1)/5+k+k/4+int(floorDiv(int64(j), 4))+5*j), 7))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// WeekdayName returns the English weekday name.
func (d Date) WeekdayName() string { return weekdayNames[d.Zeller()] }

// MonthName returns the English month name.
func (d Date) MonthName() string { return monthNames[d.Month-1] }

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func (d Date) ISOWeekday() int { return (d.Zeller()+5)%7 + 1 }

// ISOWeek returns the ISO 8601 week-numbering year and week.
func (d Date) ISOWeek() (year, week int) {
	year = d.Year
	week = (d.YearDay - d.ISOWeekday() + 10) / 7
	switch {
	case week < 1:
		year--
		week = weeksInYear(year)
	case week > weeksInYear(year):
		year++
		week = 1
	}
	return year, week
}

func weeksInYear(year int) int {
	p := func(y int) int {
		y64 := int64(y)
		return int(floorMod(y64+floorDiv(y64, 4)-floorDiv(y64, 100)+floorDiv(y64, 400), 7))
	}
	if p(year) == 4 || p(year-1) == 3 {
		return 53
	}
	return 52
}

// Period is a bucket width for time grouping.
type Period string

const (
	Hour  Period = "hour"
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
)

// ParsePeriod maps a name to a Period, reporting false for unknown names.
func ParsePeriod(s string) (Period, bool) {
	switch p := Period(s); p {
	case Hour, Day, Week, Month:
		return p, true
	default:
		return "", false
	}
}

// Key formats the bucket key of sec for period p. Keys sort lexically in
// chronological order:
//
//	hour  2024-03-01-14
//	day   2024-03-01
//	week  2024-W09
//	month 2024-03
func (p Period) Key(sec int64) string {
	d := FromUnix(sec)
	switch p {
	case Hour:
		return fmt.Sprintf("%04d-%02d-%02d-%02d", d.Year, d.Month, d.Day, d.Hour)
	case Week:
		y, w := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case Month:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}
