// Package calendar converts between Gregorian dates, used for storage and
// sorting, and Bikram Sambat dates, used for display and month bucketing.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a Bikram Sambat calendar date.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

var monthNames = [12]string{
	"Baisakh", "Jestha", "Asar", "Shrawan", "Bhadra", "Ashwin",
	"Kartik", "Mangsir", "Poush", "Magh", "Falgun", "Chaitra",
}

// fiscalYearStartMonth is Shrawan.
const fiscalYearStartMonth = 4

var nepalTime = time.FixedZone("NPT", 5*60*60+45*60)

// MonthName resolves "8" or "08" to "Mangsir". Anything outside 1..12 yields "".
func MonthName(index string) string {
	n, err := strconv.Atoi(strings.TrimSpace(index))
	if err != nil || n < 1 || n > 12 {
		return ""
	}
	return monthNames[n-1]
}

// MonthIndex is the inverse of MonthName: "Mangsir" yields "08". Unknown
// names yield "".
func MonthIndex(name string) string {
	name = strings.TrimSpace(name)
	for i, n := range monthNames {
		if strings.EqualFold(n, name) {
			return fmt.Sprintf("%02d", i+1)
		}
	}
	return ""
}

// ToLocalMonth returns the BS month name for a YYYY-MM-DD Gregorian date, or
// "" when the input is empty, malformed or outside the conversion table.
func ToLocalMonth(gregorian string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(gregorian))
	if err != nil {
		return ""
	}
	d, ok := FromGregorian(t)
	if !ok {
		return ""
	}
	return monthNames[d.Month-1]
}

// Today renders the current Nepal date as YYYY/MM/DD, or "" when the table
// does not cover it.
func Today() string {
	return todayAt(time.Now())
}

func todayAt(now time.Time) string {
	d, ok := FromGregorian(now.In(nepalTime))
	if !ok {
		return ""
	}
	return d.String()
}

// FromGregorian converts the calendar day of t (in t's location).
func FromGregorian(t time.Time) (Date, bool) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := int(day.Sub(epoch).Hours() / 24)
	if offset < 0 {
		return Date{}, false
	}
	for i, months := range monthDays {
		for m, n := range months {
			if offset < n {
				return Date{Year: firstYear + i, Month: m + 1, Day: offset + 1}, true
			}
			offset -= n
		}
	}
	return Date{}, false
}

// ToGregorian returns midnight UTC of the Gregorian day matching d.
func ToGregorian(d Date) (time.Time, bool) {
	idx := d.Year - firstYear
	if idx < 0 || idx >= len(monthDays) || d.Month < 1 || d.Month > 12 {
		return time.Time{}, false
	}
	if d.Day < 1 || d.Day > monthDays[idx][d.Month-1] {
		return time.Time{}, false
	}
	offset := 0
	for i := 0; i < idx; i++ {
		for _, n := range monthDays[i] {
			offset += n
		}
	}
	for m := 0; m < d.Month-1; m++ {
		offset += monthDays[idx][m]
	}
	offset += d.Day - 1
	return epoch.AddDate(0, 0, offset), true
}

// ParseLocal parses YYYY/MM/DD (or YYYY-MM-DD) as a BS date. Only the shape is
// checked; use ToGregorian to check the day exists.
func ParseLocal(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 3 {
		return Date{}, false
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, false
		}
		vals[i] = n
	}
	if vals[1] < 1 || vals[1] > 12 || vals[2] < 1 || vals[2] > 32 {
		return Date{}, false
	}
	return Date{Year: vals[0], Month: vals[1], Day: vals[2]}, true
}

// FiscalYearOf returns the fiscal year label, e.g. 2081/04/01 -> "2081/082".
func FiscalYearOf(d Date) string {
	start := d.Year
	if d.Month < fiscalYearStartMonth {
		start--
	}
	return fmt.Sprintf("%d/%03d", start, (start+1)%1000)
}

// CurrentFiscalYear is FiscalYearOf(Today()), or "" when today is not covered.
func CurrentFiscalYear() string {
	d, ok := FromGregorian(time.Now().In(nepalTime))
	if !ok {
		return ""
	}
	return FiscalYearOf(d)
}
