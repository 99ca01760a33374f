package timeparse

import (
	"regexp"
	"strconv"
	"time"
)

var shortDateExpression = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?\s*$`)

// TargetDate is a calendar day with no time component.
type TargetDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ResolveDate reads "M/D" relative to now. A date strictly before today rolls into next year.
// An explicit year ("M/D/YY" or "M/D/YYYY") is taken as given.
func ResolveDate(text string, now time.Time) (TargetDate, bool) {
	matches := shortDateExpression.FindStringSubmatch(text)
	if matches == nil {
		return TargetDate{}, false
	}
	month, _ := strconv.Atoi(matches[1])
	day, _ := strconv.Atoi(matches[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return TargetDate{}, false
	}

	year := now.Year()
	explicitYear := matches[3] != ""
	if explicitYear {
		year, _ = strconv.Atoi(matches[3])
		if year < 100 {
			year += 2000
		}
	}

	candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	// time.Date normalises 2/30 into March; reject instead of guessing.
	if candidate.Month() != time.Month(month) || candidate.Day() != day {
		return TargetDate{}, false
	}
	if !explicitYear && candidate.Before(StartOfDay(now)) {
		candidate = time.Date(year+1, time.Month(month), day, 0, 0, 0, 0, now.Location())
		if candidate.Month() != time.Month(month) {
			return TargetDate{}, false
		}
	}
	return TargetDate{Year: candidate.Year(), Month: candidate.Month(), Day: candidate.Day()}, true
}

func FromTime(moment time.Time) TargetDate {
	return TargetDate{Year: moment.Year(), Month: moment.Month(), Day: moment.Day()}
}

// Time returns midnight of the date in loc.
func (d TargetDate) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d TargetDate) String() string {
	return d.Time(time.UTC).Format("Mon Jan 2, 2006")
}

func (d TargetDate) Before(other TargetDate) bool {
	return d.Time(time.UTC).Before(other.Time(time.UTC))
}

func (d TargetDate) Equal(other TargetDate) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}

func StartOfDay(moment time.Time) time.Time {
	return time.Date(moment.Year(), moment.Month(), moment.Day(), 0, 0, 0, 0, moment.Location())
}

// DaysUntil counts calendar days from now's date to target. Negative when target is past.
func DaysUntil(now time.Time, target TargetDate) int {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := target.Time(time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
