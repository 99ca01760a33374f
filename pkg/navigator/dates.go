package navigator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"courtbot/pkg/timeparse"
)

var (
	monthDayYearExpression = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4}))?`)
	numericDateExpression  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	yearExpression         = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

var monthByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// AcceptablePatterns lists the literal forms a toolbar may use to show the target date.
func AcceptablePatterns(target timeparse.TargetDate) []string {
	moment := target.Time(time.UTC)
	return []string{
		moment.Format("January 2, 2006"),
		moment.Format("January 2 2006"),
		moment.Format("Jan 2, 2006"),
		moment.Format("Jan 2 2006"),
		moment.Format("1/2/2006"),
		moment.Format("01/02/2006"),
		moment.Format("January 2"),
		moment.Format("Jan 2"),
	}
}

// MatchesTarget reports whether the displayed text shows target. Matching is by
// case-insensitive substring; "Feb 2" never matches inside "Feb 24", and a year-less
// pattern is rejected when the text names a different year.
func MatchesTarget(displayed string, target timeparse.TargetDate) bool {
	lowered := strings.ToLower(displayed)
	yearLiteral := strconv.Itoa(target.Year)
	for _, pattern := range AcceptablePatterns(target) {
		if !containsWholeToken(lowered, strings.ToLower(pattern)) {
			continue
		}
		if strings.Contains(pattern, yearLiteral) {
			return true
		}
		if otherYear := yearExpression.FindString(displayed); otherYear == "" || otherYear == yearLiteral {
			return true
		}
	}
	return false
}

func containsWholeToken(haystack, needle string) bool {
	offset := 0
	for {
		index := strings.Index(haystack[offset:], needle)
		if index < 0 {
			return false
		}
		end := offset + index + len(needle)
		if end >= len(haystack) || !isDigit(haystack[end]) {
			start := offset + index
			if start == 0 || !isDigit(haystack[start-1]) {
				return true
			}
		}
		offset += index + 1
	}
}

func isDigit(value byte) bool { return value >= '0' && value <= '9' }

// ParseDisplayedDate extracts a date from toolbar text. It returns false rather than guess.
// A missing year resolves to whichever of the years around near puts the date closest to it,
// so "Dec 30" read while heading for Jan 2 lands in the previous year.
func ParseDisplayedDate(displayed string, near timeparse.TargetDate) (timeparse.TargetDate, bool) {
	if matches := monthDayYearExpression.FindStringSubmatch(displayed); matches != nil {
		month, ok := monthByPrefix[strings.ToLower(matches[1][:3])]
		if !ok {
			return timeparse.TargetDate{}, false
		}
		day, _ := strconv.Atoi(matches[2])
		if matches[3] == "" {
			return nearestYear(month, day, near)
		}
		year, _ := strconv.Atoi(matches[3])
		return validDate(year, month, day)
	}
	if matches := numericDateExpression.FindStringSubmatch(displayed); matches != nil {
		month, _ := strconv.Atoi(matches[1])
		day, _ := strconv.Atoi(matches[2])
		year, _ := strconv.Atoi(matches[3])
		if month < 1 || month > 12 {
			return timeparse.TargetDate{}, false
		}
		return validDate(year, time.Month(month), day)
	}
	return timeparse.TargetDate{}, false
}

func validDate(year int, month time.Month, day int) (timeparse.TargetDate, bool) {
	candidate := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if candidate.Month() != month || candidate.Day() != day {
		return timeparse.TargetDate{}, false
	}
	return timeparse.FromTime(candidate), true
}

func nearestYear(month time.Month, day int, near timeparse.TargetDate) (timeparse.TargetDate, bool) {
	anchor := near.Time(time.UTC)
	var best timeparse.TargetDate
	var bestDistance time.Duration
	found := false
	for _, year := range []int{near.Year - 1, near.Year, near.Year + 1} {
		candidate, ok := validDate(year, month, day)
		if !ok {
			continue
		}
		distance := candidate.Time(time.UTC).Sub(anchor).Abs()
		if !found || distance < bestDistance {
			best, bestDistance, found = candidate, distance, true
		}
	}
	return best, found
}

func describe(target timeparse.TargetDate) string {
	return fmt.Sprintf("%04d-%02d-%02d", target.Year, int(target.Month), target.Day)
}
