// Package matcher decides whether one hour on the day view is open, taken, or unreadable.
package matcher

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"courtbot/pkg/timeparse"
)

const endTimeConnectorLiteral = "to"

var (
	endParameterNames = map[string]bool{
		"end": true, "to": true, "until": true, "stop": true, "finish": true,
		"endtime": true, "end_time": true, "end-time": true, "ends_at": true, "end_at": true,
	}
	encodedSeparatorSuffix = regexp.MustCompile(`(?i)(?:%20|\+|%C2%A0|\s)+$`)
	rangeConnectorSuffix   = regexp.MustCompile(`(?i)(?:-|%E2%80%93|to)$`)
	encodedTimeSuffix      = regexp.MustCompile(`(?i)\d{1,2}(?::|%3A)\d{2}(?:(?:%20|\+|%C2%A0|\s)*[AP]M)?$`)
)

// MatchData bundles every comparison artifact derived from one start time.
// Build it once per check or booking attempt with NewMatchData.
type MatchData struct {
	Range       timeparse.TimeRange
	DisplayHour int
	Period      string
	// Label is the canonical display form, e.g. "9:00 PM".
	Label string

	urlDisplayPattern *regexp.Regexp
	url24HourPattern  *regexp.Regexp
	startTimePattern  *regexp.Regexp
}

func NewMatchData(timeRange timeparse.TimeRange) MatchData {
	displayHour := timeparse.DisplayHour(timeRange.StartHour24)
	period := timeparse.Period(timeRange.StartHour24)
	minute := regexp.QuoteMeta(timeRange.StartMinute)
	separator := `(?:%20|\+|%C2%A0)+`
	colon := `(?::|%3A)`

	return MatchData{
		Range:       timeRange,
		DisplayHour: displayHour,
		Period:      period,
		Label:       timeRange.StartLabel(),
		urlDisplayPattern: regexp.MustCompile(fmt.Sprintf(
			`(?i)(?:^|[^0-9]|%%20|\+)(0?%d%s%s%s%s)\b`, displayHour, colon, minute, separator, period)),
		url24HourPattern: regexp.MustCompile(fmt.Sprintf(
			`(?i)(?:^|%%20|\+|T|=|/)(0?%d%s%s(?:%s00)?)`, timeRange.StartHour24, colon, minute, colon)),
		startTimePattern: regexp.MustCompile(fmt.Sprintf(
			`(?i)\b%d:%s\s*%s\b`, displayHour, minute, period)),
	}
}

// MatchesURL reports whether a URL-like string encodes this start time, either as
// "9:00%20PM" or, when the AM/PM marker is absent, as "21:00". A literal space does not
// count as an encoded one, so free-text labels never match here.
func (m MatchData) MatchesURL(value string) bool {
	if value == "" {
		return false
	}
	for _, location := range m.urlDisplayPattern.FindAllStringSubmatchIndex(value, -1) {
		if !closesURLRange(value[:location[2]]) {
			return true
		}
	}
	return m.matches24Hour(value)
}

func (m MatchData) matches24Hour(value string) bool {
	for _, location := range m.url24HourPattern.FindAllStringSubmatchIndex(value, -1) {
		if closesURLRange(value[:location[2]]) {
			continue
		}
		remainder := value[location[3]:]
		if len(remainder) > 0 && remainder[0] >= '0' && remainder[0] <= '9' {
			continue
		}
		// "09:00%20PM" is a 12-hour clock; only a bare value counts as 24-hour.
		if hasPeriodSuffix(remainder) {
			continue
		}
		return true
	}
	return false
}

// MatchesStartTime finds the label as a whole word in free text, ignoring occurrences
// that close a range ("9:00 PM to 10:00 PM" never matches 10:00 PM).
func (m MatchData) MatchesStartTime(text string) bool {
	if text == "" {
		return false
	}
	for _, location := range m.startTimePattern.FindAllStringIndex(text, -1) {
		if precededByWord(text[:location[0]], endTimeConnectorLiteral) {
			continue
		}
		return true
	}
	return false
}

// MatchesExact is for fields that only ever hold a start time.
func (m MatchData) MatchesExact(field string) bool {
	return strings.EqualFold(collapseSpaces(field), m.Label)
}

func precededByWord(prefix, word string) bool {
	trimmed := strings.TrimRightFunc(prefix, unicode.IsSpace)
	if len(trimmed) < len(word) || !strings.EqualFold(trimmed[len(trimmed)-len(word):], word) {
		return false
	}
	before := trimmed[:len(trimmed)-len(word)]
	if before == "" {
		return true
	}
	last := rune(before[len(before)-1])
	return !unicode.IsLetter(last) && !unicode.IsDigit(last)
}

// closesURLRange reports whether a time starting right after prefix is the end of a range:
// either the value of an end-style query parameter or the right side of "9:00 PM-10:00 PM".
func closesURLRange(prefix string) bool {
	if name := parameterName(prefix); name != "" && endParameterNames[name] {
		return true
	}
	trimmed := encodedSeparatorSuffix.ReplaceAllString(prefix, "")
	connector := rangeConnectorSuffix.FindString(trimmed)
	if connector == "" {
		return false
	}
	before := encodedSeparatorSuffix.ReplaceAllString(trimmed[:len(trimmed)-len(connector)], "")
	return encodedTimeSuffix.MatchString(before)
}

// parameterName returns the lowercased query or fragment parameter whose value prefix ends in.
func parameterName(prefix string) string {
	equals := strings.LastIndexByte(prefix, '=')
	if equals < 0 || strings.ContainsAny(prefix[equals+1:], "&;?#") {
		return ""
	}
	name := prefix[:equals]
	if cut := strings.LastIndexAny(name, "?&;/#"); cut >= 0 {
		name = name[cut+1:]
	}
	return strings.ToLower(name)
}

func hasPeriodSuffix(remainder string) bool {
	cleaned := strings.TrimLeft(remainder, " +")
	for strings.HasPrefix(cleaned, "%20") || strings.HasPrefix(strings.ToUpper(cleaned), "%C2%A0") {
		if strings.HasPrefix(cleaned, "%20") {
			cleaned = strings.TrimLeft(cleaned[3:], " +")
		} else {
			cleaned = strings.TrimLeft(cleaned[6:], " +")
		}
	}
	upper := strings.ToUpper(cleaned)
	return strings.HasPrefix(upper, "AM") || strings.HasPrefix(upper, "PM")
}

func collapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
