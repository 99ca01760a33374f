package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	periodAMLiteral = "AM"
	periodPMLiteral = "PM"
	FormatHint      = "Use M/D for the date and a range like 9-11p or 12:30-2:30p for the time"
)

// Only the trailing marker is captured as the period; a start-side marker is tolerated and ignored.
var timeRangeExpression = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(?:[ap]\.?m?\.?)?\s*(?:-|–|to)\s*(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m?\.?\s*$`)

// TimeRange is an hour range on one notional day. Minutes keep their leading zeros.
type TimeRange struct {
	StartHour24 int
	StartMinute string
	EndHour24   int
	EndMinute   string
}

// ParseTimeRange turns chat shorthand like "9-11p" or "11-1p" into a TimeRange.
// ok is false for anything it cannot read unambiguously.
func ParseTimeRange(text string) (TimeRange, bool) {
	matches := timeRangeExpression.FindStringSubmatch(text)
	if matches == nil {
		return TimeRange{}, false
	}
	startHour, startOk := parseClockHour(matches[1])
	endHour, endOk := parseClockHour(matches[3])
	startMinute, startMinuteOk := normalizeMinute(matches[2])
	endMinute, endMinuteOk := normalizeMinute(matches[4])
	if !startOk || !endOk || !startMinuteOk || !endMinuteOk {
		return TimeRange{}, false
	}

	trailingPeriod := periodAMLiteral
	if strings.EqualFold(matches[5], "p") {
		trailingPeriod = periodPMLiteral
	}

	endHour24 := toHour24(endHour, trailingPeriod)
	startHour24 := toHour24(startHour, trailingPeriod)
	if startHour24 >= endHour24 {
		startHour24 = toHour24(startHour, flipPeriod(trailingPeriod))
	}
	if startHour24 >= endHour24 {
		return TimeRange{}, false
	}

	return TimeRange{
		StartHour24: startHour24,
		StartMinute: startMinute,
		EndHour24:   endHour24,
		EndMinute:   endMinute,
	}, true
}

func (r TimeRange) StartLabel() string { return DisplayLabel(r.StartHour24, r.StartMinute) }

func (r TimeRange) EndLabel() string { return DisplayLabel(r.EndHour24, r.EndMinute) }

// String renders the range the way it is echoed back to chat, e.g. "9:00 PM - 11:00 PM".
func (r TimeRange) String() string {
	return r.StartLabel() + " - " + r.EndLabel()
}

// DisplayHour maps a 24-hour value onto a 12-hour clock face, 0 and 12 both showing as 12.
func DisplayHour(hour24 int) int {
	displayHour := hour24 % 12
	if displayHour == 0 {
		return 12
	}
	return displayHour
}

func Period(hour24 int) string {
	if hour24 >= 12 {
		return periodPMLiteral
	}
	return periodAMLiteral
}

// DisplayLabel renders "9:00 PM" style labels.
func DisplayLabel(hour24 int, minute string) string {
	return fmt.Sprintf("%d:%s %s", DisplayHour(hour24), minute, Period(hour24))
}

func parseClockHour(raw string) (int, bool) {
	hour, err := strconv.Atoi(raw)
	if err != nil || hour < 1 || hour > 12 {
		return 0, false
	}
	return hour, true
}

func normalizeMinute(raw string) (string, bool) {
	if raw == "" {
		return "00", true
	}
	minute, err := strconv.Atoi(raw)
	if err != nil || minute < 0 || minute > 59 {
		return "", false
	}
	return raw, true
}

func toHour24(hour int, period string) int {
	switch {
	case hour == 12 && period == periodAMLiteral:
		return 0
	case hour == 12 && period == periodPMLiteral:
		return 12
	case period == periodPMLiteral:
		return hour + 12
	default:
		return hour
	}
}

func flipPeriod(period string) string {
	if period == periodPMLiteral {
		return periodAMLiteral
	}
	return periodPMLiteral
}
