package matcher

import (
	"strings"

	"courtbot/pkg/surface"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusUnknown     Status = "unknown"
)

// Verdict is the classification of one hour. Candidate is set only when Status is available.
// Channel names the signal that decided it.
type Verdict struct {
	Status    Status
	Candidate *surface.SlotCandidate
	Channel   string
}

type indicatorChannel struct {
	name    string
	matches func(surface.UnavailableIndicator, MatchData) bool
}

type candidateChannel struct {
	name    string
	matches func(surface.SlotCandidate, MatchData) bool
}

// Channels are evaluated in order. New signals go at the end.
var indicatorChannels = []indicatorChannel{
	{"indicator_time_exact", func(indicator surface.UnavailableIndicator, data MatchData) bool {
		return data.MatchesExact(indicator.Time)
	}},
	{"indicator_parent_time_exact", func(indicator surface.UnavailableIndicator, data MatchData) bool {
		return data.MatchesExact(indicator.ParentTime)
	}},
	{"indicator_parent_label", func(indicator surface.UnavailableIndicator, data MatchData) bool {
		return data.MatchesStartTime(indicator.ParentLabel)
	}},
	{"indicator_url", func(indicator surface.UnavailableIndicator, data MatchData) bool {
		for _, field := range []string{indicator.Href, indicator.Label, indicator.Time, indicator.ParentTime, indicator.ParentLabel} {
			if data.MatchesURL(field) {
				return true
			}
		}
		return false
	}},
}

var candidateChannels = []candidateChannel{
	{"candidate_url", func(candidate surface.SlotCandidate, data MatchData) bool {
		return data.MatchesURL(candidate.Href) || data.MatchesURL(candidate.ParentHref)
	}},
	{"candidate_label", func(candidate surface.SlotCandidate, data MatchData) bool {
		return data.MatchesStartTime(candidate.Label) || data.MatchesStartTime(candidate.ParentLabel)
	}},
	{"candidate_parent_time_exact", func(candidate surface.SlotCandidate, data MatchData) bool {
		return data.MatchesExact(candidate.ParentTime)
	}},
	{"candidate_text", func(candidate surface.SlotCandidate, data MatchData) bool {
		return data.MatchesStartTime(candidate.Text)
	}},
}

// Classify decides one hour. Any matching indicator makes it unavailable regardless of
// candidates; unknown means no channel recognised the hour at all.
func Classify(candidates []surface.SlotCandidate, indicators []surface.UnavailableIndicator, data MatchData) Verdict {
	for _, indicator := range indicators {
		for _, channel := range indicatorChannels {
			if channel.matches(indicator, data) {
				return Verdict{Status: StatusUnavailable, Channel: channel.name}
			}
		}
	}
	for index := range candidates {
		for _, channel := range candidateChannels {
			if channel.matches(candidates[index], data) {
				chosen := candidates[index]
				return Verdict{Status: StatusAvailable, Candidate: &chosen, Channel: channel.name}
			}
		}
	}
	return Verdict{Status: StatusUnknown}
}

// FilterByResource keeps candidates that mention the resource (court) name. When no candidate
// mentions it at all the surface is not labelling resources and the list is returned unchanged.
func FilterByResource(candidates []surface.SlotCandidate, resourceName string) []surface.SlotCandidate {
	needle := strings.ToLower(strings.TrimSpace(resourceName))
	if needle == "" {
		return candidates
	}
	var filtered []surface.SlotCandidate
	for _, candidate := range candidates {
		haystack := strings.ToLower(strings.Join([]string{candidate.Label, candidate.ParentLabel, candidate.Text, candidate.Href}, " "))
		if strings.Contains(haystack, needle) {
			filtered = append(filtered, candidate)
		}
	}
	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}
