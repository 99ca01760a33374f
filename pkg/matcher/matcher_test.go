package matcher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"courtbot/pkg/surface"
	"courtbot/pkg/timeparse"
)

func mustMatchData(t *testing.T, text string) MatchData {
	t.Helper()
	timeRange, ok := timeparse.ParseTimeRange(text)
	require.True(t, ok, text)
	return NewMatchData(timeRange)
}

func TestNewMatchDataLabels(t *testing.T) {
	data := mustMatchData(t, "9-11p")
	require.Equal(t, "9:00 PM", data.Label)
	require.Equal(t, 9, data.DisplayHour)
	require.Equal(t, "PM", data.Period)

	midnight := NewMatchData(timeparse.TimeRange{StartHour24: 0, StartMinute: "00", EndHour24: 1, EndMinute: "00"})
	require.Equal(t, "12:00 AM", midnight.Label)
	require.Equal(t, 12, midnight.DisplayHour)
}

func TestMatchesURL(t *testing.T) {
	data := mustMatchData(t, "9-11p")
	require.True(t, data.MatchesURL("/reserve?court=3&start=Tue%20Feb%2024%202026%209:00%20PM"))
	require.True(t, data.MatchesURL("/reserve?start=9%3A00%20PM"))
	require.True(t, data.MatchesURL("/reserve?start=2026-02-24T21:00:00"))
	require.False(t, data.MatchesURL("/reserve?start=Tue%20Feb%2024%202026%2019:00%20PM"))
	require.False(t, data.MatchesURL("/reserve?start=9:00%20AM"))
	require.False(t, data.MatchesURL("/reserve?start=2026-02-24T21:30:00"))
	require.False(t, data.MatchesURL(""))

	morning := mustMatchData(t, "9-10a")
	require.True(t, morning.MatchesURL("/reserve?start=2026-02-24T09:00:00"))
	require.False(t, morning.MatchesURL("/reserve?start=9:00%20PM"), "12-hour PM value is not a 24-hour 09:00")
}

func TestMatchesURLSkipsRangeEnd(t *testing.T) {
	nine := mustMatchData(t, "9-10p")
	ten := mustMatchData(t, "10-11p")
	for _, href := range []string{
		"/reserve?court=1&start=9%3A00%20PM&end=10%3A00%20PM",
		"/reserve?court=1&start=2026-02-24T21:00&end=2026-02-24T22:00",
		"/reserve?court=1&from=21:00:00&to=22:00:00",
		"/slots/9%3A00%20PM-10%3A00%20PM",
		"/slots/9%3A00%20PM%20to%2010%3A00%20PM",
	} {
		require.True(t, nine.MatchesURL(href), href)
		require.False(t, ten.MatchesURL(href), href)
	}
	require.True(t, ten.MatchesURL("/reserve?end=11%3A00%20PM&start=10%3A00%20PM"))
}

func TestClassifyIgnoresRangeEndInHrefs(t *testing.T) {
	ten := mustMatchData(t, "10-11p")
	candidates := []surface.SlotCandidate{
		{Ref: "slot-9", Href: "/reserve?court=1&start=9%3A00%20PM&end=10%3A00%20PM"},
		{Ref: "slot-10", Href: "/reserve?court=1&start=10%3A00%20PM&end=11%3A00%20PM"},
	}
	verdict := Classify(candidates, nil, ten)
	require.Equal(t, StatusAvailable, verdict.Status)
	require.Equal(t, "slot-10", verdict.Candidate.Ref)

	indicators := []surface.UnavailableIndicator{{Href: "/reserve?start=2026-02-24T21:00&end=2026-02-24T22:00"}}
	require.Equal(t, StatusUnknown, Classify(nil, indicators, ten).Status)
	require.Equal(t, StatusUnavailable, Classify(nil, indicators, mustMatchData(t, "9-10p")).Status)
}

func TestMatchesStartTimeSkipsRangeEnd(t *testing.T) {
	nine := mustMatchData(t, "9-10p")
	ten := mustMatchData(t, "10-11p")
	label := "Court 2 reserved at 9:00 PM to 10:00 PM"
	require.True(t, nine.MatchesStartTime(label))
	require.False(t, ten.MatchesStartTime(label))
	require.True(t, ten.MatchesStartTime("10:00 PM - 11:00 PM"))
	require.False(t, nine.MatchesStartTime("Reserve 19:00 PM"))
	require.True(t, ten.MatchesStartTime("toto 10:00 pm"))
}

func TestMatchesExact(t *testing.T) {
	data := mustMatchData(t, "12-2p")
	require.True(t, data.MatchesExact("  12:00  PM "))
	require.True(t, data.MatchesExact("12:00 pm"))
	require.False(t, data.MatchesExact("12:00 PM - 1:00 PM"))
}

func TestClassifyUnavailableFromParentLabelRespectsEndGuard(t *testing.T) {
	indicators := []surface.UnavailableIndicator{{
		Time:        "Fully booked",
		ParentLabel: "Court 1 booked at 9:00 PM to 10:00 PM",
	}}

	nine := Classify(nil, indicators, mustMatchData(t, "9-10p"))
	require.Equal(t, StatusUnavailable, nine.Status)
	require.Equal(t, "indicator_parent_label", nine.Channel)

	ten := Classify(nil, indicators, mustMatchData(t, "10-11p"))
	require.Equal(t, StatusUnknown, ten.Status)
}

func TestClassifyUnavailableWinsOverCandidate(t *testing.T) {
	data := mustMatchData(t, "9-11p")
	candidates := []surface.SlotCandidate{{Ref: "slot-0", Label: "Reserve 9:00 PM"}}
	indicators := []surface.UnavailableIndicator{{Time: "9:00 PM"}}

	verdict := Classify(candidates, indicators, data)
	require.Equal(t, StatusUnavailable, verdict.Status)
	require.Nil(t, verdict.Candidate)
	require.Equal(t, "indicator_time_exact", verdict.Channel)
}

func TestClassifyAvailableChannels(t *testing.T) {
	data := mustMatchData(t, "9-11p")
	cases := []struct {
		name      string
		candidate surface.SlotCandidate
		channel   string
	}{
		{"href", surface.SlotCandidate{Href: "/book?start=9:00%20PM"}, "candidate_url"},
		{"parent href", surface.SlotCandidate{ParentHref: "/book?start=2026-02-24T21:00"}, "candidate_url"},
		{"label", surface.SlotCandidate{Label: "Reserve Court 3 at 9:00 PM"}, "candidate_label"},
		{"parent label", surface.SlotCandidate{ParentLabel: "9:00 PM to 10:00 PM"}, "candidate_label"},
		{"parent time", surface.SlotCandidate{ParentTime: "9:00 PM"}, "candidate_parent_time_exact"},
		{"text", surface.SlotCandidate{Text: "Open 9:00 PM"}, "candidate_text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.candidate.Ref = "slot-7"
			verdict := Classify([]surface.SlotCandidate{tc.candidate}, nil, data)
			require.Equal(t, StatusAvailable, verdict.Status)
			require.Equal(t, tc.channel, verdict.Channel)
			require.NotNil(t, verdict.Candidate)
			require.Equal(t, "slot-7", verdict.Candidate.Ref)
		})
	}
}

func TestClassifyPicksTheMatchingCandidate(t *testing.T) {
	data := mustMatchData(t, "9-11p")
	candidates := []surface.SlotCandidate{
		{Ref: "slot-0", Label: "Reserve 8:00 PM"},
		{Ref: "slot-1", Label: "8:00 PM to 9:00 PM"},
		{Ref: "slot-2", Label: "Reserve 9:00 PM"},
	}
	verdict := Classify(candidates, nil, data)
	require.Equal(t, StatusAvailable, verdict.Status)
	require.Equal(t, "slot-2", verdict.Candidate.Ref)
}

func TestClassifyUnknownIsNeverAvailable(t *testing.T) {
	data := mustMatchData(t, "9-11p")
	candidates := []surface.SlotCandidate{{Ref: "slot-0", Label: "Reserve 7:00 PM", Href: "/book?start=19:00"}}
	indicators := []surface.UnavailableIndicator{{Time: "8:00 PM"}}
	verdict := Classify(candidates, indicators, data)
	require.Equal(t, StatusUnknown, verdict.Status)
	require.Nil(t, verdict.Candidate)

	require.Equal(t, StatusUnknown, Classify(nil, nil, data).Status)
}

func TestFilterByResource(t *testing.T) {
	candidates := []surface.SlotCandidate{
		{Ref: "a", Label: "Court 1 9:00 PM"},
		{Ref: "b", Label: "Court 2 9:00 PM"},
	}
	filtered := FilterByResource(candidates, "court 2")
	require.Len(t, filtered, 1)
	require.Equal(t, "b", filtered[0].Ref)

	require.Len(t, FilterByResource(candidates, "Pickleball"), 2)
	require.Len(t, FilterByResource(candidates, ""), 2)
}
