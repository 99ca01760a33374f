package chat

import (
	"fmt"
	"strings"

	"courtbot/pkg/booking"
	"courtbot/pkg/games"
	"courtbot/pkg/timeparse"
)

const helpTextTemplate = `Commands:
!check M/D RANGE        is the court free?
!book M/D RANGE [court] reserve it now
!game M/D RANGE [court] start a game others can join
!in GAME / !out GAME    join or leave a game
!games                  list open games
%s.`

func HelpText() string {
	return fmt.Sprintf(helpTextTemplate, timeparse.FormatHint)
}

func RenderAvailability(outcome booking.AvailabilityOutcome) string {
	if outcome.ParseFailed() {
		return outcome.Message + "."
	}
	return outcome.Message
}

func RenderBooking(outcome booking.BookingOutcome) string {
	switch {
	case outcome.ParseFailed():
		return outcome.Message + "."
	case outcome.Success:
		return "Booked! " + outcome.Message
	case outcome.Uncertain:
		return "Not sure it went through. " + outcome.Message
	default:
		return outcome.Message
	}
}

func RenderGame(game games.Game, roster games.Roster, capacity int) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Game %s: %s %s", game.ID, game.Date, game.TimeRange)
	if game.Court != "" {
		fmt.Fprintf(&builder, " on %s", game.Court)
	}
	fmt.Fprintf(&builder, " (%d/%d)", len(roster.Committed), capacity)
	if game.Status != games.StatusOpen {
		fmt.Fprintf(&builder, " [%s]", game.Status)
	}
	if len(roster.Committed) > 0 {
		fmt.Fprintf(&builder, "\n  in: %s", strings.Join(roster.Committed, ", "))
	}
	if len(roster.Waitlist) > 0 {
		fmt.Fprintf(&builder, "\n  waitlist: %s", strings.Join(roster.Waitlist, ", "))
	}
	return builder.String()
}
