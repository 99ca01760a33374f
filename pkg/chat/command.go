// Package chat turns group chat messages into checks, bookings and game sign-ups.
package chat

import (
	"strings"

	"courtbot/pkg/timeparse"
)

type CommandKind string

const (
	CommandCheck CommandKind = "check"
	CommandBook  CommandKind = "book"
	CommandGame  CommandKind = "game"
	CommandIn    CommandKind = "in"
	CommandOut   CommandKind = "out"
	CommandGames CommandKind = "games"
	CommandHelp  CommandKind = "help"

	commandPrefix = "!"
	// a time range may be typed with spaces ("9pm - 11pm"), so up to this many fields are tried
	maxTimeFields = 3
)

type Command struct {
	Kind     CommandKind
	Date     string
	Time     string
	Resource string
	GameID   string
}

// ParseCommand recognises "!"-prefixed commands. Date and time text are split out but not
// validated; unknown or argument-less commands come back as help.
func ParseCommand(text string) (Command, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, commandPrefix) {
		return Command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(trimmed, commandPrefix))
	if len(fields) == 0 {
		return Command{}, false
	}
	kind := CommandKind(strings.ToLower(fields[0]))
	arguments := fields[1:]

	switch kind {
	case CommandCheck, CommandBook, CommandGame:
		if len(arguments) < 2 {
			return Command{Kind: CommandHelp}, true
		}
		timeText, rest := splitTime(arguments[1:])
		return Command{Kind: kind, Date: arguments[0], Time: timeText, Resource: strings.Join(rest, " ")}, true
	case CommandIn, CommandOut:
		if len(arguments) != 1 {
			return Command{Kind: CommandHelp}, true
		}
		return Command{Kind: kind, GameID: strings.ToLower(arguments[0])}, true
	case CommandGames, CommandHelp:
		return Command{Kind: kind}, true
	default:
		return Command{Kind: CommandHelp}, true
	}
}

// splitTime takes the longest leading run of fields that reads as a time range. When none
// does, the first field is returned so the caller reports it as unreadable.
func splitTime(fields []string) (string, []string) {
	for count := min(maxTimeFields, len(fields)); count > 0; count-- {
		candidate := strings.Join(fields[:count], " ")
		if _, ok := timeparse.ParseTimeRange(candidate); ok {
			return candidate, fields[count:]
		}
	}
	return fields[0], fields[1:]
}
