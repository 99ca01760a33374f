package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		input    string
		expected Command
	}{
		{"!check 2/24 9-11p", Command{Kind: CommandCheck, Date: "2/24", Time: "9-11p"}},
		{"  !BOOK 2/24 9-11p Court 2", Command{Kind: CommandBook, Date: "2/24", Time: "9-11p", Resource: "Court 2"}},
		{"!book 2/24 9pm - 11pm", Command{Kind: CommandBook, Date: "2/24", Time: "9pm - 11pm"}},
		{"!book 2/24 tonight", Command{Kind: CommandBook, Date: "2/24", Time: "tonight"}},
		{"!game 3/1 7-9p", Command{Kind: CommandGame, Date: "3/1", Time: "7-9p"}},
		{"!in AB12CD34", Command{Kind: CommandIn, GameID: "ab12cd34"}},
		{"!out ab12cd34", Command{Kind: CommandOut, GameID: "ab12cd34"}},
		{"!games", Command{Kind: CommandGames}},
		{"!check 2/24", Command{Kind: CommandHelp}},
		{"!in", Command{Kind: CommandHelp}},
		{"!dance", Command{Kind: CommandHelp}},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			command, ok := ParseCommand(tc.input)
			require.True(t, ok)
			require.Equal(t, tc.expected, command)
		})
	}
}

func TestParseCommandIgnoresChatter(t *testing.T) {
	for _, input := range []string{"", "see you at 9", "!", "check 2/24 9-11p"} {
		_, ok := ParseCommand(input)
		require.False(t, ok, input)
	}
}
