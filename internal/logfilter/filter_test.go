package logfilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `09:00:01.000 [1111] [INIT.dxml] Start session
09:00:02.500 [2222] [OTHER.dxml] Start session
09:00:03.250 [1111] [PLAY.dxml] 1111 End`

func TestFilterByChannel_EndToEnd(t *testing.T) {
	got, err := FilterByChannel(sampleLog, "1111")
	require.NoError(t, err)

	assert.Equal(t, "09:00:01.000 ▶ [INIT.dxml]\n09:00:03.250 ■ [PLAY.dxml]\n", got)
	assert.NotContains(t, got, "[1111]")
	assert.NotContains(t, got, "OTHER")
}

func TestFilterByChannel_EmptyLog(t *testing.T) {
	got, err := FilterByChannel("", "1234")
	require.NoError(t, err)
	assert.Equal(t, NotFoundMessage, got)
}

func TestFilterByChannel_NoMatch(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("12:00:00.000 [2222] [MENU.dxml] Start\n")
	}

	got, err := FilterByChannel(b.String(), "1234")
	require.NoError(t, err)
	assert.Equal(t, NotFoundMessage, got)
}

func TestFilterByChannel_EmptyChannel(t *testing.T) {
	_, err := FilterByChannel(sampleLog, "")
	assert.ErrorIs(t, err, ErrEmptyChannel)
}

func TestFilterByChannel_PreservesOrder(t *testing.T) {
	log := strings.Join([]string{
		"10:00:03.000 [7] [C.dxml]",
		"10:00:01.000 [7] [A.dxml]",
		"10:00:02.000 [7] [B.dxml]",
		"10:00:01.000 [7] [A.dxml]",
	}, "\n")

	got, err := FilterByChannel(log, "7")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	require.Len(t, lines, 4, "duplicates are kept")
	assert.Equal(t, "10:00:03.000  [C.dxml]", lines[0])
	assert.Equal(t, "10:00:01.000  [A.dxml]", lines[1])
	assert.Equal(t, "10:00:02.000  [B.dxml]", lines[2])
	assert.Equal(t, "10:00:01.000  [A.dxml]", lines[3])
}

func TestFilterByChannel_ExcludesChannelTokens(t *testing.T) {
	got, err := FilterByChannel("10:20:30.123 [1234] [START.dxml] channel 1234 Start", "1234")
	require.NoError(t, err)
	assert.Equal(t, "10:20:30.123 ▶ [START.dxml]\n", got)

	entries := Entries("10:20:30.123 [1234] [CH-1234-X] [START.dxml] channel 1234 Start", "1234")
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"[START.dxml]"}, entries[0].Tokens)
}

func TestFilterByChannel_StartTakesPrecedence(t *testing.T) {
	got, err := FilterByChannel("08:00:00.000 [5555] [X.dxml] Start then End", "5555")
	require.NoError(t, err)
	assert.Equal(t, "08:00:00.000 ▶ [X.dxml]\n", got)
	assert.NotContains(t, got, string(StatusEnd))
}

func TestFilterByChannel_DiscardsLinesWithoutBrackets(t *testing.T) {
	log := strings.Join([]string{
		"09:00:00.000 channel 4321 Start without any block",
		"09:00:01.000 [4321] [MENU.dxml] Start",
		"09:00:02.000 4321 End",
	}, "\n")

	got, err := FilterByChannel(log, "4321")
	require.NoError(t, err)
	assert.Equal(t, "09:00:01.000 ▶ [MENU.dxml]\n", got)

	got, err = FilterByChannel("09:00:00.000 channel 4321 Start", "4321")
	require.NoError(t, err)
	assert.Equal(t, NotFoundMessage, got)
}

func TestFilterByChannel_TimestampExtraction(t *testing.T) {
	got, err := FilterByChannel("ref 20261017 id 987654 23:59:59.999 11:11:11.111 [0041] [END.dxml] End", "0041")
	require.NoError(t, err)
	assert.Equal(t, "23:59:59.999 ■ [END.dxml]\n", got)

	got, err = FilterByChannel("[0041] [MENU.dxml] Start", "0041")
	require.NoError(t, err)
	assert.Equal(t, " ▶ [MENU.dxml]\n", got)
}

func TestFilterByChannel_EmptyFieldsKeepSeparators(t *testing.T) {
	got, err := FilterByChannel("[0041] [MENU.dxml]", "0041")
	require.NoError(t, err)
	assert.Equal(t, "  [MENU.dxml]\n", got)
}

func TestFilterByChannel_OnlyChannelToken(t *testing.T) {
	// The bracket check runs before the channel tokens are removed.
	got, err := FilterByChannel("10:00:00.000 [0041] Start", "0041")
	require.NoError(t, err)
	assert.Equal(t, "10:00:00.000 ▶ \n", got)
}

func TestFilterByChannel_CRLF(t *testing.T) {
	got, err := FilterByChannel("09:00:01.000 [1111] [INIT.dxml] Start\r\n09:00:02.000 [1111] [PLAY.dxml] End\r\n", "1111")
	require.NoError(t, err)
	assert.Equal(t, "09:00:01.000 ▶ [INIT.dxml]\n09:00:02.000 ■ [PLAY.dxml]\n", got)
}

func TestFilterByChannel_SubstringMatch(t *testing.T) {
	// Channels are opaque strings, not numbers.
	got, err := FilterByChannel("09:00:01.000 [0110] [A.dxml]\n09:00:02.000 [9999] [B.dxml]", "11")
	require.NoError(t, err)
	assert.Equal(t, "09:00:01.000  [A.dxml]\n", got)
}

func TestMatchTimestamp(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"2026-10-17 09:15:30.042 [0041] x", "09:15:30.042"},
		{"09:15:30 [0041] no millis", ""},
		{"9:15:30.042 single digit hour", ""},
		{"123:45:12.3456 overlong", "23:45:12.345"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchTimestamp(tt.line), tt.line)
	}
}

func TestBracketTokens(t *testing.T) {
	assert.Equal(t, []string{"[a]", "[b.dxml]", "[]"}, BracketTokens("x [a] y [b.dxml] z []"))
	assert.Equal(t, []string{"[a[b]"}, BracketTokens("[a[b] c]"))
	assert.Empty(t, BracketTokens("no blocks ] here ["))
}

func TestLineStatus(t *testing.T) {
	assert.Equal(t, StatusStart, LineStatus("Start"))
	assert.Equal(t, StatusEnd, LineStatus("call End"))
	assert.Equal(t, StatusStart, LineStatus("End Start"))
	assert.Equal(t, StatusNone, LineStatus("start end"))
}

func TestRender(t *testing.T) {
	assert.Equal(t, NotFoundMessage, Render(nil))
	assert.Equal(t, "1 ▶ [a][b]\n", Render([]Entry{{Time: "1", Status: StatusStart, Tokens: []string{"[a]", "[b]"}}}))
}
