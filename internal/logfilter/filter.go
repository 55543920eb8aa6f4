package logfilter

// Package logfilter reduces a raw IVR trace log to the flow of a single channel.
//
// The IVR log format is not formally specified anywhere. The three matchers in
// this package are the whole grammar the filter relies on:
//   - timestamp: the first HH:MM:SS.mmm run of digits on a line
//   - bracket token: every shortest [...] span, left to right
//   - status: "Start" marks a start (▶), otherwise "End" marks an end (■)
//
// Example, filtering on "1111":
//
//	09:00:01.000 [1111] [INIT.dxml] Start session   ->  09:00:01.000 ▶ [INIT.dxml]
//	09:00:03.250 [1111] [PLAY.dxml] 1111 End        ->  09:00:03.250 ■ [PLAY.dxml]

import (
	"errors"
	"regexp"
	"strings"
)

// NotFoundMessage is returned in place of a channel log when no line matched.
const NotFoundMessage = "해당 채널 번호의 흐름을 찾을 수 없습니다."

// ErrEmptyChannel is returned when the channel identifier is empty.
// An empty identifier would match every line of the log.
var ErrEmptyChannel = errors.New("logfilter: channel identifier must not be empty")

var (
	timestampPattern = regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d{3}`)
	bracketPattern   = regexp.MustCompile(`\[.*?\]`)
)

// Status marks where a line sits in the call flow.
type Status string

const (
	StatusNone  Status = ""
	StatusStart Status = "▶"
	StatusEnd   Status = "■"
)

// Entry is one condensed line of a channel log.
type Entry struct {
	Time   string   `json:"time"`
	Status Status   `json:"status"`
	Tokens []string `json:"tokens"`
}

// String renders the entry as "{time} {status} {tokens}\n". Empty fields keep
// their separating space.
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Time)
	b.WriteByte(' ')
	b.WriteString(string(e.Status))
	b.WriteByte(' ')
	for _, tok := range e.Tokens {
		b.WriteString(tok)
	}
	b.WriteByte('\n')
	return b.String()
}

// MatchTimestamp returns the first HH:MM:SS.mmm substring of line, or "".
func MatchTimestamp(line string) string {
	return timestampPattern.FindString(line)
}

// BracketTokens returns every [...] span of line in order of appearance.
func BracketTokens(line string) []string {
	return bracketPattern.FindAllString(line, -1)
}

// LineStatus classifies a line. Start wins when a line mentions both.
func LineStatus(line string) Status {
	switch {
	case strings.Contains(line, "Start"):
		return StatusStart
	case strings.Contains(line, "End"):
		return StatusEnd
	default:
		return StatusNone
	}
}

// Entries returns the structured channel log for channel, in input order.
// Lines without any bracket token are dropped. Tokens that repeat the channel
// identifier are removed from the surviving entries.
func Entries(logText, channel string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(logText, "\n") {
		if !strings.Contains(line, channel) {
			continue
		}

		blocks := BracketTokens(line)
		if len(blocks) == 0 {
			continue
		}

		tokens := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if !strings.Contains(b, channel) {
				tokens = append(tokens, b)
			}
		}

		entries = append(entries, Entry{
			Time:   MatchTimestamp(line),
			Status: LineStatus(line),
			Tokens: tokens,
		})
	}
	return entries
}

// Render concatenates entries, or returns NotFoundMessage when there are none.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return NotFoundMessage
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
	}
	return b.String()
}

// FilterByChannel returns the condensed flow of channel within logText, or
// NotFoundMessage when no line of the log belongs to it.
func FilterByChannel(logText, channel string) (string, error) {
	if channel == "" {
		return "", ErrEmptyChannel
	}
	return Render(Entries(logText, channel)), nil
}
