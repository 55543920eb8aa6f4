package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/logfilter"
)

// entryStyles colours one rendered entry.
type entryStyles struct {
	time  lipgloss.Style
	start lipgloss.Style
	end   lipgloss.Style
	token lipgloss.Style
}

func newEntryStyles(w io.Writer) entryStyles {
	r := lipgloss.NewRenderer(w)
	return entryStyles{
		time:  r.NewStyle().Foreground(lipgloss.Color("245")),           // gray
		start: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),  // green
		end:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true), // red
		token: r.NewStyle().Foreground(lipgloss.Color("39")),             // cyan
	}
}

// render keeps the "{time} {status} {tokens}" layout of Entry.String.
func (s entryStyles) render(e logfilter.Entry) string {
	status := string(e.Status)
	switch e.Status {
	case logfilter.StatusStart:
		status = s.start.Render(status)
	case logfilter.StatusEnd:
		status = s.end.Render(status)
	}
	return fmt.Sprintf("%s %s %s\n", s.time.Render(e.Time), status, s.token.Render(strings.Join(e.Tokens, "")))
}

func newFilterCmd(a *app) *cobra.Command {
	var (
		channel string
		color   bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "filter [log-file]",
		Short: "Reduce an IVR trace log to one channel's flow",
		Long:  "filter prints the condensed flow of --channel within a trace log read from the given file, or from stdin when the file is omitted or \"-\".",
		Example: `  ivr-log-analyzer filter --channel 1111 trace.log
  cat trace.log | ivr-log-analyzer filter -C 1111 --color`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if color && asJSON {
				return fmt.Errorf("--color and --json are mutually exclusive")
			}
			text, err := a.readLog(args)
			if err != nil {
				return err
			}
			return a.writeFiltered(text, channel, color, asJSON)
		},
	}
	cmd.Flags().StringVarP(&channel, "channel", "C", "", "channel identifier to keep (required)")
	cmd.Flags().BoolVar(&color, "color", false, "colour timestamps, ▶/■ markers and tokens")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured entries as JSON")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

func (a *app) readLog(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read log: %w", err)
	}
	return string(b), nil
}

func (a *app) writeFiltered(text, channel string, color, asJSON bool) error {
	if channel == "" {
		return logfilter.ErrEmptyChannel
	}
	entries := logfilter.Entries(text, channel)

	switch {
	case asJSON:
		if entries == nil {
			entries = []logfilter.Entry{}
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(entries)

	case color && len(entries) > 0:
		styles := newEntryStyles(a.stdout)
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(styles.render(e))
		}
		_, err := io.WriteString(a.stdout, b.String())
		return err

	default:
		out := logfilter.Render(entries)
		if len(entries) == 0 {
			out += "\n"
		}
		_, err := io.WriteString(a.stdout, out)
		return err
	}
}
