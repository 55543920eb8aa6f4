package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/config"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/server"
)

type app struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(in, out, errOut)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		configPath: config.DefaultConfigPath,
		stdin:      in,
		stdout:     out,
		stderr:     errOut,
	}

	cmd := &cobra.Command{
		Use:           "ivr-log-analyzer",
		Short:         "Diagnose IVR call failures from mail, screenshot and trace log",
		Long:          "ivr-log-analyzer serves POST /analyze-ivr-log, which reads the channel number out of an incident mail, reduces the IVR trace log to that channel and asks a multimodal model for a diagnosis.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       server.Version,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultConfigPath, "path to the YAML config file")

	cmd.AddCommand(
		newServeCmd(a),
		newFilterCmd(a),
		newVersionCmd(),
	)

	cmd.SetVersionTemplate("ivr-log-analyzer {{.Version}}\n")

	return cmd
}
