package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/gizlive/pkg/audio/portaudio"
	"github.com/haivivi/gizlive/pkg/cli"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer portaudio.Terminate()
		devices, err := portaudio.ListDevices()
		if err != nil {
			return err
		}
		if outputJSON {
			return cli.Output(cmd.OutOrStdout(), devices, cli.FormatJSON)
		}
		out := cmd.OutOrStdout()
		for _, d := range devices {
			marker := ""
			if d.IsDefaultInput {
				marker += " [default input]"
			}
			if d.IsDefaultOutput {
				marker += " [default output]"
			}
			fmt.Fprintf(out, "%d: %s%s\n", d.Index, d.Name, marker)
			fmt.Fprintf(out, "   channels in/out: %d/%d, default rate: %.0f Hz\n",
				d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}
