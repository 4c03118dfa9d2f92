package commands

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/gizlive/pkg/cli"
	"github.com/haivivi/gizlive/pkg/live/record"
)

var recordingCmd = &cobra.Command{
	Use:   "recording",
	Short: "Inspect session recordings",
}

var recordingAudioOut string

var recordingDumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Summarize a recording",
	Long: `Summarize a recording written by 'gizlive live --record'.

With --audio-out the received model audio is written as raw PCM16.

Examples:
  gizlive recording dump session.msgpack
  gizlive recording dump session.msgpack --audio-out reply.pcm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		var audio io.Writer
		if recordingAudioOut != "" {
			out, err := os.Create(recordingAudioOut)
			if err != nil {
				return err
			}
			defer out.Close()
			audio = out
		}

		sum, err := dumpRecording(f, audio)
		if err != nil {
			return err
		}
		return cli.Output(cmd.OutOrStdout(), summaryView(sum), outputFormat())
	},
}

func init() {
	recordingDumpCmd.Flags().StringVar(&recordingAudioOut, "audio-out", "", "write received audio to this file")
	recordingCmd.AddCommand(recordingDumpCmd)
}

// dumpRecording reads every entry of r into a summary, copying received
// audio to audio when it is not nil.
func dumpRecording(r io.Reader, audio io.Writer) (*record.Summary, error) {
	var sum record.Summary
	for e, err := range record.NewReader(r).All() {
		if err != nil {
			return &sum, err
		}
		sum.Add(e)
		if audio != nil && e.Kind == record.KindAudio {
			if _, err := audio.Write(e.Data); err != nil {
				return &sum, fmt.Errorf("write audio: %w", err)
			}
		}
	}
	return &sum, nil
}

type summaryOutput struct {
	Entries       int            `yaml:"entries" json:"entries"`
	Duration      string         `yaml:"duration" json:"duration"`
	ReceivedAudio string         `yaml:"received_audio" json:"received_audio"`
	Counts        map[string]int `yaml:"counts" json:"counts"`
	SentBytes     map[string]int `yaml:"sent_bytes,omitempty" json:"sent_bytes,omitempty"`
	Errors        []string       `yaml:"errors,omitempty" json:"errors,omitempty"`
}

func summaryView(s *record.Summary) summaryOutput {
	counts := make(map[string]int, len(s.Counts))
	for k, n := range s.Counts {
		counts[string(k)] = n
	}
	return summaryOutput{
		Entries:       s.Entries,
		Duration:      s.Duration.Round(time.Millisecond).String(),
		ReceivedAudio: s.ReceivedAudio.Round(time.Millisecond).String(),
		Counts:        counts,
		SentBytes:     s.SentBytes,
		Errors:        slices.Clip(s.Errors),
	}
}
