package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/gizlive/pkg/cli"
)

const appName = "gizlive"

var (
	cfgFile     string
	contextName string
	outputJSON  bool
	verbose     bool

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "gizlive",
	Short: "Real-time multimodal conversations from the terminal",
	Long: `gizlive streams microphone audio and camera frames to a live model
service and plays the spoken replies.

Configuration is stored in ~/.giztoy/gizlive/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Set up a context
  gizlive config add-context gemini --transport gemini --api-key YOUR_KEY

  # Talk, with video from ffmpeg
  gizlive live --camera ffmpeg

  # Record the session for later inspection
  gizlive live --no-video --record session.msgpack
  gizlive recording dump session.msgpack --audio-out reply.pcm`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.giztoy/gizlive/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(recordingCmd)
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func initConfig() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()})))

	var err error
	if cfgFile != "" {
		globalConfig, err = cli.LoadConfigFile(cfgFile)
	} else {
		globalConfig, err = cli.LoadConfig(appName)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s config: %v\n", appName, err)
	}
}

func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, errors.New("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the selected context. With no context selected it
// returns an empty one so flags and environment variables can fill it.
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return &cli.Context{}, nil
	}
	ctx, err := cfg.ResolveContext(contextName)
	if errors.Is(err, cli.ErrNoCurrentContext) {
		return &cli.Context{}, nil
	}
	return ctx, err
}

func outputFormat() cli.OutputFormat {
	if outputJSON {
		return cli.FormatJSON
	}
	return cli.FormatYAML
}
