package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haivivi/gizlive/pkg/audio/portaudio"
	"github.com/haivivi/gizlive/pkg/camera"
	"github.com/haivivi/gizlive/pkg/cli"
	"github.com/haivivi/gizlive/pkg/live"
	"github.com/haivivi/gizlive/pkg/live/record"
	"github.com/haivivi/gizlive/pkg/playback"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Start a live conversation",
	Long: `Start a live conversation using the default microphone and speaker.

Video comes from --camera:
  ffmpeg          capture the default camera through ffmpeg
  -               read a motion-JPEG stream from stdin
  FILE.mjpeg      read a motion-JPEG stream from a file
  FILE            poll an image file and send it whenever it changes

Examples:
  gizlive live --no-video
  gizlive live --camera ffmpeg --interrupt reanchor
  ffmpeg -f avfoundation -i 0 -f mjpeg - | gizlive live --camera -
  gizlive live --transport openai --record session.msgpack --metrics-addr :9090`,
	RunE: runLive,
}

var (
	liveOpts        transportOptions
	liveCamera      string
	liveNoVideo     bool
	liveInterrupt   string
	liveSendFailure string
	liveRecord      string
	liveMetricsAddr string
	livePlain       bool
)

func init() {
	f := liveCmd.Flags()
	f.StringVarP(&liveOpts.Transport, "transport", "t", "", "live service: gemini or openai (default from context)")
	f.StringVar(&liveOpts.Model, "model", "", "model name")
	f.StringVar(&liveOpts.Voice, "voice", "", "voice name")
	f.StringVar(&liveOpts.Instructions, "instructions", "", "system instructions")
	f.StringVar(&liveCamera, "camera", "ffmpeg", "video source: ffmpeg, -, or a file")
	f.BoolVar(&liveNoVideo, "no-video", false, "do not send video")
	f.StringVar(&liveInterrupt, "interrupt", "reset", "timeline after an interruption: reset or reanchor")
	f.StringVar(&liveSendFailure, "send-failure", "drop", "send failure policy: drop, retry or surface")
	f.StringVar(&liveRecord, "record", "", "record the session to a msgpack file")
	f.StringVar(&liveMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&livePlain, "plain", false, "log to stderr instead of drawing the status panel")
}

func runLive(cmd *cobra.Command, args []string) error {
	stored, err := getContext()
	if err != nil {
		return err
	}
	lctx := liveOpts.merge(stored)

	cfg := live.Config{DisableVideo: liveNoVideo}
	if cfg.InterruptPolicy, err = playback.ParseInterruptPolicy(liveInterrupt); err != nil {
		return err
	}
	if cfg.SendFailure, err = live.ParseSendFailurePolicy(liveSendFailure); err != nil {
		return err
	}

	// The panel redraws the terminal, so logs are captured and shown inside it.
	logs := cli.NewLogWriter(50)
	logger := slog.Default()
	if !livePlain {
		logger = slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: logLevel()}))
	}

	transport, err := newTransport(lctx, logger)
	if err != nil {
		return err
	}
	if liveRecord != "" {
		f, err := os.Create(liveRecord)
		if err != nil {
			return fmt.Errorf("create recording: %w", err)
		}
		defer f.Close()
		rec := record.NewRecorder(f)
		defer func() {
			if err := rec.Err(); err != nil {
				cli.PrintWarning(cmd.ErrOrStderr(), "recording incomplete: %v", err)
			}
		}()
		transport = record.Wrap(transport, rec)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := live.NewMetrics(reg)
	if liveMetricsAddr != "" {
		srv := &http.Server{
			Addr:              liveMetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "addr", liveMetricsAddr, "err", err)
			}
		}()
		defer srv.Close()
	}

	devices := &portaudio.Devices{Logger: logger}
	if !liveNoVideo {
		devices.Camera = cameraSource(liveCamera, cmd.InOrStdin(), logger)
	}
	defer portaudio.Terminate()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := live.NewSession(transport, devices, cfg, live.WithLogger(logger), live.WithMetrics(metrics))
	defer sess.Stop()

	out := cmd.OutOrStdout()
	render := func() {
		if livePlain {
			return
		}
		panel := cli.StatusPanel(sess.Status(), logs.Lines(), cli.NewStyles(cli.DefaultTheme))
		fmt.Fprint(out, "\033[H\033[2J"+panel.Render(72)+"\n")
	}

	render()
	if err := sess.Start(ctx); err != nil {
		render()
		return err
	}
	for {
		select {
		case <-ctx.Done():
			sess.Stop()
			render()
			return nil
		case <-sess.Updated():
			render()
			st := sess.Status()
			if st.State == live.StateErrored {
				return st.Err
			}
			if st.State == live.StateClosed {
				return nil
			}
		case <-logs.Updated():
			render()
		}
	}
}

// cameraSource returns the camera opener for the --camera flag.
func cameraSource(src string, stdin io.Reader, logger *slog.Logger) func(context.Context) (live.Camera, error) {
	return func(ctx context.Context) (live.Camera, error) {
		switch {
		case src == "ffmpeg":
			return camera.OpenFFmpeg(ctx, camera.FFmpegConfig{}, logger)
		case src == "-":
			return camera.NewMJPEG(io.NopCloser(stdin), logger), nil
		case isMJPEGFile(src):
			f, err := os.Open(src)
			if err != nil {
				return nil, err
			}
			return camera.NewMJPEG(f, logger), nil
		default:
			return camera.OpenFile(src, 0, logger)
		}
	}
}

func isMJPEGFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mjpeg", ".mjpg":
		return true
	}
	return false
}
