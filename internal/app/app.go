package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/roadwatch/internal/audio"
	"github.com/rbright/roadwatch/internal/bus"
	"github.com/rbright/roadwatch/internal/camera"
	"github.com/rbright/roadwatch/internal/cli"
	"github.com/rbright/roadwatch/internal/config"
	"github.com/rbright/roadwatch/internal/doctor"
	"github.com/rbright/roadwatch/internal/ipc"
	"github.com/rbright/roadwatch/internal/logging"
	"github.com/rbright/roadwatch/internal/notify"
	"github.com/rbright/roadwatch/internal/report"
	"github.com/rbright/roadwatch/internal/session"
	"github.com/rbright/roadwatch/internal/transcribe"
	"github.com/rbright/roadwatch/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("roadwatch"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("roadwatch"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		rpt := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, rpt.String())
		if rpt.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandPress, cli.CommandRelease, cli.CommandPointerCancel,
		cli.CommandDictate, cli.CommandDetach, cli.CommandDiscard,
		cli.CommandSubmit, cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.Request{Command: string(parsed.Command)})
	case cli.CommandText:
		return r.forwardOrFail(ctx, ipc.Request{Command: string(cli.CommandText), Text: parsed.Text})
	case cli.CommandReport:
		return r.commandReport(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active roadwatch session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandReport owns the capture session: it binds the control socket,
// builds the capture pipelines, and blocks until submit, cancel, or signal.
func (r Runner) commandReport(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	var transcriber audio.Transcriber = transcribe.NewClient(cfg.Endpoints.Transcribe, nil)
	if cfg.Debug.EnableAudioDump {
		transcriber = audio.NewDumpTranscriber(transcriber, logger)
	}

	audioSource := &audio.PulseSource{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback}
	dictation := audio.NewPipeline(audioSource, transcriber, logger, cfg.Audio.SliceInterval(), cfg.Audio.MinBytes)

	cameraSource := &camera.ExecSource{
		PhotoArgv: cfg.Camera.PhotoCmd.Argv,
		VideoArgv: cfg.Camera.VideoCmd.Argv,
		VideoMime: cfg.Camera.VideoMime,
	}
	visual := camera.NewPipeline(cameraSource, logger, cfg.Gesture.PhotoSettle(), cfg.Gesture.VideoCeiling())

	submitter := report.NewClient(cfg.Endpoints.Intake, nil)
	notifier := notify.NewDesktop(notify.Options{
		Enable:         cfg.Notify.Enable,
		AppName:        cfg.Notify.AppName,
		ErrorTimeoutMS: cfg.Notify.ErrorTimeoutMS,
	}, logger)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	var publisher session.Publisher
	if cfg.Bus.Enable {
		busClient := bus.NewClient(cfg.Endpoints.Bus, nil)
		publisher = busClient
		go bus.NewPoller(busClient, logger, cfg.Bus.PollInterval()).Run(serverCtx)
	}

	controller := session.NewController(
		logger,
		visual,
		dictation,
		submitter,
		publisher,
		notifier,
		cfg.Gesture.HoldThreshold(),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if result.Submitted {
		summary := "submitted"
		if text := strings.TrimSpace(result.Text); text != "" {
			summary += ": " + text
		}
		if result.AttachmentName != "" {
			summary += " [" + result.AttachmentName + "]"
		}
		fmt.Fprintln(r.Stdout, summary)
	}

	return 0
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"submitted", result.Submitted,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"text_length", len(result.Text),
		"attachment", result.AttachmentName,
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	// Dictate stop blocks on transcription; everything else answers fast.
	timeout := 220 * time.Millisecond
	if req.Command == "dictate" {
		timeout = 60 * time.Second
	}

	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
