// Package session coordinates gesture capture, dictation, draft state, and
// report submission for one owner process.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/roadwatch/internal/attachment"
	"github.com/rbright/roadwatch/internal/camera"
	"github.com/rbright/roadwatch/internal/fsm"
	"github.com/rbright/roadwatch/internal/gesture"
	"github.com/rbright/roadwatch/internal/ipc"
	"github.com/rbright/roadwatch/internal/media"
	"github.com/rbright/roadwatch/internal/notify"
	"github.com/rbright/roadwatch/internal/report"
)

type action int

const (
	actionSubmit action = iota + 1
	actionCancel
)

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State          fsm.State
	Text           string
	AttachmentName string
	Submitted      bool
	Cancelled      bool
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Camera is the session-facing subset of the visual capture pipeline.
type Camera interface {
	CapturePhoto(ctx context.Context) (camera.Blob, error)
	StartVideo(ctx context.Context, deliver func(camera.Blob, error)) error
	StopVideo()
	CancelVideo()
	VideoActive() bool
}

// Dictation is the session-facing subset of the audio pipeline.
type Dictation interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
	Cancel() error
	State() fsm.State
}

// Submitter delivers a finished report to the intake service.
type Submitter interface {
	Submit(ctx context.Context, text string, att *attachment.Attachment) error
}

// SubmitFunc adapts a function to the Submitter interface.
type SubmitFunc func(ctx context.Context, text string, att *attachment.Attachment) error

func (f SubmitFunc) Submit(ctx context.Context, text string, att *attachment.Attachment) error {
	return f(ctx, text, att)
}

// Publisher forwards submitted report text to the context bus.
type Publisher interface {
	AddEvent(ctx context.Context, prompt string) error
}

// PublishFunc adapts a function to the Publisher interface.
type PublishFunc func(ctx context.Context, prompt string) error

func (f PublishFunc) AddEvent(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}

// Notifier is the session-facing subset of notification behavior.
type Notifier interface {
	ShowCapturing(ctx context.Context, kind string)
	ShowProcessing(ctx context.Context)
	ShowError(ctx context.Context, text string)
	ShowComplete(ctx context.Context, text string)
	Hide(ctx context.Context)
}

// unavailableCamera rejects capture when no camera pipeline is wired.
type unavailableCamera struct{}

func (unavailableCamera) CapturePhoto(context.Context) (camera.Blob, error) {
	return camera.Blob{}, fmt.Errorf("camera pipeline: %w", media.ErrDeviceUnavailable)
}

func (unavailableCamera) StartVideo(context.Context, func(camera.Blob, error)) error {
	return fmt.Errorf("camera pipeline: %w", media.ErrDeviceUnavailable)
}

func (unavailableCamera) StopVideo()        {}
func (unavailableCamera) CancelVideo()      {}
func (unavailableCamera) VideoActive() bool { return false }

// unavailableDictation rejects dictation when no audio pipeline is wired.
type unavailableDictation struct{}

func (unavailableDictation) Start(context.Context) error {
	return fmt.Errorf("audio pipeline: %w", media.ErrDeviceUnavailable)
}

func (unavailableDictation) Stop(context.Context) (string, error) {
	return "", fmt.Errorf("audio pipeline: %w", media.ErrDeviceUnavailable)
}

func (unavailableDictation) Cancel() error    { return nil }
func (unavailableDictation) State() fsm.State { return fsm.AudioIdle }

// Controller orchestrates gesture state transitions, capture side effects,
// and the submit flow.
type Controller struct {
	logger    *slog.Logger
	camera    Camera
	dictation Dictation
	submit    Submitter
	publish   Publisher
	notifier  Notifier

	draft   *report.Draft
	gesture *gesture.Disambiguator

	mu              sync.RWMutex
	state           fsm.State
	runCtx          context.Context
	videoStarting   bool
	stopRequested   bool
	cancelRequested bool

	actions chan action
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	cam Camera,
	dictation Dictation,
	submitter Submitter,
	publisher Publisher,
	notifier Notifier,
	holdThreshold time.Duration,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cam == nil {
		cam = unavailableCamera{}
	}
	if dictation == nil {
		dictation = unavailableDictation{}
	}
	if submitter == nil {
		submitter = SubmitFunc(func(context.Context, string, *attachment.Attachment) error { return nil })
	}
	if publisher == nil {
		publisher = PublishFunc(func(context.Context, string) error { return nil })
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}

	registry := attachment.NewRegistry()
	c := &Controller{
		logger:    logger,
		camera:    cam,
		dictation: dictation,
		submit:    submitter,
		publish:   publisher,
		notifier:  notifier,
		draft:     report.NewDraft(attachment.NewSlot(registry)),
		state:     fsm.StateIdle,
		runCtx:    context.Background(),
		actions:   make(chan action, 1),
	}
	c.gesture = gesture.New(holdThreshold, gesture.Hooks{
		Tap:        c.onTap,
		Hold:       c.onHold,
		HoldActive: c.holdActive,
		StopHold:   c.onStopHold,
	})
	return c
}

// State returns the current visual machine state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Draft exposes the in-progress report composition.
func (c *Controller) Draft() *report.Draft {
	return c.draft
}

// transition applies one event to the visual machine.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// toErrorAndReset transitions to idle best-effort after a failure.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
}

func (c *Controller) runContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runCtx
}

// onTap resolves a short press into a photo capture.
func (c *Controller) onTap() {
	if err := c.transition(fsm.EventRelease); err != nil {
		c.logger.Warn("tap ignored", "state", string(c.State()), "error", err)
		return
	}
	go c.capturePhoto(c.runContext())
}

func (c *Controller) capturePhoto(ctx context.Context) {
	c.notifier.ShowCapturing(ctx, "photo")

	blob, err := c.camera.CapturePhoto(ctx)
	if err != nil {
		c.logger.Warn("photo capture failed", "error", err)
		c.notifier.ShowError(ctx, notify.UserMessage(err))
		c.toErrorAndReset()
		return
	}

	c.attach(blob)
	_ = c.transition(fsm.EventCaptureDone)
	c.notifier.Hide(ctx)
	c.logger.Info("photo attached", "name", blob.DisplayName, "bytes", len(blob.Data))
}

// onHold commits the press to a video recording.
func (c *Controller) onHold() {
	if err := c.transition(fsm.EventHoldElapsed); err != nil {
		c.logger.Warn("hold ignored", "state", string(c.State()), "error", err)
		return
	}

	c.mu.Lock()
	c.videoStarting = true
	c.stopRequested = false
	c.cancelRequested = false
	c.mu.Unlock()

	ctx := c.runContext()
	c.notifier.ShowCapturing(ctx, "video")
	go c.startVideo(ctx)
}

func (c *Controller) startVideo(ctx context.Context) {
	err := c.camera.StartVideo(ctx, c.deliverVideo)

	c.mu.Lock()
	c.videoStarting = false
	stopEarly := c.stopRequested
	cancelEarly := c.cancelRequested
	c.stopRequested = false
	c.cancelRequested = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("video start failed", "error", err)
		c.notifier.ShowError(ctx, notify.UserMessage(err))
		c.toErrorAndReset()
		return
	}

	// The press was cancelled while the camera was still being acquired;
	// discard the recording now that it exists.
	if cancelEarly {
		c.camera.CancelVideo()
		return
	}

	_ = c.transition(fsm.EventRecording)

	// The pointer went up while the camera was still being acquired; honor
	// the release now that recording is live.
	if stopEarly {
		c.camera.StopVideo()
	}
}

// deliverVideo receives the finished recording exactly once.
func (c *Controller) deliverVideo(blob camera.Blob, err error) {
	ctx := c.runContext()
	if errors.Is(err, camera.ErrCancelled) {
		_ = c.transition(fsm.EventReset)
		return
	}
	if err != nil {
		c.logger.Warn("video capture failed", "error", err)
		c.notifier.ShowError(ctx, notify.UserMessage(err))
		c.toErrorAndReset()
		return
	}

	c.attach(blob)
	_ = c.transition(fsm.EventCaptureDone)
	c.notifier.Hide(ctx)
	c.logger.Info("video attached", "name", blob.DisplayName, "bytes", len(blob.Data))
}

// holdActive reports whether a hold recording is live or still starting.
func (c *Controller) holdActive() bool {
	c.mu.RLock()
	starting := c.videoStarting
	c.mu.RUnlock()
	return starting || c.camera.VideoActive()
}

// cancelVideo discards a live recording, or defers the cancel until an
// in-flight acquisition completes so the abandoned press can never attach.
func (c *Controller) cancelVideo() {
	c.mu.Lock()
	if c.videoStarting {
		c.cancelRequested = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.camera.CancelVideo()
}

// onStopHold stops the live recording, or defers the stop until acquisition
// completes.
func (c *Controller) onStopHold() {
	_ = c.transition(fsm.EventRelease)

	c.mu.Lock()
	if c.videoStarting {
		c.stopRequested = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.camera.StopVideo()
}

// attach installs a captured blob as the single report attachment, replacing
// any previous one.
func (c *Controller) attach(blob camera.Blob) {
	slot := c.draft.Slot()
	slot.Replace(slot.New(blob.Data, blob.MimeType, blob.DisplayName))
}

// Run executes one owner lifecycle until submission, cancellation, or
// context shutdown.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.notifier.Hide(cleanupCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			result.State = c.State()
			result.Err = ctx.Err()
			result.FinishedAt = time.Now()
			return result
		case a := <-c.actions:
			switch a {
			case actionCancel:
				c.shutdown()
				c.draft.Clear()
				result.State = c.State()
				result.Cancelled = true
				result.FinishedAt = time.Now()
				return result
			case actionSubmit:
				text := c.draft.Text()
				att := c.draft.Slot().Current()

				if err := c.submit.Submit(ctx, text, att); err != nil {
					c.logger.Warn("report submission failed", "error", err)
					c.notifier.ShowError(ctx, notify.UserMessage(err))
					// Draft stays intact so the user can retry.
					continue
				}

				c.notifier.ShowComplete(ctx, "")
				if strings.TrimSpace(text) != "" {
					if err := c.publish.AddEvent(ctx, text); err != nil {
						c.logger.Warn("context bus publish failed", "error", err)
					}
				}

				result.Text = text
				if att != nil {
					result.AttachmentName = att.DisplayName
				}
				c.draft.Clear()

				result.State = c.State()
				result.Submitted = true
				result.FinishedAt = time.Now()
				return result
			default:
				c.toErrorAndReset()
				result.State = c.State()
				result.Err = fmt.Errorf("unknown action %d", a)
				result.FinishedAt = time.Now()
				return result
			}
		}
	}
}

// shutdown tears down any in-flight capture without submitting.
func (c *Controller) shutdown() {
	c.gesture.PressCancel()
	c.cancelVideo()
	_ = c.dictation.Cancel()
	_ = c.transition(fsm.EventReset)
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "press":
		return c.handlePress()
	case "release":
		c.gesture.PressEnd()
		return ipc.Response{OK: true, State: string(c.State()), Message: "release"}
	case "pointer-cancel":
		return c.handlePointerCancel()
	case "dictate":
		return c.handleDictate(ctx)
	case "text":
		c.draft.SetText(req.Text)
		return ipc.Response{OK: true, State: string(c.State()), Message: "text set"}
	case "detach":
		return c.handleDetach()
	case "discard":
		return c.handleDiscard(ctx)
	case "submit":
		return c.requestSubmit()
	case "status":
		return c.handleStatus()
	case "cancel":
		return c.requestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// handlePress arms the tap/hold disambiguator.
func (c *Controller) handlePress() ipc.Response {
	if err := c.transition(fsm.EventPress); err != nil {
		return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
	}
	c.gesture.PressStart()
	return ipc.Response{OK: true, State: string(c.State()), Message: "press armed"}
}

// handlePointerCancel abandons the press without capturing anything. A live
// recording is discarded rather than attached.
func (c *Controller) handlePointerCancel() ipc.Response {
	c.gesture.PressCancel()
	c.cancelVideo()
	_ = c.transition(fsm.EventPointerCancel)
	return ipc.Response{OK: true, State: string(c.State()), Message: "press cancelled"}
}

// handleDictate toggles the audio dictation pipeline. Stopping blocks the
// caller until transcription finishes and returns the text.
func (c *Controller) handleDictate(ctx context.Context) ipc.Response {
	if c.dictation.State() == fsm.AudioRecording {
		c.notifier.ShowProcessing(ctx)
		text, err := c.dictation.Stop(ctx)
		if err != nil {
			c.logger.Warn("dictation failed", "error", err)
			c.notifier.ShowError(ctx, notify.UserMessage(err))
			return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
		}
		c.draft.AppendText(text)
		c.notifier.Hide(ctx)
		return ipc.Response{OK: true, State: string(c.State()), Message: text}
	}

	if err := c.dictation.Start(ctx); err != nil {
		c.logger.Warn("dictation start failed", "error", err)
		c.notifier.ShowError(ctx, notify.UserMessage(err))
		return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
	}
	c.notifier.ShowCapturing(ctx, "dictation")
	return ipc.Response{OK: true, State: string(c.State()), Message: "dictation started"}
}

// handleDetach removes the current attachment, keeping the draft text.
func (c *Controller) handleDetach() ipc.Response {
	if c.draft.Slot().Current() == nil {
		return ipc.Response{OK: true, State: string(c.State()), Message: "no attachment"}
	}
	c.draft.Slot().Remove()
	return ipc.Response{OK: true, State: string(c.State()), Message: "attachment removed"}
}

// handleDiscard drops the draft and tears down any in-flight capture.
func (c *Controller) handleDiscard(ctx context.Context) ipc.Response {
	c.gesture.PressCancel()
	c.cancelVideo()
	_ = c.dictation.Cancel()
	c.draft.Clear()
	_ = c.transition(fsm.EventReset)
	c.notifier.Hide(ctx)
	return ipc.Response{OK: true, State: string(c.State()), Message: "draft discarded"}
}

// handleStatus reports machine state and draft composition.
func (c *Controller) handleStatus() ipc.Response {
	att := "none"
	if current := c.draft.Slot().Current(); current != nil {
		att = current.DisplayName
	}
	message := fmt.Sprintf("text=%d chars attachment=%s dictation=%s",
		len(c.draft.Text()), att, string(c.dictation.State()))
	return ipc.Response{OK: true, State: string(c.State()), Message: message}
}

// requestSubmit enqueues a submit action when the draft has content.
func (c *Controller) requestSubmit() ipc.Response {
	state := c.State()
	if strings.TrimSpace(c.draft.Text()) == "" && c.draft.Slot().Current() == nil {
		return ipc.Response{OK: false, State: string(state), Error: report.ErrEmptyReport.Error()}
	}

	select {
	case c.actions <- actionSubmit:
		return ipc.Response{OK: true, State: string(state), Message: "submit requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "submit already requested"}
	}
}

// requestCancel enqueues a session cancel action.
func (c *Controller) requestCancel() ipc.Response {
	state := c.State()
	select {
	case c.actions <- actionCancel:
		return ipc.Response{OK: true, State: string(state), Message: "cancel requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "cancel already requested"}
	}
}
