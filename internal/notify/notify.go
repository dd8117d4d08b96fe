// Package notify surfaces capture state and failures as desktop notifications.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Notifier is the session-facing notification contract.
type Notifier interface {
	ShowCapturing(ctx context.Context, kind string)
	ShowProcessing(ctx context.Context)
	ShowError(ctx context.Context, text string)
	ShowComplete(ctx context.Context, text string)
	Hide(ctx context.Context)
}

// Noop preserves session flow when no notifier is wired.
type Noop struct{}

func (Noop) ShowCapturing(context.Context, string) {}
func (Noop) ShowProcessing(context.Context)        {}
func (Noop) ShowError(context.Context, string)     {}
func (Noop) ShowComplete(context.Context, string)  {}
func (Noop) Hide(context.Context)                  {}

// Options configures the desktop notifier.
type Options struct {
	Enable         bool
	AppName        string
	ErrorTimeoutMS int
}

// Desktop routes notifications over DBus via busctl, replacing the previous
// notification in place so state changes do not stack.
type Desktop struct {
	opts     Options
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	notificationID uint32
}

// NewDesktop creates a desktop notifier from options.
func NewDesktop(opts Options, logger *slog.Logger) *Desktop {
	if strings.TrimSpace(opts.AppName) == "" {
		opts.AppName = "roadwatch"
	}
	return &Desktop{
		opts:     opts,
		logger:   logger,
		messages: notifyMessagesFromEnv(),
	}
}

// ShowCapturing signals an active capture of the given kind.
func (d *Desktop) ShowCapturing(ctx context.Context, kind string) {
	if !d.opts.Enable {
		return
	}
	text := d.messages.capturing
	switch kind {
	case "photo":
		text = d.messages.photo
	case "video":
		text = d.messages.video
	case "dictation":
		text = d.messages.dictating
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.post(ctx, text, 300000)
	})
}

// ShowProcessing signals the post-capture processing state.
func (d *Desktop) ShowProcessing(ctx context.Context) {
	if !d.opts.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.post(ctx, d.messages.processing, 300000)
	})
}

// ShowError displays a failure message with a bounded timeout.
func (d *Desktop) ShowError(ctx context.Context, text string) {
	if !d.opts.Enable {
		return
	}
	if text == "" {
		text = d.messages.errorText
	}
	timeout := d.opts.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1500
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.post(ctx, text, timeout)
	})
}

// ShowComplete displays a submission confirmation.
func (d *Desktop) ShowComplete(ctx context.Context, text string) {
	if !d.opts.Enable {
		return
	}
	if text == "" {
		text = d.messages.submitted
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.post(ctx, text, 2000)
	})
}

// Hide dismisses the active notification.
func (d *Desktop) Hide(ctx context.Context) {
	if !d.opts.Enable {
		return
	}
	d.run(ctx, d.dismiss)
}

// post sends a replaceable notification and stores its ID.
func (d *Desktop) post(ctx context.Context, text string, timeoutMS int) error {
	d.mu.Lock()
	replaceID := d.notificationID
	d.mu.Unlock()

	id, err := desktopNotify(ctx, d.opts.AppName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.notificationID = id
	d.mu.Unlock()
	return nil
}

// dismiss closes the current notification ID when present.
func (d *Desktop) dismiss(ctx context.Context) error {
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification operation with a bounded timeout.
func (d *Desktop) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("notification dispatch failed", err)
	}
}

// log emits debug-only notification failures to the runtime logger.
func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
