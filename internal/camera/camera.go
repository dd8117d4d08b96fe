// Package camera drives the visual capture pipeline: a single still photo on
// tap, or a ceiling-bounded video clip on hold.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/roadwatch/internal/media"
)

var (
	// ErrEncodeFailed indicates the grabbed frame could not be encoded.
	ErrEncodeFailed = errors.New("still image encode failed")
	// ErrCancelled indicates a video recording was discarded before publication.
	ErrCancelled = errors.New("video capture cancelled")
	// ErrNoVideoData indicates the recorder produced zero bytes.
	ErrNoVideoData = errors.New("no video data captured")
)

// Stream is one live camera acquisition.
type Stream interface {
	// Media returns the exclusively owned device stream.
	Media() *media.Stream
	// AwaitFrame blocks until the stream's first frame is available.
	AwaitFrame(ctx context.Context) error
	// Still grabs the current frame at the stream's native resolution.
	Still(ctx context.Context) (image.Image, error)
	// Record begins buffering recorder output continuously. The returned
	// channel closes after StopRecord.
	Record(ctx context.Context) (<-chan []byte, error)
	// StopRecord finalizes recording. Stopping twice is a no-op.
	StopRecord() error
	// VideoMimeType reports the encoding of recorded output.
	VideoMimeType() string
}

// Source is the camera side of the device permission layer.
type Source interface {
	Acquire(ctx context.Context, constraints media.Constraints) (Stream, error)
}

// Blob is one finished visual capture result.
type Blob struct {
	Data        []byte
	MimeType    string
	DisplayName string
}

// Pipeline owns at most one live visual session at a time.
type Pipeline struct {
	source      Source
	logger      *slog.Logger
	settleDelay time.Duration
	ceiling     time.Duration

	// encode is swappable so encode-failure paths stay testable.
	encode func(image.Image) ([]byte, error)

	mu   sync.Mutex
	busy bool
	rec  *recording
}

type recording struct {
	stream  Stream
	group   *media.ReleaseGroup
	ceiling *time.Timer

	stopOnce sync.Once
	discard  atomic.Bool
}

// NewPipeline constructs an idle visual pipeline.
func NewPipeline(source Source, logger *slog.Logger, settleDelay, ceiling time.Duration) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source:      source,
		logger:      logger,
		settleDelay: settleDelay,
		ceiling:     ceiling,
		encode:      encodeJPEG,
	}
}

// Busy reports whether a visual session (photo or video) is live.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// VideoActive reports whether a video recording is currently live.
func (p *Pipeline) VideoActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec != nil
}

// CapturePhoto acquires the rear camera, waits for the first frame plus a
// fixed settle delay for exposure/focus convergence, grabs one still, and
// encodes it. The device stream is released immediately after the frame is
// grabbed, regardless of encode outcome.
func (p *Pipeline) CapturePhoto(ctx context.Context) (Blob, error) {
	if err := p.acquireSlot(); err != nil {
		return Blob{}, err
	}
	defer p.releaseSlot()

	stream, err := p.source.Acquire(ctx, media.Constraints{
		Video:      true,
		FacingMode: "environment",
	})
	if err != nil {
		return Blob{}, err
	}

	group := &media.ReleaseGroup{}
	group.Defer(func() { stream.Media().Release() })
	defer group.Release()

	if err := stream.AwaitFrame(ctx); err != nil {
		return Blob{}, err
	}

	select {
	case <-ctx.Done():
		return Blob{}, ctx.Err()
	case <-time.After(p.settleDelay):
	}

	frame, err := stream.Still(ctx)
	group.Release()
	if err != nil {
		return Blob{}, err
	}

	data, err := p.encode(frame)
	if err != nil {
		return Blob{}, err
	}

	name := fmt.Sprintf("photo-%s.jpg", time.Now().Format("20060102-150405"))
	p.logger.Info("photo captured", "bytes", len(data), "name", name)
	return Blob{Data: data, MimeType: "image/jpeg", DisplayName: name}, nil
}

// StartVideo acquires camera plus microphone, begins buffering recorder
// output, and schedules the absolute ceiling stop strictly after acquisition
// succeeds. The finished blob is delivered through the callback exactly
// once, after the device stream has been released.
func (p *Pipeline) StartVideo(ctx context.Context, deliver func(Blob, error)) error {
	if err := p.acquireSlot(); err != nil {
		return err
	}

	stream, err := p.source.Acquire(ctx, media.Constraints{
		Video:      true,
		Audio:      true,
		FacingMode: "environment",
	})
	if err != nil {
		p.releaseSlot()
		return err
	}

	group := &media.ReleaseGroup{}
	group.Defer(func() {
		_ = stream.StopRecord()
		stream.Media().Release()
	})

	chunks, err := stream.Record(ctx)
	if err != nil {
		group.Release()
		p.releaseSlot()
		return err
	}

	rec := &recording{stream: stream, group: group}
	p.mu.Lock()
	p.rec = rec
	p.mu.Unlock()

	// Only one ceiling timer exists per session; it fires stop even if the
	// pointer is never released and nothing can re-arm it.
	rec.ceiling = time.AfterFunc(p.ceiling, func() { p.stopRecording(rec) })

	go p.collectVideo(rec, chunks, deliver)

	p.logger.Info("video recording started", "ceiling_ms", p.ceiling.Milliseconds())
	return nil
}

// StopVideo stops the live recording, if any. Safe to call repeatedly; the
// ceiling-triggered stop and a user stop never produce a second result.
func (p *Pipeline) StopVideo() {
	p.mu.Lock()
	rec := p.rec
	p.mu.Unlock()
	if rec != nil {
		p.stopRecording(rec)
	}
}

// CancelVideo stops and discards the live recording without publishing.
func (p *Pipeline) CancelVideo() {
	p.mu.Lock()
	rec := p.rec
	p.mu.Unlock()
	if rec != nil {
		rec.discard.Store(true)
		p.stopRecording(rec)
	}
}

func (p *Pipeline) stopRecording(rec *recording) {
	rec.stopOnce.Do(func() {
		_ = rec.stream.StopRecord()
	})
}

// collectVideo buffers recorder slices until the stream closes its channel,
// then releases resources and delivers the assembled blob.
func (p *Pipeline) collectVideo(rec *recording, chunks <-chan []byte, deliver func(Blob, error)) {
	var parts [][]byte
	total := 0
	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		parts = append(parts, chunk)
		total += len(chunk)
	}

	rec.ceiling.Stop()
	mimeType := rec.stream.VideoMimeType()

	// Release happens-before the result is reported.
	rec.group.Release()
	p.mu.Lock()
	p.rec = nil
	p.busy = false
	p.mu.Unlock()

	if rec.discard.Load() {
		deliver(Blob{}, ErrCancelled)
		return
	}
	if total == 0 {
		deliver(Blob{}, ErrNoVideoData)
		return
	}

	data := make([]byte, 0, total)
	for _, chunk := range parts {
		data = append(data, chunk...)
	}

	name := fmt.Sprintf("video-%s.%s", time.Now().Format("20060102-150405"), extensionForVideo(mimeType))
	p.logger.Info("video recording finished", "bytes", total, "name", name)
	deliver(Blob{Data: data, MimeType: mimeType, DisplayName: name}, nil)
}

func (p *Pipeline) acquireSlot() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return fmt.Errorf("%w: visual capture already in progress", media.ErrConflictingSession)
	}
	p.busy = true
	return nil
}

func (p *Pipeline) releaseSlot() {
	p.mu.Lock()
	p.busy = false
	p.mu.Unlock()
}

// encodeJPEG draws the frame into a pixel buffer at native resolution and
// encodes it as a compressed still image.
func encodeJPEG(frame image.Image) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrEncodeFailed)
	}
	bounds := frame.Bounds()
	pixels := image.NewRGBA(bounds)
	draw.Draw(pixels, bounds, frame, bounds.Min, draw.Src)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, pixels, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return out.Bytes(), nil
}

func extensionForVideo(mimeType string) string {
	switch {
	case mimeType == "video/mp4":
		return "mp4"
	default:
		return "webm"
	}
}
