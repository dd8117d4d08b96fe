package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/roadwatch/internal/fsm"
	"github.com/rbright/roadwatch/internal/media"
)

var (
	// ErrEmptyRecording indicates stop completed with zero captured bytes.
	ErrEmptyRecording = errors.New("no audio captured; check microphone input or mute state")
	// ErrTooShort indicates the recording is below the minimum usable length.
	ErrTooShort = errors.New("recording too short to transcribe")
	// ErrNoSupportedEncoding indicates the recorder supports none of the
	// preferred encodings.
	ErrNoSupportedEncoding = errors.New("no supported audio encoding")
)

// Transcriber exchanges one finalized audio blob for text.
type Transcriber interface {
	Transcribe(ctx context.Context, blob []byte, mimeType string, filename string) (string, error)
}

// TranscribeFunc adapts a function to the Transcriber interface.
type TranscribeFunc func(context.Context, []byte, string, string) (string, error)

func (f TranscribeFunc) Transcribe(ctx context.Context, blob []byte, mimeType string, filename string) (string, error) {
	return f(ctx, blob, mimeType, filename)
}

// Pipeline drives one microphone recording through start/stop/cancel and the
// transcription exchange. At most one recording may be live at a time.
type Pipeline struct {
	source     Source
	transcribe Transcriber
	logger     *slog.Logger

	sliceInterval time.Duration
	minBytes      int
	encodings     []string

	mu          sync.Mutex
	state       fsm.State
	startGen    uint64
	session     Session
	group       *media.ReleaseGroup
	mimeType    string
	chunks      [][]byte
	bytes       int64
	collectDone chan struct{}
}

// NewPipeline constructs an idle dictation pipeline.
func NewPipeline(source Source, transcriber Transcriber, logger *slog.Logger, sliceInterval time.Duration, minBytes int) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if sliceInterval <= 0 {
		sliceInterval = 250 * time.Millisecond
	}
	return &Pipeline{
		source:        source,
		transcribe:    transcriber,
		logger:        logger,
		sliceInterval: sliceInterval,
		minBytes:      minBytes,
		encodings:     DefaultEncodings,
	}
}

// State returns the current pipeline state snapshot.
func (p *Pipeline) State() fsm.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == "" {
		return fsm.AudioIdle
	}
	return p.state
}

// BytesCaptured reports total slice bytes buffered so far.
func (p *Pipeline) BytesCaptured() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytes
}

// Start acquires the microphone, negotiates an encoding, and begins
// buffering fixed-interval slices. A second start while one recording is
// live is rejected.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	current := p.state
	if current == "" {
		current = fsm.AudioIdle
	}
	next, err := fsm.AudioTransition(current, fsm.AudioEventStart)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: audio pipeline is %s", media.ErrConflictingSession, current)
	}
	p.state = next
	p.startGen++
	gen := p.startGen
	p.mu.Unlock()

	session, err := p.source.Acquire(ctx, media.Constraints{
		Audio:            true,
		EchoCancellation: true,
		NoiseSuppression: true,
	}, p.sliceInterval)
	if err != nil {
		p.failStart(gen)
		return err
	}

	group := &media.ReleaseGroup{}
	group.Defer(func() {
		session.Stream().Release()
		_ = session.Finalize()
	})

	mimeType, ok := negotiateEncoding(session, p.encodings)
	if !ok {
		group.Release()
		p.failStart(gen)
		return ErrNoSupportedEncoding
	}

	done := make(chan struct{})
	p.mu.Lock()
	if p.state != fsm.AudioRecording || gen != p.startGen {
		// Cancel or stop won the race while the device was being
		// acquired (or a newer start superseded this one); the fresh
		// stream must be released, never installed.
		p.mu.Unlock()
		group.Release()
		p.logger.Info("dictation start abandoned, cancelled during acquisition")
		return nil
	}
	p.session = session
	p.group = group
	p.mimeType = mimeType
	p.chunks = nil
	p.bytes = 0
	p.collectDone = done
	p.mu.Unlock()

	go p.collect(session, done)

	p.logger.Info("dictation started", "mime_type", mimeType)
	return nil
}

// collect buffers recorder slices until the session closes its channel.
func (p *Pipeline) collect(session Session, done chan struct{}) {
	defer close(done)
	for chunk := range session.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		p.mu.Lock()
		p.chunks = append(p.chunks, chunk)
		p.bytes += int64(len(chunk))
		p.mu.Unlock()
	}
}

// Stop finalizes the recording, assembles the blob, releases the device
// stream, and exchanges the blob for a transcript. The stream is released
// before any network I/O on every path.
func (p *Pipeline) Stop(ctx context.Context) (string, error) {
	p.mu.Lock()
	next, err := fsm.AudioTransition(p.state, fsm.AudioEventStop)
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	p.state = next
	session := p.session
	group := p.group
	done := p.collectDone
	mimeType := p.mimeType
	p.mu.Unlock()

	// Stop raced an in-flight acquisition; nothing was captured yet.
	if session == nil {
		p.fail()
		return "", ErrEmptyRecording
	}

	_ = session.Finalize()
	<-done

	p.mu.Lock()
	raw := assemble(p.chunks)
	p.chunks = nil
	p.session = nil
	p.mu.Unlock()

	group.Release()

	if len(raw) == 0 {
		p.fail()
		return "", ErrEmptyRecording
	}
	if len(raw) < p.minBytes {
		p.fail()
		return "", fmt.Errorf("%w: %d bytes captured, need %d", ErrTooShort, len(raw), p.minBytes)
	}

	blob := raw
	if mimeType == MimeWAV {
		blob = WrapPCM16WAV(raw, sampleRate, 1)
	}

	text, err := p.transcribe.Transcribe(ctx, blob, mimeType, "recording."+extensionFor(mimeType))
	if err != nil {
		p.fail()
		return "", err
	}

	p.mu.Lock()
	p.state, _ = fsm.AudioTransition(p.state, fsm.AudioEventDone)
	p.mu.Unlock()

	p.logger.Info("dictation transcribed", "bytes_captured", len(raw), "transcript_length", len(text))
	return text, nil
}

// Cancel releases the stream and discards buffered slices without invoking
// transcription. Cancelling an idle pipeline is a no-op.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	next, err := fsm.AudioTransition(p.state, fsm.AudioEventCancel)
	if err != nil {
		p.mu.Unlock()
		return nil
	}
	p.state = next
	session := p.session
	group := p.group
	done := p.collectDone
	p.session = nil
	p.chunks = nil
	p.mu.Unlock()

	if session != nil {
		_ = session.Finalize()
	}
	if done != nil {
		<-done
	}
	if group != nil {
		group.Release()
	}

	p.logger.Info("dictation cancelled")
	return nil
}

// failStart resets to idle after a start-path failure unless a newer start
// already owns the machine.
func (p *Pipeline) failStart(gen uint64) {
	p.mu.Lock()
	if gen == p.startGen {
		p.state, _ = fsm.AudioTransition(p.state, fsm.AudioEventFail)
		p.session = nil
		p.chunks = nil
	}
	p.mu.Unlock()
}

// fail returns the pipeline to idle after any failure so a new attempt can
// begin immediately.
func (p *Pipeline) fail() {
	p.mu.Lock()
	p.state, _ = fsm.AudioTransition(p.state, fsm.AudioEventFail)
	p.session = nil
	p.chunks = nil
	p.mu.Unlock()
}

// assemble concatenates buffered slices into one blob.
func assemble(chunks [][]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	out := make([]byte, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out
}
