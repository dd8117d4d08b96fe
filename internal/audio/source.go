package audio

import (
	"context"
	"time"

	"github.com/rbright/roadwatch/internal/media"
)

// Encoding preference order: uncompressed first, speech-friendly lossy
// codecs next, generic container last. The identifiers are advisory; the
// contract is the order, probed against what the recorder supports.
var DefaultEncodings = []string{
	MimeWAV,
	"audio/ogg;codecs=opus",
	"audio/webm;codecs=opus",
	"audio/webm",
}

const MimeWAV = "audio/wav"

// Session is one live microphone recording: an owned device stream plus the
// slice channel the recorder fills at a fixed interval.
type Session interface {
	// Stream returns the exclusively owned device stream.
	Stream() *media.Stream
	// Supports reports whether the session can emit the given encoding.
	Supports(mimeType string) bool
	// Chunks yields recorded slices. Closed after Finalize.
	Chunks() <-chan []byte
	// Finalize stops slicing, flushes residual data, and closes Chunks.
	// Finalizing twice is a no-op.
	Finalize() error
}

// Source acquires a microphone session honoring the given constraints.
type Source interface {
	Acquire(ctx context.Context, constraints media.Constraints, sliceInterval time.Duration) (Session, error)
}

// negotiateEncoding picks the first preference the session supports.
func negotiateEncoding(session Session, preferences []string) (string, bool) {
	for _, mimeType := range preferences {
		if session.Supports(mimeType) {
			return mimeType, true
		}
	}
	return "", false
}

// extensionFor maps a negotiated encoding to the upload filename extension.
func extensionFor(mimeType string) string {
	switch {
	case mimeType == MimeWAV:
		return "wav"
	case mimeType == "audio/ogg;codecs=opus":
		return "ogg"
	default:
		return "webm"
	}
}
