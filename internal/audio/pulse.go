package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/roadwatch/internal/media"
)

const (
	sampleRate     = 16000
	bytesPerSample = 2 // s16 mono
)

// PulseSource acquires microphone sessions from the Pulse server using the
// configured input/fallback selection policy.
type PulseSource struct {
	Input    string
	Fallback string
}

// Acquire resolves device selection and starts a 16kHz mono s16 record
// stream sliced at the given interval.
func (s *PulseSource) Acquire(ctx context.Context, constraints media.Constraints, sliceInterval time.Duration) (Session, error) {
	if !constraints.Audio {
		return nil, fmt.Errorf("pulse source requires audio constraints")
	}

	selection, err := SelectDevice(ctx, s.Input, s.Fallback)
	if err != nil {
		return nil, err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("roadwatch"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect pulse server: %v", media.ErrDeviceUnavailable, err)
	}

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: resolve source %q: %v", media.ErrDeviceUnavailable, selection.Device.ID, err)
	}

	sliceBytes := int(sliceInterval.Seconds() * sampleRate * bytesPerSample)
	if sliceBytes <= 0 {
		sliceBytes = sampleRate / 2 // 250ms fallback
	}

	capture := &pulseSession{
		device:     selection.Device,
		client:     client,
		sliceBytes: sliceBytes,
		chunks:     make(chan []byte, 128),
		stopCh:     make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(uint32(sliceBytes)),
		pulse.RecordMediaName("roadwatch dictation"),
	)
	if err != nil {
		_ = capture.Finalize()
		return nil, fmt.Errorf("%w: create pulse record stream: %v", media.ErrDeviceUnavailable, err)
	}

	capture.pulseStream = stream
	capture.stream = media.NewStream(media.NewTrack("audio", func() {
		_ = capture.Finalize()
	}))
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Finalize()
	}()

	return capture, nil
}

// pulseSession slices raw PCM from one Pulse source into fixed-interval
// chunks. Echo cancellation and noise suppression ride on the server's
// source processing; the session records whatever the source emits.
type pulseSession struct {
	device     Device
	client     *pulse.Client
	sliceBytes int

	pulseStream *pulse.RecordStream
	stream      *media.Stream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

func (c *pulseSession) Stream() *media.Stream {
	return c.stream
}

// Supports reports the encodings this session can emit. Pulse capture is
// raw PCM, wrapped as WAV at assembly time.
func (c *pulseSession) Supports(mimeType string) bool {
	return mimeType == MimeWAV
}

func (c *pulseSession) Chunks() <-chan []byte {
	return c.chunks
}

// Finalize halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (c *pulseSession) Finalize() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.pulseStream != nil {
		c.pulseStream.Stop()
		c.pulseStream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := append([]byte(nil), c.pending...)
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 {
		select {
		case c.chunks <- pending:
		default:
		}
	}

	close(c.chunks)
	return nil
}

// onPCM receives raw Pulse frames and emits sliceBytes chunks to c.chunks.
func (c *pulseSession) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)

	chunks := make([][]byte, 0, len(c.pending)/c.sliceBytes)
	for len(c.pending) >= c.sliceBytes {
		chunk := make([]byte, c.sliceBytes)
		copy(chunk, c.pending[:c.sliceBytes])
		c.pending = c.pending[c.sliceBytes:]
		chunks = append(chunks, chunk)
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
