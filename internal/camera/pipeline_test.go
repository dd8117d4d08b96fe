package camera

import (
	"bytes"
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/roadwatch/internal/media"
)

type fakeStream struct {
	frame     image.Image
	frameErr  error
	recordErr error

	mediaStream *media.Stream

	mu      sync.Mutex
	chunks  chan []byte
	stopped bool
}

func newFakeStream(withAudio bool) *fakeStream {
	s := &fakeStream{
		frame:  image.NewRGBA(image.Rect(0, 0, 640, 480)),
		chunks: make(chan []byte, 64),
	}
	tracks := []*media.Track{media.NewTrack("video", func() {})}
	if withAudio {
		tracks = append(tracks, media.NewTrack("audio", func() {}))
	}
	s.mediaStream = media.NewStream(tracks...)
	return s
}

func (s *fakeStream) Media() *media.Stream            { return s.mediaStream }
func (s *fakeStream) AwaitFrame(context.Context) error { return nil }

func (s *fakeStream) Still(context.Context) (image.Image, error) {
	if s.frameErr != nil {
		return nil, s.frameErr
	}
	return s.frame, nil
}

func (s *fakeStream) Record(context.Context) (<-chan []byte, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	return s.chunks, nil
}

func (s *fakeStream) StopRecord() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.chunks)
	return nil
}

func (s *fakeStream) VideoMimeType() string { return "video/webm" }

type fakeSource struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (f *fakeSource) Acquire(_ context.Context, constraints media.Constraints) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	stream := newFakeStream(constraints.Audio)
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeSource) lastStream() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

type delivered struct {
	mu    sync.Mutex
	blobs []Blob
	errs  []error
	ch    chan struct{}
}

func newDelivered() *delivered {
	return &delivered{ch: make(chan struct{}, 8)}
}

func (d *delivered) deliver(blob Blob, err error) {
	d.mu.Lock()
	d.blobs = append(d.blobs, blob)
	d.errs = append(d.errs, err)
	d.mu.Unlock()
	d.ch <- struct{}{}
}

func (d *delivered) wait(t *testing.T) (Blob, error) {
	t.Helper()
	select {
	case <-d.ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("no delivery within deadline")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blobs[len(d.blobs)-1], d.errs[len(d.errs)-1]
}

func (d *delivered) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.blobs)
}

func TestCapturePhotoReleasesStreamAndEncodesJPEG(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, 5*time.Millisecond, time.Second)

	blob, err := p.CapturePhoto(context.Background())
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", blob.MimeType)
	require.NotEmpty(t, blob.Data)
	require.Contains(t, blob.DisplayName, "photo-")

	require.Equal(t, 0, source.lastStream().mediaStream.LiveTracks())
	require.False(t, p.Busy())
}

func TestCapturePhotoReleasesStreamOnEncodeFailure(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, time.Millisecond, time.Second)
	p.encode = func(image.Image) ([]byte, error) { return nil, ErrEncodeFailed }

	_, err := p.CapturePhoto(context.Background())
	require.ErrorIs(t, err, ErrEncodeFailed)
	// Release happened before the encode attempt, not after.
	require.Equal(t, 0, source.lastStream().mediaStream.LiveTracks())
	require.False(t, p.Busy())
}

func TestCapturePhotoDeviceUnavailable(t *testing.T) {
	source := &fakeSource{err: media.ErrDeviceUnavailable}
	p := NewPipeline(source, nil, time.Millisecond, time.Second)

	_, err := p.CapturePhoto(context.Background())
	require.ErrorIs(t, err, media.ErrDeviceUnavailable)
	require.False(t, p.Busy())
}

func TestCapturePhotoCancelledDuringSettleReleasesStream(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, time.Second, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.CapturePhoto(ctx)
		errCh <- err
	}()

	waitFor(t, func() bool { return source.lastStream() != nil })
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, source.lastStream().mediaStream.LiveTracks())
	require.False(t, p.Busy())
}

func TestVideoStopPublishesOneBlob(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, time.Millisecond, time.Minute)
	results := newDelivered()

	require.NoError(t, p.StartVideo(context.Background(), results.deliver))
	require.True(t, p.VideoActive())

	stream := source.lastStream()
	stream.chunks <- []byte("webm-segment-1")
	stream.chunks <- []byte("webm-segment-2")

	p.StopVideo()
	blob, err := results.wait(t)

	require.NoError(t, err)
	require.Equal(t, "video/webm", blob.MimeType)
	require.Equal(t, []byte("webm-segment-1webm-segment-2"), blob.Data)
	require.Contains(t, blob.DisplayName, "video-")
	require.Equal(t, 0, stream.mediaStream.LiveTracks())
	require.False(t, p.VideoActive())
	require.False(t, p.Busy())
}

func TestVideoCeilingStopsWithoutUserAction(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, time.Millisecond, 30*time.Millisecond)
	results := newDelivered()

	require.NoError(t, p.StartVideo(context.Background(), results.deliver))
	source.lastStream().chunks <- []byte("segment")

	blob, err := results.wait(t)
	require.NoError(t, err)
	require.Equal(t, []byte("segment"), blob.Data)
	require.False(t, p.VideoActive())

	// A late user stop after the ceiling fired produces no second result.
	p.StopVideo()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, results.count())
}

func TestVideoSecondStartRejected(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, time.Millisecond, time.Minute)
	results := newDelivered()

	require.NoError(t, p.StartVideo(context.Background(), results.deliver))
	err := p.StartVideo(context.Background(), results.deliver)
	require.ErrorIs(t, err, media.ErrConflictingSession)

	// Only the first acquisition happened; no stacked ceiling timer.
	require.Len(t, source.streams, 1)

	p.StopVideo()
}

func TestVideoCancelDiscardsRecording(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, time.Millisecond, time.Minute)
	results := newDelivered()

	require.NoError(t, p.StartVideo(context.Background(), results.deliver))
	source.lastStream().chunks <- []byte("segment")

	p.CancelVideo()
	_, err := results.wait(t)

	require.ErrorIs(t, err, ErrCancelled)
	require.Equal(t, 0, source.lastStream().mediaStream.LiveTracks())
	require.False(t, p.VideoActive())
}

func TestVideoEmptyRecordingReportsNoData(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, time.Millisecond, time.Minute)
	results := newDelivered()

	require.NoError(t, p.StartVideo(context.Background(), results.deliver))
	p.StopVideo()

	_, err := results.wait(t)
	require.ErrorIs(t, err, ErrNoVideoData)
	require.False(t, p.Busy())
}

func TestPhotoWhileVideoActiveRejected(t *testing.T) {
	source := &fakeSource{}
	p := NewPipeline(source, nil, time.Millisecond, time.Minute)
	results := newDelivered()

	require.NoError(t, p.StartVideo(context.Background(), results.deliver))

	_, err := p.CapturePhoto(context.Background())
	require.ErrorIs(t, err, media.ErrConflictingSession)

	p.StopVideo()
}

func TestEncodeJPEGProducesNativeResolution(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 320, 240))
	data, err := encodeJPEG(frame)
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 320, decoded.Bounds().Dx())
	require.Equal(t, 240, decoded.Bounds().Dy())
}

func TestEncodeJPEGNilFrameFails(t *testing.T) {
	_, err := encodeJPEG(nil)
	require.ErrorIs(t, err, ErrEncodeFailed)
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

