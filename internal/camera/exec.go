package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os/exec"
	"sync"
	"syscall"

	"github.com/rbright/roadwatch/internal/media"
)

// ExecSource adapts external grab/record commands into the camera device
// layer: one command emits a single encoded frame on stdout, the other
// streams encoded video on stdout until interrupted.
type ExecSource struct {
	PhotoArgv []string
	VideoArgv []string
	VideoMime string
}

// Acquire validates the configured commands for the requested constraints.
// Command lookup failures surface as device unavailability, the same as a
// denied permission.
func (s *ExecSource) Acquire(_ context.Context, constraints media.Constraints) (Stream, error) {
	if !constraints.Video {
		return nil, fmt.Errorf("exec camera source requires video constraints")
	}
	if len(s.PhotoArgv) == 0 {
		return nil, fmt.Errorf("%w: camera.photo_cmd is not configured", media.ErrDeviceUnavailable)
	}
	if _, err := exec.LookPath(s.PhotoArgv[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", media.ErrDeviceUnavailable, s.PhotoArgv[0])
	}
	if constraints.Audio {
		if len(s.VideoArgv) == 0 {
			return nil, fmt.Errorf("%w: camera.video_cmd is not configured", media.ErrDeviceUnavailable)
		}
		if _, err := exec.LookPath(s.VideoArgv[0]); err != nil {
			return nil, fmt.Errorf("%w: %s not found in PATH", media.ErrDeviceUnavailable, s.VideoArgv[0])
		}
	}

	mimeType := s.VideoMime
	if mimeType == "" {
		mimeType = "video/webm"
	}

	stream := &execStream{
		photoArgv: s.PhotoArgv,
		videoArgv: s.VideoArgv,
		videoMime: mimeType,
	}

	tracks := []*media.Track{media.NewTrack("video", stream.stopProcess)}
	if constraints.Audio {
		tracks = append(tracks, media.NewTrack("audio", stream.stopProcess))
	}
	stream.media = media.NewStream(tracks...)
	return stream, nil
}

type execStream struct {
	photoArgv []string
	videoArgv []string
	videoMime string

	media *media.Stream

	mu      sync.Mutex
	cmd     *exec.Cmd
	chunks  chan []byte
	stopped bool
}

func (s *execStream) Media() *media.Stream { return s.media }

// AwaitFrame is satisfied by the grab command itself: it blocks until the
// device delivers a frame.
func (s *execStream) AwaitFrame(_ context.Context) error { return nil }

// Still runs the grab command and decodes its stdout into a frame at the
// device's native resolution.
func (s *execStream) Still(ctx context.Context) (image.Image, error) {
	cmd := exec.CommandContext(ctx, s.photoArgv[0], s.photoArgv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: grab command failed: %v", media.ErrDeviceUnavailable, err)
	}

	frame, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", ErrEncodeFailed, err)
	}
	return frame, nil
}

// Record starts the video command and streams its stdout as chunks.
func (s *execStream) Record(ctx context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil, fmt.Errorf("recording already started")
	}

	cmd := exec.CommandContext(ctx, s.videoArgv[0], s.videoArgv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout for %s: %w", s.videoArgv[0], err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start record command %s: %v", media.ErrDeviceUnavailable, s.videoArgv[0], err)
	}

	s.cmd = cmd
	s.chunks = make(chan []byte, 64)
	chunks := s.chunks

	go func() {
		defer close(chunks)
		buf := make([]byte, 32*1024)
		for {
			n, readErr := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				chunks <- chunk
			}
			if readErr != nil {
				_ = cmd.Wait()
				return
			}
		}
	}()

	return chunks, nil
}

// StopRecord interrupts the record command so it can flush its container and
// exit; the reader goroutine closes the chunk channel on EOF.
func (s *execStream) StopRecord() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGINT)
	}
	return nil
}

func (s *execStream) stopProcess() {
	_ = s.StopRecord()
}

func (s *execStream) VideoMimeType() string { return s.videoMime }
