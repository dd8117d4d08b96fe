package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DumpTranscriber mirrors every finalized blob to a debug artifact file
// before delegating to the real transcriber. Enabled via debug.audio_dump.
type DumpTranscriber struct {
	next   Transcriber
	logger *slog.Logger
}

// NewDumpTranscriber wraps next with blob dumping under the state directory.
func NewDumpTranscriber(next Transcriber, logger *slog.Logger) *DumpTranscriber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DumpTranscriber{next: next, logger: logger}
}

func (d *DumpTranscriber) Transcribe(ctx context.Context, blob []byte, mimeType string, filename string) (string, error) {
	if len(blob) > 0 {
		if path, err := writeDumpFile(blob, filename); err != nil {
			d.logger.Warn("unable to write debug audio dump", "error", err.Error())
		} else {
			d.logger.Debug("debug audio dump written", "path", path, "bytes", len(blob))
		}
	}
	return d.next.Transcribe(ctx, blob, mimeType, filename)
}

// writeDumpFile stores the blob under <state>/roadwatch/debug with a
// timestamped name carrying the upload extension.
func writeDumpFile(blob []byte, filename string) (string, error) {
	stateDir, err := resolveDumpStateDir()
	if err != nil {
		return "", err
	}
	debugDir := filepath.Join(stateDir, "roadwatch", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}

	extension := "bin"
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx+1 < len(filename) {
		extension = filename[idx+1:]
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("audio-%s.%s", timestamp, extension))
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return "", fmt.Errorf("write debug file %q: %w", path, err)
	}
	return path, nil
}

func resolveDumpStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}
