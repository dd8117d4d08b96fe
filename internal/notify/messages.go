package notify

import (
	"errors"
	"os"
	"strings"

	"github.com/rbright/roadwatch/internal/audio"
	"github.com/rbright/roadwatch/internal/camera"
	"github.com/rbright/roadwatch/internal/media"
	"github.com/rbright/roadwatch/internal/report"
	"github.com/rbright/roadwatch/internal/transcribe"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	capturing  string
	photo      string
	video      string
	dictating  string
	processing string
	errorText  string
	submitted  string
}

func notifyMessagesFromEnv() messages {
	return notifyMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func notifyMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			capturing:  "Capturing…",
			photo:      "Capturing photo…",
			video:      "Recording video…",
			dictating:  "Listening…",
			processing: "Processing…",
			errorText:  "Capture error",
			submitted:  "Report submitted",
		}
	}
}

// UserMessage maps pipeline and submission failures to short user-facing text.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, media.ErrDeviceUnavailable):
		return "Camera or microphone unavailable"
	case errors.Is(err, media.ErrConflictingSession):
		return "Another capture is already running"
	case errors.Is(err, audio.ErrEmptyRecording):
		return "No audio captured"
	case errors.Is(err, audio.ErrTooShort):
		return "Recording too short"
	case errors.Is(err, audio.ErrNoSupportedEncoding):
		return "No supported audio format"
	case errors.Is(err, camera.ErrNoVideoData):
		return "No video captured"
	case errors.Is(err, camera.ErrEncodeFailed):
		return "Photo encoding failed"
	case errors.Is(err, transcribe.ErrEmptyTranscript):
		return "No speech detected"
	case errors.Is(err, transcribe.ErrUnavailable):
		return "Transcription service unreachable"
	case errors.Is(err, report.ErrEmptyReport):
		return "Nothing to submit"
	case errors.Is(err, report.ErrTransportUnavailable):
		return "Report service unreachable"
	default:
		return "Capture error"
	}
}
