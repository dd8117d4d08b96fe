package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Endpoints *jsoncEndpoints `json:"endpoints"`
	Gesture   *jsoncGesture   `json:"gesture"`
	Audio     *jsoncAudio     `json:"audio"`
	Camera    *jsoncCamera    `json:"camera"`
	Bus       *jsoncBus       `json:"bus"`
	Notify    *jsoncNotify    `json:"notify"`
	Debug     *jsoncDebug     `json:"debug"`
}

type jsoncEndpoints struct {
	Transcribe *string `json:"transcribe"`
	Intake     *string `json:"intake"`
	Bus        *string `json:"bus"`
}

type jsoncGesture struct {
	HoldThresholdMS *int `json:"hold_threshold_ms"`
	PhotoSettleMS   *int `json:"photo_settle_ms"`
	VideoCeilingMS  *int `json:"video_ceiling_ms"`
}

type jsoncAudio struct {
	Input           *string `json:"input"`
	Fallback        *string `json:"fallback"`
	SliceIntervalMS *int    `json:"slice_interval_ms"`
	MinBytes        *int    `json:"min_bytes"`
}

type jsoncCamera struct {
	PhotoCmd  *string `json:"photo_cmd"`
	VideoCmd  *string `json:"video_cmd"`
	VideoMime *string `json:"video_mime"`
}

type jsoncBus struct {
	Enable         *bool `json:"enable"`
	PollIntervalMS *int  `json:"poll_interval_ms"`
}

type jsoncNotify struct {
	Enable         *bool   `json:"enable"`
	AppName        *string `json:"app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Endpoints != nil {
		if payload.Endpoints.Transcribe != nil {
			cfg.Endpoints.Transcribe = strings.TrimSpace(*payload.Endpoints.Transcribe)
		}
		if payload.Endpoints.Intake != nil {
			cfg.Endpoints.Intake = strings.TrimSpace(*payload.Endpoints.Intake)
		}
		if payload.Endpoints.Bus != nil {
			cfg.Endpoints.Bus = strings.TrimSpace(*payload.Endpoints.Bus)
		}
	}

	if payload.Gesture != nil {
		if payload.Gesture.HoldThresholdMS != nil {
			cfg.Gesture.HoldThresholdMS = *payload.Gesture.HoldThresholdMS
		}
		if payload.Gesture.PhotoSettleMS != nil {
			cfg.Gesture.PhotoSettleMS = *payload.Gesture.PhotoSettleMS
		}
		if payload.Gesture.VideoCeilingMS != nil {
			cfg.Gesture.VideoCeilingMS = *payload.Gesture.VideoCeilingMS
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
		if payload.Audio.SliceIntervalMS != nil {
			cfg.Audio.SliceIntervalMS = *payload.Audio.SliceIntervalMS
		}
		if payload.Audio.MinBytes != nil {
			cfg.Audio.MinBytes = *payload.Audio.MinBytes
		}
	}

	if payload.Camera != nil {
		if payload.Camera.PhotoCmd != nil {
			raw := *payload.Camera.PhotoCmd
			argv, err := splitCommand(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid camera.photo_cmd: %w", err)
			}
			cfg.Camera.PhotoCmd = CommandConfig{Raw: raw, Argv: argv}
		}
		if payload.Camera.VideoCmd != nil {
			raw := *payload.Camera.VideoCmd
			argv, err := splitCommand(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid camera.video_cmd: %w", err)
			}
			cfg.Camera.VideoCmd = CommandConfig{Raw: raw, Argv: argv}
		}
		if payload.Camera.VideoMime != nil {
			cfg.Camera.VideoMime = strings.TrimSpace(*payload.Camera.VideoMime)
		}
	}

	if payload.Bus != nil {
		if payload.Bus.Enable != nil {
			cfg.Bus.Enable = *payload.Bus.Enable
		}
		if payload.Bus.PollIntervalMS != nil {
			cfg.Bus.PollIntervalMS = *payload.Bus.PollIntervalMS
		}
	}

	if payload.Notify != nil {
		if payload.Notify.Enable != nil {
			cfg.Notify.Enable = *payload.Notify.Enable
		}
		if payload.Notify.AppName != nil {
			cfg.Notify.AppName = strings.TrimSpace(*payload.Notify.AppName)
		}
		if payload.Notify.ErrorTimeoutMS != nil {
			cfg.Notify.ErrorTimeoutMS = *payload.Notify.ErrorTimeoutMS
		}
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' || ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
