package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateEndpoint("endpoints.transcribe", cfg.Endpoints.Transcribe); err != nil {
		return nil, err
	}
	if err := validateEndpoint("endpoints.intake", cfg.Endpoints.Intake); err != nil {
		return nil, err
	}
	if err := validateEndpoint("endpoints.bus", cfg.Endpoints.Bus); err != nil {
		return nil, err
	}

	if cfg.Gesture.HoldThresholdMS <= 0 {
		return nil, fmt.Errorf("gesture.hold_threshold_ms must be > 0")
	}
	if cfg.Gesture.PhotoSettleMS < 0 {
		return nil, fmt.Errorf("gesture.photo_settle_ms must be >= 0")
	}
	if cfg.Gesture.VideoCeilingMS <= 0 {
		return nil, fmt.Errorf("gesture.video_ceiling_ms must be > 0")
	}
	if cfg.Gesture.VideoCeilingMS <= cfg.Gesture.HoldThresholdMS {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"gesture.video_ceiling_ms=%d is not above gesture.hold_threshold_ms=%d; recordings will stop almost immediately",
			cfg.Gesture.VideoCeilingMS, cfg.Gesture.HoldThresholdMS)})
	}

	if cfg.Audio.SliceIntervalMS <= 0 {
		return nil, fmt.Errorf("audio.slice_interval_ms must be > 0")
	}
	if cfg.Audio.MinBytes < 0 {
		return nil, fmt.Errorf("audio.min_bytes must be >= 0")
	}

	if len(cfg.Camera.PhotoCmd.Argv) == 0 {
		return nil, fmt.Errorf("camera.photo_cmd must not be empty")
	}
	if len(cfg.Camera.VideoCmd.Argv) == 0 {
		return nil, fmt.Errorf("camera.video_cmd must not be empty")
	}
	if strings.TrimSpace(cfg.Camera.VideoMime) == "" {
		return nil, fmt.Errorf("camera.video_mime must not be empty")
	}

	if cfg.Bus.Enable && cfg.Bus.PollIntervalMS < 1000 {
		return nil, fmt.Errorf("bus.poll_interval_ms must be >= 1000 when bus.enable=true")
	}

	if cfg.Notify.Enable && strings.TrimSpace(cfg.Notify.AppName) == "" {
		return nil, fmt.Errorf("notify.app_name must not be empty when notify.enable=true")
	}
	if cfg.Notify.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("notify.error_timeout_ms must be >= 0")
	}

	return warnings, nil
}

func validateEndpoint(key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return fmt.Errorf("%s must be an http(s) URL", key)
	}
	return nil
}
