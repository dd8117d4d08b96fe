// Package config resolves, parses, validates, and defaults roadwatch
// configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by roadwatch.
type Config struct {
	Endpoints EndpointsConfig
	Gesture   GestureConfig
	Audio     AudioConfig
	Camera    CameraConfig
	Bus       BusConfig
	Notify    NotifyConfig
	Debug     DebugConfig
}

// EndpointsConfig holds the backend service URLs.
type EndpointsConfig struct {
	Transcribe string
	Intake     string
	Bus        string
}

// GestureConfig controls press disambiguation and capture timing.
type GestureConfig struct {
	HoldThresholdMS int
	PhotoSettleMS   int
	VideoCeilingMS  int
}

// HoldThreshold is the press duration that commits a hold.
func (g GestureConfig) HoldThreshold() time.Duration {
	return time.Duration(g.HoldThresholdMS) * time.Millisecond
}

// PhotoSettle is the exposure settle delay before a still is grabbed.
func (g GestureConfig) PhotoSettle() time.Duration {
	return time.Duration(g.PhotoSettleMS) * time.Millisecond
}

// VideoCeiling is the absolute video recording duration cap.
func (g GestureConfig) VideoCeiling() time.Duration {
	return time.Duration(g.VideoCeilingMS) * time.Millisecond
}

// AudioConfig controls input-source selection and dictation slicing.
type AudioConfig struct {
	Input           string
	Fallback        string
	SliceIntervalMS int
	MinBytes        int
}

// SliceInterval is the recorder chunk cadence.
func (a AudioConfig) SliceInterval() time.Duration {
	return time.Duration(a.SliceIntervalMS) * time.Millisecond
}

// CameraConfig controls the external capture commands.
type CameraConfig struct {
	PhotoCmd  CommandConfig
	VideoCmd  CommandConfig
	VideoMime string
}

// BusConfig controls context-bus publication and stats polling.
type BusConfig struct {
	Enable         bool
	PollIntervalMS int
}

// PollInterval is the stats polling cadence.
func (b BusConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMS) * time.Millisecond
}

// NotifyConfig controls desktop notification behavior.
type NotifyConfig struct {
	Enable         bool
	AppName        string
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
