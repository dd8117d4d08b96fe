package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	photoCmd := "ffmpeg -loglevel quiet -f v4l2 -i /dev/video0 -frames:v 1 -f image2pipe -vcodec png -"
	videoCmd := "ffmpeg -loglevel quiet -f v4l2 -i /dev/video0 -f webm -"

	return Config{
		Endpoints: EndpointsConfig{
			Transcribe: "http://127.0.0.1:8000/api/speech-to-text",
			Intake:     "http://127.0.0.1:8000/api/report",
			Bus:        "http://127.0.0.1:8000/api/context-bus",
		},
		Gesture: GestureConfig{
			HoldThresholdMS: 500,
			PhotoSettleMS:   1000,
			VideoCeilingMS:  5000,
		},
		Audio: AudioConfig{
			Input:           "default",
			Fallback:        "default",
			SliceIntervalMS: 250,
			MinBytes:        32000,
		},
		Camera: CameraConfig{
			PhotoCmd:  CommandConfig{Raw: photoCmd, Argv: mustSplitCommand(photoCmd)},
			VideoCmd:  CommandConfig{Raw: videoCmd, Argv: mustSplitCommand(videoCmd)},
			VideoMime: "video/webm",
		},
		Bus: BusConfig{
			Enable:         true,
			PollIntervalMS: 30000,
		},
		Notify: NotifyConfig{
			Enable:         true,
			AppName:        "roadwatch",
			ErrorTimeoutMS: 1500,
		},
		Debug: DebugConfig{},
	}
}
