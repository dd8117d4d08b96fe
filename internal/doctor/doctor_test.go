package doctor

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/roadwatch/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "camera.photo_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-grab")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-grab", "--arg"}, "camera.photo_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "camera.photo_cmd command is available")
}

func TestCheckEndpointReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// POST-only endpoints answer GET probes with 405; that still proves
		// the service is up.
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	t.Cleanup(server.Close)

	check := checkEndpoint("endpoints.transcribe", server.URL)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 405")
}

func TestCheckEndpointTransportFailure(t *testing.T) {
	check := checkEndpoint("endpoints.intake", "http://127.0.0.1:1/api/report")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "request failed")
}

func TestCheckEndpointEmpty(t *testing.T) {
	check := checkEndpoint("endpoints.bus", "  ")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "endpoint is empty")
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestRunSkipsBusCheckWhenDisabled(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	cfg := config.Default()
	cfg.Bus.Enable = false
	cfg.Notify.Enable = false

	report := Run(config.Loaded{Path: "/tmp/config.conf", Config: cfg})
	require.NotEmpty(t, report.Checks)

	for _, check := range report.Checks {
		require.NotEqual(t, "endpoints.bus", check.Name)
		require.NotEqual(t, "busctl", check.Name)
	}
}

func TestRunProbesBusStatsEndpoint(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notify.Enable = false
	cfg.Endpoints.Transcribe = server.URL + "/api/speech-to-text"
	cfg.Endpoints.Intake = server.URL + "/api/report"
	cfg.Endpoints.Bus = server.URL + "/api/context-bus"

	report := Run(config.Loaded{Path: "/tmp/config.conf", Config: cfg})
	require.Equal(t, "/api/context-bus/stats", gotPath)

	var sawBus bool
	for _, check := range report.Checks {
		if check.Name == "endpoints.bus" {
			sawBus = true
			require.True(t, check.Pass)
		}
	}
	require.True(t, sawBus)
}
