package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

// newSpeechServer mimics the transcription endpoint contract: multipart
// `audio` field in, JSON `text` field out.
func newSpeechServer(t *testing.T, respond func(w http.ResponseWriter, audio []byte, filename string, mimeType string)) *httptest.Server {
	t.Helper()

	router := mux.NewRouter()
	router.HandleFunc("/api/speech-to-text", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()

		audio, err := io.ReadAll(file)
		require.NoError(t, err)
		respond(w, audio, header.Filename, header.Header.Get("Content-Type"))
	}).Methods(http.MethodPost)

	return httptest.NewServer(router)
}

func TestTranscribeSuccess(t *testing.T) {
	var gotFilename, gotMime string
	server := newSpeechServer(t, func(w http.ResponseWriter, audio []byte, filename string, mimeType string) {
		gotFilename = filename
		gotMime = mimeType
		require.Len(t, audio, 128)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "two cars blocking the left lane"})
	})
	defer server.Close()

	client := NewClient(server.URL+"/api/speech-to-text", nil)
	text, err := client.Transcribe(context.Background(), make([]byte, 128), "audio/wav", "recording.wav")

	require.NoError(t, err)
	require.Equal(t, "two cars blocking the left lane", text)
	require.Equal(t, "recording.wav", gotFilename)
	require.Equal(t, "audio/wav", gotMime)
}

func TestTranscribeWhitespaceTextIsEmptyTranscript(t *testing.T) {
	server := newSpeechServer(t, func(w http.ResponseWriter, _ []byte, _ string, _ string) {
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  \n\t "})
	})
	defer server.Close()

	client := NewClient(server.URL+"/api/speech-to-text", nil)
	_, err := client.Transcribe(context.Background(), []byte("pcm"), "audio/wav", "recording.wav")

	require.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestTranscribeServiceErrorCarriesDetail(t *testing.T) {
	server := newSpeechServer(t, func(w http.ResponseWriter, _ []byte, _ string, _ string) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "transcription model overloaded"})
	})
	defer server.Close()

	client := NewClient(server.URL+"/api/speech-to-text", nil)
	_, err := client.Transcribe(context.Background(), []byte("pcm"), "audio/wav", "recording.wav")

	require.ErrorIs(t, err, ErrUnavailable)
	require.Contains(t, err.Error(), "transcription model overloaded")
}

func TestTranscribeNetworkFailureIsUnavailable(t *testing.T) {
	server := newSpeechServer(t, func(http.ResponseWriter, []byte, string, string) {})
	server.Close()

	client := NewClient(server.URL+"/api/speech-to-text", nil)
	_, err := client.Transcribe(context.Background(), []byte("pcm"), "audio/wav", "recording.wav")

	require.ErrorIs(t, err, ErrUnavailable)
}

func TestTranscribeMalformedResponseIsUnavailable(t *testing.T) {
	server := newSpeechServer(t, func(w http.ResponseWriter, _ []byte, _ string, _ string) {
		_, _ = w.Write([]byte("not json"))
	})
	defer server.Close()

	client := NewClient(server.URL+"/api/speech-to-text", nil)
	_, err := client.Transcribe(context.Background(), []byte("pcm"), "audio/wav", "recording.wav")

	require.ErrorIs(t, err, ErrUnavailable)
}
