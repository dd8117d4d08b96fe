// Package transcribe exchanges one recorded audio blob for text against the
// external transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

var (
	// ErrEmptyTranscript indicates the exchange succeeded but returned no
	// usable text. This is a content-validity failure, not a transport one,
	// and is never retried automatically.
	ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")
	// ErrUnavailable indicates the transcription service could not be reached
	// or refused the exchange.
	ErrUnavailable = errors.New("transcription service unavailable")
)

const defaultTimeout = 60 * time.Second

// Client posts multipart audio uploads to the transcription endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a transcription client. A nil http.Client gets a
// sensible upload timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Transcribe submits the finalized blob as the multipart `audio` field and
// returns the transcript text. Empty or whitespace-only text is surfaced as
// ErrEmptyTranscript even though the HTTP call succeeded.
func (c *Client) Transcribe(ctx context.Context, blob []byte, mimeType string, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create audio form part: %w", err)
	}
	if _, err := part.Write(blob); err != nil {
		return "", fmt.Errorf("write audio form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, errorDetail(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	if strings.TrimSpace(result.Text) == "" {
		return "", ErrEmptyTranscript
	}
	return result.Text, nil
}

// errorDetail extracts the service's structured detail string when present.
func errorDetail(body []byte) string {
	var failure struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &failure); err == nil && strings.TrimSpace(failure.Detail) != "" {
		return failure.Detail
	}
	return strings.TrimSpace(string(body))
}
