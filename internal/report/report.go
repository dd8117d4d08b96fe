// Package report owns the draft incident report and its submission to the
// intake endpoint.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/rbright/roadwatch/internal/attachment"
)

var (
	// ErrEmptyReport indicates there was nothing to submit: blank text and
	// no attachment. No network call is made.
	ErrEmptyReport = errors.New("report needs text or an attachment")
	// ErrTransportUnavailable indicates the intake service could not be reached.
	ErrTransportUnavailable = errors.New("report intake service unavailable")
)

// Draft is the in-progress report: free text plus the current attachment.
type Draft struct {
	mu   sync.Mutex
	text string
	slot *attachment.Slot
}

// NewDraft constructs an empty draft around an attachment slot.
func NewDraft(slot *attachment.Slot) *Draft {
	if slot == nil {
		slot = attachment.NewSlot(nil)
	}
	return &Draft{slot: slot}
}

// SetText replaces the draft text.
func (d *Draft) SetText(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
}

// AppendText joins more text onto the draft, separated by a space.
func (d *Draft) AppendText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.mu.Lock()
	if d.text == "" {
		d.text = text
	} else {
		d.text = d.text + " " + text
	}
	d.mu.Unlock()
}

// Text returns the current draft text.
func (d *Draft) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Slot returns the draft's attachment slot.
func (d *Draft) Slot() *attachment.Slot {
	return d.slot
}

// Clear resets the text and releases the attachment, preview handle included.
func (d *Draft) Clear() {
	d.mu.Lock()
	d.text = ""
	d.mu.Unlock()
	d.slot.Remove()
}

const defaultTimeout = 60 * time.Second

// Client dispatches assembled reports to the intake endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs an intake client. A nil http.Client gets a sensible
// upload timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Submit builds a single multipart request with a text field and at most one
// binary attachments field, and dispatches it. Blank text with no attachment
// fails locally with ErrEmptyReport before any network I/O.
func (c *Client) Submit(ctx context.Context, text string, att *attachment.Attachment) error {
	if strings.TrimSpace(text) == "" && att == nil {
		return ErrEmptyReport
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("text", text); err != nil {
		return fmt.Errorf("write text field: %w", err)
	}
	if att != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments"; filename=%q`, att.DisplayName))
		header.Set("Content-Type", att.MimeType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("create attachment part: %w", err)
		}
		if _, err := part.Write(att.Payload); err != nil {
			return fmt.Errorf("write attachment part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build intake request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("report intake rejected: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
