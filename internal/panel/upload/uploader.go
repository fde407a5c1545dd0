package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"meetpanel/internal/models"
)

// FallbackFailure is surfaced when the upload service answers without a URL.
const FallbackFailure = "An error occurred while uploading the file, please try again"

const maxResponseBody = 64 << 10

// Uploader sends a file to remote storage and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, f File, sentAt time.Time) (string, error)
}

// Error is an upload failure. Message is meant to be shown to the sender.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upload failed with status %d: %s", e.Status, e.Message)
	}
	return "upload failed: " + e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{models.ErrUpload, e.Err}
	}
	return []error{models.ErrUpload}
}

// HTTPUploader posts files as multipart forms with "file" and "timestamp"
// fields and expects {"secure_url": "..."} back.
type HTTPUploader struct {
	endpoint string
	client   *http.Client
}

// NewHTTPUploader returns an uploader for endpoint. A nil client uses
// http.DefaultClient.
func NewHTTPUploader(endpoint string, client *http.Client) *HTTPUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUploader{endpoint: endpoint, client: client}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

func (u *HTTPUploader) Upload(ctx context.Context, f File, sentAt time.Time) (string, error) {
	body, contentType, err := encodeForm(f, sentAt)
	if err != nil {
		return "", &Error{Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return "", &Error{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", &Error{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	text := strings.TrimSpace(string(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return "", &Error{Status: resp.StatusCode, Message: text}
	}

	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if text == "" {
			text = FallbackFailure
		}
		return "", &Error{Status: resp.StatusCode, Message: text, Err: err}
	}
	if out.SecureURL == "" {
		return "", &Error{Status: resp.StatusCode, Message: FallbackFailure}
	}
	return out.SecureURL, nil
}

func encodeForm(f File, sentAt time.Time) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	if f.MIMEType != "" {
		header.Set("Content-Type", f.MIMEType)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.WriteField("timestamp", strconv.FormatInt(sentAt.Unix(), 10)); err != nil {
		return nil, "", fmt.Errorf("write timestamp: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
