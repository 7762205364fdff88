// Package transcribe uploads assembled recordings to a remote transcription
// service and classifies its failures.
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

const (
	// DefaultTimeout bounds a single upload, including reading the response.
	DefaultTimeout = 30 * time.Second

	fieldName        = "audio"
	maxErrorBodySize = 64 * 1024
	maxResponseSize  = 8 * 1024 * 1024
)

// Artifact is the upload payload. *audio.Artifact satisfies it.
type Artifact interface {
	Filename() string
	ContentType() string
	Bytes() []byte
}

// Payload is an upload whose bytes are held in memory.
type Payload struct {
	Name string
	Type string
	Data []byte
}

func (p Payload) Filename() string    { return p.Name }
func (p Payload) ContentType() string { return p.Type }
func (p Payload) Bytes() []byte       { return p.Data }

// Result is a successful transcription.
type Result struct {
	Text string
}

// Client sends one multipart upload per call. It performs no retries.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type Option func(*Client)

// New creates a client for the given transcription endpoint.
func New(url string, opts ...Option) *Client {
	c := &Client{
		URL:        strings.TrimSpace(url),
		HTTPClient: &http.Client{},
		Timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// WithHTTPClient sets the HTTP client used for uploads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			return
		}
		c.HTTPClient = client
	}
}

// WithTimeout sets the upload bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}
		c.Timeout = timeout
	}
}

// response is the only accepted success shape.
type response struct {
	Transcription *string `json:"transcription"`
}

// Upload posts the artifact and waits for the transcript. Failures are
// returned as *NetworkError, *TimeoutError, *ServerError or
// *MalformedResponseError.
func (c *Client) Upload(ctx context.Context, art Artifact) (*Result, error) {
	if c.URL == "" {
		return nil, errors.New("transcribe: endpoint URL is required")
	}

	body, contentType, err := buildForm(art)
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return nil, fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if readErr != nil && ctx.Err() != nil {
			return nil, classify(ctx, readErr)
		}
		return nil, &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classify(ctx, err)
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	if decoded.Transcription == nil {
		return nil, &MalformedResponseError{Err: errMissingTranscription}
	}

	return &Result{Text: *decoded.Transcription}, nil
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func buildForm(art Artifact) (*bytes.Buffer, string, error) {
	if art == nil {
		return nil, "", errors.New("transcribe: artifact is required")
	}
	data := art.Bytes()
	if len(data) == 0 {
		return nil, "", errors.New("transcribe: audio data is required")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, art.Filename()))
	header.Set("Content-Type", art.ContentType())

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("transcribe: write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("transcribe: close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// classify maps a transport failure to the timeout or network kind. A
// cancelled parent context is wrapped but not classified.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("transcribe: upload cancelled: %w", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &NetworkError{Err: err}
}
