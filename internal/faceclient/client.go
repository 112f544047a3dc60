// Package faceclient calls the external face recognition microservice.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Sighting is one face in a frame as reported by the recognition service.
type Sighting struct {
	StudentID  string     `json:"student_id"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"` // x, y, w, h
	Recognized bool       `json:"recognized"`
}

// LiveResult is the response of a recognize-live call.
type LiveResult struct {
	Results []Sighting `json:"results"`
	Count   int        `json:"count"`
}

// Error classes surfaced to callers; the poller does not retry, it simply
// tries again on its next tick.
var (
	ErrRefused = errors.New("recognition service refused connection")
	ErrTimeout = errors.New("recognition service timed out")
)

// Classify maps a transport error to a stable errorType string.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrRefused):
		return "connection_refused"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "unknown"
	}
}

// Client calls the recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. Recognition can be slow on first inference, so the
// timeout is generous.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrRefused, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// RecognizeLive posts a single JPEG frame and returns all detected faces.
func (c *Client) RecognizeLive(ctx context.Context, frame []byte) (*LiveResult, error) {
	if c.Skip {
		return &LiveResult{Results: []Sighting{}, Count: 0}, nil
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(frame); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/recognize-live", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("recognition service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out LiveResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// Train asks the service to build a face model from extracted frames.
// Callers treat this as fire-and-forget: failures are logged, not surfaced.
func (c *Client) Train(ctx context.Context, studentID, framesDir string) error {
	if c.Skip {
		return nil
	}
	payload, _ := json.Marshal(map[string]string{
		"studentId": studentID,
		"framesDir": framesDir,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/train", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("training error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

// Health checks if the recognition service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("recognition service unhealthy: %s", resp.Status)
	}
	return nil
}
