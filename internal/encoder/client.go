// Package encoder talks to the external face encoder service, which detects
// faces in an image and returns one embedding per face.
package encoder

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

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

const (
	defaultURL     = "http://localhost:8000"
	defaultModel   = "hog"
	defaultTimeout = 30 * time.Second
)

// ErrMalformedResponse is returned when the service answers with inconsistent face data.
var ErrMalformedResponse = errors.New("malformed encoder response")

// Client calls the encoder service.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates a client. model is the detection model (hog or cnn) forwarded to the service.
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Model returns the detection model being used.
func (c *Client) Model() string {
	return c.model
}

// faceDetection is a single detected face as returned by the service.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the body of POST /embed/face.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts the image as the "file" part together with the detection model.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectFaces returns every face the service found in the image, in service order.
// An image without faces yields an empty slice.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) ([]facematch.Face, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]facematch.Face, 0, len(faceResp.Faces))
	for _, f := range faceResp.Faces {
		if len(f.Embedding) == 0 {
			return nil, fmt.Errorf("%w: face %d has no embedding", ErrMalformedResponse, f.FaceIndex)
		}
		if f.Dim != 0 && f.Dim != len(f.Embedding) {
			return nil, fmt.Errorf("%w: face %d reports dim %d but has %d values",
				ErrMalformedResponse, f.FaceIndex, f.Dim, len(f.Embedding))
		}
		if len(f.BBox) != 4 {
			return nil, fmt.Errorf("%w: face %d has bbox of length %d", ErrMalformedResponse, f.FaceIndex, len(f.BBox))
		}
		faces = append(faces, facematch.Face{
			BBox:      f.BBox,
			DetScore:  f.DetScore,
			Embedding: facematch.Embedding(f.Embedding),
		})
	}
	return faces, nil
}

// Ping checks that the service answers on its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("encoder unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("encoder health check failed (status %d)", resp.StatusCode)
	}
	return nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}
