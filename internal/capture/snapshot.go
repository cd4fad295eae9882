package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const defaultSnapshotTimeout = 10 * time.Second

// SnapshotSource polls an IP camera's still-image URL.
type SnapshotSource struct {
	url    string
	client *http.Client
	opts   Options
	pace   pacer

	mu      sync.Mutex
	pending *Frame // frame fetched when the source is opened
}

func openSnapshot(ctx context.Context, url string, opts Options) (*SnapshotSource, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultSnapshotTimeout}
	}
	s := &SnapshotSource{
		url:    url,
		client: client,
		opts:   opts,
		pace:   pacer{interval: opts.Interval},
	}

	frame, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("open capture source %s: %w", url, err)
	}
	s.pending = &frame
	return s, nil
}

// Name returns the snapshot URL.
func (s *SnapshotSource) Name() string {
	return s.url
}

// Read fetches the next snapshot. A camera never runs out of frames, so Read never returns io.EOF.
func (s *SnapshotSource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		f := *s.pending
		s.pending = nil
		s.pace.last = time.Now()
		return f, nil
	}

	if err := s.pace.wait(ctx); err != nil {
		return Frame{}, err
	}
	return s.fetch(ctx)
}

func (s *SnapshotSource) fetch(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Frame{}, fmt.Errorf("%w: snapshot status %d", ErrBadFrame, resp.StatusCode)
	}

	img, err := Decode(resp.Body)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	return Frame{
		Image: Resize(img, s.opts.Width, s.opts.Height),
		At:    time.Now(),
		Name:  s.url,
	}, nil
}

// Close releases idle connections.
func (s *SnapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
