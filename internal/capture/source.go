// Package capture reads frames from a directory of images or an IP camera snapshot URL.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnsupportedSource is returned for locators this build cannot open, such as local device indexes.
	ErrUnsupportedSource = errors.New("unsupported capture source")
	// ErrBadFrame is returned when a single frame cannot be decoded. The source stays usable.
	ErrBadFrame = errors.New("bad frame")
)

// Frame is one captured image.
type Frame struct {
	Image image.Image
	At    time.Time
	Name  string // file name or URL the frame came from
}

// Source yields frames until it returns io.EOF.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
	Name() string
}

// Options control how frames are produced.
type Options struct {
	Width      int           // resize frames to Width x Height; 0 keeps the original size
	Height     int
	Loop       bool          // restart a directory source when exhausted
	Interval   time.Duration // minimum pause between reads
	HTTPClient *http.Client
}

// Open opens the source named by locator and verifies that it yields a frame.
func Open(ctx context.Context, locator string, opts Options) (Source, error) {
	locator = strings.TrimSpace(locator)
	switch {
	case locator == "":
		return nil, fmt.Errorf("%w: empty locator", ErrUnsupportedSource)
	case isDeviceIndex(locator):
		return nil, fmt.Errorf("%w: device %s (use a frame directory or a snapshot URL)", ErrUnsupportedSource, locator)
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return openSnapshot(ctx, locator, opts)
	default:
		return openDirectory(locator, opts)
	}
}

func isDeviceIndex(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// pacer enforces Options.Interval between reads.
type pacer struct {
	interval time.Duration
	last     time.Time
}

func (p *pacer) wait(ctx context.Context) error {
	if p.interval <= 0 || p.last.IsZero() {
		p.last = time.Now()
		return ctx.Err()
	}
	wait := p.interval - time.Since(p.last)
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	p.last = time.Now()
	return nil
}
