package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// DirectorySource replays image files of a directory in lexical order.
type DirectorySource struct {
	dir   string
	files []string
	opts  Options
	pace  pacer

	mu  sync.Mutex
	pos int
}

// ListImages returns the image files of dir in lexical order.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func openDirectory(dir string, opts Options) (*DirectorySource, error) {
	files, err := ListImages(dir)
	if err != nil {
		return nil, fmt.Errorf("open capture source %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("open capture source %s: no image files", dir)
	}
	return &DirectorySource{
		dir:   dir,
		files: files,
		opts:  opts,
		pace:  pacer{interval: opts.Interval},
	}, nil
}

// Name returns the directory path.
func (s *DirectorySource) Name() string {
	return s.dir
}

// Read returns the next frame, or io.EOF once every file was read and Loop is off.
// A file that cannot be decoded is skipped and reported as ErrBadFrame.
func (s *DirectorySource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pace.wait(ctx); err != nil {
		return Frame{}, err
	}

	if s.pos >= len(s.files) {
		if !s.opts.Loop {
			return Frame{}, io.EOF
		}
		s.pos = 0
	}
	path := s.files[s.pos]
	s.pos++

	f, err := os.Open(path) //nolint:gosec // path comes from the configured frame directory
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %v", ErrBadFrame, path, err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %v", ErrBadFrame, path, err)
	}

	return Frame{
		Image: Resize(img, s.opts.Width, s.opts.Height),
		At:    time.Now(),
		Name:  filepath.Base(path),
	}, nil
}

// Close is a no-op for directories.
func (s *DirectorySource) Close() error {
	return nil
}
