package camera

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/logfields"
)

// DirectorySource serves the newest JPEG written into a directory by an
// external still-capture tool.
type DirectorySource struct {
	dir      string
	watcher  *fsnotify.Watcher
	mu       sync.RWMutex
	latest   string
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewDirectorySource creates a watcher for dir. Call Start to begin tracking.
func NewDirectorySource(dir string) (*DirectorySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve frame directory: %w", err)
	}
	return &DirectorySource{dir: absDir, watcher: watcher, stopChan: make(chan struct{})}, nil
}

// Start seeds the newest existing image and begins watching for new ones.
func (s *DirectorySource) Start(ctx context.Context) error {
	if err := s.watcher.Add(s.dir); err != nil {
		return errors.CameraError("failed to watch frame directory").
			WithCause(err).WithContext("dir", s.dir).Build()
	}
	if newest, err := newestImage(s.dir); err == nil && newest != "" {
		s.setLatest(newest)
	}
	slog.Info("Watching frame directory", logfields.Component("camera"), slog.String("dir", s.dir))
	go s.watchLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (s *DirectorySource) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)
		err = s.watcher.Close()
	})
	return err
}

func (s *DirectorySource) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isImage(event.Name) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
				if _, err := os.Stat(event.Name); err == nil {
					s.setLatest(event.Name)
				}
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				s.mu.Lock()
				if s.latest == event.Name {
					s.latest = ""
				}
				s.mu.Unlock()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Frame watcher error", logfields.Component("camera"), logfields.Error(err))
		}
	}
}

func (s *DirectorySource) setLatest(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = path
}

// Capture reads the newest image. A file still being written is reported as
// a retryable CameraError.
func (s *DirectorySource) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.RLock()
	path := s.latest
	s.mu.RUnlock()
	if path == "" {
		return Frame{}, ErrNoFrame
	}

	info, err := os.Stat(path)
	if err != nil {
		return Frame{}, errors.CameraError("frame disappeared").WithCause(err).WithContext("path", path).Build()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, errors.CameraError("failed to read frame").WithCause(err).WithContext("path", path).Build()
	}
	if !CompleteJPEG(data) {
		return Frame{}, errors.CameraError("frame is incomplete").WithContext("path", path).Build()
	}
	return Frame{Data: data, ContentType: "image/jpeg", At: info.ModTime(), Source: path}, nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

func newestImage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		newest string
		best   int64
	)
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if t := info.ModTime().UnixNano(); newest == "" || t > best {
			newest, best = filepath.Join(dir, e.Name()), t
		}
	}
	return newest, nil
}
