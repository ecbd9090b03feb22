package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileService reads templates from <dir>/<label>/<name>.md and caches them.
// With watching enabled, edits invalidate the cache so the next Fetch
// re-reads from disk.
type FileService struct {
	dir      string
	fallback Service

	mu      sync.RWMutex
	cache   map[string]*Template
	watcher *fsnotify.Watcher
}

// NewFileService creates a file-backed service. Missing templates fall back
// to the built-in defaults.
func NewFileService(dir string, watch bool) (*FileService, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompts dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompts dir %s: not a directory", dir)
	}

	s := &FileService{
		dir:      dir,
		fallback: NewDefaultService(),
		cache:    make(map[string]*Template),
	}

	if watch {
		if err := s.startWatcher(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileService) Fetch(ctx context.Context, name, label string) (*Template, error) {
	key := label + "/" + name

	s.mu.RLock()
	tmpl, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	path := filepath.Join(s.dir, label, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.fallback.Fetch(ctx, name, label)
		}
		return nil, fmt.Errorf("failed to read prompt %s: %w", path, err)
	}

	tmpl = &Template{Name: name, Label: label, Text: strings.TrimSpace(string(data))}

	s.mu.Lock()
	s.cache[key] = tmpl
	s.mu.Unlock()

	return tmpl, nil
}

func (s *FileService) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	s.watcher = watcher

	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch prompts dir: %w", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				_ = watcher.Add(filepath.Join(s.dir, e.Name()))
			}
		}
	}

	go s.watchLoop()
	return nil
}

func (s *FileService) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.invalidate(event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("prompt watcher error", "error", err)
		}
	}
}

func (s *FileService) invalidate(path string) {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return
	}
	key := strings.TrimSuffix(filepath.ToSlash(rel), ".md")

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	slog.Debug("prompt cache invalidated", "template", key)
}

func (s *FileService) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

var _ Service = (*FileService)(nil)
