package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// File keeps one JSON document per table in a directory. Conditional writes
// are serialized within the process; subscribers poll the directory so they
// also see writes from other processes.
type File struct {
	dir    string
	every  time.Duration
	clock  quartz.Clock
	logger *log.Logger

	mu  sync.Mutex
	hub *hub
}

var _ Store = (*File)(nil)

// NewFile opens a file store rooted at dir, creating it if needed
func NewFile(dir string, pollInterval time.Duration, opts ...Option) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	o := buildOptions(opts)
	return &File{
		dir:    dir,
		every:  pollInterval,
		clock:  o.clock,
		logger: o.logger.With("driver", "file"),
		hub:    newHub(),
	}, nil
}

func (f *File) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return "", fmt.Errorf("file store: invalid table id %q", id)
	}
	return filepath.Join(f.dir, id+".json"), nil
}

func (f *File) Create(ctx context.Context, id string, doc []byte) (Snapshot, error) {
	path, err := f.path(id)
	if err != nil {
		return Snapshot{}, err
	}
	data, err := initDocument(id, doc)
	if err != nil {
		return Snapshot{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(path); err == nil {
		return Snapshot{}, ErrExists
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{ID: id, Version: 1, Data: data}
	f.hub.publish(snap)
	return snap, nil
}

func (f *File) Get(ctx context.Context, id string) (Snapshot, error) {
	path, err := f.path(id)
	if err != nil {
		return Snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("file store: %w", err)
	}
	return snapshotOf(data)
}

func (f *File) Update(ctx context.Context, id string, version int64, updates Updates) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if current.Version != version {
		return Snapshot{}, ErrVersionConflict
	}

	next, err := applyUpdates(current.Data, version, updates)
	if err != nil {
		return Snapshot{}, err
	}
	path, _ := f.path(id)
	if err := writeFileAtomic(path, next, 0o644); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{ID: id, Version: version + 1, Data: next}
	f.hub.publish(snap)
	return snap, nil
}

func (f *File) Subscribe(ctx context.Context, id string) (<-chan Snapshot, error) {
	sub, err := f.hub.subscribe(ctx, id, f.Get)
	if err != nil {
		return nil, err
	}
	go f.hub.poll(ctx, id, f.clock, f.every, f.Get, f.logger)
	return sub.ch, nil
}

func (f *File) Close() error {
	f.hub.close()
	return nil
}

// writeFileAtomic writes data to a temporary file in the same directory and
// renames it over filename, so readers see either the old or the new
// document and never a partial one.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filename); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
