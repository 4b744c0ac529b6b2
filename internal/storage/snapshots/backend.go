package snapshots

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileBackend keeps the snapshot document in a single JSON file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path. Parent directories are created on Save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the cache file location.
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads the cache file.
func (b *FileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "read snapshot file")
	}

	return data, nil
}

// Save writes data to a temp file and renames it over the cache file.
func (b *FileBackend) Save(data []byte) error {
	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create snapshot dir")
		}
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot temp file")
	}

	if err := os.Rename(tmp, b.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "persist snapshot file")
	}

	return nil
}

// MemoryBackend keeps the snapshot document in memory.
type MemoryBackend struct {
	mu      sync.Mutex
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

// NewMemoryBackend returns a backend preloaded with initial, which may be nil.
func NewMemoryBackend(initial []byte) *MemoryBackend {
	return &MemoryBackend{data: initial}
}

// Load returns the stored bytes.
func (m *MemoryBackend) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, ErrNotFound
	}

	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

// Save replaces the stored bytes.
func (m *MemoryBackend) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}

	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.saves++
	return nil
}

// FailLoads makes every Load return err; nil restores normal behaviour.
func (m *MemoryBackend) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// FailSaves makes every Save return err; nil restores normal behaviour.
func (m *MemoryBackend) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves returns the number of successful saves.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
