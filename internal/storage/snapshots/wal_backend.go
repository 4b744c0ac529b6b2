package snapshots

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultWALDir      = "./wal/snapshots"
	walSegmentLimit    = 1000
	walMaxSegments     = 100
	walRecordKeyPrefix = "snapshot_"
)

// WALBackend appends every snapshot to a write-ahead log and serves the newest record.
// Older records are kept until gowal rotates their segment out.
type WALBackend struct {
	wal *gowal.Wal
	key string
	mu  sync.RWMutex
}

// NewWALBackend opens (or creates) a WAL under dir for snapshots named name.
func NewWALBackend(dir, name string) (*WALBackend, error) {
	if dir == "" {
		dir = defaultWALDir
	}
	if name == "" {
		return nil, errors.New("wal snapshot name is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", dir)
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           name + "_",
		SegmentThreshold: walSegmentLimit,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init snapshot WAL")
	}

	return &WALBackend{wal: wal, key: walRecordKeyPrefix + name}, nil
}

// Load returns the newest record.
func (b *WALBackend) Load() ([]byte, error) {
	if b == nil || b.wal == nil {
		return nil, errors.New("snapshot WAL is not initialized")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	current := b.wal.CurrentIndex()
	if current == 0 {
		return nil, ErrNotFound
	}

	key, payload, err := b.wal.Get(current)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot WAL record")
	}
	if key != b.key {
		return nil, ErrNotFound
	}

	return payload, nil
}

// Save appends data as the newest record.
func (b *WALBackend) Save(data []byte) error {
	if b == nil || b.wal == nil {
		return errors.New("snapshot WAL is not initialized")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	nextIndex := b.wal.CurrentIndex() + 1
	return errors.Wrap(b.wal.Write(nextIndex, b.key, data), "append snapshot to WAL")
}

// CurrentIndex returns the index of the newest record.
func (b *WALBackend) CurrentIndex() uint64 {
	if b == nil || b.wal == nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (b *WALBackend) Close() error {
	if b == nil || b.wal == nil {
		return errors.New("snapshot WAL is not initialized")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.wal.Close()
}
