// Package snapshots keeps the last successfully fetched payload of a refresh cycle
// in a durable store, tagged with its capture time.
package snapshots

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Payload keys of the two published documents.
const (
	FundsKey = "funds"
	UsersKey = "payload"
)

var (
	// ErrNotFound is returned when nothing has been stored yet.
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalidSnapshot is returned when stored content does not have the snapshot shape.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrInvalidPayload is returned by Write for payloads that are not list-shaped.
	ErrInvalidPayload = errors.New("snapshot payload must be a list")
)

// Backend persists one encoded snapshot document.
// Save must replace prior content atomically; Load returns ErrNotFound if nothing was saved.
type Backend interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// Snapshot is a payload together with the time it was captured.
type Snapshot[T any] struct {
	CapturedAt time.Time
	Payload    []T
}

// Age returns how old the snapshot is at now.
func (s Snapshot[T]) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

type options struct {
	now func() time.Time
}

// Option configures a Store.
type Option func(*options)

// WithClock overrides the clock used to stamp and age snapshots.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Store reads and writes snapshots of []T through a Backend.
// The persisted document is {"timestamp": <epoch ms>, "<key>": [...]}.
type Store[T any] struct {
	backend Backend
	key     string
	now     func() time.Time
	l       *zap.Logger
	mu      sync.RWMutex
}

// NewStore creates a store that keeps its payload under key.
func NewStore[T any](backend Backend, key string, l *zap.Logger, opts ...Option) (*Store[T], error) {
	if backend == nil {
		return nil, errors.New("snapshot backend is required")
	}
	if key == "" || key == timestampKey {
		return nil, errors.Errorf("invalid snapshot payload key %q", key)
	}
	if l == nil {
		l = zap.NewNop()
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store[T]{
		backend: backend,
		key:     key,
		now:     o.now,
		l:       l.With(zap.String("snapshot_key", key)),
	}, nil
}

// Now returns the store clock.
func (s *Store[T]) Now() time.Time {
	return s.now()
}

// Load returns the stored snapshot, ErrNotFound, or an error wrapping ErrInvalidSnapshot
// with the reason the stored content was rejected.
func (s *Store[T]) Load() (Snapshot[T], error) {
	s.mu.RLock()
	data, err := s.backend.Load()
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Snapshot[T]{}, ErrNotFound
		}
		return Snapshot[T]{}, errors.Wrap(err, "load snapshot")
	}

	return decode[T](s.key, data)
}

// Read is Load with soft failure: any problem is logged and reported as absent.
func (s *Store[T]) Read() (Snapshot[T], bool) {
	snap, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.l.Debug("no snapshot stored yet")
		} else {
			s.l.Warn("stored snapshot is unusable", zap.Error(err))
		}
		return Snapshot[T]{}, false
	}

	return snap, true
}

// ReadIfFresh returns the stored snapshot only if it is younger than maxAge.
// A snapshot stamped ahead of the clock counts as fresh for any maxAge >= 0.
func (s *Store[T]) ReadIfFresh(maxAge time.Duration) (Snapshot[T], bool) {
	snap, ok := s.Read()
	if !ok {
		return Snapshot[T]{}, false
	}

	if age := snap.Age(s.now()); age >= maxAge {
		s.l.Debug("stored snapshot is stale", zap.Duration("age", age), zap.Duration("max_age", maxAge))
		return Snapshot[T]{}, false
	}

	return snap, true
}

// Write stamps payload with the current time and replaces the stored snapshot.
// A nil payload is rejected and leaves the stored snapshot untouched.
func (s *Store[T]) Write(payload []T) (Snapshot[T], error) {
	if payload == nil {
		return Snapshot[T]{}, ErrInvalidPayload
	}

	snap := Snapshot[T]{
		CapturedAt: time.UnixMilli(s.now().UnixMilli()),
		Payload:    payload,
	}

	data, err := encode(s.key, snap)
	if err != nil {
		return Snapshot[T]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(data); err != nil {
		return Snapshot[T]{}, errors.Wrap(err, "save snapshot")
	}

	return snap, nil
}
