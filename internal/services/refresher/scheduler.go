// Package refresher periodically collects a payload and writes it to a snapshot store.
package refresher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/colonyfeed/internal/storage/snapshots"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 5 * time.Minute

var (
	// ErrTickInFlight is returned by Tick while a previous tick is still running.
	ErrTickInFlight = errors.New("refresh tick already in flight")
	// ErrInvalidPayload is returned when a collected payload fails validation.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Collector produces a complete payload for one refresh cycle.
type Collector[T any] interface {
	Collect(ctx context.Context) ([]T, error)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc[T any] func(ctx context.Context) ([]T, error)

func (f CollectorFunc[T]) Collect(ctx context.Context) ([]T, error) {
	return f(ctx)
}

// Config controls the refresh loop.
type Config struct {
	Interval time.Duration
	// MaxAge is the freshness window used by WarmStart.
	MaxAge time.Duration
	// WarmStart skips the initial tick when the store already holds a fresh snapshot.
	WarmStart bool
}

// Status describes the scheduler's recent activity.
type Status struct {
	Name        string    `json:"name"`
	InFlight    bool      `json:"in_flight"`
	LastTickID  string    `json:"last_tick_id,omitempty"`
	LastStart   time.Time `json:"last_start"`
	LastFinish  time.Time `json:"last_finish"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	Ticks       uint64    `json:"ticks"`
	Failures    uint64    `json:"failures"`
	Skips       uint64    `json:"skips"`
}

// Scheduler refreshes one snapshot store. At most one tick runs at a time,
// so writes to the store are ordered by tick start.
type Scheduler[T any] struct {
	name      string
	collector Collector[T]
	validate  func([]T) error
	store     *snapshots.Store[T]
	cfg       Config
	l         *zap.Logger

	inFlight atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu     sync.RWMutex
	status Status
}

// New creates a scheduler. validate may be nil.
func New[T any](name string, collector Collector[T], validate func([]T) error, store *snapshots.Store[T], cfg Config, l *zap.Logger) (*Scheduler[T], error) {
	if name == "" {
		return nil, errors.New("scheduler name is required")
	}
	if collector == nil {
		return nil, errors.New("collector is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &Scheduler[T]{
		name:      name,
		collector: collector,
		validate:  validate,
		store:     store,
		cfg:       cfg,
		l:         l.With(zap.String("snapshot", name)),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		status:    Status{Name: name},
	}, nil
}

// Name returns the scheduler name.
func (s *Scheduler[T]) Name() string {
	return s.name
}

// Tick performs one refresh cycle. The previous snapshot is left untouched
// unless the cycle produces a valid payload and the write succeeds.
func (s *Scheduler[T]) Tick(ctx context.Context) (err error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.status.Skips++
		s.mu.Unlock()
		s.l.Warn("previous refresh still in flight, skipping tick")
		return ErrTickInFlight
	}
	defer s.inFlight.Store(false)

	tickID := uuid.NewString()
	l := s.l.With(zap.String("tick_id", tickID))
	start := time.Now()
	s.begin(tickID, start)
	defer func() {
		s.finish(err)
	}()

	l.Debug("refresh started")

	payload, err := s.collect(ctx)
	if err != nil {
		l.Error("refresh cycle failed, keeping previous snapshot", zap.Error(err))
		return err
	}

	if err = s.check(payload); err != nil {
		l.Error("collected payload rejected, keeping previous snapshot", zap.Error(err))
		return err
	}

	if err = ctx.Err(); err != nil {
		l.Warn("refresh cancelled, keeping previous snapshot", zap.Error(err))
		return errors.Wrap(err, "refresh cancelled")
	}

	snap, err := s.store.Write(payload)
	if err != nil {
		l.Error("failed to write snapshot", zap.Error(err))
		return errors.Wrap(err, "write snapshot")
	}

	l.Info("snapshot refreshed",
		zap.Int("records", len(payload)),
		zap.Int64("timestamp", snap.CapturedAt.UnixMilli()),
		zap.Duration("took", time.Since(start)))

	return nil
}

func (s *Scheduler[T]) collect(ctx context.Context) (payload []T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			payload, err = nil, errors.Errorf("collector panic: %v", rec)
		}
	}()

	payload, err = s.collector.Collect(ctx)
	return payload, errors.Wrap(err, "collect")
}

func (s *Scheduler[T]) check(payload []T) error {
	if payload == nil {
		return errors.Wrap(ErrInvalidPayload, "payload is not a list")
	}
	if s.validate == nil {
		return nil
	}
	if err := s.validate(payload); err != nil {
		return errors.Wrapf(ErrInvalidPayload, "%v", err)
	}

	return nil
}

func (s *Scheduler[T]) begin(tickID string, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.InFlight = true
	s.status.LastTickID = tickID
	s.status.LastStart = start
	s.status.Ticks++
}

func (s *Scheduler[T]) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.status.InFlight = false
	s.status.LastFinish = now
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		return
	}
	s.status.LastSuccess = now
	s.status.LastError = ""
}

// Status returns a copy of the current status.
func (s *Scheduler[T]) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

// Start runs the refresh loop in the background until ctx is done or Stop is called.
func (s *Scheduler[T]) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	go s.loop(ctx)
}

// Run runs the refresh loop and blocks until ctx is done or Stop is called.
func (s *Scheduler[T]) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.Errorf("scheduler %s already started", s.name)
	}

	s.loop(ctx)
	return nil
}

// Stop ends the loop and waits for it to exit.
func (s *Scheduler[T]) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	if s.started.Load() {
		<-s.done
	}
}

func (s *Scheduler[T]) loop(ctx context.Context) {
	defer close(s.done)

	if s.cfg.WarmStart && s.warm() {
		s.l.Info("fresh snapshot found, skipping initial refresh")
	} else {
		_ = s.Tick(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.l.Info("starting refresh loop", zap.Duration("interval", s.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			s.l.Info("context done, stopping refresh loop")
			return
		case <-s.stop:
			s.l.Info("refresh loop stopped")
			return
		case <-ticker.C:
			_ = s.Tick(ctx)
		}
	}
}

func (s *Scheduler[T]) warm() bool {
	_, ok := s.store.ReadIfFresh(s.cfg.MaxAge)
	return ok
}
