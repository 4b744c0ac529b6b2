// Package collector assembles complete funds and users payloads from a colony.
// Individual fetch failures are degraded in place so every payload covers
// every configured domain and asset; only failures that leave nothing to
// report are returned as errors.
package collector

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
	"github.com/vadiminshakov/colonyfeed/pkg/retrier"
)

const defaultMaxConcurrency = 8

// Provider is the remote source of colony state for one refresh cycle.
type Provider interface {
	GetBalance(ctx context.Context, token common.Address, domainID uint64) (*big.Int, error)
	GetTeam(ctx context.Context, domainID uint64) (domain.Team, error)
	GetTotalReputation(ctx context.Context, skillID *big.Int) (*big.Int, error)
	GetMembersReputation(ctx context.Context, skillID *big.Int) ([]common.Address, error)
	GetReputation(ctx context.Context, skillID *big.Int, user common.Address) (*big.Int, error)
	GetRoles(ctx context.Context, user common.Address, domainID uint64) ([]domain.Role, error)
}

// ConnectFunc opens a Provider for one refresh cycle.
type ConnectFunc func(ctx context.Context) (Provider, error)

// Options bound the work a single cycle may do.
type Options struct {
	// FetchTimeout bounds every provider call attempt. Zero disables the bound.
	FetchTimeout time.Duration
	// MaxConcurrency caps concurrent provider calls per fan-out.
	MaxConcurrency int
	// MaxRetries is the number of retries after a failed call.
	MaxRetries int
	// RetryInterval is the initial backoff between retries.
	RetryInterval time.Duration
}

func (o Options) concurrency() int {
	if o.MaxConcurrency <= 0 {
		return defaultMaxConcurrency
	}
	return o.MaxConcurrency
}

// fetch runs one provider call with retries, the attempt timeout, and panic containment.
func fetch[T any](ctx context.Context, opts Options, l *zap.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	retryOpts := []retrier.Option{
		retrier.WithMaxRetries(opts.MaxRetries),
		retrier.WithAttemptTimeout(opts.FetchTimeout),
		retrier.WithOnRetry(func(attempt int, err error) {
			l.Debug("retrying provider call", zap.Int("attempt", attempt), zap.Error(err))
		}),
	}
	if opts.RetryInterval > 0 {
		retryOpts = append(retryOpts, retrier.WithInitialInterval(opts.RetryInterval))
	}

	return retrier.DoWithData(retrier.New(retryOpts...), ctx, func(ctx context.Context) (T, error) {
		return bounded(ctx, fn)
	})
}

// bounded returns when fn does or when ctx is done, whichever comes first,
// so a provider that ignores ctx still cannot stall a cycle.
func bounded[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: retrier.Permanent(errors.Errorf("provider panic: %v", rec))}
			}
		}()
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
