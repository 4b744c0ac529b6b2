// Package app wires the colony clients, collectors, snapshot stores, refresh
// schedulers and the HTTP API into one runnable process.
package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/colonyfeed/config"
	"github.com/vadiminshakov/colonyfeed/internal/clients"
	"github.com/vadiminshakov/colonyfeed/internal/domain"
	"github.com/vadiminshakov/colonyfeed/internal/services/collector"
	"github.com/vadiminshakov/colonyfeed/internal/services/refresher"
	"github.com/vadiminshakov/colonyfeed/internal/storage/snapshots"
	"github.com/vadiminshakov/colonyfeed/internal/web"
)

// App is the assembled feed process.
type App struct {
	cfg       config.Config
	l         *zap.Logger
	connector *clients.Connector
	funds     *refresher.Scheduler[domain.DomainFunds]
	users     *refresher.Scheduler[domain.UserRoles]
	server    *web.Server
	closers   []func() error
}

// New builds the process from cfg. Nothing touches the network until Run.
func New(cfg config.Config, l *zap.Logger) (*App, error) {
	if l == nil {
		l = zap.NewNop()
	}
	a := &App{cfg: cfg, l: l}

	reputation, err := clients.NewReputationClient(cfg.ReputationOracle, cfg.ReputationRPS, cfg.FetchTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "create reputation client")
	}
	a.connector, err = clients.NewConnector(cfg.RPCEndpoint, cfg.ColonyAddress, reputation)
	if err != nil {
		return nil, errors.Wrap(err, "create colony connector")
	}

	opts := collector.Options{
		FetchTimeout:   cfg.FetchTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryInterval:  cfg.Retry.InitialInterval,
	}

	fundsCollector, err := collector.NewFunds(a.connect, cfg.Domains, cfg.Assets, opts, l.Named("funds"))
	if err != nil {
		a.Close()
		return nil, err
	}
	usersCollector, err := collector.NewUsers(a.connect, cfg.Domains, opts, l.Named("users"))
	if err != nil {
		a.Close()
		return nil, err
	}

	fundsStore, err := newStore[domain.DomainFunds](a, "funds", snapshots.FundsKey, cfg.Funds.CachePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	usersStore, err := newStore[domain.UserRoles](a, "users", snapshots.UsersKey, cfg.Users.CachePath)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.funds, err = refresher.New[domain.DomainFunds]("funds", fundsCollector, fundsCollector.Validate, fundsStore,
		refresher.Config{Interval: cfg.Funds.Interval, MaxAge: cfg.Funds.MaxAge, WarmStart: cfg.WarmStart}, l)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.users, err = refresher.New[domain.UserRoles]("users", usersCollector, usersCollector.Validate, usersStore,
		refresher.Config{Interval: cfg.Users.Interval, MaxAge: cfg.Users.MaxAge, WarmStart: cfg.WarmStart}, l)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.server = web.NewServer(cfg.Listen, l.Named("web"),
		web.NewFeed[domain.DomainFunds]("funds", "/domains", fundsStore, cfg.Funds.MaxAge, a.funds, l),
		web.NewFeed[domain.UserRoles]("users", "/users", usersStore, cfg.Users.MaxAge, a.users, l),
	)

	return a, nil
}

func (a *App) connect(ctx context.Context) (collector.Provider, error) {
	if a.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.FetchTimeout)
		defer cancel()
	}

	colony, err := a.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return colony, nil
}

func newStore[T any](a *App, name, key, cachePath string) (*snapshots.Store[T], error) {
	backend, err := a.newBackend(name, cachePath)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s snapshot backend", name)
	}

	return snapshots.NewStore[T](backend, key, a.l)
}

func (a *App) newBackend(name, cachePath string) (snapshots.Backend, error) {
	switch strings.ToLower(a.cfg.Storage.Backend) {
	case config.BackendFile, "":
		return snapshots.NewFileBackend(cachePath), nil
	case config.BackendWAL:
		wal, err := snapshots.NewWALBackend(filepath.Join(a.cfg.Storage.WALDir, name), name)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, wal.Close)
		return wal, nil
	default:
		return nil, errors.Errorf("unsupported storage backend %q", a.cfg.Storage.Backend)
	}
}

// Server returns the HTTP API server.
func (a *App) Server() *web.Server {
	return a.server
}

// Run starts both refresh loops and the HTTP server and blocks until ctx is done
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.funds.Run(ctx)
	})
	g.Go(func() error {
		return a.users.Run(ctx)
	})
	g.Go(func() error {
		if len(a.cfg.TLS.Hosts) > 0 {
			return a.server.StartWithAutoTLS(ctx, a.cfg.TLS.Hosts, a.cfg.TLS.CacheDir)
		}
		return a.server.Start(ctx)
	})

	a.l.Info("colony feed started",
		zap.String("colony", a.cfg.ColonyAddress.Hex()),
		zap.String("listen", a.cfg.Listen),
		zap.Int("domains", len(a.cfg.Domains)),
		zap.Int("assets", len(a.cfg.Assets)))

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the RPC connection and storage.
func (a *App) Close() {
	if a.connector != nil {
		a.connector.Close()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.l.Warn("failed to close storage", zap.Error(err))
		}
	}
	a.closers = nil
}
