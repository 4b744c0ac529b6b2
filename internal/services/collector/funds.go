package collector

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

// Funds collects the balance of every configured asset in every configured domain.
type Funds struct {
	connect ConnectFunc
	domains domain.Subdivisions
	assets  []domain.Asset
	opts    Options
	l       *zap.Logger
}

// NewFunds creates a funds collector.
func NewFunds(connect ConnectFunc, domains domain.Subdivisions, assets []domain.Asset, opts Options, l *zap.Logger) (*Funds, error) {
	if connect == nil {
		return nil, errors.New("connect func is required")
	}
	if len(domains) == 0 {
		return nil, errors.New("at least one domain is required")
	}
	if len(assets) == 0 {
		return nil, errors.New("at least one asset is required")
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &Funds{connect: connect, domains: domains, assets: assets, opts: opts, l: l}, nil
}

// Collect fetches all (domain, asset) balances concurrently. A failed balance
// is reported as zero; only a failure to connect or a cancelled ctx aborts the cycle.
func (f *Funds) Collect(ctx context.Context) ([]domain.DomainFunds, error) {
	provider, err := f.connect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "connect to colony")
	}

	records := make([]domain.DomainFunds, len(f.domains))
	for i, sub := range f.domains {
		records[i] = domain.DomainFunds{
			DomainID:   sub.ID,
			DomainName: f.domains.Name(sub.ID),
			Funds:      make([]domain.AssetBalance, len(f.assets)),
		}
	}

	var g errgroup.Group
	g.SetLimit(f.opts.concurrency())

	for i, sub := range f.domains {
		for j, asset := range f.assets {
			g.Go(func() error {
				records[i].Funds[j] = f.balance(ctx, provider, sub, asset)
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "refresh cancelled")
	}

	return records, nil
}

func (f *Funds) balance(ctx context.Context, provider Provider, sub domain.Subdivision, asset domain.Asset) domain.AssetBalance {
	l := f.l.With(zap.Uint64("domain_id", sub.ID), zap.String("ticker", asset.Ticker))

	amount, err := fetch(ctx, f.opts, l, func(ctx context.Context) (*big.Int, error) {
		return provider.GetBalance(ctx, asset.Address, sub.ID)
	})
	if err != nil {
		l.Warn("failed to fetch balance, reporting zero", zap.Error(err))
		return domain.DegradedBalance(asset.Ticker)
	}

	human, err := asset.FormatAmount(amount)
	if err != nil {
		l.Warn("invalid balance, reporting zero", zap.Error(err))
		return domain.DegradedBalance(asset.Ticker)
	}

	return domain.AssetBalance{Ticker: asset.Ticker, Amount: human}
}

// Validate checks that records hold one entry per configured domain and asset, in order.
func (f *Funds) Validate(records []domain.DomainFunds) error {
	if len(records) != len(f.domains) {
		return errors.Errorf("expected %d domain records, got %d", len(f.domains), len(records))
	}

	for i, record := range records {
		if record.DomainID != f.domains[i].ID {
			return errors.Errorf("record %d is domain %d, expected %d", i, record.DomainID, f.domains[i].ID)
		}
		if len(record.Funds) != len(f.assets) {
			return errors.Errorf("domain %d has %d balances, expected %d", record.DomainID, len(record.Funds), len(f.assets))
		}
		for j, balance := range record.Funds {
			if balance.Ticker != f.assets[j].Ticker || balance.Amount == "" {
				return errors.Errorf("domain %d balance %d is incomplete", record.DomainID, j)
			}
		}
	}

	return nil
}
