package collector

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

// Users collects every colony member with their roles and reputation share per domain.
type Users struct {
	connect ConnectFunc
	domains domain.Subdivisions
	opts    Options
	l       *zap.Logger
}

// NewUsers creates a users collector.
func NewUsers(connect ConnectFunc, domains domain.Subdivisions, opts Options, l *zap.Logger) (*Users, error) {
	if connect == nil {
		return nil, errors.New("connect func is required")
	}
	if len(domains) == 0 {
		return nil, errors.New("at least one domain is required")
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &Users{connect: connect, domains: domains, opts: opts, l: l}, nil
}

// Collect builds the member/role/reputation graph. Members are the holders of
// root domain reputation; failing to list them aborts the cycle. Every other
// failure degrades a single domain, member share, or role entry.
func (u *Users) Collect(ctx context.Context) ([]domain.UserRoles, error) {
	provider, err := u.connect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "connect to colony")
	}

	reputations := make([]domain.DomainReputation, len(u.domains))

	var g errgroup.Group
	g.SetLimit(u.opts.concurrency())
	for i, sub := range u.domains {
		g.Go(func() error {
			reputations[i] = u.domainReputation(ctx, provider, sub)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "refresh cancelled")
	}

	members, err := u.rootMembers(ctx, provider)
	if err != nil {
		return nil, err
	}

	users := make([]domain.UserRoles, len(members))
	for i, member := range members {
		users[i] = domain.UserRoles{
			Address: member.Hex(),
			Domains: make([]domain.UserDomain, len(u.domains)),
		}
	}

	var rg errgroup.Group
	rg.SetLimit(u.opts.concurrency())
	for i, member := range members {
		for j, sub := range u.domains {
			rg.Go(func() error {
				users[i].Domains[j] = u.userDomain(ctx, provider, member, sub, reputations[j])
				return nil
			})
		}
	}
	_ = rg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "refresh cancelled")
	}

	return users, nil
}

func (u *Users) rootMembers(ctx context.Context, provider Provider) ([]common.Address, error) {
	l := u.l.With(zap.Uint64("domain_id", domain.RootDomainID))

	root, err := fetch(ctx, u.opts, l, func(ctx context.Context) (domain.Team, error) {
		return provider.GetTeam(ctx, domain.RootDomainID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "get root domain")
	}

	members, err := fetch(ctx, u.opts, l, func(ctx context.Context) ([]common.Address, error) {
		return provider.GetMembersReputation(ctx, root.SkillID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "list root domain members")
	}

	return members, nil
}

// domainReputation returns the share of every member of sub. A failure to resolve
// the domain leaves Shares empty; a failure for one member drops only that member.
func (u *Users) domainReputation(ctx context.Context, provider Provider, sub domain.Subdivision) domain.DomainReputation {
	l := u.l.With(zap.Uint64("domain_id", sub.ID))
	rep := domain.DomainReputation{
		DomainID:   sub.ID,
		DomainName: u.domains.Name(sub.ID),
		Shares:     []domain.ReputationShare{},
	}

	team, err := fetch(ctx, u.opts, l, func(ctx context.Context) (domain.Team, error) {
		return provider.GetTeam(ctx, sub.ID)
	})
	if err != nil {
		l.Warn("failed to fetch domain, reputation list left empty", zap.Error(err))
		return rep
	}

	total, err := fetch(ctx, u.opts, l, func(ctx context.Context) (*big.Int, error) {
		return provider.GetTotalReputation(ctx, team.SkillID)
	})
	if err != nil {
		l.Warn("failed to fetch total reputation, reputation list left empty", zap.Error(err))
		return rep
	}
	if total == nil || total.Sign() <= 0 {
		l.Warn("domain has no reputation, reputation list left empty", zap.Error(domain.ErrZeroTotalReputation))
		return rep
	}

	members, err := fetch(ctx, u.opts, l, func(ctx context.Context) ([]common.Address, error) {
		return provider.GetMembersReputation(ctx, team.SkillID)
	})
	if err != nil {
		l.Warn("failed to list domain members, reputation list left empty", zap.Error(err))
		return rep
	}

	shares := make([]*domain.ReputationShare, len(members))

	var g errgroup.Group
	g.SetLimit(u.opts.concurrency())
	for i, member := range members {
		g.Go(func() error {
			ml := l.With(zap.String("member", member.Hex()))
			amount, err := fetch(ctx, u.opts, ml, func(ctx context.Context) (*big.Int, error) {
				return provider.GetReputation(ctx, team.SkillID, member)
			})
			if err != nil {
				ml.Warn("failed to fetch member reputation, member omitted", zap.Error(err))
				return nil
			}

			share, err := domain.FormatReputationShare(amount, total)
			if err != nil {
				ml.Warn("invalid member reputation, member omitted", zap.Error(err))
				return nil
			}

			shares[i] = &domain.ReputationShare{Address: member.Hex(), Reputation: share}
			return nil
		})
	}
	_ = g.Wait()

	for _, share := range shares {
		if share != nil {
			rep.Shares = append(rep.Shares, *share)
		}
	}

	return rep
}

func (u *Users) userDomain(ctx context.Context, provider Provider, member common.Address, sub domain.Subdivision, rep domain.DomainReputation) domain.UserDomain {
	entry := domain.UserDomain{
		DomainID:   sub.ID,
		DomainName: u.domains.Name(sub.ID),
		Reputation: rep.ShareOf(member.Hex()),
	}

	l := u.l.With(zap.Uint64("domain_id", sub.ID), zap.String("member", member.Hex()))
	roles, err := fetch(ctx, u.opts, l, func(ctx context.Context) ([]domain.Role, error) {
		return provider.GetRoles(ctx, member, sub.ID)
	})
	if err != nil {
		l.Warn("failed to fetch roles, reporting none", zap.Error(err))
		return entry
	}

	entry.Roles = domain.JoinRoles(roles)
	return entry
}

// Validate checks that every user has one entry per configured domain, in order.
func (u *Users) Validate(users []domain.UserRoles) error {
	for _, user := range users {
		if !common.IsHexAddress(user.Address) {
			return errors.Errorf("invalid member address %q", user.Address)
		}
		if len(user.Domains) != len(u.domains) {
			return errors.Errorf("member %s has %d domain entries, expected %d", user.Address, len(user.Domains), len(u.domains))
		}
		for i, entry := range user.Domains {
			if entry.DomainID != u.domains[i].ID || entry.Reputation == "" {
				return errors.Errorf("member %s domain entry %d is incomplete", user.Address, i)
			}
		}
	}

	return nil
}
