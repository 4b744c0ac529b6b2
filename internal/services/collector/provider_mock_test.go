package collector

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GetBalance(_ context.Context, token common.Address, domainID uint64) (*big.Int, error) {
	args := m.Called(token, domainID)
	return bigArg(args, 0), args.Error(1)
}

func (m *mockProvider) GetTeam(_ context.Context, domainID uint64) (domain.Team, error) {
	args := m.Called(domainID)
	team, _ := args.Get(0).(domain.Team)
	return team, args.Error(1)
}

func (m *mockProvider) GetTotalReputation(_ context.Context, skillID *big.Int) (*big.Int, error) {
	args := m.Called(skillID.Uint64())
	return bigArg(args, 0), args.Error(1)
}

func (m *mockProvider) GetMembersReputation(_ context.Context, skillID *big.Int) ([]common.Address, error) {
	args := m.Called(skillID.Uint64())
	members, _ := args.Get(0).([]common.Address)
	return members, args.Error(1)
}

func (m *mockProvider) GetReputation(_ context.Context, skillID *big.Int, user common.Address) (*big.Int, error) {
	args := m.Called(skillID.Uint64(), user)
	return bigArg(args, 0), args.Error(1)
}

func (m *mockProvider) GetRoles(_ context.Context, user common.Address, domainID uint64) ([]domain.Role, error) {
	args := m.Called(user, domainID)
	roles, _ := args.Get(0).([]domain.Role)
	return roles, args.Error(1)
}

func bigArg(args mock.Arguments, i int) *big.Int {
	v, _ := args.Get(i).(*big.Int)
	return v
}

func connectTo(p Provider) ConnectFunc {
	return func(context.Context) (Provider, error) {
		return p, nil
	}
}

func team(skill int64) domain.Team {
	return domain.Team{SkillID: big.NewInt(skill), FundingPotID: big.NewInt(skill + 1)}
}

func tenths(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))
}
