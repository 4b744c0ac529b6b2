package collector

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// colonyWithTwoMembers sets up root domain 1 (skill 10) and domain 3 (skill 30).
func colonyWithTwoMembers() *mockProvider {
	provider := &mockProvider{}
	provider.On("GetTeam", uint64(1)).Return(team(10), nil)
	provider.On("GetTeam", uint64(3)).Return(team(30), nil)

	provider.On("GetTotalReputation", uint64(10)).Return(big.NewInt(100000), nil)
	provider.On("GetMembersReputation", uint64(10)).Return([]common.Address{alice, bob}, nil)
	provider.On("GetReputation", uint64(10), alice).Return(big.NewInt(250), nil)
	provider.On("GetReputation", uint64(10), bob).Return(big.NewInt(99750), nil)

	provider.On("GetTotalReputation", uint64(30)).Return(big.NewInt(1000), nil)
	provider.On("GetMembersReputation", uint64(30)).Return([]common.Address{alice}, nil)
	provider.On("GetReputation", uint64(30), alice).Return(big.NewInt(1000), nil)

	return provider
}

func TestUsers_Collect(t *testing.T) {
	provider := colonyWithTwoMembers()
	provider.On("GetRoles", alice, uint64(1)).Return([]domain.Role{domain.RoleRoot, domain.RoleAdministration}, nil)
	provider.On("GetRoles", alice, uint64(3)).Return(nil, errors.New("execution reverted"))
	provider.On("GetRoles", bob, uint64(1)).Return([]domain.Role{}, nil)
	provider.On("GetRoles", bob, uint64(3)).Return([]domain.Role{domain.RoleFunding}, nil)

	users, err := NewUsers(connectTo(provider), testDomains, testOptions, zap.NewNop())
	require.NoError(t, err)

	got, err := users.Collect(context.Background())
	require.NoError(t, err)

	expected := []domain.UserRoles{
		{
			Address: alice.Hex(),
			Domains: []domain.UserDomain{
				{DomainID: 1, DomainName: "General", Roles: "Root, Administration", Reputation: "0.25%"},
				{DomainID: 3, DomainName: "🅿 Eco", Roles: "", Reputation: "100.00%"},
			},
		},
		{
			Address: bob.Hex(),
			Domains: []domain.UserDomain{
				{DomainID: 1, DomainName: "General", Roles: "", Reputation: "99.75%"},
				{DomainID: 3, DomainName: "🅿 Eco", Roles: "Funding", Reputation: "0%"},
			},
		},
	}
	assert.Equal(t, expected, got)
	assert.NoError(t, users.Validate(got))
	provider.AssertExpectations(t)
}

func TestUsers_Collect_DegradedDomain(t *testing.T) {
	provider := &mockProvider{}
	provider.On("GetTeam", uint64(1)).Return(team(10), nil)
	provider.On("GetTeam", uint64(3)).Return(domain.Team{}, errors.New("domain does not exist"))
	provider.On("GetTotalReputation", uint64(10)).Return(big.NewInt(1000), nil)
	provider.On("GetMembersReputation", uint64(10)).Return([]common.Address{alice, bob}, nil)
	provider.On("GetReputation", uint64(10), alice).Return(big.NewInt(400), nil)
	provider.On("GetReputation", uint64(10), bob).Return(nil, errors.New("oracle unavailable"))
	provider.On("GetRoles", alice, uint64(1)).Return([]domain.Role{domain.RoleFunding}, nil)
	provider.On("GetRoles", alice, uint64(3)).Return([]domain.Role{}, nil)
	provider.On("GetRoles", bob, uint64(1)).Return([]domain.Role{}, nil)
	provider.On("GetRoles", bob, uint64(3)).Return([]domain.Role{}, nil)

	users, err := NewUsers(connectTo(provider), testDomains, testOptions, zap.NewNop())
	require.NoError(t, err)

	got, err := users.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "40.00%", got[0].Domains[0].Reputation)
	assert.Equal(t, "Funding", got[0].Domains[0].Roles)
	assert.Equal(t, domain.NoReputation, got[0].Domains[1].Reputation)
	assert.Equal(t, domain.NoReputation, got[1].Domains[0].Reputation)
	assert.Equal(t, domain.NoReputation, got[1].Domains[1].Reputation)
}

func TestUsers_Collect_ZeroTotalReputation(t *testing.T) {
	provider := &mockProvider{}
	provider.On("GetTeam", uint64(1)).Return(team(10), nil)
	provider.On("GetTotalReputation", uint64(10)).Return(big.NewInt(0), nil)
	provider.On("GetMembersReputation", uint64(10)).Return([]common.Address{alice}, nil)
	provider.On("GetRoles", alice, uint64(1)).Return([]domain.Role{domain.RoleRoot}, nil)

	users, err := NewUsers(connectTo(provider), domain.Subdivisions{{ID: 1, Name: "General"}}, testOptions, zap.NewNop())
	require.NoError(t, err)

	got, err := users.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.NoReputation, got[0].Domains[0].Reputation)
	assert.Equal(t, "Root", got[0].Domains[0].Roles)
	provider.AssertNotCalled(t, "GetReputation", uint64(10), alice)
}

func TestUsers_Collect_RootMembersFailure(t *testing.T) {
	provider := &mockProvider{}
	provider.On("GetTeam", uint64(1)).Return(team(10), nil)
	provider.On("GetTotalReputation", uint64(10)).Return(big.NewInt(1000), nil)
	provider.On("GetMembersReputation", uint64(10)).Return(nil, errors.New("oracle unavailable"))

	users, err := NewUsers(connectTo(provider), domain.Subdivisions{{ID: 1, Name: "General"}}, testOptions, zap.NewNop())
	require.NoError(t, err)

	got, err := users.Collect(context.Background())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "list root domain members")
}

func TestUsers_Collect_CancelledMidCycle(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	provider := &mockProvider{}
	provider.On("GetTeam", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(team(10), nil)

	users, err := NewUsers(connectTo(provider), testDomains, testOptions, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	got, err := users.Collect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}

func TestUsers_Collect_NoMembers(t *testing.T) {
	provider := &mockProvider{}
	provider.On("GetTeam", uint64(1)).Return(team(10), nil)
	provider.On("GetTotalReputation", uint64(10)).Return(big.NewInt(1000), nil)
	provider.On("GetMembersReputation", uint64(10)).Return([]common.Address{}, nil)

	users, err := NewUsers(connectTo(provider), domain.Subdivisions{{ID: 1, Name: "General"}}, testOptions, zap.NewNop())
	require.NoError(t, err)

	got, err := users.Collect(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUsers_Validate(t *testing.T) {
	users, err := NewUsers(connectTo(&mockProvider{}), testDomains, testOptions, zap.NewNop())
	require.NoError(t, err)

	valid := domain.UserRoles{
		Address: alice.Hex(),
		Domains: []domain.UserDomain{
			{DomainID: 1, Reputation: "0%"},
			{DomainID: 3, Reputation: "1.00%"},
		},
	}
	assert.NoError(t, users.Validate([]domain.UserRoles{valid}))
	assert.NoError(t, users.Validate([]domain.UserRoles{}))

	badAddress := valid
	badAddress.Address = "alice"
	assert.Error(t, users.Validate([]domain.UserRoles{badAddress}))

	missing := valid
	missing.Domains = valid.Domains[:1]
	assert.Error(t, users.Validate([]domain.UserRoles{missing}))
}
