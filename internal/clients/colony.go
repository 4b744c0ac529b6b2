package clients

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

// Colony is a view of one colony for a single refresh cycle. Reputation
// queries are pinned to the root hash resolved when the view was opened.
type Colony struct {
	contracts  *ColonyClient
	reputation *ReputationClient
	scope      ReputationScope
}

// Scope returns the reputation scope of the view.
func (c *Colony) Scope() ReputationScope {
	return c.scope
}

// GetBalance returns a domain's balance of token in the token's smallest unit.
func (c *Colony) GetBalance(ctx context.Context, token common.Address, domainID uint64) (*big.Int, error) {
	return c.contracts.GetBalance(ctx, token, domainID)
}

// GetTeam returns the skill and funding pot of a domain.
func (c *Colony) GetTeam(ctx context.Context, domainID uint64) (domain.Team, error) {
	return c.contracts.GetTeam(ctx, domainID)
}

// GetRoles returns the roles user holds in a domain.
func (c *Colony) GetRoles(ctx context.Context, user common.Address, domainID uint64) ([]domain.Role, error) {
	return c.contracts.GetRoles(ctx, user, domainID)
}

// GetTotalReputation returns the total reputation of a skill.
func (c *Colony) GetTotalReputation(ctx context.Context, skillID *big.Int) (*big.Int, error) {
	return c.reputation.TotalReputation(ctx, c.scope, skillID)
}

// GetMembersReputation returns the members holding reputation in a skill.
func (c *Colony) GetMembersReputation(ctx context.Context, skillID *big.Int) ([]common.Address, error) {
	return c.reputation.MembersReputation(ctx, c.scope, skillID)
}

// GetReputation returns user's reputation in a skill.
func (c *Colony) GetReputation(ctx context.Context, skillID *big.Int, user common.Address) (*big.Int, error) {
	return c.reputation.Reputation(ctx, c.scope, skillID, user)
}

// Connector opens Colony views. The RPC connection and network address are
// resolved once and reused; the reputation root hash is read on every Connect.
type Connector struct {
	rpcEndpoint string
	colony      common.Address
	reputation  *ReputationClient

	mu        sync.Mutex
	eth       *ethclient.Client
	contracts *ColonyClient
	network   common.Address
}

// NewConnector creates a connector for the colony at colony reachable through rpcEndpoint.
func NewConnector(rpcEndpoint string, colony common.Address, reputation *ReputationClient) (*Connector, error) {
	if rpcEndpoint == "" {
		return nil, errors.New("rpc endpoint is required")
	}
	if colony == (common.Address{}) {
		return nil, errors.New("colony address is required")
	}
	if reputation == nil {
		return nil, errors.New("reputation client is required")
	}

	return &Connector{rpcEndpoint: rpcEndpoint, colony: colony, reputation: reputation}, nil
}

// Connect opens a view of the colony for one refresh cycle.
func (c *Connector) Connect(ctx context.Context) (*Colony, error) {
	contracts, network, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}

	rootHash, err := contracts.ReputationRootHash(ctx, network)
	if err != nil {
		return nil, err
	}

	return &Colony{
		contracts:  contracts,
		reputation: c.reputation,
		scope: ReputationScope{
			Network:  network,
			Colony:   c.colony,
			RootHash: rootHash,
		},
	}, nil
}

func (c *Connector) resolve(ctx context.Context) (*ColonyClient, common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.contracts != nil && c.network != (common.Address{}) {
		return c.contracts, c.network, nil
	}

	if c.eth == nil {
		eth, err := ethclient.DialContext(ctx, c.rpcEndpoint)
		if err != nil {
			return nil, common.Address{}, errors.Wrap(err, "dial rpc endpoint")
		}
		contracts, err := NewColonyClient(eth, c.colony)
		if err != nil {
			eth.Close()
			return nil, common.Address{}, err
		}
		c.eth = eth
		c.contracts = contracts
	}

	network, err := c.contracts.NetworkAddress(ctx)
	if err != nil {
		return nil, common.Address{}, err
	}
	c.network = network

	return c.contracts, c.network, nil
}

// Close releases the RPC connection.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
		c.contracts = nil
		c.network = common.Address{}
	}
}
