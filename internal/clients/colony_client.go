package clients

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

// Only the read-only views used by the feed.
const colonyABIJSON = `[
  {"type":"function","name":"getDomain","stateMutability":"view",
   "inputs":[{"name":"_id","type":"uint256"}],
   "outputs":[{"name":"domain","type":"tuple","components":[
     {"name":"skillId","type":"uint256"},
     {"name":"fundingPotId","type":"uint256"},
     {"name":"deprecated","type":"bool"}]}]},
  {"type":"function","name":"getFundingPotBalance","stateMutability":"view",
   "inputs":[{"name":"_potId","type":"uint256"},{"name":"_token","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUserRoles","stateMutability":"view",
   "inputs":[{"name":"_user","type":"address"},{"name":"_domain","type":"uint256"}],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"getColonyNetwork","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"address"}]}
]`

const networkABIJSON = `[
  {"type":"function","name":"getReputationRootHash","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"bytes32"}]}
]`

var (
	colonyABI  = mustParseABI(colonyABIJSON)
	networkABI = mustParseABI(networkABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// contractCaller is satisfied by *ethclient.Client.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// domainTuple mirrors the Domain struct returned by getDomain.
type domainTuple struct {
	SkillId      *big.Int
	FundingPotId *big.Int
	Deprecated   bool
}

// ColonyClient reads colony and colony network contract state over JSON-RPC.
type ColonyClient struct {
	caller contractCaller
	colony common.Address
}

// NewColonyClient creates a client for the colony deployed at colony.
func NewColonyClient(caller contractCaller, colony common.Address) (*ColonyClient, error) {
	if caller == nil {
		return nil, errors.New("contract caller is required")
	}
	if colony == (common.Address{}) {
		return nil, errors.New("colony address is required")
	}

	return &ColonyClient{caller: caller, colony: colony}, nil
}

// Address returns the colony address.
func (c *ColonyClient) Address() common.Address {
	return c.colony
}

// GetTeam returns the skill and funding pot of a domain.
func (c *ColonyClient) GetTeam(ctx context.Context, domainID uint64) (domain.Team, error) {
	out, err := c.call(ctx, colonyABI, c.colony, "getDomain", new(big.Int).SetUint64(domainID))
	if err != nil {
		return domain.Team{}, errors.Wrapf(err, "get domain %d", domainID)
	}

	tuple := *abi.ConvertType(out[0], new(domainTuple)).(*domainTuple)
	if tuple.SkillId == nil || tuple.SkillId.Sign() == 0 {
		return domain.Team{}, errors.Errorf("domain %d does not exist", domainID)
	}

	return domain.Team{
		SkillID:      tuple.SkillId,
		FundingPotID: tuple.FundingPotId,
		Deprecated:   tuple.Deprecated,
	}, nil
}

// GetBalance returns the balance of token held by the funding pot of a domain,
// in the token's smallest unit.
func (c *ColonyClient) GetBalance(ctx context.Context, token common.Address, domainID uint64) (*big.Int, error) {
	team, err := c.GetTeam(ctx, domainID)
	if err != nil {
		return nil, err
	}

	out, err := c.call(ctx, colonyABI, c.colony, "getFundingPotBalance", team.FundingPotID, token)
	if err != nil {
		return nil, errors.Wrapf(err, "get funding pot %s balance", team.FundingPotID)
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetRoles returns the roles user holds in a domain.
func (c *ColonyClient) GetRoles(ctx context.Context, user common.Address, domainID uint64) ([]domain.Role, error) {
	out, err := c.call(ctx, colonyABI, c.colony, "getUserRoles", user, new(big.Int).SetUint64(domainID))
	if err != nil {
		return nil, errors.Wrapf(err, "get roles of %s in domain %d", user.Hex(), domainID)
	}

	mask := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	return domain.RolesFromBitmask(mask), nil
}

// NetworkAddress returns the colony network the colony belongs to.
func (c *ColonyClient) NetworkAddress(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, colonyABI, c.colony, "getColonyNetwork")
	if err != nil {
		return common.Address{}, errors.Wrap(err, "get colony network")
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// ReputationRootHash returns the reputation mining root hash currently accepted by network.
func (c *ColonyClient) ReputationRootHash(ctx context.Context, network common.Address) (common.Hash, error) {
	out, err := c.call(ctx, networkABI, network, "getReputationRootHash")
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "get reputation root hash")
	}

	return common.Hash(*abi.ConvertType(out[0], new([32]byte)).(*[32]byte)), nil
}

func (c *ColonyClient) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	output, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, err
	}

	values, err := contract.Unpack(method, output)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	if len(values) == 0 {
		return nil, errors.Errorf("%s returned no values", method)
	}

	return values, nil
}
