package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/colonyfeed/pkg/retrier"
)

const (
	defaultOracleRPS     = 5
	defaultOracleBurst   = 10
	defaultOracleTimeout = 15 * time.Second
	maxOracleBodyBytes   = 4 << 20
)

// ErrUnexpectedStatus is returned for non-200 oracle responses.
var ErrUnexpectedStatus = errors.New("unexpected reputation oracle status")

// ReputationScope pins oracle queries to a colony and a mining cycle.
type ReputationScope struct {
	Network  common.Address
	Colony   common.Address
	RootHash common.Hash
}

// ReputationClient queries the colony reputation oracle.
type ReputationClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewReputationClient creates an oracle client limited to rps requests per second.
func NewReputationClient(baseURL string, rps float64, timeout time.Duration) (*ReputationClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("reputation oracle URL is required")
	}
	if rps <= 0 {
		rps = defaultOracleRPS
	}
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}

	return &ReputationClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), defaultOracleBurst),
	}, nil
}

type reputationResponse struct {
	ReputationAmount json.RawMessage `json:"reputationAmount"`
}

type membersResponse struct {
	Addresses []string `json:"addresses"`
}

// TotalReputation returns the total reputation of a skill in the colony.
func (c *ReputationClient) TotalReputation(ctx context.Context, scope ReputationScope, skillID *big.Int) (*big.Int, error) {
	return c.Reputation(ctx, scope, skillID, common.Address{})
}

// Reputation returns the reputation of user in a skill. The zero address yields the total.
func (c *ReputationClient) Reputation(ctx context.Context, scope ReputationScope, skillID *big.Int, user common.Address) (*big.Int, error) {
	var resp reputationResponse
	if err := c.get(ctx, c.skillPath(scope, skillID)+"/"+user.Hex(), &resp); err != nil {
		return nil, errors.Wrapf(err, "reputation of %s in skill %s", user.Hex(), skillID)
	}

	amount, err := parseAmount(resp.ReputationAmount)
	if err != nil {
		return nil, errors.Wrapf(err, "reputation of %s in skill %s", user.Hex(), skillID)
	}

	return amount, nil
}

// MembersReputation returns the addresses holding reputation in a skill.
func (c *ReputationClient) MembersReputation(ctx context.Context, scope ReputationScope, skillID *big.Int) ([]common.Address, error) {
	var resp membersResponse
	if err := c.get(ctx, c.skillPath(scope, skillID), &resp); err != nil {
		return nil, errors.Wrapf(err, "members of skill %s", skillID)
	}

	members := make([]common.Address, 0, len(resp.Addresses))
	for _, raw := range resp.Addresses {
		if !common.IsHexAddress(raw) {
			return nil, errors.Errorf("members of skill %s: invalid address %q", skillID, raw)
		}
		members = append(members, common.HexToAddress(raw))
	}

	return members, nil
}

func (c *ReputationClient) skillPath(scope ReputationScope, skillID *big.Int) string {
	return fmt.Sprintf("/%s/%s/%s/%s", scope.Network.Hex(), scope.RootHash.Hex(), scope.Colony.Hex(), skillID.String())
}

func (c *ReputationClient) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return retrier.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOracleBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read oracle response")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := errors.Wrapf(ErrUnexpectedStatus, "%d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retrier.Permanent(statusErr)
		}
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return retrier.Permanent(errors.Wrap(err, "decode oracle response"))
	}

	return nil
}

// parseAmount accepts a decimal integer given as a JSON string or number.
func parseAmount(raw json.RawMessage) (*big.Int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil, errors.New("reputation amount is missing")
	}

	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid reputation amount %q", s)
	}

	return amount, nil
}
