package domain

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// NoReputation is reported for members without reputation in a domain.
const NoReputation = "0%"

// reputationScale keeps two decimal digits of a percentage in integer math.
var reputationScale = big.NewInt(10000)

// ErrZeroTotalReputation is returned when a domain has no reputation to share.
var ErrZeroTotalReputation = errors.New("total reputation is zero")

// ReputationShare is a member's share of a domain's reputation.
type ReputationShare struct {
	Address    string `json:"address"`
	Reputation string `json:"reputation"`
}

// DomainReputation is the reputation distribution within one domain.
// Shares is empty when the domain could not be fetched.
type DomainReputation struct {
	DomainID   uint64
	DomainName string
	Shares     []ReputationShare
}

// ShareOf returns the share of address, or NoReputation.
func (d DomainReputation) ShareOf(address string) string {
	for _, share := range d.Shares {
		if share.Address == address {
			return share.Reputation
		}
	}

	return NoReputation
}

// FormatReputationShare renders amount/total as a percentage with two decimals.
// The ratio is scaled by 10000 and divided as integers before any formatting.
func FormatReputationShare(amount, total *big.Int) (string, error) {
	if total == nil || total.Sign() <= 0 {
		return "", ErrZeroTotalReputation
	}
	if amount == nil || amount.Sign() < 0 {
		return "", errors.Errorf("invalid reputation amount %v", amount)
	}

	scaled := new(big.Int).Mul(amount, reputationScale)
	scaled.Quo(scaled, total)

	return decimal.NewFromBigInt(scaled, -2).StringFixed(2) + "%", nil
}

// UserDomain is a member's standing in one domain.
type UserDomain struct {
	DomainID   uint64 `json:"domainId"`
	DomainName string `json:"domainName"`
	Roles      string `json:"roles"`
	Reputation string `json:"reputation"`
}

// UserRoles lists a member's roles and reputation across the configured domains.
type UserRoles struct {
	Address string       `json:"address"`
	Domains []UserDomain `json:"domains"`
}
