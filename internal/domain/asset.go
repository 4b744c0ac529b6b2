package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultAssetDecimals matches the 18-decimal conversion used for every colony token.
const DefaultAssetDecimals int32 = 18

// ErrInvalidAmount is returned for balances that cannot be rendered as a non-negative amount.
var ErrInvalidAmount = errors.New("invalid token amount")

// Asset is a token whose balance is tracked in every domain.
type Asset struct {
	Ticker   string
	Address  common.Address
	Decimals int32
}

// DefaultAssets returns the tokens observed in production.
func DefaultAssets() []Asset {
	return []Asset{
		{Ticker: "ETH", Address: common.HexToAddress("0x5C3D4231090311b375149687fbc33a0555Af69D8"), Decimals: DefaultAssetDecimals},
		{Ticker: "USDC", Address: common.HexToAddress("0xfd7dDFaCBBa559C7f68ad15f8Cd9256bc14de588"), Decimals: DefaultAssetDecimals},
	}
}

// FormatAmount converts an amount in the smallest on-chain unit to a human decimal string.
func (a Asset) FormatAmount(amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() < 0 {
		return "", errors.Wrapf(ErrInvalidAmount, "%s balance %v", a.Ticker, amount)
	}

	return decimal.NewFromBigInt(amount, -a.Decimals).String(), nil
}
