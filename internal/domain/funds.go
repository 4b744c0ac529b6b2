package domain

// ZeroAmount is the amount reported for a balance that could not be fetched.
const ZeroAmount = "0"

// AssetBalance is the balance of one token in human units.
type AssetBalance struct {
	Ticker string `json:"ticker"`
	Amount string `json:"amount"`
}

// DegradedBalance is the placeholder entry for a failed balance fetch.
func DegradedBalance(ticker string) AssetBalance {
	return AssetBalance{Ticker: ticker, Amount: ZeroAmount}
}

// DomainFunds holds the balances of every configured asset in one domain.
type DomainFunds struct {
	DomainID   uint64         `json:"domainId"`
	DomainName string         `json:"domainName"`
	Funds      []AssetBalance `json:"funds"`
}
