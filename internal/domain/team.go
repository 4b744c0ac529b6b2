package domain

import "math/big"

// Team is the on-chain record of a domain: its reputation skill and funding pot.
type Team struct {
	SkillID      *big.Int
	FundingPotID *big.Int
	Deprecated   bool
}
