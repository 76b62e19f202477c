package vault

import (
	"math/big"

	"stablenet/crypto"
	"stablenet/native/common"
)

// CollateralPolicy is the per-collateral configuration the engine reads from
// the registry. The registry owns the values; the engine never mutates them.
type CollateralPolicy struct {
	MintAllowed       bool
	RedeemAllowed     bool
	AllocationAllowed bool
	// BaseFeeInBps and BaseFeeOutBps are the mint and redeem fee rates in
	// basis points of percentage precision.
	BaseFeeInBps  uint64
	BaseFeeOutBps uint64
	// DownsidePegBps is the minimum acceptable price expressed in basis
	// points of the oracle's price precision. Minting is disabled below it.
	DownsidePegBps uint64
	// DesiredCompositionBps caps how much of the total collateral may sit in
	// a single venue.
	DesiredCompositionBps uint64
	// DefaultVenue is consulted when a redemption shortfall exists and the
	// caller named no venue.
	DefaultVenue string
	// ConversionFactor normalises collateral units to the ledger's base
	// precision (10^(18-decimals) for a plain token).
	ConversionFactor *big.Int
}

// Clone returns a deep copy of the policy.
func (p *CollateralPolicy) Clone() *CollateralPolicy {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ConversionFactor = common.CloneBig(p.ConversionFactor)
	return &clone
}

// PriceOracle quotes collateral prices against the peg.
type PriceOracle interface {
	GetPrice(asset string) (price *big.Int, precision *big.Int, err error)
}

// CollateralRegistry exposes the per-collateral configuration consumed by the
// engine.
type CollateralRegistry interface {
	MintPolicy(asset string) (*CollateralPolicy, error)
	RedeemPolicy(asset string) (*CollateralPolicy, error)
	IsValidVenue(asset, venue string) (bool, error)
	ValidateAllocation(asset, venue string, amount *big.Int) (bool, error)
	CollateralHeldInVenues(asset string) (*big.Int, error)
}

// FeeCalculator resolves the fee rates applied to mint and redeem flows,
// expressed in basis points.
type FeeCalculator interface {
	MintFeeRate(asset string) (uint64, error)
	RedeemFeeRate(asset string) (uint64, error)
}

// YieldVenue is the contract the engine requires from an external yield
// adapter. How collateral is invested inside a venue is out of scope.
type YieldVenue interface {
	Deposit(asset string, amount *big.Int) error
	Withdraw(recipient crypto.Address, asset string, amount *big.Int) (*big.Int, error)
	BalanceHeld(asset string) (*big.Int, error)
	AvailableBalance(asset string) (*big.Int, error)
}

// Custody moves collateral between external holders and the vault.
type Custody interface {
	Pull(from crypto.Address, asset string, amount *big.Int) error
	Push(to crypto.Address, asset string, amount *big.Int) error
}

// Scheduler releases the bounded yield amount for the next rebase cycle.
type Scheduler interface {
	FetchRebaseAmount(caller crypto.Address) (*big.Int, error)
}

// Ledger is the slice of token ledger functionality the engine consumes.
type Ledger interface {
	Mint(caller, account crypto.Address, amount *big.Int) error
	Burn(caller, account crypto.Address, amount *big.Int) error
	Transfer(from, to crypto.Address, amount *big.Int) error
	Rebase(caller crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) (*big.Int, error)
	TotalSupply() (*big.Int, error)
}

// RedeemQuote is the priced breakdown of a redemption request.
type RedeemQuote struct {
	CollateralOut *big.Int
	NetBurn       *big.Int
	FeeAmount     *big.Int
	FromVault     *big.Int
	FromVenue     *big.Int
	VenueID       string
}

// Clone returns a deep copy of the quote.
func (q *RedeemQuote) Clone() *RedeemQuote {
	if q == nil {
		return nil
	}
	return &RedeemQuote{
		CollateralOut: common.CloneBig(q.CollateralOut),
		NetBurn:       common.CloneBig(q.NetBurn),
		FeeAmount:     common.CloneBig(q.FeeAmount),
		FromVault:     common.CloneBig(q.FromVault),
		FromVenue:     common.CloneBig(q.FromVenue),
		VenueID:       q.VenueID,
	}
}

// CollateralStat aggregates where one collateral currently sits.
type CollateralStat struct {
	Asset    string
	InVault  *big.Int
	InVenues *big.Int
}

// Stats summarises the vault's collateral position against the token supply.
type Stats struct {
	TotalSupply *big.Int
	Collateral  []CollateralStat
}
