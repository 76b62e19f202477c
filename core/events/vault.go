package events

import (
	"math/big"

	"stablenet/core/types"
	"stablenet/crypto"
)

const (
	// TypeVaultMint is emitted after collateral has been pulled in and the net
	// amount credited to the caller.
	TypeVaultMint = "vault.mint"
	// TypeVaultRedeem is emitted after a redemption has burned tokens and
	// delivered collateral.
	TypeVaultRedeem = "vault.redeem"
	// TypeVaultRebase is emitted when the scheduler releases a nonzero yield
	// amount into a ledger rebase.
	TypeVaultRebase = "vault.rebase"
	// TypeVaultAllocate is emitted when vault-held collateral is deposited
	// into a yield venue.
	TypeVaultAllocate = "vault.allocate"
)

// VaultMint captures a completed mint settlement.
type VaultMint struct {
	Caller           [20]byte
	Collateral       string
	NetAmount        *big.Int
	CollateralAmount *big.Int
	FeeAmount        *big.Int
}

func (VaultMint) EventType() string { return TypeVaultMint }

// Event renders the canonical mint payload.
func (e VaultMint) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultMint,
		Attributes: map[string]string{
			"caller":           crypto.NewAddress(e.Caller[:]).String(),
			"collateral":       normalizeAsset(e.Collateral),
			"netAmount":        formatAmount(e.NetAmount),
			"collateralAmount": formatAmount(e.CollateralAmount),
			"feeAmount":        formatAmount(e.FeeAmount),
		},
	}
}

// VaultRedeem captures a completed redemption settlement.
type VaultRedeem struct {
	Caller           [20]byte
	Collateral       string
	NetBurn          *big.Int
	CollateralAmount *big.Int
	FeeAmount        *big.Int
}

func (VaultRedeem) EventType() string { return TypeVaultRedeem }

// Event renders the canonical redeem payload.
func (e VaultRedeem) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultRedeem,
		Attributes: map[string]string{
			"caller":           crypto.NewAddress(e.Caller[:]).String(),
			"collateral":       normalizeAsset(e.Collateral),
			"netBurn":          formatAmount(e.NetBurn),
			"collateralAmount": formatAmount(e.CollateralAmount),
			"feeAmount":        formatAmount(e.FeeAmount),
		},
	}
}

// VaultRebase captures the amount redistributed by a rebase cycle.
type VaultRebase struct {
	Amount *big.Int
}

func (VaultRebase) EventType() string { return TypeVaultRebase }

// Event renders the canonical rebase payload.
func (e VaultRebase) Event() *types.Event {
	return &types.Event{
		Type:       TypeVaultRebase,
		Attributes: map[string]string{"amount": formatAmount(e.Amount)},
	}
}

// VaultAllocate captures a collateral deposit into a yield venue.
type VaultAllocate struct {
	Collateral string
	Venue      string
	Amount     *big.Int
}

func (VaultAllocate) EventType() string { return TypeVaultAllocate }

// Event renders the canonical allocation payload.
func (e VaultAllocate) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultAllocate,
		Attributes: map[string]string{
			"collateral": normalizeAsset(e.Collateral),
			"venue":      e.Venue,
			"amount":     formatAmount(e.Amount),
		},
	}
}
