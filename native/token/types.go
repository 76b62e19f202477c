package token

import (
	"math/big"

	"stablenet/native/common"
)

// Mode selects how an account's balance responds to rebases.
type Mode uint8

const (
	// ModeRebasing accounts hold credits scaled by the global exchange rate;
	// their balances rise when the rate drops.
	ModeRebasing Mode = iota
	// ModeNonRebasing accounts hold credits at a fixed unit rate; their
	// balances move only through explicit mint, burn and transfer.
	ModeNonRebasing
)

// Account is the per-identity ledger entry. Credits are the internal unit of
// value; the externally visible balance is derived from the mode and the
// global exchange rate.
type Account struct {
	Credits *big.Int
	Mode    Mode
	// FixedExchangeRate is meaningful only in non-rebasing mode. It is pinned
	// to 1 on opt-out so the credit balance equals the token balance exactly.
	FixedExchangeRate *big.Int
}

// Clone returns a deep copy of the account entry.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Mode: a.Mode, Credits: common.CloneBig(a.Credits)}
	if a.FixedExchangeRate != nil {
		clone.FixedExchangeRate = new(big.Int).Set(a.FixedExchangeRate)
	}
	return clone
}

// LedgerState is the global accounting record owned by the ledger.
type LedgerState struct {
	TotalSupply        *big.Int
	NonRebasingSupply  *big.Int
	GlobalExchangeRate *big.Int
	Paused             bool
}

// Clone returns a deep copy of the global state.
func (s *LedgerState) Clone() *LedgerState {
	if s == nil {
		return nil
	}
	return &LedgerState{
		TotalSupply:        common.CloneBig(s.TotalSupply),
		NonRebasingSupply:  common.CloneBig(s.NonRebasingSupply),
		GlobalExchangeRate: common.CloneBig(s.GlobalExchangeRate),
		Paused:             s.Paused,
	}
}

// RebasingCredits derives the aggregate rebasing credit figure implied by the
// current supplies and exchange rate.
func (s *LedgerState) RebasingCredits() *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	principal := new(big.Int).Sub(common.CloneBig(s.TotalSupply), common.CloneBig(s.NonRebasingSupply))
	if principal.Sign() <= 0 {
		return big.NewInt(0)
	}
	return common.ScaleMul(principal, s.GlobalExchangeRate, common.RoundDown)
}
