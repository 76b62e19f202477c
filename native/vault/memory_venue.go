package vault

import (
	"math/big"
	"sync"

	"stablenet/crypto"
)

// MemoryVenue is an in-process YieldVenue holding deposits at face value. It
// backs tests and single-node deployments where no external strategy exists;
// an optional liquidity cap models strategies whose funds are partially
// locked.
type MemoryVenue struct {
	mu      sync.Mutex
	custody Custody
	held    map[string]*big.Int
	liquid  map[string]*big.Int
	capped  bool
}

// NewMemoryVenue constructs a venue that settles withdrawals through the
// supplied custody.
func NewMemoryVenue(custody Custody) *MemoryVenue {
	return &MemoryVenue{
		custody: custody,
		held:    make(map[string]*big.Int),
		liquid:  make(map[string]*big.Int),
	}
}

// SetAvailable caps the withdrawable slice of the venue's holdings for an
// asset, modelling partially locked strategies. Uncapped venues treat the
// whole position as liquid.
func (v *MemoryVenue) SetAvailable(asset string, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.capped = true
	v.liquid[normalizeAsset(asset)] = new(big.Int).Set(amount)
}

func (v *MemoryVenue) balance(m map[string]*big.Int, asset string) *big.Int {
	current, ok := m[normalizeAsset(asset)]
	if !ok {
		return big.NewInt(0)
	}
	return current
}

// Deposit implements YieldVenue.
func (v *MemoryVenue) Deposit(asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	key := normalizeAsset(asset)
	v.held[key] = new(big.Int).Add(v.balance(v.held, asset), amount)
	if v.capped {
		v.liquid[key] = new(big.Int).Add(v.balance(v.liquid, asset), amount)
	}
	return nil
}

// Withdraw implements YieldVenue, pushing collateral straight to the
// recipient.
func (v *MemoryVenue) Withdraw(recipient crypto.Address, asset string, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	key := normalizeAsset(asset)
	held := v.balance(v.held, asset)
	if held.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	v.held[key] = new(big.Int).Sub(held, amount)
	if v.capped {
		liquid := v.balance(v.liquid, asset)
		if liquid.Cmp(amount) < 0 {
			return nil, ErrInsufficientLiquidity
		}
		v.liquid[key] = new(big.Int).Sub(liquid, amount)
	}
	if v.custody != nil {
		if err := v.custody.Push(recipient, asset, amount); err != nil {
			return nil, err
		}
	}
	return new(big.Int).Set(amount), nil
}

// BalanceHeld implements YieldVenue.
func (v *MemoryVenue) BalanceHeld(asset string) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance(v.held, asset)), nil
}

// AvailableBalance implements YieldVenue.
func (v *MemoryVenue) AvailableBalance(asset string) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.capped {
		return new(big.Int).Set(v.balance(v.held, asset)), nil
	}
	return new(big.Int).Set(v.balance(v.liquid, asset)), nil
}
