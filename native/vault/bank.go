package vault

import (
	"errors"
	"math/big"
	"sync"

	"stablenet/crypto"
)

// ErrInsufficientCollateral indicates the holder does not have enough of the
// collateral for the custody bank to pull.
var ErrInsufficientCollateral = errors.New("vault: insufficient collateral balance")

type bankKey struct {
	addr  [20]byte
	asset string
}

// MemoryBank is an in-process Custody keeping per-holder collateral balances.
// It stands in for an external custodian or bridge in tests and single-node
// deployments.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[bankKey]*big.Int
}

// NewMemoryBank constructs an empty custody bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[bankKey]*big.Int)}
}

func (b *MemoryBank) key(addr crypto.Address, asset string) bankKey {
	return bankKey{addr: addr.Fixed(), asset: normalizeAsset(asset)}
}

// Fund credits a holder with collateral out of thin air. Test and bootstrap
// helper.
func (b *MemoryBank) Fund(addr crypto.Address, asset string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := b.key(addr, asset)
	current, ok := b.balances[key]
	if !ok {
		current = big.NewInt(0)
	}
	b.balances[key] = new(big.Int).Add(current, amount)
}

// BalanceOf reports a holder's collateral balance.
func (b *MemoryBank) BalanceOf(addr crypto.Address, asset string) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.balances[b.key(addr, asset)]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(current)
}

// Pull debits collateral from the holder into the vault's custody.
func (b *MemoryBank) Pull(from crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := b.key(from, asset)
	current, ok := b.balances[key]
	if !ok || current.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	b.balances[key] = new(big.Int).Sub(current, amount)
	return nil
}

// Push credits collateral from the vault's custody back to a holder.
func (b *MemoryBank) Push(to crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := b.key(to, asset)
	current, ok := b.balances[key]
	if !ok {
		current = big.NewInt(0)
	}
	b.balances[key] = new(big.Int).Add(current, amount)
	return nil
}
