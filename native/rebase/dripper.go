package rebase

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"stablenet/crypto"
	"stablenet/native/common"
)

var (
	// ErrInvalidDuration rejects a non-positive drip duration.
	ErrInvalidDuration = errors.New("rebase: drip duration must be positive")

	errNilLedger  = errors.New("rebase: ledger not configured")
	errNilStorage = errors.New("rebase: storage not configured")
)

// Storage abstracts the key-value functionality required to persist scheduler
// state across restarts.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// TokenLedger is the slice of ledger functionality the scheduler consumes.
type TokenLedger interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Transfer(from, to crypto.Address, amount *big.Int) error
	TotalSupply() (*big.Int, error)
	NonRebasingSupply() (*big.Int, error)
}

var dripperStateKey = []byte("rebase/dripper")

type storedDripperState struct {
	DripRate             string
	LastCollectTimestamp uint64
}

// Dripper releases a previously deposited yield buffer at a steady rate. The
// buffer is the dripper account's own token balance; Collect moves the
// currently collectable slice into the vault's holding.
//
// Drip-rate policy: the rate is recomputed from the remaining buffer on every
// collect. Top-ups therefore take effect at the next collect rather than
// immediately, which keeps release smoothness tied to the configured duration.
type Dripper struct {
	mu sync.Mutex

	kv     Storage
	ledger TokenLedger

	holdingAddr  crypto.Address
	vaultAddr    crypto.Address
	dripDuration int64

	nowFn func() int64
}

// NewDripper constructs a dripper releasing the holding account's balance to
// the vault over the supplied duration.
func NewDripper(kv Storage, ledger TokenLedger, holding, vault crypto.Address, dripDuration time.Duration) (*Dripper, error) {
	seconds := int64(dripDuration / time.Second)
	if seconds <= 0 {
		return nil, ErrInvalidDuration
	}
	return &Dripper{
		kv:           kv,
		ledger:       ledger,
		holdingAddr:  holding,
		vaultAddr:    vault,
		dripDuration: seconds,
		nowFn:        func() int64 { return time.Now().Unix() },
	}, nil
}

// SetNowFunc overrides the time source, primarily for deterministic testing.
func (d *Dripper) SetNowFunc(now func() int64) {
	if d == nil || now == nil {
		return
	}
	d.nowFn = now
}

// HoldingAddress returns the account whose balance feeds the drip.
func (d *Dripper) HoldingAddress() crypto.Address { return d.holdingAddr }

func (d *Dripper) loadState() (*big.Int, int64, error) {
	var stored storedDripperState
	ok, err := d.kv.KVGet(dripperStateKey, &stored)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return big.NewInt(0), 0, nil
	}
	rate := big.NewInt(0)
	if strings.TrimSpace(stored.DripRate) != "" {
		parsed, okRate := new(big.Int).SetString(strings.TrimSpace(stored.DripRate), 10)
		if !okRate {
			return nil, 0, fmt.Errorf("rebase: invalid drip rate %q", stored.DripRate)
		}
		rate = parsed
	}
	return rate, int64(stored.LastCollectTimestamp), nil
}

func (d *Dripper) putState(rate *big.Int, lastCollect int64) error {
	stored := storedDripperState{DripRate: common.CloneBig(rate).String()}
	if lastCollect > 0 {
		stored.LastCollectTimestamp = uint64(lastCollect)
	}
	return d.kv.KVPut(dripperStateKey, stored)
}

// CollectableAmount reports how much of the buffer has been released so far:
// min(current balance, dripRate * secondsSinceLastCollect).
func (d *Dripper) CollectableAmount() (*big.Int, error) {
	if d == nil || d.ledger == nil {
		return nil, errNilLedger
	}
	if d.kv == nil {
		return nil, errNilStorage
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collectable()
}

func (d *Dripper) collectable() (*big.Int, error) {
	rate, lastCollect, err := d.loadState()
	if err != nil {
		return nil, err
	}
	balance, err := d.ledger.BalanceOf(d.holdingAddr)
	if err != nil {
		return nil, err
	}
	// A fresh dripper has no rate yet; the first collect primes it from the
	// held balance without releasing anything.
	elapsed := d.nowFn() - lastCollect
	if elapsed <= 0 || rate.Sign() == 0 {
		return big.NewInt(0), nil
	}
	released := new(big.Int).Mul(rate, big.NewInt(elapsed))
	return common.MinBig(balance, released), nil
}

// Collect transfers the collectable amount to the vault's holding, advances
// the collect timestamp and recomputes the drip rate from the remaining
// buffer. Anyone may poke it; the scheduler calls it on every eligible cycle.
func (d *Dripper) Collect() (*big.Int, error) {
	if d == nil || d.ledger == nil {
		return nil, errNilLedger
	}
	if d.kv == nil {
		return nil, errNilStorage
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	amount, err := d.collectable()
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		if err := d.ledger.Transfer(d.holdingAddr, d.vaultAddr, amount); err != nil {
			return nil, err
		}
	}
	remaining, err := d.ledger.BalanceOf(d.holdingAddr)
	if err != nil {
		return nil, err
	}
	rate := new(big.Int).Quo(remaining, big.NewInt(d.dripDuration))
	if err := d.putState(rate, d.nowFn()); err != nil {
		return nil, err
	}
	return amount, nil
}
