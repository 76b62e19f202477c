package rebase

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"stablenet/crypto"
	"stablenet/native/common"
)

var (
	// ErrNotSettlementEngine guards FetchRebaseAmount.
	ErrNotSettlementEngine = errors.New("rebase: caller is not the settlement engine")
	// ErrInvalidBounds rejects an APR floor above the APR ceiling.
	ErrInvalidBounds = errors.New("rebase: apr floor exceeds ceiling")

	errNilDripper = errors.New("rebase: dripper not configured")
)

var managerStateKey = []byte("rebase/manager")

type storedManagerState struct {
	LastRebaseTimestamp uint64
}

// Manager computes the time- and APR-bounded amount eligible for the next
// rebase. It deliberately distinguishes "nothing eligible right now" (zero,
// no error) from true failure so routine polling never fails.
type Manager struct {
	mu sync.Mutex

	kv      Storage
	ledger  TokenLedger
	dripper *Dripper

	engineAddr crypto.Address
	vaultAddr  crypto.Address

	minGapSeconds int64
	aprFloorBps   uint64
	aprCeilBps    uint64

	nowFn func() int64
}

// NewManager constructs a bounds calculator for the supplied scheduler state.
func NewManager(kv Storage, ledger TokenLedger, dripper *Dripper, engine, vault crypto.Address, minGap time.Duration, aprFloorBps, aprCeilBps uint64) (*Manager, error) {
	if aprFloorBps > aprCeilBps {
		return nil, ErrInvalidBounds
	}
	return &Manager{
		kv:            kv,
		ledger:        ledger,
		dripper:       dripper,
		engineAddr:    engine,
		vaultAddr:     vault,
		minGapSeconds: int64(minGap / time.Second),
		aprFloorBps:   aprFloorBps,
		aprCeilBps:    aprCeilBps,
		nowFn:         func() int64 { return time.Now().Unix() },
	}, nil
}

// SetNowFunc overrides the time source, primarily for deterministic testing.
func (m *Manager) SetNowFunc(now func() int64) {
	if m == nil || now == nil {
		return
	}
	m.nowFn = now
}

func (m *Manager) lastRebase() (int64, bool, error) {
	var stored storedManagerState
	ok, err := m.kv.KVGet(managerStateKey, &stored)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	return int64(stored.LastRebaseTimestamp), true, nil
}

func (m *Manager) putLastRebase(ts int64) error {
	stored := storedManagerState{}
	if ts > 0 {
		stored.LastRebaseTimestamp = uint64(ts)
	}
	return m.kv.KVPut(managerStateKey, stored)
}

// bound computes principal * bps * elapsed / (10^4 * secondsPerYear).
func bound(principal *big.Int, bps uint64, elapsed int64) *big.Int {
	factor := new(big.Int).Mul(new(big.Int).SetUint64(bps), big.NewInt(elapsed))
	denom := new(big.Int).Mul(common.PercentPrecision, big.NewInt(common.SecondsPerYear))
	return common.MulDiv(principal, factor, denom, common.RoundDown)
}

// FetchRebaseAmount returns the clamped amount eligible for the next rebase,
// collecting the drip buffer and advancing the rebase timestamp when a
// nonzero amount is released. Only the settlement engine may call it.
func (m *Manager) FetchRebaseAmount(caller crypto.Address) (*big.Int, error) {
	if m == nil || m.ledger == nil {
		return nil, errNilLedger
	}
	if m.kv == nil {
		return nil, errNilStorage
	}
	if m.dripper == nil {
		return nil, errNilDripper
	}
	if !caller.Equal(m.engineAddr) {
		return nil, ErrNotSettlementEngine
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok, err := m.lastRebase()
	if err != nil {
		return nil, err
	}
	now := m.nowFn()
	if !ok {
		// Schedule state is created on first touch; eligibility counts from
		// deployment rather than from the epoch.
		if err := m.putLastRebase(now); err != nil {
			return nil, err
		}
		return big.NewInt(0), nil
	}
	elapsed := now - last
	if elapsed <= 0 || elapsed < m.minGapSeconds {
		return big.NewInt(0), nil
	}

	total, err := m.ledger.TotalSupply()
	if err != nil {
		return nil, err
	}
	nonRebasing, err := m.ledger.NonRebasingSupply()
	if err != nil {
		return nil, err
	}
	principal := new(big.Int).Sub(common.CloneBig(total), common.CloneBig(nonRebasing))
	if principal.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	vaultHeld, err := m.ledger.BalanceOf(m.vaultAddr)
	if err != nil {
		return nil, err
	}
	collectable, err := m.dripper.CollectableAmount()
	if err != nil {
		return nil, err
	}
	rebaseable := new(big.Int).Add(vaultHeld, collectable)

	minBound := bound(principal, m.aprFloorBps, elapsed)
	maxBound := bound(principal, m.aprCeilBps, elapsed)
	clamped := common.MinBig(rebaseable, maxBound)
	if clamped.Cmp(minBound) < 0 {
		return big.NewInt(0), nil
	}

	if _, err := m.dripper.Collect(); err != nil {
		return nil, err
	}
	if err := m.putLastRebase(now); err != nil {
		return nil, err
	}
	return clamped, nil
}
