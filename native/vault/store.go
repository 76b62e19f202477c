package vault

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
)

// Storage abstracts the key-value functionality required to persist vault
// collateral holdings across restarts.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var holdingsIndexKey = []byte("vault/holdings/index")

func holdingsKey(asset string) []byte {
	return []byte("vault/holdings/" + strings.ToUpper(strings.TrimSpace(asset)))
}

type storedHolding struct {
	Amount string
}

// Holdings tracks how much of each collateral the vault itself holds.
type Holdings struct {
	mu sync.Mutex
	kv Storage
}

func NewHoldings(kv Storage) *Holdings {
	return &Holdings{kv: kv}
}

func (s *Holdings) balance(asset string) (*big.Int, error) {
	var stored storedHolding
	ok, err := s.kv.KVGet(holdingsKey(asset), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	amount, okAmt := new(big.Int).SetString(strings.TrimSpace(stored.Amount), 10)
	if !okAmt || amount.Sign() < 0 {
		return nil, fmt.Errorf("vault: invalid stored holding %q for %s", stored.Amount, asset)
	}
	return amount, nil
}

func (s *Holdings) put(asset string, amount *big.Int) error {
	var existing storedHolding
	ok, err := s.kv.KVGet(holdingsKey(asset), &existing)
	if err != nil {
		return err
	}
	if !ok {
		normalized := strings.ToUpper(strings.TrimSpace(asset))
		if err := s.kv.KVAppend(holdingsIndexKey, []byte(normalized)); err != nil {
			return err
		}
	}
	return s.kv.KVPut(holdingsKey(asset), storedHolding{Amount: amount.String()})
}

// Credit records collateral arriving in the vault.
func (s *Holdings) Credit(asset string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.balance(asset)
	if err != nil {
		return err
	}
	return s.put(asset, new(big.Int).Add(current, amount))
}

// Debit records collateral leaving the vault. It fails closed when the debit
// exceeds what the vault holds.
func (s *Holdings) Debit(asset string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.balance(asset)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientHoldings
	}
	return s.put(asset, new(big.Int).Sub(current, amount))
}

// Balance reports how much of the collateral the vault currently holds.
func (s *Holdings) Balance(asset string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance(asset)
}

// Assets lists every collateral the vault has ever held, sorted for stable
// iteration.
func (s *Holdings) Assets() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw [][]byte
	if err := s.kv.KVGetList(holdingsIndexKey, &raw); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(raw))
	assets := make([]string, 0, len(raw))
	for _, entry := range raw {
		asset := string(entry)
		if seen[asset] {
			continue
		}
		seen[asset] = true
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets, nil
}
