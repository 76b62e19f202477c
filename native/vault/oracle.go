package vault

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"stablenet/native/common"
)

// ErrNoPrice indicates the oracle has no quote for the asset.
var ErrNoPrice = errors.New("vault: no price for collateral")

// StaticOracle serves operator-set prices. It backs single-node deployments
// and tests; a production deployment would swap in a feed-backed
// implementation of PriceOracle.
type StaticOracle struct {
	mu        sync.RWMutex
	precision *big.Int
	prices    map[string]*big.Int
}

// NewStaticOracle constructs an oracle quoting against the supplied precision.
// A nil precision defaults to the ledger's base precision.
func NewStaticOracle(precision *big.Int) *StaticOracle {
	if precision == nil || precision.Sign() <= 0 {
		precision = common.BasePrecision
	}
	return &StaticOracle{
		precision: common.CloneBig(precision),
		prices:    make(map[string]*big.Int),
	}
}

// SetPrice installs or replaces the quote for an asset.
func (o *StaticOracle) SetPrice(asset string, price *big.Int) error {
	if price == nil || price.Sign() < 0 {
		return fmt.Errorf("vault: invalid price for %s", asset)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[normalizeAsset(asset)] = common.CloneBig(price)
	return nil
}

// GetPrice implements PriceOracle.
func (o *StaticOracle) GetPrice(asset string) (*big.Int, *big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[normalizeAsset(asset)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoPrice, asset)
	}
	return common.CloneBig(price), common.CloneBig(o.precision), nil
}
