package vault

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"stablenet/native/common"
)

// ErrUnknownCollateral indicates an asset with no registered policy.
var ErrUnknownCollateral = errors.New("vault: unknown collateral")

// StaticRegistry is a configuration-backed CollateralRegistry. Policies are
// loaded once at startup; operators change them by editing the node
// configuration and restarting.
type StaticRegistry struct {
	mu       sync.RWMutex
	policies map[string]*CollateralPolicy
	venues   *VenueRegistry
	holdings *Holdings
}

// NewStaticRegistry constructs a registry over the supplied policy set.
func NewStaticRegistry(venues *VenueRegistry, holdings *Holdings) *StaticRegistry {
	return &StaticRegistry{
		policies: make(map[string]*CollateralPolicy),
		venues:   venues,
		holdings: holdings,
	}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// SetPolicy installs or replaces the policy for one collateral.
func (r *StaticRegistry) SetPolicy(asset string, policy *CollateralPolicy) error {
	if r == nil || policy == nil {
		return fmt.Errorf("vault: nil policy for %s", asset)
	}
	if policy.ConversionFactor == nil || policy.ConversionFactor.Sign() <= 0 {
		return fmt.Errorf("vault: conversion factor for %s must be positive", asset)
	}
	if policy.BaseFeeInBps > uint64(common.PercentPrecision.Int64()) ||
		policy.BaseFeeOutBps > uint64(common.PercentPrecision.Int64()) {
		return fmt.Errorf("vault: fee rate for %s exceeds percentage precision", asset)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[normalizeAsset(asset)] = policy.Clone()
	return nil
}

// Assets lists every collateral with a registered policy.
func (r *StaticRegistry) Assets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	assets := make([]string, 0, len(r.policies))
	for asset := range r.policies {
		assets = append(assets, asset)
	}
	return assets
}

func (r *StaticRegistry) policy(asset string) (*CollateralPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	policy, ok := r.policies[normalizeAsset(asset)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollateral, asset)
	}
	return policy.Clone(), nil
}

// MintPolicy returns the policy consulted on the mint path.
func (r *StaticRegistry) MintPolicy(asset string) (*CollateralPolicy, error) {
	return r.policy(asset)
}

// RedeemPolicy returns the policy consulted on the redeem path.
func (r *StaticRegistry) RedeemPolicy(asset string) (*CollateralPolicy, error) {
	return r.policy(asset)
}

// IsValidVenue reports whether the venue identifier is bound to the
// collateral.
func (r *StaticRegistry) IsValidVenue(asset, venue string) (bool, error) {
	if _, err := r.policy(asset); err != nil {
		return false, err
	}
	_, ok := r.venues.Lookup(asset, venue)
	return ok, nil
}

// CollateralHeldInVenues sums the collateral currently deployed across every
// venue bound to the asset.
func (r *StaticRegistry) CollateralHeldInVenues(asset string) (*big.Int, error) {
	total := big.NewInt(0)
	for _, id := range r.venues.VenuesFor(asset) {
		adapter, ok := r.venues.Lookup(asset, id)
		if !ok {
			continue
		}
		held, err := adapter.BalanceHeld(asset)
		if err != nil {
			return nil, err
		}
		total.Add(total, held)
	}
	return total, nil
}

// ValidateAllocation reports whether moving amount of the collateral into the
// venue stays within the policy's composition cap:
//
//	allocatable = max(0, min(vaultHeld, totalCollateral*composition/1e4 - heldInVenue))
func (r *StaticRegistry) ValidateAllocation(asset, venue string, amount *big.Int) (bool, error) {
	policy, err := r.policy(asset)
	if err != nil {
		return false, err
	}
	if !policy.AllocationAllowed {
		return false, nil
	}
	adapter, ok := r.venues.Lookup(asset, venue)
	if !ok {
		return false, nil
	}
	if amount == nil || amount.Sign() <= 0 {
		return false, nil
	}

	vaultHeld, err := r.holdings.Balance(asset)
	if err != nil {
		return false, err
	}
	inVenues, err := r.CollateralHeldInVenues(asset)
	if err != nil {
		return false, err
	}
	heldInVenue, err := adapter.BalanceHeld(asset)
	if err != nil {
		return false, err
	}

	totalCollateral := new(big.Int).Add(vaultHeld, inVenues)
	capAmount := common.Percent(totalCollateral, policy.DesiredCompositionBps, common.RoundDown)
	headroom := new(big.Int).Sub(capAmount, heldInVenue)
	if headroom.Sign() < 0 {
		headroom = big.NewInt(0)
	}
	allocatable := common.MinBig(vaultHeld, headroom)
	return amount.Cmp(allocatable) <= 0, nil
}

// FlatFeeCalculator charges each collateral's configured base rates without
// any utilisation-based adjustment.
type FlatFeeCalculator struct {
	registry *StaticRegistry
}

// NewFlatFeeCalculator constructs a calculator reading rates from the
// registry's policies.
func NewFlatFeeCalculator(registry *StaticRegistry) *FlatFeeCalculator {
	return &FlatFeeCalculator{registry: registry}
}

// MintFeeRate returns the collateral's base mint fee in basis points.
func (c *FlatFeeCalculator) MintFeeRate(asset string) (uint64, error) {
	policy, err := c.registry.policy(asset)
	if err != nil {
		return 0, err
	}
	return policy.BaseFeeInBps, nil
}

// RedeemFeeRate returns the collateral's base redeem fee in basis points.
func (c *FlatFeeCalculator) RedeemFeeRate(asset string) (uint64, error) {
	policy, err := c.registry.policy(asset)
	if err != nil {
		return 0, err
	}
	return policy.BaseFeeOutBps, nil
}
