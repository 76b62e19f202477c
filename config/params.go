package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"stablenet/crypto"
	"stablenet/native/vault"
)

// Parameters is the runtime view of a validated configuration: addresses
// decoded, durations typed and collateral entries turned into engine policies.
type Parameters struct {
	Admin               crypto.Address
	Vault               crypto.Address
	FeeRecipient        crypto.Address
	FeeExempt           []crypto.Address
	ProgrammaticHolders []crypto.Address

	DripHolding  crypto.Address
	DripDuration time.Duration

	RebaseMinGap      time.Duration
	RebaseAPRFloorBps uint64
	RebaseAPRCeilBps  uint64

	Policies map[string]*vault.CollateralPolicy
	Prices   map[string]*big.Int
}

func requireAddress(field, value string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, fmt.Errorf("%s must be set", field)
	}
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func addressList(field string, values []string) ([]crypto.Address, error) {
	addrs := make([]crypto.Address, 0, len(values))
	for _, value := range values {
		addr, err := requireAddress(field, value)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// Parameters resolves the configuration into runtime values, failing on any
// unset privileged address.
func (c *Config) Parameters() (*Parameters, error) {
	params := &Parameters{
		DripDuration:      time.Duration(c.Dripper.DurationSeconds) * time.Second,
		RebaseMinGap:      time.Duration(c.Rebase.MinGapSeconds) * time.Second,
		RebaseAPRFloorBps: c.Rebase.APRFloorBps,
		RebaseAPRCeilBps:  c.Rebase.APRCeilBps,
		Policies:          make(map[string]*vault.CollateralPolicy, len(c.Collateral)),
		Prices:            make(map[string]*big.Int, len(c.Collateral)),
	}

	var err error
	if params.Admin, err = requireAddress("ledger.Admin", c.Ledger.Admin); err != nil {
		return nil, err
	}
	if params.Vault, err = requireAddress("ledger.Vault", c.Ledger.Vault); err != nil {
		return nil, err
	}
	if params.FeeRecipient, err = requireAddress("ledger.FeeRecipient", c.Ledger.FeeRecipient); err != nil {
		return nil, err
	}
	if params.FeeExempt, err = addressList("ledger.FeeExempt", c.Ledger.FeeExempt); err != nil {
		return nil, err
	}
	if params.ProgrammaticHolders, err = addressList("ledger.ProgrammaticHolders", c.Ledger.ProgrammaticHolders); err != nil {
		return nil, err
	}
	if params.DripHolding, err = requireAddress("dripper.Holding", c.Dripper.Holding); err != nil {
		return nil, err
	}

	for _, entry := range c.Collateral {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-entry.Decimals)), nil)
		params.Policies[entry.Asset] = &vault.CollateralPolicy{
			MintAllowed:           entry.MintAllowed,
			RedeemAllowed:         entry.RedeemAllowed,
			AllocationAllowed:     entry.AllocationAllowed,
			BaseFeeInBps:          entry.BaseFeeInBps,
			BaseFeeOutBps:         entry.BaseFeeOutBps,
			DownsidePegBps:        entry.DownsidePegBps,
			DesiredCompositionBps: entry.CompositionBps,
			DefaultVenue:          strings.TrimSpace(entry.DefaultVenue),
			ConversionFactor:      factor,
		}
		price, ok := new(big.Int).SetString(strings.TrimSpace(entry.Price), 10)
		if !ok {
			return nil, fmt.Errorf("collateral %s: invalid Price %q", entry.Asset, entry.Price)
		}
		params.Prices[entry.Asset] = price
	}
	return params, nil
}
