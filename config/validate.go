package config

import (
	"fmt"
	"math/big"
	"strings"

	"stablenet/crypto"
)

const maxBps = 10_000

func checkAddress(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if _, err := crypto.DecodeAddress(value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// Validate rejects configurations that could never produce a working node.
// Empty addresses pass here; they fail later when Parameters resolves them.
func (c *Config) Validate() error {
	if err := checkAddress("ledger.Admin", c.Ledger.Admin); err != nil {
		return err
	}
	if err := checkAddress("ledger.Vault", c.Ledger.Vault); err != nil {
		return err
	}
	if err := checkAddress("ledger.FeeRecipient", c.Ledger.FeeRecipient); err != nil {
		return err
	}
	for _, addr := range c.Ledger.FeeExempt {
		if err := checkAddress("ledger.FeeExempt", addr); err != nil {
			return err
		}
	}
	for _, addr := range c.Ledger.ProgrammaticHolders {
		if err := checkAddress("ledger.ProgrammaticHolders", addr); err != nil {
			return err
		}
	}
	if err := checkAddress("dripper.Holding", c.Dripper.Holding); err != nil {
		return err
	}
	if c.Dripper.DurationSeconds <= 0 {
		return fmt.Errorf("dripper: DurationSeconds must be positive")
	}
	if c.Rebase.MinGapSeconds <= 0 {
		return fmt.Errorf("rebase: MinGapSeconds must be positive")
	}
	if c.Rebase.APRFloorBps > c.Rebase.APRCeilBps {
		return fmt.Errorf("rebase: APRFloorBps exceeds APRCeilBps")
	}

	seen := make(map[string]bool, len(c.Collateral))
	for _, entry := range c.Collateral {
		if entry.Asset == "" {
			return fmt.Errorf("collateral: Asset must not be empty")
		}
		if seen[entry.Asset] {
			return fmt.Errorf("collateral: duplicate asset %s", entry.Asset)
		}
		seen[entry.Asset] = true
		if entry.Decimals > 18 {
			return fmt.Errorf("collateral %s: Decimals exceeds 18", entry.Asset)
		}
		if entry.BaseFeeInBps > maxBps || entry.BaseFeeOutBps > maxBps {
			return fmt.Errorf("collateral %s: fee rate exceeds %d bps", entry.Asset, maxBps)
		}
		if entry.DownsidePegBps > maxBps {
			return fmt.Errorf("collateral %s: DownsidePegBps exceeds %d bps", entry.Asset, maxBps)
		}
		if entry.CompositionBps > maxBps {
			return fmt.Errorf("collateral %s: CompositionBps exceeds %d bps", entry.Asset, maxBps)
		}
		price, ok := new(big.Int).SetString(strings.TrimSpace(entry.Price), 10)
		if !ok || price.Sign() < 0 {
			return fmt.Errorf("collateral %s: invalid Price %q", entry.Asset, entry.Price)
		}
	}
	return nil
}
