package config

import "strings"

// Log controls structured log output. When File is set, output rotates through
// it; otherwise logs go to stderr.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Ledger names the privileged accounts wired into the token ledger and the
// settlement engine. All addresses are bech32 strings.
type Ledger struct {
	// Admin may pause the ledger, force rebase opt-in/opt-out and trigger
	// allocations.
	Admin string `toml:"Admin"`
	// Vault is the settlement engine's ledger account. It is the only
	// account allowed to mint, burn and rebase.
	Vault string `toml:"Vault"`
	// FeeRecipient collects mint and redeem fees. Defaults to the vault.
	FeeRecipient string `toml:"FeeRecipient"`
	// FeeExempt lists callers whose mint and redeem fees are waived.
	FeeExempt []string `toml:"FeeExempt"`
	// ProgrammaticHolders lists accounts that default to non-rebasing mode,
	// mirroring how pooled contract balances are excluded from rebases.
	ProgrammaticHolders []string `toml:"ProgrammaticHolders"`
}

// Dripper configures the yield release buffer.
type Dripper struct {
	// Holding is the ledger account whose balance feeds the drip.
	Holding string `toml:"Holding"`
	// DurationSeconds is the window the buffer is released over.
	DurationSeconds int64 `toml:"DurationSeconds"`
}

// Rebase configures the scheduler's eligibility bounds.
type Rebase struct {
	MinGapSeconds int64  `toml:"MinGapSeconds"`
	APRFloorBps   uint64 `toml:"APRFloorBps"`
	APRCeilBps    uint64 `toml:"APRCeilBps"`
}

// Collateral is one collateral policy entry. Fee, peg and composition rates
// are basis points of percentage precision; Price is the static oracle quote
// at base precision.
type Collateral struct {
	Asset             string `toml:"Asset"`
	Decimals          uint   `toml:"Decimals"`
	MintAllowed       bool   `toml:"MintAllowed"`
	RedeemAllowed     bool   `toml:"RedeemAllowed"`
	AllocationAllowed bool   `toml:"AllocationAllowed"`
	BaseFeeInBps      uint64 `toml:"BaseFeeInBps"`
	BaseFeeOutBps     uint64 `toml:"BaseFeeOutBps"`
	DownsidePegBps    uint64 `toml:"DownsidePegBps"`
	CompositionBps    uint64 `toml:"CompositionBps"`
	DefaultVenue      string `toml:"DefaultVenue"`
	Price             string `toml:"Price"`
}

// Config is the top-level node configuration.
type Config struct {
	RPCAddress string       `toml:"RPCAddress"`
	DataDir    string       `toml:"DataDir"`
	Log        Log          `toml:"log"`
	Ledger     Ledger       `toml:"ledger"`
	Dripper    Dripper      `toml:"dripper"`
	Rebase     Rebase       `toml:"rebase"`
	Collateral []Collateral `toml:"collateral"`
}

const (
	// DefaultDripDurationSeconds releases the yield buffer over one week.
	DefaultDripDurationSeconds = 7 * 24 * 3600
	// DefaultRebaseMinGapSeconds spaces rebases at least one day apart.
	DefaultRebaseMinGapSeconds = 86_400
	// DefaultAPRFloorBps skips rebases that would annualise below 3%.
	DefaultAPRFloorBps = 300
	// DefaultAPRCeilBps caps a single cycle at a 10% annualised release.
	DefaultAPRCeilBps = 1000
)

// Normalise fills unset fields with their defaults.
func (c *Config) Normalise() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./stablenet-data"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if strings.TrimSpace(c.Ledger.FeeRecipient) == "" {
		c.Ledger.FeeRecipient = c.Ledger.Vault
	}
	if c.Dripper.DurationSeconds <= 0 {
		c.Dripper.DurationSeconds = DefaultDripDurationSeconds
	}
	if c.Rebase.MinGapSeconds <= 0 {
		c.Rebase.MinGapSeconds = DefaultRebaseMinGapSeconds
	}
	if c.Rebase.APRFloorBps == 0 {
		c.Rebase.APRFloorBps = DefaultAPRFloorBps
	}
	if c.Rebase.APRCeilBps == 0 {
		c.Rebase.APRCeilBps = DefaultAPRCeilBps
	}
	for i := range c.Collateral {
		entry := &c.Collateral[i]
		entry.Asset = strings.ToUpper(strings.TrimSpace(entry.Asset))
		if strings.TrimSpace(entry.Price) == "" {
			entry.Price = "1000000000000000000"
		}
	}
}
