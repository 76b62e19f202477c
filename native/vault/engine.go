package vault

import (
	"math/big"
	"time"

	"stablenet/core/events"
	"stablenet/crypto"
	"stablenet/native/common"
)

const (
	entryMint     = "mint"
	entryRedeem   = "redeem"
	entryAllocate = "allocate"
	entryRebase   = "rebase"
)

// Engine settles collateral against the ledger token: it prices and executes
// mints and redemptions, moves vault collateral into yield venues and drives
// the periodic rebase. One engine instance serialises all fund-moving entry
// points through per-entry busy flags.
type Engine struct {
	ledger    Ledger
	oracle    PriceOracle
	registry  CollateralRegistry
	fees      FeeCalculator
	custody   Custody
	scheduler Scheduler
	venues    *VenueRegistry
	holdings  *Holdings

	guard   *common.EntryGuard
	emitter events.Emitter

	vaultAddr    crypto.Address
	feeRecipient crypto.Address
	adminAddr    crypto.Address
	feeExempt    map[[20]byte]bool

	nowFn func() int64
}

// NewEngine constructs a settlement engine around its collaborators. The vault
// address is the ledger account the engine mints from, burns into and holds
// undistributed yield on.
func NewEngine(ledger Ledger, oracle PriceOracle, registry CollateralRegistry, fees FeeCalculator, custody Custody, scheduler Scheduler, venues *VenueRegistry, holdings *Holdings, vault crypto.Address) *Engine {
	return &Engine{
		ledger:       ledger,
		oracle:       oracle,
		registry:     registry,
		fees:         fees,
		custody:      custody,
		scheduler:    scheduler,
		venues:       venues,
		holdings:     holdings,
		guard:        common.NewEntryGuard(),
		emitter:      events.NoopEmitter{},
		vaultAddr:    vault,
		feeRecipient: vault,
		feeExempt:    make(map[[20]byte]bool),
		nowFn:        func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter wires an event sink. Passing nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetAdmin configures the address allowed to trigger allocations.
func (e *Engine) SetAdmin(addr crypto.Address) {
	if e == nil {
		return
	}
	e.adminAddr = addr
}

// SetFeeRecipient redirects mint and redeem fees away from the vault account.
func (e *Engine) SetFeeRecipient(addr crypto.Address) {
	if e == nil || addr.IsZero() {
		return
	}
	e.feeRecipient = addr
}

// SetFeeExempt marks callers whose mint and redeem fees are waived.
func (e *Engine) SetFeeExempt(addrs []crypto.Address) {
	if e == nil {
		return
	}
	exempt := make(map[[20]byte]bool, len(addrs))
	for _, addr := range addrs {
		exempt[addr.Fixed()] = true
	}
	e.feeExempt = exempt
}

// SetNowFunc overrides the time source, primarily for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// VaultAddress returns the ledger account the engine settles through.
func (e *Engine) VaultAddress() crypto.Address { return e.vaultAddr }

func (e *Engine) checkWiring() error {
	switch {
	case e == nil || e.ledger == nil:
		return errNilLedger
	case e.oracle == nil:
		return errNilOracle
	case e.registry == nil:
		return errNilRegistry
	case e.fees == nil:
		return errNilFees
	case e.custody == nil:
		return errNilCustody
	case e.scheduler == nil:
		return errNilScheduler
	case e.holdings == nil:
		return errNilStorage
	}
	return nil
}

func (e *Engine) checkDeadline(deadline int64) error {
	if deadline > 0 && e.nowFn() > deadline {
		return ErrDeadlineElapsed
	}
	return nil
}

func (e *Engine) feeRateWaived(caller crypto.Address) bool {
	return e.feeExempt[caller.Fixed()]
}

// QuoteMint prices a mint without executing it. It returns (0, 0) when the
// collateral is not mintable or trades below its downside peg; the price only
// discounts the gross amount when it sits below the reference precision.
func (e *Engine) QuoteMint(caller crypto.Address, asset string, collateralAmount *big.Int) (*big.Int, *big.Int, error) {
	if err := e.checkWiring(); err != nil {
		return nil, nil, err
	}
	if collateralAmount == nil || collateralAmount.Sign() < 0 {
		return nil, nil, ErrInvalidAmount
	}
	policy, err := e.registry.MintPolicy(asset)
	if err != nil {
		return nil, nil, err
	}
	if !policy.MintAllowed {
		return big.NewInt(0), big.NewInt(0), nil
	}
	price, precision, err := e.oracle.GetPrice(asset)
	if err != nil {
		return nil, nil, err
	}
	threshold := common.Percent(precision, policy.DownsidePegBps, common.RoundDown)
	if price.Cmp(threshold) < 0 {
		return big.NewInt(0), big.NewInt(0), nil
	}

	gross := new(big.Int).Mul(collateralAmount, policy.ConversionFactor)
	if price.Cmp(precision) < 0 {
		gross = common.MulDiv(gross, price, precision, common.RoundDown)
	}
	var feeRate uint64
	if !e.feeRateWaived(caller) {
		feeRate, err = e.fees.MintFeeRate(asset)
		if err != nil {
			return nil, nil, err
		}
	}
	fee := common.Percent(gross, feeRate, common.RoundDown)
	net := new(big.Int).Sub(gross, fee)
	return net, fee, nil
}

// Mint pulls collateral from the caller and credits the net token amount. The
// pending rebase cycle runs first so the caller does not capture yield accrued
// before their deposit.
func (e *Engine) Mint(caller crypto.Address, asset string, collateralAmount, minNetAmount *big.Int, deadline int64) (*big.Int, error) {
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	if err := e.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if err := e.guard.Enter(entryMint); err != nil {
		return nil, err
	}
	defer e.guard.Exit(entryMint)

	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := e.runRebase(); err != nil {
		return nil, err
	}

	net, fee, err := e.QuoteMint(caller, asset, collateralAmount)
	if err != nil {
		return nil, err
	}
	if net.Sign() == 0 {
		return nil, ErrMintFailed
	}
	if minNetAmount != nil && net.Cmp(minNetAmount) < 0 {
		return nil, ErrSlippage
	}

	// Each step past the custody pull unwinds its predecessors on failure so
	// an aborted mint leaves no stranded collateral. The unwind errors are
	// dropped; the originating error is the one reported.
	if err := e.custody.Pull(caller, asset, collateralAmount); err != nil {
		return nil, err
	}
	if err := e.holdings.Credit(asset, collateralAmount); err != nil {
		_ = e.custody.Push(caller, asset, collateralAmount)
		return nil, err
	}
	if err := e.ledger.Mint(e.vaultAddr, caller, net); err != nil {
		_ = e.holdings.Debit(asset, collateralAmount)
		_ = e.custody.Push(caller, asset, collateralAmount)
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.ledger.Mint(e.vaultAddr, e.feeRecipient, fee); err != nil {
			_ = e.ledger.Burn(e.vaultAddr, caller, net)
			_ = e.holdings.Debit(asset, collateralAmount)
			_ = e.custody.Push(caller, asset, collateralAmount)
			return nil, err
		}
	}

	e.emitter.Emit(events.VaultMint{
		Caller:           caller.Fixed(),
		Collateral:       asset,
		NetAmount:        net,
		CollateralAmount: collateralAmount,
		FeeAmount:        fee,
	})
	return net, nil
}

// QuoteRedeem prices a redemption without executing it, resolving the venue
// that would cover any shortfall beyond vault-held collateral. The price only
// reduces the collateral delivered when it sits at or above the reference
// precision.
func (e *Engine) QuoteRedeem(caller crypto.Address, asset string, burnAmount *big.Int, venueID string) (*RedeemQuote, error) {
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	if burnAmount == nil || burnAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	policy, err := e.registry.RedeemPolicy(asset)
	if err != nil {
		return nil, err
	}
	if !policy.RedeemAllowed {
		return nil, ErrRedeemDisabled
	}

	var feeRate uint64
	if !e.feeRateWaived(caller) {
		feeRate, err = e.fees.RedeemFeeRate(asset)
		if err != nil {
			return nil, err
		}
	}
	fee := common.Percent(burnAmount, feeRate, common.RoundDown)
	netBurn := new(big.Int).Sub(burnAmount, fee)

	price, precision, err := e.oracle.GetPrice(asset)
	if err != nil {
		return nil, err
	}
	scaled := common.CloneBig(netBurn)
	if price.Cmp(precision) > 0 {
		scaled = common.MulDiv(netBurn, precision, price, common.RoundDown)
	}
	collateralOut := new(big.Int).Quo(scaled, policy.ConversionFactor)

	vaultHeld, err := e.holdings.Balance(asset)
	if err != nil {
		return nil, err
	}
	quote := &RedeemQuote{
		CollateralOut: collateralOut,
		NetBurn:       netBurn,
		FeeAmount:     fee,
		FromVault:     common.MinBig(collateralOut, vaultHeld),
		FromVenue:     big.NewInt(0),
	}
	shortfall := new(big.Int).Sub(collateralOut, quote.FromVault)
	if shortfall.Sign() == 0 {
		return quote, nil
	}

	if venueID != "" {
		valid, err := e.registry.IsValidVenue(asset, venueID)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, ErrInvalidVenue
		}
	} else {
		venueID = policy.DefaultVenue
		if venueID == "" {
			return nil, ErrNoVenue
		}
	}
	adapter, ok := e.venues.Lookup(asset, venueID)
	if !ok {
		return nil, ErrUnknownVenue
	}
	available, err := adapter.AvailableBalance(asset)
	if err != nil {
		return nil, err
	}
	if available.Cmp(shortfall) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	quote.FromVenue = shortfall
	quote.VenueID = venueID
	return quote, nil
}

// Redeem burns the caller's tokens and delivers collateral from the vault,
// topped up from a yield venue when vault holdings fall short. Venue
// collateral is staged in the vault's custody first, so the slippage floor is
// checked against the amount actually delivered before any ledger leg runs.
func (e *Engine) Redeem(caller crypto.Address, asset string, burnAmount, minCollateralOut *big.Int, deadline int64, venueID string) (*big.Int, error) {
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	if err := e.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if err := e.guard.Enter(entryRedeem); err != nil {
		return nil, err
	}
	defer e.guard.Exit(entryRedeem)

	quote, err := e.QuoteRedeem(caller, asset, burnAmount, venueID)
	if err != nil {
		return nil, err
	}
	if minCollateralOut != nil && quote.CollateralOut.Cmp(minCollateralOut) < 0 {
		return nil, ErrSlippage
	}

	// Any venue shortfall is withdrawn into the vault's custody before the
	// ledger legs run; the venue is the only collaborator that may fail or
	// under-deliver, and staging keeps a failed redemption from touching the
	// caller's tokens.
	delivered := common.CloneBig(quote.FromVault)
	venuePart := big.NewInt(0)
	var adapter YieldVenue
	if quote.FromVenue.Sign() > 0 {
		var ok bool
		adapter, ok = e.venues.Lookup(asset, quote.VenueID)
		if !ok {
			return nil, ErrUnknownVenue
		}
		received, err := adapter.Withdraw(e.vaultAddr, asset, quote.FromVenue)
		if err != nil {
			return nil, err
		}
		venuePart = common.MinBig(received, quote.FromVenue)
		delivered.Add(delivered, venuePart)
	}
	restage := func() {
		if venuePart.Sign() == 0 {
			return
		}
		if err := e.custody.Pull(e.vaultAddr, asset, venuePart); err != nil {
			return
		}
		_ = adapter.Deposit(asset, venuePart)
	}
	if minCollateralOut != nil && delivered.Cmp(minCollateralOut) < 0 {
		restage()
		return nil, ErrSlippage
	}

	if err := e.ledger.Transfer(caller, e.vaultAddr, burnAmount); err != nil {
		restage()
		return nil, err
	}
	if err := e.ledger.Burn(e.vaultAddr, e.vaultAddr, quote.NetBurn); err != nil {
		_ = e.ledger.Transfer(e.vaultAddr, caller, burnAmount)
		restage()
		return nil, err
	}
	if quote.FeeAmount.Sign() > 0 && !e.feeRecipient.Equal(e.vaultAddr) {
		if err := e.ledger.Transfer(e.vaultAddr, e.feeRecipient, quote.FeeAmount); err != nil {
			_ = e.ledger.Mint(e.vaultAddr, e.vaultAddr, quote.NetBurn)
			_ = e.ledger.Transfer(e.vaultAddr, caller, burnAmount)
			restage()
			return nil, err
		}
	}

	if quote.FromVault.Sign() > 0 {
		if err := e.holdings.Debit(asset, quote.FromVault); err != nil {
			return nil, err
		}
		if err := e.custody.Push(caller, asset, quote.FromVault); err != nil {
			return nil, err
		}
	}
	if venuePart.Sign() > 0 {
		if err := e.custody.Pull(e.vaultAddr, asset, venuePart); err != nil {
			return nil, err
		}
		if err := e.custody.Push(caller, asset, venuePart); err != nil {
			return nil, err
		}
	}

	if err := e.runRebase(); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultRedeem{
		Caller:           caller.Fixed(),
		Collateral:       asset,
		NetBurn:          quote.NetBurn,
		CollateralAmount: delivered,
		FeeAmount:        quote.FeeAmount,
	})
	return delivered, nil
}

// Allocate deposits vault-held collateral into a yield venue, subject to the
// registry's composition cap. Admin only.
func (e *Engine) Allocate(caller crypto.Address, asset, venueID string, amount *big.Int) error {
	if err := e.checkWiring(); err != nil {
		return err
	}
	if e.adminAddr.IsZero() || !caller.Equal(e.adminAddr) {
		return ErrNotAuthorized
	}
	if err := e.guard.Enter(entryAllocate); err != nil {
		return err
	}
	defer e.guard.Exit(entryAllocate)

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	permitted, err := e.registry.ValidateAllocation(asset, venueID, amount)
	if err != nil {
		return err
	}
	if !permitted {
		return ErrAllocationNotPermitted
	}
	adapter, ok := e.venues.Lookup(asset, venueID)
	if !ok {
		return ErrUnknownVenue
	}

	if err := e.holdings.Debit(asset, amount); err != nil {
		return err
	}
	if err := adapter.Deposit(asset, amount); err != nil {
		return err
	}

	e.emitter.Emit(events.VaultAllocate{
		Collateral: asset,
		Venue:      venueID,
		Amount:     amount,
	})
	return nil
}

// Rebase runs one rebase cycle: it asks the scheduler for the bounded yield
// amount and, when nonzero, burns it from the vault account so the ledger
// redistributes it to rebasing holders. Anyone may poke it.
func (e *Engine) Rebase() error {
	if err := e.checkWiring(); err != nil {
		return err
	}
	if err := e.guard.Enter(entryRebase); err != nil {
		return err
	}
	defer e.guard.Exit(entryRebase)
	return e.runRebase()
}

func (e *Engine) runRebase() error {
	amount, err := e.scheduler.FetchRebaseAmount(e.vaultAddr)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := e.ledger.Rebase(e.vaultAddr, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultRebase{Amount: amount})
	return nil
}

// Stats reports where collateral currently sits alongside the token supply it
// backs.
func (e *Engine) Stats() (*Stats, error) {
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	total, err := e.ledger.TotalSupply()
	if err != nil {
		return nil, err
	}
	assets, err := e.holdings.Assets()
	if err != nil {
		return nil, err
	}
	stats := &Stats{TotalSupply: total}
	for _, asset := range assets {
		inVault, err := e.holdings.Balance(asset)
		if err != nil {
			return nil, err
		}
		inVenues, err := e.registry.CollateralHeldInVenues(asset)
		if err != nil {
			return nil, err
		}
		stats.Collateral = append(stats.Collateral, CollateralStat{
			Asset:    asset,
			InVault:  inVault,
			InVenues: inVenues,
		})
	}
	return stats, nil
}
