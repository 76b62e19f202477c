package vault

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stablenet/crypto"
	"stablenet/native/common"
	"stablenet/native/rebase"
	"stablenet/native/token"
	"stablenet/storage"
)

const testAsset = "USDC"

func makeAddr(tag byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = tag
	return crypto.NewAddress(raw)
}

func tokensOf(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), common.BasePrecision)
}

// usdc returns n whole units of the 6-decimal test collateral.
func usdc(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

func price(milli int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milli), big.NewInt(1_000_000_000_000_000))
}

type engineFixture struct {
	engine   *Engine
	ledger   *token.Ledger
	oracle   *StaticOracle
	registry *StaticRegistry
	venues   *VenueRegistry
	holdings *Holdings
	bank     *MemoryBank
	venue    *MemoryVenue
	dripper  *rebase.Dripper

	vaultAddr crypto.Address
	admin     crypto.Address
	holding   crypto.Address
	alice     crypto.Address

	now int64
}

func defaultPolicy() *CollateralPolicy {
	return &CollateralPolicy{
		MintAllowed:           true,
		RedeemAllowed:         true,
		AllocationAllowed:     true,
		DownsidePegBps:        9_800,
		DesiredCompositionBps: 5_000,
		DefaultVenue:          "aave",
		ConversionFactor:      big.NewInt(1_000_000_000_000),
	}
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	kv := storage.NewKV(storage.NewMemDB())
	fx := &engineFixture{
		vaultAddr: makeAddr(0x01),
		admin:     makeAddr(0x02),
		holding:   makeAddr(0x03),
		alice:     makeAddr(0x0A),
		now:       1_000_000,
	}
	clock := func() int64 { return fx.now }

	fx.ledger = token.NewLedger(token.NewStore(kv))
	fx.ledger.SetSettlementEngine(fx.vaultAddr)
	fx.ledger.SetAdmin(fx.admin)

	dripper, err := rebase.NewDripper(kv, fx.ledger, fx.holding, fx.vaultAddr, 100*time.Second)
	require.NoError(t, err)
	dripper.SetNowFunc(clock)
	fx.dripper = dripper

	scheduler, err := rebase.NewManager(kv, fx.ledger, dripper, fx.vaultAddr, fx.vaultAddr,
		86_400*time.Second, 300, 1000)
	require.NoError(t, err)
	scheduler.SetNowFunc(clock)

	fx.holdings = NewHoldings(kv)
	fx.venues = NewVenueRegistry()
	fx.registry = NewStaticRegistry(fx.venues, fx.holdings)
	require.NoError(t, fx.registry.SetPolicy(testAsset, defaultPolicy()))

	fx.oracle = NewStaticOracle(nil)
	require.NoError(t, fx.oracle.SetPrice(testAsset, price(1000)))

	fx.bank = NewMemoryBank()
	fx.venue = NewMemoryVenue(fx.bank)
	fx.venues.Register(testAsset, "aave", fx.venue)

	fx.engine = NewEngine(fx.ledger, fx.oracle, fx.registry, NewFlatFeeCalculator(fx.registry),
		fx.bank, scheduler, fx.venues, fx.holdings, fx.vaultAddr)
	fx.engine.SetAdmin(fx.admin)
	fx.engine.SetNowFunc(clock)
	return fx
}

func (fx *engineFixture) setPolicy(t *testing.T, mutate func(*CollateralPolicy)) {
	t.Helper()
	policy := defaultPolicy()
	mutate(policy)
	require.NoError(t, fx.registry.SetPolicy(testAsset, policy))
}

func TestMintAtParDeliversExactAmount(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	net, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.Zero(t, net.Cmp(tokensOf(1000)), "net %s", net)

	balance, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(tokensOf(1000)))

	held, err := fx.holdings.Balance(testAsset)
	require.NoError(t, err)
	require.Zero(t, held.Cmp(usdc(1000)))
	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Sign())
}

func TestMintBelowParDiscountsGross(t *testing.T) {
	fx := newEngineFixture(t)
	require.NoError(t, fx.oracle.SetPrice(testAsset, price(990)))
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	net, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.Zero(t, net.Cmp(tokensOf(990)), "net %s", net)
}

func TestMintAboveParIgnoresPrice(t *testing.T) {
	fx := newEngineFixture(t)
	require.NoError(t, fx.oracle.SetPrice(testAsset, price(1020)))
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	net, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.Zero(t, net.Cmp(tokensOf(1000)), "net %s", net)
}

func TestMintBelowDownsidePegFails(t *testing.T) {
	fx := newEngineFixture(t)
	require.NoError(t, fx.oracle.SetPrice(testAsset, price(970)))
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	net, fee, err := fx.engine.QuoteMint(fx.alice, testAsset, usdc(1000))
	require.NoError(t, err)
	require.Zero(t, net.Sign())
	require.Zero(t, fee.Sign())

	_, err = fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.ErrorIs(t, err, ErrMintFailed)
	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Cmp(usdc(1000)), "failed mint must not touch custody")
}

func TestMintDisabledCollateral(t *testing.T) {
	fx := newEngineFixture(t)
	fx.setPolicy(t, func(p *CollateralPolicy) { p.MintAllowed = false })
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.ErrorIs(t, err, ErrMintFailed)
}

func TestMintChargesFee(t *testing.T) {
	fx := newEngineFixture(t)
	fx.setPolicy(t, func(p *CollateralPolicy) { p.BaseFeeInBps = 100 })
	feeSink := makeAddr(0x0F)
	fx.engine.SetFeeRecipient(feeSink)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	net, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.Zero(t, net.Cmp(tokensOf(990)), "net %s", net)

	feeBal, err := fx.ledger.BalanceOf(feeSink)
	require.NoError(t, err)
	require.Zero(t, feeBal.Cmp(tokensOf(10)), "fee %s", feeBal)
}

func TestMintWaivesFeeForExemptCaller(t *testing.T) {
	fx := newEngineFixture(t)
	fx.setPolicy(t, func(p *CollateralPolicy) { p.BaseFeeInBps = 100 })
	fx.engine.SetFeeExempt([]crypto.Address{fx.alice})
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	net, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.Zero(t, net.Cmp(tokensOf(1000)), "net %s", net)
}

func TestMintSlippage(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), tokensOf(1001), 0)
	require.ErrorIs(t, err, ErrSlippage)
	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Cmp(usdc(1000)))
}

func TestMintDeadline(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))

	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, fx.now-1)
	require.ErrorIs(t, err, ErrDeadlineElapsed)
}

func TestRedeemRoundTrip(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)

	delivered, err := fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.NoError(t, err)
	require.Zero(t, delivered.Cmp(usdc(1000)), "delivered %s", delivered)

	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Cmp(usdc(1000)))
	balance, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())
	total, err := fx.ledger.TotalSupply()
	require.NoError(t, err)
	require.Zero(t, total.Sign())
}

func TestRedeemAboveParReducesCollateral(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)

	require.NoError(t, fx.oracle.SetPrice(testAsset, price(1250)))
	delivered, err := fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.NoError(t, err)
	require.Zero(t, delivered.Cmp(usdc(800)), "delivered %s", delivered)
}

func TestRedeemChargesFee(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)

	fx.setPolicy(t, func(p *CollateralPolicy) { p.BaseFeeOutBps = 50 })
	delivered, err := fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.NoError(t, err)
	// 0.5% fee leaves 995 tokens to convert.
	require.Zero(t, delivered.Cmp(usdc(995)), "delivered %s", delivered)
}

func TestRedeemDisabled(t *testing.T) {
	fx := newEngineFixture(t)
	fx.setPolicy(t, func(p *CollateralPolicy) { p.RedeemAllowed = false })
	_, err := fx.engine.Redeem(fx.alice, testAsset, tokensOf(1), nil, 0, "")
	require.ErrorIs(t, err, ErrRedeemDisabled)
}

func TestRedeemShortfallDrawsFromVenue(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)

	// Move half the vault's collateral into the venue.
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))

	delivered, err := fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.NoError(t, err)
	require.Zero(t, delivered.Cmp(usdc(1000)), "delivered %s", delivered)

	held, err := fx.venue.BalanceHeld(testAsset)
	require.NoError(t, err)
	require.Zero(t, held.Sign(), "venue should be drained")
	vaultHeld, err := fx.holdings.Balance(testAsset)
	require.NoError(t, err)
	require.Zero(t, vaultHeld.Sign())
	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Cmp(usdc(1000)))
}

func TestRedeemInsufficientLiquidity(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)

	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))
	fx.venue.SetAvailable(testAsset, usdc(100))

	_, err = fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	// The failed redemption must leave the ledger untouched.
	balance, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(tokensOf(1000)))
}

func TestRedeemNoVenueConfigured(t *testing.T) {
	fx := newEngineFixture(t)
	fx.setPolicy(t, func(p *CollateralPolicy) { p.DefaultVenue = "" })
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))

	_, err = fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.ErrorIs(t, err, ErrNoVenue)
}

func TestRedeemRejectsUnmappedVenue(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))

	_, err = fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "compound")
	require.ErrorIs(t, err, ErrInvalidVenue)
}

func TestRedeemSlippage(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)

	_, err = fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), usdc(1001), 0, "")
	require.ErrorIs(t, err, ErrSlippage)
	balance, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(tokensOf(1000)))
}

func TestAllocateRespectsCompositionCap(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)

	// Cap is 50% of total collateral (1000), so 500 fits and 501 does not.
	require.ErrorIs(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(501)), ErrAllocationNotPermitted)
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))

	held, err := fx.venue.BalanceHeld(testAsset)
	require.NoError(t, err)
	require.Zero(t, held.Cmp(usdc(500)))

	// The venue now sits at its cap; any further allocation is rejected.
	require.ErrorIs(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(1)), ErrAllocationNotPermitted)
}

func TestAllocateRequiresAdmin(t *testing.T) {
	fx := newEngineFixture(t)
	require.ErrorIs(t, fx.engine.Allocate(fx.alice, testAsset, "aave", usdc(1)), ErrNotAuthorized)
}

func TestAllocateDisabled(t *testing.T) {
	fx := newEngineFixture(t)
	fx.setPolicy(t, func(p *CollateralPolicy) { p.AllocationAllowed = false })
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.ErrorIs(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(100)), ErrAllocationNotPermitted)
}

func TestRebaseCycleDistributesYield(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)

	// Yield arrives in the drip holding account and gets primed.
	require.NoError(t, fx.ledger.Mint(fx.vaultAddr, fx.holding, tokensOf(10)))
	_, err = fx.dripper.Collect()
	require.NoError(t, err)

	before, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	fx.now += 90_000

	require.NoError(t, fx.engine.Rebase())

	after, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Positive(t, after.Cmp(before), "holder balance must grow: %s -> %s", before, after)

	// The total supply is conserved through the rebase.
	total, err := fx.ledger.TotalSupply()
	require.NoError(t, err)
	require.Zero(t, total.Cmp(tokensOf(1010)))
}

func TestRebaseBelowGapIsNoOp(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.Mint(fx.vaultAddr, fx.holding, tokensOf(10)))
	_, err = fx.dripper.Collect()
	require.NoError(t, err)

	fx.now += 90_000
	require.NoError(t, fx.engine.Rebase())
	before, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)

	fx.now += 1000
	require.NoError(t, fx.engine.Rebase())
	after, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Zero(t, after.Cmp(before), "rebase inside the gap moved balances")
}

// reentrantVenue re-enters the engine from inside a withdrawal.
type reentrantVenue struct {
	inner  *MemoryVenue
	engine *Engine
	caller crypto.Address
}

func (v *reentrantVenue) Deposit(asset string, amount *big.Int) error {
	return v.inner.Deposit(asset, amount)
}

func (v *reentrantVenue) Withdraw(recipient crypto.Address, asset string, amount *big.Int) (*big.Int, error) {
	if _, err := v.engine.Redeem(v.caller, asset, tokensOf(1), nil, 0, ""); err != nil {
		return nil, err
	}
	return v.inner.Withdraw(recipient, asset, amount)
}

func (v *reentrantVenue) BalanceHeld(asset string) (*big.Int, error) {
	return v.inner.BalanceHeld(asset)
}

func (v *reentrantVenue) AvailableBalance(asset string) (*big.Int, error) {
	return v.inner.AvailableBalance(asset)
}

func TestRedeemBlocksReentrantVenue(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))

	fx.venues.Register(testAsset, "aave", &reentrantVenue{
		inner:  fx.venue,
		engine: fx.engine,
		caller: fx.alice,
	})

	_, err = fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.ErrorIs(t, err, common.ErrReentrantCall)
}

// shortchangeVenue reports full availability but delivers half of any
// requested withdrawal.
type shortchangeVenue struct {
	inner *MemoryVenue
}

func (v *shortchangeVenue) Deposit(asset string, amount *big.Int) error {
	return v.inner.Deposit(asset, amount)
}

func (v *shortchangeVenue) Withdraw(recipient crypto.Address, asset string, amount *big.Int) (*big.Int, error) {
	return v.inner.Withdraw(recipient, asset, new(big.Int).Div(amount, big.NewInt(2)))
}

func (v *shortchangeVenue) BalanceHeld(asset string) (*big.Int, error) {
	return v.inner.BalanceHeld(asset)
}

func (v *shortchangeVenue) AvailableBalance(asset string) (*big.Int, error) {
	return v.inner.AvailableBalance(asset)
}

func TestRedeemEnforcesFloorOnDeliveredAmount(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))
	fx.venues.Register(testAsset, "aave", &shortchangeVenue{inner: fx.venue})

	// The quote promises 1000 but the venue covers only half its 500 share;
	// the floor binds on the delivered amount, not the quote.
	_, err = fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), usdc(990), 0, "")
	require.ErrorIs(t, err, ErrSlippage)

	balance, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(tokensOf(1000)), "failed redemption must not burn")
	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Sign())
	held, err := fx.venue.BalanceHeld(testAsset)
	require.NoError(t, err)
	require.Zero(t, held.Cmp(usdc(500)), "staged venue collateral must be re-deposited")
}

func TestRedeemDeliversWhatTheVenueReturns(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))
	fx.venues.Register(testAsset, "aave", &shortchangeVenue{inner: fx.venue})

	delivered, err := fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), usdc(700), 0, "")
	require.NoError(t, err)
	require.Zero(t, delivered.Cmp(usdc(750)), "delivered %s", delivered)
	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Cmp(usdc(750)))
}

// failingVenue advertises liquidity it refuses to pay out.
type failingVenue struct {
	inner *MemoryVenue
}

func (v *failingVenue) Deposit(asset string, amount *big.Int) error {
	return v.inner.Deposit(asset, amount)
}

func (v *failingVenue) Withdraw(crypto.Address, string, *big.Int) (*big.Int, error) {
	return nil, ErrInsufficientLiquidity
}

func (v *failingVenue) BalanceHeld(asset string) (*big.Int, error) {
	return v.inner.BalanceHeld(asset)
}

func (v *failingVenue) AvailableBalance(asset string) (*big.Int, error) {
	return v.inner.AvailableBalance(asset)
}

func TestRedeemVenueFailureLeavesStateUntouched(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(500)))
	fx.venues.Register(testAsset, "aave", &failingVenue{inner: fx.venue})

	_, err = fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	balance, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(tokensOf(1000)), "failed redemption must not burn")
	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Sign())
	vaultHeld, err := fx.holdings.Balance(testAsset)
	require.NoError(t, err)
	require.Zero(t, vaultHeld.Cmp(usdc(500)))
}

func TestMintUnwindsCustodyWhenLedgerRejects(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	require.NoError(t, fx.ledger.SetPaused(fx.admin, true))

	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.ErrorIs(t, err, token.ErrPaused)
	require.Zero(t, fx.bank.BalanceOf(fx.alice, testAsset).Cmp(usdc(1000)), "pulled collateral must be returned")
	held, err := fx.holdings.Balance(testAsset)
	require.NoError(t, err)
	require.Zero(t, held.Sign())
}

func TestRedeemRunsRebaseAfterSettlement(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.Mint(fx.vaultAddr, fx.holding, tokensOf(10)))
	_, err = fx.dripper.Collect()
	require.NoError(t, err)
	fx.now += 90_000

	// The full-balance redemption settles before the pending cycle runs, so
	// the departing holder takes no share of the accrued yield.
	delivered, err := fx.engine.Redeem(fx.alice, testAsset, tokensOf(1000), nil, 0, "")
	require.NoError(t, err)
	require.Zero(t, delivered.Cmp(usdc(1000)))
	balance, err := fx.ledger.BalanceOf(fx.alice)
	require.NoError(t, err)
	require.Zero(t, balance.Sign(), "departed holder captured yield: %s", balance)
}

func TestStatsAggregatesCollateral(t *testing.T) {
	fx := newEngineFixture(t)
	fx.bank.Fund(fx.alice, testAsset, usdc(1000))
	_, err := fx.engine.Mint(fx.alice, testAsset, usdc(1000), nil, 0)
	require.NoError(t, err)
	require.NoError(t, fx.engine.Allocate(fx.admin, testAsset, "aave", usdc(400)))

	stats, err := fx.engine.Stats()
	require.NoError(t, err)
	require.Zero(t, stats.TotalSupply.Cmp(tokensOf(1000)))
	require.Len(t, stats.Collateral, 1)
	require.Equal(t, testAsset, stats.Collateral[0].Asset)
	require.Zero(t, stats.Collateral[0].InVault.Cmp(usdc(600)))
	require.Zero(t, stats.Collateral[0].InVenues.Cmp(usdc(400)))
}
