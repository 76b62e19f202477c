package vault

import "errors"

var (
	// ErrDeadlineElapsed rejects mint/redeem requests submitted past their
	// caller-supplied deadline.
	ErrDeadlineElapsed = errors.New("vault: deadline elapsed")
	// ErrInvalidAmount rejects nil or non-positive request amounts.
	ErrInvalidAmount = errors.New("vault: amount must be positive")
	// ErrMintFailed indicates the mint quote came back zero (collateral
	// disabled or trading below its downside peg).
	ErrMintFailed = errors.New("vault: mint failed")
	// ErrSlippage indicates the quoted result fell below the caller-declared
	// minimum.
	ErrSlippage = errors.New("vault: slippage")
	// ErrRedeemDisabled indicates redemption is switched off for the
	// collateral.
	ErrRedeemDisabled = errors.New("vault: redemption disabled")
	// ErrNoVenue indicates a shortfall exists but neither the caller nor the
	// collateral policy names a yield venue.
	ErrNoVenue = errors.New("vault: no yield venue configured")
	// ErrInvalidVenue indicates the caller-specified venue is not mapped to
	// the collateral.
	ErrInvalidVenue = errors.New("vault: venue not valid for collateral")
	// ErrUnknownVenue indicates the resolved venue identifier has no
	// registered adapter.
	ErrUnknownVenue = errors.New("vault: venue not registered")
	// ErrInsufficientLiquidity indicates the vault and the resolved venue
	// together cannot cover the requested collateral.
	ErrInsufficientLiquidity = errors.New("vault: insufficient liquidity")
	// ErrInsufficientHoldings indicates an allocation exceeds vault-held
	// collateral.
	ErrInsufficientHoldings = errors.New("vault: insufficient vault holdings")
	// ErrAllocationNotPermitted indicates the registry's allocation-cap check
	// rejected the requested amount.
	ErrAllocationNotPermitted = errors.New("vault: allocation not permitted")
	// ErrNotAuthorized guards administrative entry points.
	ErrNotAuthorized = errors.New("vault: caller not authorized")

	errNilLedger    = errors.New("vault: ledger not configured")
	errNilOracle    = errors.New("vault: price oracle not configured")
	errNilRegistry  = errors.New("vault: collateral registry not configured")
	errNilFees      = errors.New("vault: fee calculator not configured")
	errNilCustody   = errors.New("vault: custody not configured")
	errNilScheduler = errors.New("vault: rebase scheduler not configured")
	errNilStorage   = errors.New("vault: storage not configured")
)
