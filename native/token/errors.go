package token

import "errors"

var (
	// ErrPaused gates every balance-mutating operation while the ledger is
	// paused.
	ErrPaused = errors.New("token: ledger paused")
	// ErrZeroAddress rejects the null identity as a mint or transfer target.
	ErrZeroAddress = errors.New("token: null identity")
	// ErrInvalidAmount rejects nil or negative amounts.
	ErrInvalidAmount = errors.New("token: invalid amount")
	// ErrSupplyCap rejects mints that would push total supply past 2^128-1.
	ErrSupplyCap = errors.New("token: supply cap exceeded")
	// ErrInsufficientBalance rejects debits beyond the computed balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance rejects authorized transfers beyond the
	// spender's allowance.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	// ErrNotSettlementEngine guards mint, burn and rebase.
	ErrNotSettlementEngine = errors.New("token: caller is not the settlement engine")
	// ErrNotAuthorized guards administrative operations and third-party
	// opt-in/opt-out requests.
	ErrNotAuthorized = errors.New("token: caller not authorized")
	// ErrAlreadyRebasing rejects an opt-in for an account already in
	// rebasing mode.
	ErrAlreadyRebasing = errors.New("token: account already rebasing")
	// ErrAlreadyNonRebasing rejects an opt-out for an account already in
	// non-rebasing mode.
	ErrAlreadyNonRebasing = errors.New("token: account already non-rebasing")
	// ErrSupplyZero rejects a rebase whose burn would zero total supply.
	ErrSupplyZero = errors.New("token: rebase would zero total supply")
	// ErrExchangeRateZero rejects a rebase that would drive the global
	// exchange rate to zero.
	ErrExchangeRateZero = errors.New("token: exchange rate would be zero")

	errNilStore = errors.New("token: store not configured")
)
