package token

import (
	"math/big"
	"sync"

	"stablenet/core/events"
	"stablenet/crypto"
	"stablenet/native/common"
)

// Ledger owns account balances, the total and non-rebasing supplies and the
// global exchange rate. All operations validate fully before the first write,
// so a failed operation leaves no observable state change.
type Ledger struct {
	mu sync.Mutex

	store   *Store
	emitter events.Emitter

	engineAddr crypto.Address
	adminAddr  crypto.Address

	// Addresses flagged as programmatic holders are lazily migrated to
	// non-rebasing mode when their ledger entry is first created.
	nonRebasingDefaults map[[20]byte]bool
}

// NewLedger constructs a ledger bound to the supplied store.
func NewLedger(store *Store) *Ledger {
	return &Ledger{
		store:               store,
		emitter:             events.NoopEmitter{},
		nonRebasingDefaults: make(map[[20]byte]bool),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetSettlementEngine designates the only caller allowed to mint, burn and
// rebase.
func (l *Ledger) SetSettlementEngine(addr crypto.Address) {
	if l == nil {
		return
	}
	l.engineAddr = addr
}

// SetAdmin designates the administrator allowed to pause the ledger and to
// opt arbitrary accounts in or out of rebasing.
func (l *Ledger) SetAdmin(addr crypto.Address) {
	if l == nil {
		return
	}
	l.adminAddr = addr
}

// SetNonRebasingDefaults registers programmatic holder addresses whose
// accounts start in non-rebasing mode on first credit.
func (l *Ledger) SetNonRebasingDefaults(addrs []crypto.Address) {
	if l == nil {
		return
	}
	defaults := make(map[[20]byte]bool, len(addrs))
	for _, addr := range addrs {
		if addr.IsZero() {
			continue
		}
		defaults[addr.Fixed()] = true
	}
	l.nonRebasingDefaults = defaults
}

func (l *Ledger) emit(evt events.Event) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(evt)
}

// loadOrCreate returns the ledger entry for addr, creating a fresh entry with
// the configured default mode when none exists.
func (l *Ledger) loadOrCreate(addr [20]byte) (*Account, error) {
	account, ok, err := l.store.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if ok {
		return account, nil
	}
	account = &Account{Credits: big.NewInt(0), Mode: ModeRebasing}
	if l.nonRebasingDefaults[addr] {
		account.Mode = ModeNonRebasing
		account.FixedExchangeRate = big.NewInt(1)
	}
	return account, nil
}

func balanceOf(account *Account, state *LedgerState) *big.Int {
	if account == nil || account.Credits == nil || account.Credits.Sign() == 0 {
		return big.NewInt(0)
	}
	if account.Mode == ModeNonRebasing {
		return common.CloneBig(account.Credits)
	}
	return common.ScaleDiv(account.Credits, state.GlobalExchangeRate, common.RoundDown)
}

// BalanceOf reports the externally visible balance of an account.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilStore
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.store.GetState()
	if err != nil {
		return nil, err
	}
	account, ok, err := l.store.GetAccount(addr.Fixed())
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balanceOf(account, state), nil
}

// TotalSupply reports the ledger's total token supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	state, err := l.snapshotState()
	if err != nil {
		return nil, err
	}
	return state.TotalSupply, nil
}

// NonRebasingSupply reports the supply held by non-rebasing accounts.
func (l *Ledger) NonRebasingSupply() (*big.Int, error) {
	state, err := l.snapshotState()
	if err != nil {
		return nil, err
	}
	return state.NonRebasingSupply, nil
}

// GlobalExchangeRate reports the current rebasing credits-per-token rate.
func (l *Ledger) GlobalExchangeRate() (*big.Int, error) {
	state, err := l.snapshotState()
	if err != nil {
		return nil, err
	}
	return state.GlobalExchangeRate, nil
}

// Paused reports whether balance-mutating operations are currently halted.
func (l *Ledger) Paused() (bool, error) {
	state, err := l.snapshotState()
	if err != nil {
		return false, err
	}
	return state.Paused, nil
}

func (l *Ledger) snapshotState() (*LedgerState, error) {
	if l == nil || l.store == nil {
		return nil, errNilStore
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.GetState()
}

// Allowance reports the remaining (owner, spender) allowance.
func (l *Ledger) Allowance(owner, spender crypto.Address) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilStore
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.GetAllowance(owner.Fixed(), spender.Fixed())
}

// Mint credits account with amount, increasing total supply. Only the
// settlement engine may call it.
func (l *Ledger) Mint(caller, account crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if !caller.Equal(l.engineAddr) {
		return ErrNotSettlementEngine
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if account.IsZero() {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.GetState()
	if err != nil {
		return err
	}
	if state.Paused {
		return ErrPaused
	}
	newTotal := new(big.Int).Add(state.TotalSupply, amount)
	if newTotal.Cmp(common.MaxSupply) > 0 {
		return ErrSupplyCap
	}
	entry, err := l.loadOrCreate(account.Fixed())
	if err != nil {
		return err
	}
	if entry.Mode == ModeNonRebasing {
		entry.Credits = new(big.Int).Add(entry.Credits, amount)
		state.NonRebasingSupply = new(big.Int).Add(state.NonRebasingSupply, amount)
	} else {
		credits := common.ScaleMul(amount, state.GlobalExchangeRate, common.RoundDown)
		entry.Credits = new(big.Int).Add(entry.Credits, credits)
	}
	state.TotalSupply = newTotal

	if err := l.store.PutAccount(account.Fixed(), entry); err != nil {
		return err
	}
	if err := l.store.PutState(state); err != nil {
		return err
	}
	l.emit(events.TokenTransfer{From: crypto.ZeroAddress.Fixed(), To: account.Fixed(), Amount: common.CloneBig(amount)})
	return nil
}

// Burn debits account by amount, decreasing total supply. A zero amount is a
// documented no-op. Only the settlement engine may call it.
func (l *Ledger) Burn(caller, account crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if !caller.Equal(l.engineAddr) {
		return ErrNotSettlementEngine
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.GetState()
	if err != nil {
		return err
	}
	if state.Paused {
		return ErrPaused
	}
	if amount.Sign() == 0 {
		return nil
	}
	entry, ok, err := l.store.GetAccount(account.Fixed())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientBalance
	}
	if err := debit(entry, state, amount); err != nil {
		return err
	}
	state.TotalSupply = new(big.Int).Sub(state.TotalSupply, amount)
	if entry.Mode == ModeNonRebasing {
		state.NonRebasingSupply = new(big.Int).Sub(state.NonRebasingSupply, amount)
	}
	if err := l.store.PutAccount(account.Fixed(), entry); err != nil {
		return err
	}
	if err := l.store.PutState(state); err != nil {
		return err
	}
	l.emit(events.TokenTransfer{From: account.Fixed(), To: crypto.ZeroAddress.Fixed(), Amount: common.CloneBig(amount)})
	return nil
}

// debit removes amount from the entry's credit balance. Rebasing debit legs
// truncate; burning the entire balance zeroes the credits so truncation dust
// cannot strand supply.
func debit(entry *Account, state *LedgerState, amount *big.Int) error {
	balance := balanceOf(entry, state)
	if amount.Cmp(balance) > 0 {
		return ErrInsufficientBalance
	}
	if entry.Mode == ModeNonRebasing {
		entry.Credits = new(big.Int).Sub(entry.Credits, amount)
		return nil
	}
	if amount.Cmp(balance) == 0 {
		entry.Credits = big.NewInt(0)
		return nil
	}
	credits := common.ScaleMul(amount, state.GlobalExchangeRate, common.RoundDown)
	if credits.Cmp(entry.Credits) > 0 {
		credits = common.CloneBig(entry.Credits)
	}
	entry.Credits = new(big.Int).Sub(entry.Credits, credits)
	return nil
}

// credit adds amount to the entry's credit balance. Rebasing credit legs
// round up so rounding never favours the sender.
func credit(entry *Account, state *LedgerState, amount *big.Int) {
	if entry.Mode == ModeNonRebasing {
		entry.Credits = new(big.Int).Add(entry.Credits, amount)
		return
	}
	credits := common.ScaleMul(amount, state.GlobalExchangeRate, common.RoundUp)
	entry.Credits = new(big.Int).Add(entry.Credits, credits)
}

// Transfer moves amount from the caller's account to the target account.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.executeTransfer(from, to, amount)
}

// TransferFrom moves amount from the owner's account using the spender's
// allowance, which is decremented by the transferred amount.
func (l *Ledger) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance, err := l.store.GetAllowance(from.Fixed(), spender.Fixed())
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.executeTransfer(from, to, amount); err != nil {
		return err
	}
	remaining := new(big.Int).Sub(allowance, amount)
	return l.store.PutAllowance(from.Fixed(), spender.Fixed(), remaining)
}

func (l *Ledger) executeTransfer(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	state, err := l.store.GetState()
	if err != nil {
		return err
	}
	if state.Paused {
		return ErrPaused
	}
	fromEntry, err := l.loadOrCreate(from.Fixed())
	if err != nil {
		return err
	}
	toEntry, err := l.loadOrCreate(to.Fixed())
	if err != nil {
		return err
	}
	if from.Fixed() == to.Fixed() {
		toEntry = fromEntry
	}
	if err := debit(fromEntry, state, amount); err != nil {
		return err
	}
	if from.Fixed() != to.Fixed() {
		credit(toEntry, state, amount)
	} else {
		credit(fromEntry, state, amount)
	}

	// Moving value across the mode boundary shifts the non-rebasing bucket by
	// the transferred amount; same-mode legs touch credits only.
	if fromEntry.Mode != toEntry.Mode {
		if toEntry.Mode == ModeNonRebasing {
			state.NonRebasingSupply = new(big.Int).Add(state.NonRebasingSupply, amount)
		} else {
			state.NonRebasingSupply = new(big.Int).Sub(state.NonRebasingSupply, amount)
		}
	}

	if err := l.store.PutAccount(from.Fixed(), fromEntry); err != nil {
		return err
	}
	if from.Fixed() != to.Fixed() {
		if err := l.store.PutAccount(to.Fixed(), toEntry); err != nil {
			return err
		}
	}
	if err := l.store.PutState(state); err != nil {
		return err
	}
	l.emit(events.TokenTransfer{From: from.Fixed(), To: to.Fixed(), Amount: common.CloneBig(amount)})
	return nil
}

// Approve sets the (owner, spender) allowance to amount.
func (l *Ledger) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender.IsZero() {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.PutAllowance(owner.Fixed(), spender.Fixed(), amount); err != nil {
		return err
	}
	l.emit(events.TokenApproval{Owner: owner.Fixed(), Spender: spender.Fixed(), Amount: common.CloneBig(amount)})
	return nil
}

// RebaseOptIn converts a non-rebasing account back to rebasing mode at the
// current exchange rate. The account itself or the administrator may call it.
func (l *Ledger) RebaseOptIn(caller, account crypto.Address) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if !caller.Equal(account) && !caller.Equal(l.adminAddr) {
		return ErrNotAuthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.GetState()
	if err != nil {
		return err
	}
	entry, err := l.loadOrCreate(account.Fixed())
	if err != nil {
		return err
	}
	if entry.Mode == ModeRebasing {
		return ErrAlreadyRebasing
	}
	balance := balanceOf(entry, state)
	entry.Mode = ModeRebasing
	entry.FixedExchangeRate = nil
	entry.Credits = common.ScaleMul(balance, state.GlobalExchangeRate, common.RoundDown)
	state.NonRebasingSupply = new(big.Int).Sub(state.NonRebasingSupply, balance)

	if err := l.store.PutAccount(account.Fixed(), entry); err != nil {
		return err
	}
	return l.store.PutState(state)
}

// RebaseOptOut freezes an account's balance against future rebases. The
// computed balance is stored verbatim as the credit balance at a unit rate.
func (l *Ledger) RebaseOptOut(caller, account crypto.Address) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if !caller.Equal(account) && !caller.Equal(l.adminAddr) {
		return ErrNotAuthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.GetState()
	if err != nil {
		return err
	}
	entry, err := l.loadOrCreate(account.Fixed())
	if err != nil {
		return err
	}
	if entry.Mode == ModeNonRebasing {
		return ErrAlreadyNonRebasing
	}
	balance := balanceOf(entry, state)
	entry.Mode = ModeNonRebasing
	entry.FixedExchangeRate = big.NewInt(1)
	entry.Credits = balance
	state.NonRebasingSupply = new(big.Int).Add(state.NonRebasingSupply, balance)

	if err := l.store.PutAccount(account.Fixed(), entry); err != nil {
		return err
	}
	return l.store.PutState(state)
}

// Rebase burns amount from the settlement engine's own balance and
// redistributes it pro-rata across every rebasing account by lowering the
// global exchange rate. Stored credit balances never change; computed
// balances rise.
func (l *Ledger) Rebase(caller crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if !caller.Equal(l.engineAddr) {
		return ErrNotSettlementEngine
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.GetState()
	if err != nil {
		return err
	}
	previousTotal := common.CloneBig(state.TotalSupply)

	entry, err := l.loadOrCreate(caller.Fixed())
	if err != nil {
		return err
	}
	if err := debit(entry, state, amount); err != nil {
		return err
	}
	burnedTotal := new(big.Int).Sub(state.TotalSupply, amount)
	if entry.Mode == ModeNonRebasing {
		state.NonRebasingSupply = new(big.Int).Sub(state.NonRebasingSupply, amount)
	}
	if burnedTotal.Sign() == 0 {
		return ErrSupplyZero
	}

	if burnedTotal.Cmp(previousTotal) == 0 {
		l.emit(events.TokenSupplyUpdate{
			TotalSupply:        common.CloneBig(state.TotalSupply),
			RebasingCredits:    state.RebasingCredits(),
			GlobalExchangeRate: common.CloneBig(state.GlobalExchangeRate),
		})
		return nil
	}

	rebasingPrincipal := new(big.Int).Sub(burnedTotal, state.NonRebasingSupply)
	rebasingCredits := common.ScaleMul(rebasingPrincipal, state.GlobalExchangeRate, common.RoundDown)

	restored := common.MinBig(previousTotal, common.MaxSupply)
	denominator := new(big.Int).Sub(restored, state.NonRebasingSupply)
	if denominator.Sign() <= 0 {
		return ErrExchangeRateZero
	}
	// The rate rounds up so the truncating divisions in balanceOf can never
	// sum past the restored supply.
	newRate := common.ScaleDiv(rebasingCredits, denominator, common.RoundUp)
	if newRate.Sign() == 0 {
		return ErrExchangeRateZero
	}

	state.TotalSupply = restored
	state.GlobalExchangeRate = newRate

	if err := l.store.PutAccount(caller.Fixed(), entry); err != nil {
		return err
	}
	if err := l.store.PutState(state); err != nil {
		return err
	}
	l.emit(events.TokenSupplyUpdate{
		TotalSupply:        common.CloneBig(state.TotalSupply),
		RebasingCredits:    rebasingCredits,
		GlobalExchangeRate: common.CloneBig(state.GlobalExchangeRate),
	})
	return nil
}

// SetPaused halts or resumes every balance-mutating operation. Only the
// administrator may call it.
func (l *Ledger) SetPaused(caller crypto.Address, paused bool) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if !caller.Equal(l.adminAddr) {
		return ErrNotAuthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.GetState()
	if err != nil {
		return err
	}
	state.Paused = paused
	return l.store.PutState(state)
}
