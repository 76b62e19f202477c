package token

import (
	"fmt"
	"math/big"
	"strings"

	"stablenet/native/common"
)

// Storage abstracts the subset of key-value functionality required by the
// ledger store.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	accountPrefix   = []byte("token/account/")
	accountIndexKey = []byte("token/account/index")
	allowancePrefix = []byte("token/allowance/")
	ledgerStateKey  = []byte("token/state")
)

type storedAccount struct {
	Credits           string
	Mode              uint8
	FixedExchangeRate string
}

type storedLedgerState struct {
	TotalSupply        string
	NonRebasingSupply  string
	GlobalExchangeRate string
	Paused             bool
}

// Store persists accounts, allowances and the global ledger state in the
// underlying key-value store.
type Store struct {
	kv Storage
}

// NewStore constructs a ledger store bound to the supplied storage backend.
func NewStore(kv Storage) *Store {
	return &Store{kv: kv}
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}

func allowanceKey(owner, spender [20]byte) []byte {
	buf := make([]byte, len(allowancePrefix)+len(owner)+len(spender))
	copy(buf, allowancePrefix)
	copy(buf[len(allowancePrefix):], owner[:])
	copy(buf[len(allowancePrefix)+len(owner):], spender[:])
	return buf
}

// GetAccount retrieves the account entry for the supplied address.
func (s *Store) GetAccount(addr [20]byte) (*Account, bool, error) {
	if s == nil || s.kv == nil {
		return nil, false, errNilStore
	}
	var stored storedAccount
	ok, err := s.kv.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	account, err := fromStoredAccount(&stored)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// PutAccount persists the account entry, registering the address in the
// account index on first write.
func (s *Store) PutAccount(addr [20]byte, account *Account) error {
	if s == nil || s.kv == nil {
		return errNilStore
	}
	if account == nil {
		return fmt.Errorf("token store: account must not be nil")
	}
	key := accountKey(addr)
	var existing storedAccount
	known, err := s.kv.KVGet(key, &existing)
	if err != nil {
		return err
	}
	if err := s.kv.KVPut(key, toStoredAccount(account)); err != nil {
		return err
	}
	if !known {
		return s.kv.KVAppend(accountIndexKey, addr[:])
	}
	return nil
}

// Accounts returns every address that has ever held a ledger entry.
func (s *Store) Accounts() ([][20]byte, error) {
	if s == nil || s.kv == nil {
		return nil, errNilStore
	}
	var raw [][]byte
	if err := s.kv.KVGetList(accountIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	seen := make(map[[20]byte]struct{}, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], entry)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

// GetState loads the global ledger state, initialising a fresh state with a
// unit exchange rate when none has been persisted yet.
func (s *Store) GetState() (*LedgerState, error) {
	if s == nil || s.kv == nil {
		return nil, errNilStore
	}
	var stored storedLedgerState
	ok, err := s.kv.KVGet(ledgerStateKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &LedgerState{
			TotalSupply:        big.NewInt(0),
			NonRebasingSupply:  big.NewInt(0),
			GlobalExchangeRate: new(big.Int).Set(common.BasePrecision),
		}, nil
	}
	return fromStoredState(&stored)
}

// PutState persists the global ledger state.
func (s *Store) PutState(state *LedgerState) error {
	if s == nil || s.kv == nil {
		return errNilStore
	}
	if state == nil {
		return fmt.Errorf("token store: state must not be nil")
	}
	return s.kv.KVPut(ledgerStateKey, toStoredState(state))
}

// GetAllowance retrieves the (owner, spender) allowance; absent entries read
// as zero.
func (s *Store) GetAllowance(owner, spender [20]byte) (*big.Int, error) {
	if s == nil || s.kv == nil {
		return nil, errNilStore
	}
	var stored string
	ok, err := s.kv.KVGet(allowanceKey(owner, spender), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(stored)
}

// PutAllowance persists the (owner, spender) allowance.
func (s *Store) PutAllowance(owner, spender [20]byte, amount *big.Int) error {
	if s == nil || s.kv == nil {
		return errNilStore
	}
	return s.kv.KVPut(allowanceKey(owner, spender), common.CloneBig(amount).String())
}

func toStoredAccount(account *Account) storedAccount {
	stored := storedAccount{Mode: uint8(account.Mode)}
	stored.Credits = common.CloneBig(account.Credits).String()
	if account.FixedExchangeRate != nil {
		stored.FixedExchangeRate = account.FixedExchangeRate.String()
	}
	return stored
}

func fromStoredAccount(stored *storedAccount) (*Account, error) {
	credits, err := parseAmount(stored.Credits)
	if err != nil {
		return nil, fmt.Errorf("token store: invalid credits: %w", err)
	}
	account := &Account{Credits: credits, Mode: Mode(stored.Mode)}
	if strings.TrimSpace(stored.FixedExchangeRate) != "" {
		rate, err := parseAmount(stored.FixedExchangeRate)
		if err != nil {
			return nil, fmt.Errorf("token store: invalid fixed rate: %w", err)
		}
		account.FixedExchangeRate = rate
	}
	return account, nil
}

func toStoredState(state *LedgerState) storedLedgerState {
	return storedLedgerState{
		TotalSupply:        common.CloneBig(state.TotalSupply).String(),
		NonRebasingSupply:  common.CloneBig(state.NonRebasingSupply).String(),
		GlobalExchangeRate: common.CloneBig(state.GlobalExchangeRate).String(),
		Paused:             state.Paused,
	}
}

func fromStoredState(stored *storedLedgerState) (*LedgerState, error) {
	total, err := parseAmount(stored.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("token store: invalid total supply: %w", err)
	}
	nonRebasing, err := parseAmount(stored.NonRebasingSupply)
	if err != nil {
		return nil, fmt.Errorf("token store: invalid non-rebasing supply: %w", err)
	}
	rate, err := parseAmount(stored.GlobalExchangeRate)
	if err != nil {
		return nil, fmt.Errorf("token store: invalid exchange rate: %w", err)
	}
	return &LedgerState{
		TotalSupply:        total,
		NonRebasingSupply:  nonRebasing,
		GlobalExchangeRate: rate,
		Paused:             stored.Paused,
	}, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
