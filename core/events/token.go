package events

import (
	"math/big"

	"stablenet/core/types"
	"stablenet/crypto"
)

const (
	// TypeTokenTransfer is emitted for every balance movement, including the
	// null-identity legs produced by mint and burn.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when an owner grants or adjusts a spender
	// allowance.
	TypeTokenApproval = "token.approval"
	// TypeTokenSupplyUpdate is emitted whenever a rebase recomputes the global
	// exchange rate, including the zero-amount no-op case.
	TypeTokenSupplyUpdate = "token.supply_update"
)

// TokenTransfer captures a single transfer leg between two accounts.
type TokenTransfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

// Event renders the canonical transfer payload.
func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"from":   crypto.NewAddress(e.From[:]).String(),
			"to":     crypto.NewAddress(e.To[:]).String(),
			"amount": formatAmount(e.Amount),
		},
	}
}

// TokenApproval captures an allowance update by an account owner.
type TokenApproval struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (TokenApproval) EventType() string { return TypeTokenApproval }

// Event renders the canonical approval payload.
func (e TokenApproval) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"owner":   crypto.NewAddress(e.Owner[:]).String(),
			"spender": crypto.NewAddress(e.Spender[:]).String(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// TokenSupplyUpdate captures the post-rebase supply figures.
type TokenSupplyUpdate struct {
	TotalSupply        *big.Int
	RebasingCredits    *big.Int
	GlobalExchangeRate *big.Int
}

func (TokenSupplyUpdate) EventType() string { return TypeTokenSupplyUpdate }

// Event renders the canonical supply update payload.
func (e TokenSupplyUpdate) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenSupplyUpdate,
		Attributes: map[string]string{
			"totalSupply":        formatAmount(e.TotalSupply),
			"rebasingCredits":    formatAmount(e.RebasingCredits),
			"globalExchangeRate": formatAmount(e.GlobalExchangeRate),
		},
	}
}
