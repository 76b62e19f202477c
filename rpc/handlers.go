package rpc

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"stablenet/core/types"
	"stablenet/crypto"
	"stablenet/native/common"
	"stablenet/native/vault"
)

type supplyResponse struct {
	TotalSupply        string `json:"totalSupply"`
	NonRebasingSupply  string `json:"nonRebasingSupply"`
	RebasingCredits    string `json:"rebasingCredits"`
	GlobalExchangeRate string `json:"globalExchangeRate"`
	Paused             bool   `json:"paused"`
}

func (s *Server) getSupply(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.internalError(w, "token_supply", errLedgerUnavailable)
		return
	}
	total, err := s.ledger.TotalSupply()
	if err != nil {
		s.internalError(w, "token_supply", err)
		return
	}
	nonRebasing, err := s.ledger.NonRebasingSupply()
	if err != nil {
		s.internalError(w, "token_supply", err)
		return
	}
	rate, err := s.ledger.GlobalExchangeRate()
	if err != nil {
		s.internalError(w, "token_supply", err)
		return
	}
	paused, err := s.ledger.Paused()
	if err != nil {
		s.internalError(w, "token_supply", err)
		return
	}
	rebasing := new(big.Int).Sub(total, nonRebasing)
	credits := common.ScaleMul(rebasing, rate, common.RoundDown)
	writeJSON(w, http.StatusOK, supplyResponse{
		TotalSupply:        total.String(),
		NonRebasingSupply:  nonRebasing.String(),
		RebasingCredits:    credits.String(),
		GlobalExchangeRate: rate.String(),
		Paused:             paused,
	})
}

func parseAddressParam(r *http.Request, name string) (crypto.Address, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return crypto.Address{}, errors.New(name + " is required")
	}
	return crypto.DecodeAddress(raw)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddressParam(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	balance, err := s.ledger.BalanceOf(addr)
	if err != nil {
		s.internalError(w, "token_balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.String(),
		"balance": balance.String(),
	})
}

func (s *Server) getAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddressParam(r, "owner")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	spender, err := parseAddressParam(r, "spender")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	allowance, err := s.ledger.Allowance(owner, spender)
	if err != nil {
		s.internalError(w, "token_allowance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":     owner.String(),
		"spender":   spender.String(),
		"allowance": allowance.String(),
	})
}

type collateralStatResponse struct {
	Asset    string `json:"asset"`
	InVault  string `json:"inVault"`
	InVenues string `json:"inVenues"`
}

type vaultStatsResponse struct {
	TotalSupply string                   `json:"totalSupply"`
	Collateral  []collateralStatResponse `json:"collateral"`
}

func (s *Server) getVaultStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats()
	if err != nil {
		s.internalError(w, "vault_stats", err)
		return
	}
	resp := vaultStatsResponse{
		TotalSupply: stats.TotalSupply.String(),
		Collateral:  make([]collateralStatResponse, 0, len(stats.Collateral)),
	}
	for _, entry := range stats.Collateral {
		resp.Collateral = append(resp.Collateral, collateralStatResponse{
			Asset:    entry.Asset,
			InVault:  entry.InVault.String(),
			InVenues: entry.InVenues.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseQuoteQuery(r *http.Request) (crypto.Address, string, *big.Int, error) {
	query := r.URL.Query()
	asset := strings.TrimSpace(query.Get("collateral"))
	if asset == "" {
		return crypto.Address{}, "", nil, errors.New("collateral is required")
	}
	rawAmount := strings.TrimSpace(query.Get("amount"))
	amount, ok := new(big.Int).SetString(rawAmount, 10)
	if !ok || amount.Sign() < 0 {
		return crypto.Address{}, "", nil, errors.New("amount must be a non-negative integer")
	}
	var caller crypto.Address
	if raw := strings.TrimSpace(query.Get("caller")); raw != "" {
		decoded, err := crypto.DecodeAddress(raw)
		if err != nil {
			return crypto.Address{}, "", nil, err
		}
		caller = decoded
	}
	return caller, asset, amount, nil
}

func (s *Server) getMintQuote(w http.ResponseWriter, r *http.Request) {
	caller, asset, amount, err := parseQuoteQuery(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	net, fee, err := s.engine.QuoteMint(caller, asset, amount)
	if err != nil {
		if errors.Is(err, vault.ErrUnknownCollateral) {
			writeJSONError(w, http.StatusNotFound, err)
			return
		}
		s.internalError(w, "vault_quote_mint", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"collateral": asset,
		"netAmount":  net.String(),
		"feeAmount":  fee.String(),
	})
}

func (s *Server) getRedeemQuote(w http.ResponseWriter, r *http.Request) {
	caller, asset, amount, err := parseQuoteQuery(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	venueID := strings.TrimSpace(r.URL.Query().Get("venue"))
	quote, err := s.engine.QuoteRedeem(caller, asset, amount, venueID)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrUnknownCollateral):
			writeJSONError(w, http.StatusNotFound, err)
		case errors.Is(err, vault.ErrInvalidAmount),
			errors.Is(err, vault.ErrRedeemDisabled),
			errors.Is(err, vault.ErrNoVenue),
			errors.Is(err, vault.ErrInvalidVenue),
			errors.Is(err, vault.ErrUnknownVenue),
			errors.Is(err, vault.ErrInsufficientLiquidity):
			writeJSONError(w, http.StatusUnprocessableEntity, err)
		default:
			s.internalError(w, "vault_quote_redeem", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"collateral":    asset,
		"collateralOut": quote.CollateralOut.String(),
		"netBurn":       quote.NetBurn.String(),
		"feeAmount":     quote.FeeAmount.String(),
		"fromVault":     quote.FromVault.String(),
		"fromVenue":     quote.FromVenue.String(),
		"venue":         quote.VenueID,
	})
}

func (s *Server) postRebase(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Rebase(); err != nil {
		if errors.Is(err, common.ErrReentrantCall) {
			writeJSONError(w, http.StatusConflict, err)
			return
		}
		s.internalError(w, "vault_rebase", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	var buffered []*types.Event
	if s.collector != nil {
		buffered = s.collector.Events()
	}
	if limit > 0 && len(buffered) > limit {
		buffered = buffered[len(buffered)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": buffered})
}
