package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stablenet/core/events"
	"stablenet/native/token"
	"stablenet/native/vault"
)

// Server exposes the read surface of the ledger and the vault over HTTP,
// alongside the Prometheus scrape endpoint.
type Server struct {
	ledger    *token.Ledger
	engine    *vault.Engine
	collector *events.Collector
	logger    *slog.Logger
}

// NewServer constructs the HTTP server facade. The collector may be nil, in
// which case the events endpoint serves an empty tail.
func NewServer(ledger *token.Ledger, engine *vault.Engine, collector *events.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:    ledger,
		engine:    engine,
		collector: collector,
		logger:    logger,
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/token/supply", s.getSupply)
		v1.Get("/token/balance/{address}", s.getBalance)
		v1.Get("/token/allowance/{owner}/{spender}", s.getAllowance)
		v1.Get("/vault/stats", s.getVaultStats)
		v1.Get("/vault/quote/mint", s.getMintQuote)
		v1.Get("/vault/quote/redeem", s.getRedeemQuote)
		v1.Post("/vault/rebase", s.postRebase)
		v1.Get("/events", s.getEvents)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeInternalError(w http.ResponseWriter, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"internal error"}`))
}

func (s *Server) internalError(w http.ResponseWriter, context string, err error) {
	s.logger.Error(context, "err", err)
	writeInternalError(w, err)
}

var errLedgerUnavailable = errors.New("ledger unavailable")
