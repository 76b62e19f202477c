package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stablenet/config"
	"stablenet/core/events"
	"stablenet/native/rebase"
	"stablenet/native/token"
	"stablenet/native/vault"
	"stablenet/observability"
	"stablenet/observability/logging"
	"stablenet/rpc"
	"stablenet/storage"
)

const envVar = "STABLENET_ENV"

// eventCollectorLimit bounds the in-memory event tail served over RPC.
const eventCollectorLimit = 4096

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("stablenetd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	params, err := cfg.Parameters()
	if err != nil {
		logger.Error("Failed to resolve config parameters", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()
	kv := storage.NewKV(db)

	collector := events.NewCollector(eventCollectorLimit)
	emitter := observability.NewMetricsEmitter(collector)

	ledger := token.NewLedger(token.NewStore(kv))
	ledger.SetEmitter(emitter)
	ledger.SetSettlementEngine(params.Vault)
	ledger.SetAdmin(params.Admin)
	ledger.SetNonRebasingDefaults(params.ProgrammaticHolders)

	dripper, err := rebase.NewDripper(kv, ledger, params.DripHolding, params.Vault, params.DripDuration)
	if err != nil {
		logger.Error("Failed to configure dripper", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler, err := rebase.NewManager(kv, ledger, dripper, params.Vault, params.Vault,
		params.RebaseMinGap, params.RebaseAPRFloorBps, params.RebaseAPRCeilBps)
	if err != nil {
		logger.Error("Failed to configure rebase manager", slog.Any("error", err))
		os.Exit(1)
	}

	holdings := vault.NewHoldings(kv)
	venues := vault.NewVenueRegistry()
	registry := vault.NewStaticRegistry(venues, holdings)
	oracle := vault.NewStaticOracle(nil)
	custody := vault.NewMemoryBank()
	for asset, policy := range params.Policies {
		if err := registry.SetPolicy(asset, policy); err != nil {
			logger.Error("Failed to register collateral policy", slog.String("asset", asset), slog.Any("error", err))
			os.Exit(1)
		}
		if err := oracle.SetPrice(asset, params.Prices[asset]); err != nil {
			logger.Error("Failed to set collateral price", slog.String("asset", asset), slog.Any("error", err))
			os.Exit(1)
		}
		if policy.DefaultVenue != "" {
			venues.Register(asset, policy.DefaultVenue, vault.NewMemoryVenue(custody))
		}
	}

	engine := vault.NewEngine(ledger, oracle, registry, vault.NewFlatFeeCalculator(registry),
		custody, scheduler, venues, holdings, params.Vault)
	engine.SetEmitter(emitter)
	engine.SetAdmin(params.Admin)
	engine.SetFeeRecipient(params.FeeRecipient)
	engine.SetFeeExempt(params.FeeExempt)

	server := rpc.NewServer(ledger, engine, collector, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("RPC listening", slog.String("address", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("RPC shutdown failed", slog.Any("error", err))
	}
}
