package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VaultMetrics struct {
	mints       *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	mintVolume  *prometheus.CounterVec
	burnVolume  *prometheus.CounterVec
	fees        *prometheus.CounterVec
	allocations *prometheus.CounterVec
	rebases     prometheus.Counter
	lastRebase  prometheus.Gauge
	totalSupply prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			mints: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_mints_total",
				Help: "Count of completed mint settlements by collateral.",
			}, []string{"collateral"}),
			redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_redemptions_total",
				Help: "Count of completed redemption settlements by collateral.",
			}, []string{"collateral"}),
			mintVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_mint_volume_tokens",
				Help: "Net token amount minted by collateral, in whole tokens.",
			}, []string{"collateral"}),
			burnVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_burn_volume_tokens",
				Help: "Net token amount burned by collateral, in whole tokens.",
			}, []string{"collateral"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_fees_tokens",
				Help: "Fees collected by collateral and direction, in whole tokens.",
			}, []string{"collateral", "direction"}),
			allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_allocations_total",
				Help: "Count of collateral allocations by venue.",
			}, []string{"collateral", "venue"}),
			rebases: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_rebases_total",
				Help: "Count of rebase cycles that released a nonzero amount.",
			}),
			lastRebase: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_last_rebase_tokens",
				Help: "Amount redistributed by the most recent rebase, in whole tokens.",
			}),
			totalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "token_total_supply_tokens",
				Help: "Ledger total supply, in whole tokens.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.mints,
			vaultRegistry.redemptions,
			vaultRegistry.mintVolume,
			vaultRegistry.burnVolume,
			vaultRegistry.fees,
			vaultRegistry.allocations,
			vaultRegistry.rebases,
			vaultRegistry.lastRebase,
			vaultRegistry.totalSupply,
		)
	})
	return vaultRegistry
}

// tokens converts an 18-decimal base amount to whole tokens. Metrics tolerate
// the precision loss.
func tokens(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	value, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount),
		big.NewFloat(1e18),
	).Float64()
	return value
}

func (m *VaultMetrics) ObserveMint(collateral string, net, fee *big.Int) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(collateral).Inc()
	m.mintVolume.WithLabelValues(collateral).Add(tokens(net))
	m.fees.WithLabelValues(collateral, "in").Add(tokens(fee))
}

func (m *VaultMetrics) ObserveRedeem(collateral string, netBurn, fee *big.Int) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(collateral).Inc()
	m.burnVolume.WithLabelValues(collateral).Add(tokens(netBurn))
	m.fees.WithLabelValues(collateral, "out").Add(tokens(fee))
}

func (m *VaultMetrics) ObserveAllocation(collateral, venue string) {
	if m == nil {
		return
	}
	if venue == "" {
		venue = "unknown"
	}
	m.allocations.WithLabelValues(collateral, venue).Inc()
}

func (m *VaultMetrics) ObserveRebase(amount *big.Int) {
	if m == nil {
		return
	}
	m.rebases.Inc()
	m.lastRebase.Set(tokens(amount))
}

func (m *VaultMetrics) SetTotalSupply(amount *big.Int) {
	if m == nil {
		return
	}
	m.totalSupply.Set(tokens(amount))
}
