package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TippingMetrics tracks platform activity as it is applied on the ledger.
// Amounts are exported as floats; dashboards that need exact figures should
// read the indexer, not Prometheus.
type TippingMetrics struct {
	tips        prometheus.Counter
	tipValue    prometheus.Counter
	fees        prometheus.Counter
	retained    prometheus.Counter
	badges      *prometheus.CounterVec
	creators    prometheus.Gauge
	withdrawals prometheus.Counter
	paused      prometheus.Gauge
}

var (
	tippingOnce     sync.Once
	tippingRegistry *TippingMetrics
)

func Tipping() *TippingMetrics {
	tippingOnce.Do(func() {
		tippingRegistry = &TippingMetrics{
			tips: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_tips_total",
				Help: "Count of accepted tips.",
			}),
			tipValue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_tip_value_total",
				Help: "Gross value carried by accepted tips.",
			}),
			fees: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_fees_total",
				Help: "Platform fees taken from accepted tips.",
			}),
			retained: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_retained_split_total",
				Help: "Collaborator shares retained in the vault pending payout.",
			}),
			badges: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_badges_minted_total",
				Help: "Count of appreciation badges minted by tier.",
			}, []string{"tier"}),
			creators: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "tipping_creators",
				Help: "Number of registered creator profiles.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_fee_withdrawals_total",
				Help: "Count of admin fee withdrawals.",
			}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "tipping_paused",
				Help: "1 while the platform circuit breaker is engaged.",
			}),
		}
		prometheus.MustRegister(
			tippingRegistry.tips,
			tippingRegistry.tipValue,
			tippingRegistry.fees,
			tippingRegistry.retained,
			tippingRegistry.badges,
			tippingRegistry.creators,
			tippingRegistry.withdrawals,
			tippingRegistry.paused,
		)
	})
	return tippingRegistry
}

func (m *TippingMetrics) ObserveTip(amount, fee, retained *big.Int) {
	if m == nil {
		return
	}
	m.tips.Inc()
	m.tipValue.Add(bigToFloat(amount))
	m.fees.Add(bigToFloat(fee))
	if retained != nil && retained.Sign() > 0 {
		m.retained.Add(bigToFloat(retained))
	}
}

func (m *TippingMetrics) ObserveBadge(tier string) {
	if m == nil {
		return
	}
	if tier == "" {
		tier = "unknown"
	}
	m.badges.WithLabelValues(tier).Inc()
}

func (m *TippingMetrics) SetCreators(count uint64) {
	if m == nil {
		return
	}
	m.creators.Set(float64(count))
}

func (m *TippingMetrics) ObserveWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *TippingMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

func bigToFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	return value
}
