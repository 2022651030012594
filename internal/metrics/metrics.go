package metrics

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kelsos/weave-sweep/internal/models"
)

const namespace = "weave_sweep"

// MetricManager owns the run metrics and their private registry
type MetricManager struct {
	registry *prometheus.Registry

	Outcomes    *prometheus.CounterVec
	SweptAmount *prometheus.GaugeVec
	Balance     *prometheus.GaugeVec
}

func NewMetricManager() *MetricManager {
	m := &MetricManager{
		registry: prometheus.NewRegistry(),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Per-address results of consolidation runs",
		}, []string{"chain", "outcome"}),
		SweptAmount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "swept_amount",
			Help:      "Base units returned to the gas station",
		}, []string{"chain", "denom"}),
		Balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_balance",
			Help:      "Last observed balance in base units",
		}, []string{"chain", "name", "address", "denom"}),
	}
	m.registry.MustRegister(m.Outcomes, m.SweptAmount, m.Balance)
	return m
}

// ObserveEntry records one report line
func (m *MetricManager) ObserveEntry(e models.ReportEntry) {
	m.Outcomes.WithLabelValues(string(e.Family), string(e.Outcome)).Inc()
	if e.Outcome != models.OutcomeSwept {
		return
	}
	if amount, ok := sdkmath.NewIntFromString(e.Amount); ok {
		m.SweptAmount.WithLabelValues(string(e.Family), e.Denom).Add(toFloat(amount))
	}
}

// ObserveBalance records the latest balance of an account
func (m *MetricManager) ObserveBalance(name, address string, b models.StandardizedBalance) {
	m.Balance.WithLabelValues(string(b.Network), name, address, b.OriginalDenom).Set(toFloat(b.Amount))
}

// WriteTextfile writes all metrics in the node_exporter textfile format
func (m *MetricManager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func toFloat(amount sdkmath.Int) float64 {
	if amount.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	return f
}
