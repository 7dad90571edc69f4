package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared across services.
type Metrics struct {
	TradesSubmitted   *prometheus.CounterVec
	MatchesResolved   *prometheus.CounterVec
	PaymentsResolved  *prometheus.CounterVec
	EventsEmitted     *prometheus.CounterVec
	EventsIndexed     *prometheus.CounterVec
	IndexerHeight     prometheus.Gauge
	BanksRegistered   prometheus.Gauge
	ProvisionFailures prometheus.Counter
	JoinCompensations prometheus.Counter
}

// NewMetrics registers all collectors on the given registerer. Tests
// pass a fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TradesSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_trades_submitted_total",
			Help: "Trade legs routed to bank ledger contracts, by bank ID.",
		}, []string{"bank_id"}),
		MatchesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_matches_resolved_total",
			Help: "Matching decisions by terminal status.",
		}, []string{"status"}),
		PaymentsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_payments_resolved_total",
			Help: "Payment settlements by terminal status.",
		}, []string{"status"}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_events_emitted_total",
			Help: "Domain events emitted into receipt logs, by kind.",
		}, []string{"kind"}),
		EventsIndexed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_events_indexed_total",
			Help: "Domain events persisted by the indexer, by kind.",
		}, []string{"kind"}),
		IndexerHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rtp_indexer_block_height",
			Help: "Last block height processed by the indexer.",
		}),
		BanksRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rtp_banks_registered",
			Help: "Number of bank IDs in the factory registry.",
		}),
		ProvisionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "rtp_provisioning_failures_total",
			Help: "Bank provisioning chains that failed before registration.",
		}),
		JoinCompensations: factory.NewCounter(prometheus.CounterOpts{
			Name: "rtp_join_compensations_total",
			Help: "Two-sided status joins forced to ERROR after a partial failure.",
		}),
	}
}
