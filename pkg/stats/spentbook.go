package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spentbook"

// SpentbookCollector counts the outcomes of the spend requests handled by a
// node. It satisfies application.SpendObserver.
type SpentbookCollector struct {
	attestations  prometheus.Counter
	rejections    *prometheus.CounterVec
	loadedRecords prometheus.Gauge
	failures      prometheus.Counter
}

// NewSpentbookCollector creates the collector and registers its metrics
// with the given registerer.
func NewSpentbookCollector(
	reg prometheus.Registerer,
) (*SpentbookCollector, error) {
	c := &SpentbookCollector{
		attestations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attestations_total",
			Help:      "Number of attestations emitted, one per spent input.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Number of rejected spend requests by reason.",
		}, []string{"reason"}),
		loadedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_spend_records",
			Help:      "Number of spend records loaded at startup.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_failures_total",
			Help:      "Number of times the ledger became unavailable.",
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.attestations, c.rejections, c.loadedRecords, c.failures,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *SpentbookCollector) OnAttested(inputs int) {
	c.attestations.Add(float64(inputs))
}

func (c *SpentbookCollector) OnRejected(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

func (c *SpentbookCollector) OnRecordsLoaded(count int) {
	c.loadedRecords.Set(float64(count))
}

func (c *SpentbookCollector) OnLedgerFailure() {
	c.failures.Inc()
}
