package loader

import "github.com/prometheus/client_golang/prometheus"

var (
	fetchResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "fetch_results_total",
			Help:      "Terminal per-path fetch results by outcome",
		},
		[]string{"outcome"},
	)

	bundlesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "bundles_published_total",
			Help:      "Bundle outcomes published, by result",
		},
		[]string{"result"},
	)

	bundlesDeclared = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "bundles_declared",
			Help:      "Bundle ids declared since the last reset",
		},
	)
)

func init() {
	prometheus.MustRegister(fetchResultsTotal, bundlesPublishedTotal, bundlesDeclared)
}
