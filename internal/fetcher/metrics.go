package fetcher

import "github.com/prometheus/client_golang/prometheus"

var fetchRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "assetd",
		Subsystem: "fetcher",
		Name:      "retries_total",
		Help:      "Total fetch attempts retried after an error",
	},
)

func init() {
	prometheus.MustRegister(fetchRetriesTotal)
}
