package storeremote

import "github.com/prometheus/client_golang/prometheus"

var metadataLoads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zif_metadata_loads_total",
		Help: "Metadata load attempts per repository, by outcome.",
	},
	[]string{"repo", "outcome"},
)

// RegisterMetrics registers this package's collectors with reg. Safe to
// call at most once per registry.
func RegisterMetrics(reg interface{ MustRegister(...prometheus.Collector) }) {
	reg.MustRegister(metadataLoads)
}
