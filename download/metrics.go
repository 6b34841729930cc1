package download

import "github.com/prometheus/client_golang/prometheus"

// Metrics are registered lazily by callers that want them exported;
// [Download] itself only increments its own unregistered counter (see
// [New]) so construction never requires a registry.

// Registerer is the narrow capability needed to publish a Download's
// counters to a [prometheus.Registry].
type Registerer interface {
	MustRegister(...prometheus.Collector)
}

// RegisterMetrics registers d's internal counters with reg. Safe to call at
// most once per Download.
func (d *Download) RegisterMetrics(reg Registerer) {
	if d.attempts != nil {
		reg.MustRegister(d.attempts)
	}
}
