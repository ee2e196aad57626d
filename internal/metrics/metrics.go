package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odoo_gateway_upstream_calls_total",
			Help: "Upstream read calls by model and outcome",
		},
		[]string{"model", "outcome"}, // res.partner|res.users , ok|not_found|fault|unavailable|auth
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odoo_gateway_logins_total",
			Help: "Upstream login handshakes by outcome",
		},
		[]string{"outcome"}, // ok|rejected|error
	)

	GateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odoo_gateway_gate_rejections_total",
			Help: "Requests terminated by a hardening gate",
		},
		[]string{"gate"},
	)

	AuditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odoo_gateway_audit_events_total",
			Help: "Audit events by outcome",
		},
		[]string{"outcome"}, // published|dropped|failed|consumed|invalid
	)
)

var once sync.Once

// MustRegister registers the collectors once; later calls are no-ops so several
// servers (and tests) can share the default registerer.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			UpstreamCallsTotal,
			LoginsTotal,
			GateRejectionsTotal,
			AuditEventsTotal,
		)
	})
}
