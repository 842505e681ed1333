// Package metrics exposes Prometheus counters for the signer and coordinator.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "frost"

// Rejection reasons for the envelopes counter.
const (
	ReasonReplay = "replay"
	ReasonDecode = "decode"
	ReasonAuth   = "auth"
	ReasonState  = "state"
)

type Metrics struct {
	envelopes *prometheus.CounterVec
	dkg       *prometheus.CounterVec
	sign      *prometheus.CounterVec
	retries   prometheus.Counter
}

// New creates the counters and registers them with reg, if it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_total",
			Help:      "Envelopes received, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		dkg: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dkg_rounds_total",
			Help:      "DKG rounds that ended, by outcome.",
		}, []string{"outcome"}),
		sign: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_rounds_total",
			Help:      "Signing rounds that ended, by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_retries_total",
			Help:      "Send attempts that failed and were retried.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.envelopes, m.dkg, m.sign, m.retries)
	}
	return m
}

func (m *Metrics) Admitted(kind string) {
	if m == nil {
		return
	}
	m.envelopes.WithLabelValues(kind, "admitted").Inc()
}

func (m *Metrics) Rejected(kind, reason string) {
	if m == nil {
		return
	}
	m.envelopes.WithLabelValues(kind, reason).Inc()
}

// DkgEnded counts a finished DKG; outcome is "success", "failure" or "timeout".
func (m *Metrics) DkgEnded(outcome string) {
	if m == nil {
		return
	}
	m.dkg.WithLabelValues(outcome).Inc()
}

// SignEnded counts a finished signing round.
func (m *Metrics) SignEnded(outcome string) {
	if m == nil {
		return
	}
	m.sign.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}
