// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "commlink"
	metricsSubsystem = "client"
)

// metrics of a single Module. All collectors carry the Module's session id as a constant label,
// so multiple Modules can share a Registerer.
type metrics struct {
	connectAttempts   prometheus.Counter
	responsesReceived prometheus.Counter
	requestsSent      prometheus.Counter
	delivered         prometheus.Counter
	shelved           prometheus.Counter
	replayed          prometheus.Counter
	disposals         *prometheus.CounterVec
	queueLength       prometheus.GaugeFunc
}

func newMetrics(session string, queueLen func() float64) *metrics {
	labels := prometheus.Labels{"session": session}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	return &metrics{
		connectAttempts:   counter("connect_attempts_total", "Transport connection and handshake attempts."),
		responsesReceived: counter("responses_received_total", "Responses read by the receiver."),
		requestsSent:      counter("requests_sent_total", "Requests written to the server."),
		delivered:         counter("responses_delivered_total", "Responses passed to a listener."),
		shelved:           counter("responses_shelved_total", "Responses shelved for a missing listener."),
		replayed:          counter("responses_replayed_total", "Shelved responses passed to a listener."),
		disposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "disposals_total",
			Help:        "Disposals by their reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		queueLength: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "queue_length",
			Help:        "Responses waiting for the next pump.",
			ConstLabels: labels,
		}, queueLen),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.connectAttempts, m.responsesReceived, m.requestsSent,
		m.delivered, m.shelved, m.replayed,
		m.disposals, m.queueLength,
	}
}

// register all collectors. On failure, the already registered ones are removed again.
func (m *metrics) register(reg prometheus.Registerer) error {
	var registered []prometheus.Collector
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			for _, r := range registered {
				reg.Unregister(r)
			}
			return err
		}
		registered = append(registered, c)
	}
	return nil
}

func (m *metrics) unregister(reg prometheus.Registerer) {
	for _, c := range m.collectors() {
		reg.Unregister(c)
	}
}
