/*
 * relaycore: session core for multi-protocol terminal workstations
 * Copyright 2019-2024 Daniel Selifonov
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package session

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a running dispatcher reports
// to. A nil-safe zero value is never handed out; use NewMetrics or
// NewUnregisteredMetrics (for tests that don't want global registry
// pollution).
type Metrics struct {
	bytesIn    *prometheus.CounterVec
	bytesOut   *prometheus.CounterVec
	framesIn   *prometheus.CounterVec
	framesOut  *prometheus.CounterVec
	errorCount *prometheus.CounterVec
	stateGauge *prometheus.GaugeVec
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics returns the process-wide session collectors, registering
// them on the default Prometheus registry the first time it is called.
// Every dispatcher shares this one set of collectors (distinguished by
// the session_id label) rather than each registering its own — the
// registry panics on a duplicate metric name, and many sessions run
// concurrently in one process.
func NewMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = newMetrics()
		prometheus.MustRegister(
			defaultMetrics.bytesIn,
			defaultMetrics.bytesOut,
			defaultMetrics.framesIn,
			defaultMetrics.framesOut,
			defaultMetrics.errorCount,
			defaultMetrics.stateGauge,
		)
	})
	return defaultMetrics
}

// NewUnregisteredMetrics builds collectors without touching the default
// registry, for use in tests that construct many dispatchers.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		bytesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaycore",
			Subsystem: "session",
			Name:      "bytes_in_total",
			Help:      "Total bytes received on a session's transport.",
		}, []string{"session_id"}),
		bytesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaycore",
			Subsystem: "session",
			Name:      "bytes_out_total",
			Help:      "Total bytes queued for transmit on a session's transport.",
		}, []string{"session_id"}),
		framesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaycore",
			Subsystem: "session",
			Name:      "frames_in_total",
			Help:      "Total protocol frames decoded from a session's inbound stream.",
		}, []string{"session_id"}),
		framesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaycore",
			Subsystem: "session",
			Name:      "frames_out_total",
			Help:      "Total outbound writes enqueued on a session.",
		}, []string{"session_id"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaycore",
			Subsystem: "session",
			Name:      "errors_total",
			Help:      "Total transport and decode errors observed on a session.",
		}, []string{"session_id"}),
		stateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relaycore",
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state, as an enum value (see session.State).",
		}, []string{"session_id"}),
	}
}

// ObserveBytesIn records n bytes received for id.
func (m *Metrics) ObserveBytesIn(id ID, n int) {
	if m == nil {
		return
	}
	m.bytesIn.WithLabelValues(string(id)).Add(float64(n))
}

// ObserveBytesOut records n bytes enqueued for transmit for id.
func (m *Metrics) ObserveBytesOut(id ID, n int) {
	if m == nil {
		return
	}
	m.bytesOut.WithLabelValues(string(id)).Add(float64(n))
}

// ObserveFrameIn records one decoded inbound protocol frame for id.
func (m *Metrics) ObserveFrameIn(id ID) {
	if m == nil {
		return
	}
	m.framesIn.WithLabelValues(string(id)).Inc()
}

// ObserveFrameOut records one enqueued outbound write for id.
func (m *Metrics) ObserveFrameOut(id ID) {
	if m == nil {
		return
	}
	m.framesOut.WithLabelValues(string(id)).Inc()
}

// ObserveError records one transport or decode error for id.
func (m *Metrics) ObserveError(id ID) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(string(id)).Inc()
}

// SetState records the session's current state as a gauge value.
func (m *Metrics) SetState(id ID, s State) {
	if m == nil {
		return
	}
	m.stateGauge.WithLabelValues(string(id)).Set(float64(s))
}
