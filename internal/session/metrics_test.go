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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUnregisteredMetricsAreIndependentPerInstance(t *testing.T) {
	m1 := NewUnregisteredMetrics()
	m2 := NewUnregisteredMetrics()

	id := ID("session-a")
	m1.ObserveBytesIn(id, 10)
	m1.ObserveBytesIn(id, 5)

	if got := testutil.ToFloat64(m1.bytesIn.WithLabelValues(string(id))); got != 15 {
		t.Errorf("m1 bytes_in = %v, want 15", got)
	}
	if got := testutil.ToFloat64(m2.bytesIn.WithLabelValues(string(id))); got != 0 {
		t.Errorf("m2 bytes_in = %v, want 0 (independent collector)", got)
	}
}

func TestMetricsSetStateRecordsEnumValue(t *testing.T) {
	m := NewUnregisteredMetrics()
	id := ID("session-b")
	m.SetState(id, StateConnected)
	if got := testutil.ToFloat64(m.stateGauge.WithLabelValues(string(id))); got != float64(StateConnected) {
		t.Errorf("state gauge = %v, want %v", got, float64(StateConnected))
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveBytesIn(ID("x"), 1)
	m.SetState(ID("x"), StateConnected)
}

func TestNewMetricsReturnsSharedSingleton(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	if a != b {
		t.Fatal("NewMetrics() should return the same process-wide instance on every call")
	}
}

func TestMetricsCoverFullStatsSurface(t *testing.T) {
	m := NewUnregisteredMetrics()
	id := ID("session-c")
	m.ObserveBytesOut(id, 7)
	m.ObserveFrameIn(id)
	m.ObserveFrameOut(id)
	m.ObserveError(id)

	if got := testutil.ToFloat64(m.bytesOut.WithLabelValues(string(id))); got != 7 {
		t.Errorf("bytes_out = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.framesIn.WithLabelValues(string(id))); got != 1 {
		t.Errorf("frames_in = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.framesOut.WithLabelValues(string(id))); got != 1 {
		t.Errorf("frames_out = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.errorCount.WithLabelValues(string(id))); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}
