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

package transport

import (
	"sync"
	"time"
)

// DelayedTransport wraps a Transport and holds outbound writes in a ring
// buffer for a fixed delay before they reach the underlying link. It
// exists for reproducing slow-link behavior in tests and demos (a serial
// bus with genuine propagation delay, a satellite modem) without needing
// real hardware: Reads pass straight through, only Writes are paced.
type DelayedTransport struct {
	inner Transport
	delay time.Duration

	ring     [][]byte
	sendTime []time.Time
	head     int
	tail     int

	cond *sync.Cond

	termination error
	notify      chan struct{}
}

// NewDelayedTransport wraps inner, delaying every Write by delay. ringSize
// bounds how many writes may be in flight (i.e. not yet released to inner)
// at once; a Write blocks once the ring is full.
func NewDelayedTransport(inner Transport, delay time.Duration, ringSize int) *DelayedTransport {
	if ringSize < 1 {
		ringSize = 1
	}
	d := &DelayedTransport{
		inner:    inner,
		delay:    delay,
		ring:     make([][]byte, ringSize),
		sendTime: make([]time.Time, ringSize),
		cond:     sync.NewCond(&sync.Mutex{}),
		notify:   make(chan struct{}, ringSize),
	}
	go d.drain()
	return d
}

func (d *DelayedTransport) drain() {
	for range d.notify {
		d.cond.L.Lock()
		now := time.Now()
		wait := d.sendTime[d.head].Sub(now)
		buffer := d.ring[d.head]
		if wait > 0 {
			d.cond.L.Unlock()
			time.Sleep(wait)
			d.cond.L.Lock()
		}
		d.ring[d.head] = nil
		d.head = (d.head + 1) % len(d.ring)
		d.cond.Signal()
		d.cond.L.Unlock()

		if _, err := d.inner.Write(buffer); err != nil {
			d.cond.L.Lock()
			d.termination = err
			d.cond.L.Unlock()
			close(d.notify)
			return
		}
	}
}

// Read passes straight through to the wrapped transport; only Write is
// delayed.
func (d *DelayedTransport) Read(p []byte) (int, error) { return d.inner.Read(p) }

// Write enqueues p to be written to the wrapped transport after the
// configured delay, blocking if the ring is full.
func (d *DelayedTransport) Write(p []byte) (int, error) {
	d.cond.L.Lock()
	if d.termination != nil {
		err := d.termination
		d.cond.L.Unlock()
		return 0, err
	}
	for d.ring[d.tail] != nil {
		d.cond.Wait()
		if d.termination != nil {
			err := d.termination
			d.cond.L.Unlock()
			return 0, err
		}
	}
	buffer := make([]byte, len(p))
	copy(buffer, p)
	d.ring[d.tail] = buffer
	d.sendTime[d.tail] = time.Now().Add(d.delay)
	d.tail = (d.tail + 1) % len(d.ring)
	d.cond.L.Unlock()

	d.notify <- struct{}{}
	return len(p), nil
}

func (d *DelayedTransport) Close() error {
	d.cond.L.Lock()
	if d.termination == nil {
		d.termination = errClosed
	}
	d.cond.L.Unlock()
	return d.inner.Close()
}

func (d *DelayedTransport) Kind() Kind                 { return d.inner.Kind() }
func (d *DelayedTransport) Capabilities() Capabilities { return d.inner.Capabilities() }
func (d *DelayedTransport) Stats() Stats               { return d.inner.Stats() }

var errClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "transport: delayed transport closed" }
