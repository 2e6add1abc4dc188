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

// RxBuffer is the session's bounded receive history: a byte ring that
// evicts from the head once it exceeds Capacity, but always preserves at
// least the trailing Retention bytes so a trigger pattern split across an
// eviction boundary is never missed.
type RxBuffer struct {
	Capacity  int
	Retention int

	buf []byte
}

// NewRxBuffer constructs a buffer bounded at capacity bytes, retaining at
// least retention bytes on eviction.
func NewRxBuffer(capacity, retention int) *RxBuffer {
	if retention > capacity {
		retention = capacity
	}
	return &RxBuffer{Capacity: capacity, Retention: retention}
}

// Append adds p to the buffer, evicting from the head if the result would
// exceed Capacity. Eviction never drops more than necessary to return to
// Capacity, and never drops below Retention bytes of trailing history.
func (r *RxBuffer) Append(p []byte) {
	r.buf = append(r.buf, p...)
	if r.Capacity > 0 && len(r.buf) > r.Capacity {
		drop := len(r.buf) - r.Capacity
		if len(r.buf)-drop < r.Retention {
			drop = len(r.buf) - r.Retention
		}
		if drop > 0 {
			r.buf = append(r.buf[:0:0], r.buf[drop:]...)
		}
	}
}

// Bytes returns the buffer's current contents. Callers must not mutate
// the returned slice.
func (r *RxBuffer) Bytes() []byte { return r.buf }

// Len returns the number of bytes currently retained.
func (r *RxBuffer) Len() int { return len(r.buf) }

// Suffix returns the trailing n bytes of the buffer (or the whole buffer
// if it is shorter than n) — the window a resumed trigger evaluation or a
// reattached decoder needs to pick up mid-stream.
func (r *RxBuffer) Suffix(n int) []byte {
	if n >= len(r.buf) {
		return r.buf
	}
	return r.buf[len(r.buf)-n:]
}

// SetRetention updates the retention floor, e.g. when the trigger engine's
// RetentionLen changes after AddTrigger/RemoveTrigger.
func (r *RxBuffer) SetRetention(n int) {
	if n > r.Capacity {
		n = r.Capacity
	}
	r.Retention = n
}
