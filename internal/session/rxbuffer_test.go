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
	"bytes"
	"testing"
)

func TestRxBufferAppendWithinCapacity(t *testing.T) {
	r := NewRxBuffer(16, 0)
	r.Append([]byte("hello"))
	r.Append([]byte(" world"))
	if r.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", r.Len())
	}
	if !bytes.Equal(r.Bytes(), []byte("hello world")) {
		t.Fatalf("Bytes() = %q", r.Bytes())
	}
}

func TestRxBufferEvictsFromHeadBeyondCapacity(t *testing.T) {
	r := NewRxBuffer(10, 0)
	r.Append([]byte("0123456789"))
	r.Append([]byte("ABCDE"))
	if r.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", r.Len())
	}
	if !bytes.Equal(r.Bytes(), []byte("56789ABCDE")) {
		t.Fatalf("Bytes() = %q, want %q", r.Bytes(), "56789ABCDE")
	}
}

func TestRxBufferEvictionKeepsRetentionFloor(t *testing.T) {
	r := NewRxBuffer(10, 8)
	r.Append([]byte("0123456789"))
	r.Append([]byte("ABCDE")) // evicts back to the 10-byte capacity, which still keeps the 8-byte retention floor
	if r.Len() < r.Retention {
		t.Fatalf("Len() = %d fell below Retention %d", r.Len(), r.Retention)
	}
}

func TestRxBufferSuffix(t *testing.T) {
	r := NewRxBuffer(100, 0)
	r.Append([]byte("abcdefghij"))
	if got := string(r.Suffix(3)); got != "hij" {
		t.Errorf("Suffix(3) = %q, want %q", got, "hij")
	}
	if got := string(r.Suffix(100)); got != "abcdefghij" {
		t.Errorf("Suffix(100) = %q, want whole buffer", got)
	}
}

func TestRxBufferSetRetentionClampsToCapacity(t *testing.T) {
	r := NewRxBuffer(10, 0)
	r.SetRetention(50)
	if r.Retention != 10 {
		t.Errorf("Retention = %d, want clamped to capacity 10", r.Retention)
	}
}
