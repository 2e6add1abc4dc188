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
	"io"
	"net"
	"testing"
	"time"
)

func TestCapabilitiesForKnownKinds(t *testing.T) {
	for _, k := range []Kind{KindSerial, KindTCP, KindTelnet, KindBLE, KindSSH} {
		if _, ok := CapabilitiesFor(k); !ok {
			t.Fatalf("expected capabilities registered for %s", k)
		}
	}
}

func TestCapabilityDeclarationsMatchDriverFeatures(t *testing.T) {
	serial, _ := CapabilitiesFor(KindSerial)
	if !serial.SupportsBreak || !serial.SupportsModemControl {
		t.Fatalf("serial capabilities = %+v, want break and modem control declared", serial)
	}
	tcp, _ := CapabilitiesFor(KindTCP)
	if tcp.SupportsBreak || tcp.SupportsModemControl {
		t.Fatalf("tcp capabilities = %+v, want no line-control support", tcp)
	}
	if _, ok := CapabilitiesFor(Kind("no-such-kind")); ok {
		t.Fatal("expected unknown kind to be reported as unknown")
	}
}

func TestStatTrackerAccounting(t *testing.T) {
	st := newStatTracker()
	st.noteRead(10)
	st.noteWrite(5)
	s := st.stats()
	if s.BytesIn != 10 || s.BytesOut != 5 {
		t.Fatalf("got %+v", s)
	}
	if s.LastActivity.IsZero() {
		t.Fatal("expected LastActivity to be set")
	}
}

func TestTCPTransportRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	tr, err := DialTCP(TCPConfig{Addr: ln.Addr().String(), DialTimeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	server := <-accepted
	defer server.Close()

	if _, err := tr.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", buf)
	}
	if tr.Kind() != KindTCP {
		t.Fatalf("got kind %s", tr.Kind())
	}
	if tr.Stats().BytesOut != 5 {
		t.Fatalf("got stats %+v", tr.Stats())
	}
}
