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
	"net"
	"time"
)

// TCPConfig describes a raw TCP stream connection; the terminal device's
// bytes pass through unmodified, with no Telnet option layer.
// TCP_NODELAY is on unless DisableNoDelay is set.
type TCPConfig struct {
	Addr           string
	DialTimeout    time.Duration
	KeepAlive      time.Duration
	DisableNoDelay bool
}

// TCPTransport drives a raw TCP socket.
type TCPTransport struct {
	statTracker
	conn net.Conn
}

// DialTCP connects to cfg.Addr and returns an open TCPTransport.
func DialTCP(cfg TCPConfig) (*TCPTransport, error) {
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	d := net.Dialer{Timeout: timeout, KeepAlive: cfg.KeepAlive}
	conn, err := d.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(!cfg.DisableNoDelay)
	}
	return &TCPTransport{statTracker: newStatTracker(), conn: conn}, nil
}

func (t *TCPTransport) Read(p []byte) (int, error) {
	n, err := t.conn.Read(p)
	t.noteRead(n)
	return n, err
}

func (t *TCPTransport) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	t.noteWrite(n)
	return n, err
}

func (t *TCPTransport) Close() error { return t.conn.Close() }

func (t *TCPTransport) Kind() Kind { return KindTCP }

func (t *TCPTransport) Capabilities() Capabilities {
	c, _ := CapabilitiesFor(KindTCP)
	return c
}

func (t *TCPTransport) Stats() Stats { return t.stats() }
