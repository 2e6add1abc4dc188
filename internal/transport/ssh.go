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
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig describes a PTY-backed SSH session used as a transport: the
// remote shell's combined stdin/stdout is treated as one opaque byte
// stream, same as any other terminal device.
type SSHConfig struct {
	Addr         string
	ClientConfig *ssh.ClientConfig
	Cols, Rows   int
	Term         string
	DialTimeout  time.Duration
}

// SSHTransport drives a remote PTY session over SSH. Window-size changes
// go through SendWindowChange rather than the Telnet/NAWS byte-stuffed
// path, since SSH carries them as a typed channel request instead.
type SSHTransport struct {
	statTracker
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
}

// DialSSH connects, opens a session, and requests a PTY of the configured
// size before starting the remote shell.
func DialSSH(cfg SSHConfig) (*SSHTransport, error) {
	clientCfg := cfg.ClientConfig
	if clientCfg.Timeout == 0 && cfg.DialTimeout > 0 {
		clientCfg.Timeout = cfg.DialTimeout
	}
	client, err := ssh.Dial("tcp", cfg.Addr, clientCfg)
	if err != nil {
		return nil, err
	}
	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	term := cfg.Term
	if term == "" {
		term = "xterm-256color"
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	if err := session.RequestPty(term, cfg.Rows, cfg.Cols, modes); err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, err
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, err
	}
	if err := session.Shell(); err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, err
	}
	return &SSHTransport{
		statTracker: newStatTracker(),
		client:      client,
		session:     session,
		stdin:       stdin,
		stdout:      stdout,
	}, nil
}

func (t *SSHTransport) Read(p []byte) (int, error) {
	n, err := t.stdout.Read(p)
	t.noteRead(n)
	return n, err
}

func (t *SSHTransport) Write(p []byte) (int, error) {
	n, err := t.stdin.Write(p)
	t.noteWrite(n)
	return n, err
}

func (t *SSHTransport) Close() error {
	_ = t.session.Close()
	return t.client.Close()
}

// SendWindowChange issues an SSH "window-change" channel request, the
// equivalent of Telnet NAWS for this transport.
func (t *SSHTransport) SendWindowChange(cols, rows int) error {
	return t.session.WindowChange(rows, cols)
}

func (t *SSHTransport) Kind() Kind { return KindSSH }

func (t *SSHTransport) Capabilities() Capabilities {
	c, _ := CapabilitiesFor(KindSSH)
	return c
}

func (t *SSHTransport) Stats() Stats { return t.stats() }
