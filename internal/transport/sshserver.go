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
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
)

// SSHServerConfig configures an inbound SSH acceptor — a terminal
// workstation is a session endpoint for devices dialing in, not just one
// dialing out. At least one of NoClientAuth or PasswordCallback must be
// set; there is no implicit default authentication.
type SSHServerConfig struct {
	HostKey          ssh.Signer
	NoClientAuth     bool
	PasswordCallback func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error)
}

func (c SSHServerConfig) serverConfig() *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{
		NoClientAuth:     c.NoClientAuth,
		PasswordCallback: c.PasswordCallback,
	}
	cfg.AddHostKey(c.HostKey)
	return cfg
}

// PtyRequest is a decoded SSH "pty-req" channel request payload (RFC 4254
// §6.2): terminal type plus the requested character dimensions.
type PtyRequest struct {
	Term          string
	Width, Height uint32
}

// DecodePtyRequest parses a raw "pty-req" request payload.
func DecodePtyRequest(payload []byte) (*PtyRequest, error) {
	r := bytes.NewReader(payload)
	var termLen uint32
	if err := binary.Read(r, binary.BigEndian, &termLen); err != nil {
		return nil, err
	}
	term := make([]byte, termLen)
	if err := binary.Read(r, binary.BigEndian, &term); err != nil {
		return nil, err
	}
	req := &PtyRequest{Term: string(term)}
	if err := binary.Read(r, binary.BigEndian, &req.Width); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &req.Height); err != nil {
		return nil, err
	}
	return req, nil
}

// WindowChangeRequest is a decoded "window-change" channel request payload.
type WindowChangeRequest struct {
	Width, Height uint32
}

// DecodeWindowChange parses a raw "window-change" request payload.
func DecodeWindowChange(payload []byte) (*WindowChangeRequest, error) {
	r := bytes.NewReader(payload)
	wc := &WindowChangeRequest{}
	if err := binary.Read(r, binary.BigEndian, &wc.Width); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &wc.Height); err != nil {
		return nil, err
	}
	return wc, nil
}

// Encode serializes a window-change request, including the pixel-unit
// width/height RFC 4254 requires but that terminal-cell consumers ignore.
func (wc *WindowChangeRequest) Encode() []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.BigEndian, wc.Width)
	_ = binary.Write(buf, binary.BigEndian, wc.Height)
	_ = binary.Write(buf, binary.BigEndian, wc.Width*8)
	_ = binary.Write(buf, binary.BigEndian, wc.Height*8)
	return buf.Bytes()
}

// SSHAcceptedTransport is one accepted inbound SSH session channel,
// exposed as a Transport the dispatcher can drive exactly like an
// outbound SSHTransport.
type SSHAcceptedTransport struct {
	statTracker

	conn    *ssh.ServerConn
	channel ssh.Channel

	mu     sync.RWMutex
	width  uint32
	height uint32
}

// AcceptSSH accepts exactly one inbound SSH connection on listener,
// negotiates the session channel, and returns it as a Transport as soon as
// the client's first session channel is accepted; channel requests are
// answered in the background from then on. pty-req and window-change
// requests update the transport's reported dimensions, shell and env
// requests are accepted, and every other channel request is refused,
// mirroring the request-reflection loop an SSH proxy runs except
// terminating locally instead of forwarding upstream.
func AcceptSSH(listener net.Listener, cfg SSHServerConfig) (*SSHAcceptedTransport, error) {
	conn, err := listener.Accept()
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, cfg.serverConfig())
	if err != nil {
		return nil, err
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			return nil, err
		}
		t := &SSHAcceptedTransport{conn: sshConn, channel: channel, statTracker: newStatTracker()}
		go t.handleRequests(requests)
		return t, nil
	}
	return nil, fmt.Errorf("transport: SSH client closed without opening a channel")
}

func (t *SSHAcceptedTransport) handleRequests(requests <-chan *ssh.Request) {
	for req := range requests {
		ok := true
		switch req.Type {
		case "pty-req":
			pr, err := DecodePtyRequest(req.Payload)
			if err != nil {
				ok = false
				break
			}
			t.mu.Lock()
			t.width, t.height = pr.Width, pr.Height
			t.mu.Unlock()
		case "window-change":
			wc, err := DecodeWindowChange(req.Payload)
			if err != nil {
				ok = false
				break
			}
			t.mu.Lock()
			t.width, t.height = wc.Width, wc.Height
			t.mu.Unlock()
		case "shell", "env":
			ok = true
		default:
			ok = false
		}
		if req.WantReply {
			_ = req.Reply(ok, nil)
		}
	}
}

// WindowSize returns the last width/height reported by the client via
// pty-req or window-change.
func (t *SSHAcceptedTransport) WindowSize() (width, height uint32) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.width, t.height
}

func (t *SSHAcceptedTransport) Read(p []byte) (int, error) {
	n, err := t.channel.Read(p)
	t.noteRead(n)
	return n, err
}

func (t *SSHAcceptedTransport) Write(p []byte) (int, error) {
	n, err := t.channel.Write(p)
	t.noteWrite(n)
	return n, err
}

func (t *SSHAcceptedTransport) Close() error {
	_ = t.channel.Close()
	return t.conn.Close()
}

func (t *SSHAcceptedTransport) Kind() Kind { return KindSSH }

func (t *SSHAcceptedTransport) Capabilities() Capabilities {
	c, _ := CapabilitiesFor(KindSSH)
	return c
}

func (t *SSHAcceptedTransport) Stats() Stats { return t.stats() }
