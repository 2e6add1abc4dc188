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
	"relaycore/internal/transport"
)

// Session is the handle a caller (CLI, UI, test) holds: a fresh ID plus
// the dispatcher that owns everything else. Open starts the dispatcher's
// Run loop in a new goroutine and returns immediately; callers drive it
// via Submit and observe it via Hub().Subscribe().
type Session struct {
	*Dispatcher
	runErr chan error
}

// Open creates a session in StateCreated and starts it running against
// whatever transport connector produces. The initial connect happens
// synchronously inside the spawned goroutine; callers watching
// Hub().Subscribe() will see the Created -> Connecting -> Connected (or
// Failed) transitions as they happen.
func Open(connector Connector, cfg Config) *Session {
	s := &Session{
		Dispatcher: NewDispatcher(NewID(), connector, cfg),
		runErr:     make(chan error, 1),
	}
	go func() {
		s.runErr <- s.Run()
	}()
	return s
}

// Wait blocks until the session's dispatcher loop exits (Disconnected or
// Failed) and returns its terminal error, if any.
func (s *Session) Wait() error {
	return <-s.runErr
}

// TransportConnector adapts a fixed transport.Transport into a Connector
// that can only be dialed once — useful for tests and for
// already-connected transports (e.g. an inbound listener accept) that
// have no reconnect story of their own.
func TransportConnector(t transport.Transport) Connector {
	used := false
	return func() (transport.Transport, error) {
		if used {
			return nil, ErrDispatcherClosed
		}
		used = true
		return t, nil
	}
}
