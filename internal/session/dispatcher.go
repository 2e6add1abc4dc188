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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"relaycore/internal/trigger"
	"relaycore/internal/transport"
	"relaycore/internal/vtterm"
)

// ErrDispatcherClosed is returned to any command submitted after the
// dispatcher has finished running.
var ErrDispatcherClosed = errors.New("session: dispatcher closed")

// timerQuantum is the interval at which the Run loop checks trigger-timeout
// conditions.
const timerQuantum = 10 * time.Millisecond

// Connector opens a fresh transport for (re)connection. Dispatcher calls
// it once at startup and again on every Reconnecting attempt.
type Connector func() (transport.Transport, error)

// commandKind tags a Command's payload, one per control-plane operation.
type commandKind int

const (
	cmdSend commandKind = iota
	cmdSendBreak
	cmdSetModemLine
	cmdAddTrigger
	cmdRemoveTrigger
	cmdDisconnect
	cmdReconnect
	cmdAttachTerminal
	cmdSetDecoder
)

// Command is one entry on the dispatcher's control channel. Reply
// receives exactly one value before the command is considered complete.
type Command struct {
	kind       commandKind
	bytes      []byte
	modemLine  transport.ModemLine
	modemState bool
	trig       *trigger.Trigger
	trigID     string
	term       *vtterm.Emulator
	decoder    FrameDecoder
	reply      chan error
}

// Send enqueues an outbound write.
func Send(b []byte) Command { return Command{kind: cmdSend, bytes: b, reply: make(chan error, 1)} }

// SendBreak requests a transport-level BREAK condition (serial only).
func SendBreak() Command { return Command{kind: cmdSendBreak, reply: make(chan error, 1)} }

// SetModemLine requests a transport-level DTR/RTS line change (serial
// only).
func SetModemLine(line transport.ModemLine, state bool) Command {
	return Command{kind: cmdSetModemLine, modemLine: line, modemState: state, reply: make(chan error, 1)}
}

// AddTrigger registers t with the session's trigger engine.
func AddTrigger(t *trigger.Trigger) Command {
	return Command{kind: cmdAddTrigger, trig: t, reply: make(chan error, 1)}
}

// RemoveTrigger drops the trigger with the given id.
func RemoveTrigger(id string) Command {
	return Command{kind: cmdRemoveTrigger, trigID: id, reply: make(chan error, 1)}
}

// Disconnect requests an orderly shutdown of the session.
func Disconnect() Command { return Command{kind: cmdDisconnect, reply: make(chan error, 1)} }

// Reconnect requests an immediate reconnect attempt, bypassing backoff.
func Reconnect() Command { return Command{kind: cmdReconnect, reply: make(chan error, 1)} }

// AttachTerminal wires a terminal emulator to receive every inbound byte.
func AttachTerminal(e *vtterm.Emulator) Command {
	return Command{kind: cmdAttachTerminal, term: e, reply: make(chan error, 1)}
}

// SetDecoder installs (or clears, with nil) a framing decoder run over
// the inbound stream.
func SetDecoder(d FrameDecoder) Command {
	return Command{kind: cmdSetDecoder, decoder: d, reply: make(chan error, 1)}
}

// Config bundles the knobs a Dispatcher needs beyond its Connector.
type Config struct {
	RxCapacity     int
	AutoReconnect  bool
	Backoff        BackoffPolicy
	DisconnectWait time.Duration
	Logger         zerolog.Logger
	Metrics        *Metrics
}

func (c Config) withDefaults() Config {
	if c.RxCapacity <= 0 {
		c.RxCapacity = 64 * 1024
	}
	if c.DisconnectWait <= 0 {
		c.DisconnectWait = time.Second
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics()
	}
	return c
}

// Dispatcher is the single-goroutine-per-session owner of transport,
// state, rx buffer, and the trigger/terminal pipeline. It is the sole
// writer of session State and the sole producer on its Hub.
type Dispatcher struct {
	ID   ID
	cfg  Config
	conn Connector
	hub  *Hub

	mu       sync.RWMutex
	state    State
	failedAt *FailReason

	rx     *RxBuffer
	engine *trigger.Engine
	term   *vtterm.Emulator
	dec    FrameDecoder

	current transport.Transport // the live transport, swapped on reconnect (IoSwitch pattern)

	commands chan Command
	inbound  chan inboundChunk
	outbound chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

type inboundChunk struct {
	from transport.Transport
	data []byte
	err  error
}

// NewDispatcher constructs a dispatcher in StateCreated. Call Run to start
// its goroutines; Run blocks until the session reaches StateDisconnected
// or StateFailed.
func NewDispatcher(id ID, connector Connector, cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		ID:       id,
		cfg:      cfg,
		conn:     connector,
		hub:      NewHub(),
		state:    StateCreated,
		rx:       NewRxBuffer(cfg.RxCapacity, 0),
		engine:   trigger.NewEngine(),
		commands: make(chan Command, 32),
		inbound:  make(chan inboundChunk, 8),
		outbound: make(chan []byte, 256),
		done:     make(chan struct{}),
	}
}

// Hub returns the session's event broadcast.
func (d *Dispatcher) Hub() *Hub { return d.hub }

// State returns the current session state.
func (d *Dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Submit enqueues a command and blocks until it has taken effect.
// Commands interleave with the inbound stream only between chunks: a
// command is applied after the in-flight chunk (including its trigger
// actions) and before the next chunk is read.
func (d *Dispatcher) Submit(cmd Command) error {
	select {
	case d.commands <- cmd:
	case <-d.done:
		return ErrDispatcherClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-d.done:
		return ErrDispatcherClosed
	}
}

// Run drives the dispatcher to completion: connects, then loops over
// inbound bytes, commands, and timers until Disconnect or a
// give-up-after-max-attempts Failed transition. It returns the terminal
// FailReason, or nil on an orderly Disconnect.
func (d *Dispatcher) Run() error {
	defer close(d.done)
	if err := d.connect(); err != nil {
		d.setState(StateFailed)
		reason := FailReason{Message: "initial connect failed", Cause: err}
		d.mu.Lock()
		d.failedAt = &reason
		d.mu.Unlock()
		return reason
	}

	ticker := time.NewTicker(timerQuantum)
	defer ticker.Stop()

	for {
		select {
		case chunk := <-d.inbound:
			if chunk.from != d.currentTransport() {
				// drained from a transport a reconnect already replaced
				continue
			}
			if chunk.err != nil {
				d.hub.Publish(Event{Kind: EventError, Code: ErrTransportIO, Message: chunk.err.Error()})
				d.cfg.Metrics.ObserveError(d.ID)
				if d.handleTransportFailure(chunk.err) {
					return d.terminalErr()
				}
				continue
			}
			d.handleInbound(chunk.data)

		case cmd := <-d.commands:
			done := d.handleCommand(cmd)
			if done {
				return d.terminalErr()
			}

		case now := <-ticker.C:
			for _, f := range d.engine.EvaluateTimeouts(now) {
				d.hub.Publish(Event{Kind: EventTriggerFired, Fired: f})
				d.applyAction(f.Action)
			}
		}
	}
}

func (d *Dispatcher) terminalErr() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.failedAt != nil {
		return *d.failedAt
	}
	return nil
}

func (d *Dispatcher) connect() error {
	d.setState(StateConnecting)
	t, err := d.conn()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.current = t
	d.mu.Unlock()
	d.setState(StateConnected)
	// seed the idle clock: timeout triggers measure from Connected, not
	// from the zero time
	d.engine.NoteBytesReceived(time.Now())
	go d.readLoop(t)
	go d.writeLoop()
	return nil
}

// readLoop is the one blocking-I/O goroutine per live transport; it never
// touches dispatcher state directly, only feeding chunks to the
// single-goroutine Run loop, preserving the "sole mutator" invariant.
func (d *Dispatcher) readLoop(t transport.Transport) {
	buf := make([]byte, 4096)
	for {
		n, err := t.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case d.inbound <- inboundChunk{from: t, data: cp}:
			case <-d.done:
				return
			}
		}
		if err != nil {
			select {
			case d.inbound <- inboundChunk{from: t, err: err}:
			case <-d.done:
			}
			return
		}
	}
}

// writeLoop is the Asynk-style outbound coalescer: it drains the outbound
// channel, coalescing whatever is already queued into one transport write
// so a burst of Send calls does not become a burst of syscalls, while
// never reordering them.
func (d *Dispatcher) writeLoop() {
	for {
		select {
		case first, ok := <-d.outbound:
			if !ok {
				return
			}
			batch := first
		drain:
			for {
				select {
				case more, ok := <-d.outbound:
					if !ok {
						break drain
					}
					batch = append(batch, more...)
				default:
					break drain
				}
			}
			t := d.currentTransport()
			if t == nil {
				continue
			}
			if _, err := t.Write(batch); err != nil {
				d.cfg.Logger.Warn().Err(err).Str("session", string(d.ID)).Msg("outbound write failed")
				// a failed write is a transport failure like any read
				// failure: feed it to the Run loop so the reconnect /
				// terminate policy applies. The loop itself keeps running;
				// after a reconnect swap it writes to the new transport.
				select {
				case d.inbound <- inboundChunk{from: t, err: fmt.Errorf("outbound write: %w", err)}:
				case <-d.done:
					return
				}
			}
		case <-d.done:
			return
		}
	}
}

func (d *Dispatcher) handleInbound(data []byte) {
	d.rx.SetRetention(d.engine.RetentionLen())
	d.rx.Append(data)
	d.engine.NoteBytesReceived(time.Now())
	d.hub.Publish(Event{Kind: EventBytesIn, Bytes: data})
	d.cfg.Metrics.ObserveBytesIn(d.ID, len(data))

	if d.term != nil {
		_, _ = d.term.Write(data)
		if resp := d.term.Pending(); len(resp) > 0 {
			d.enqueueOutbound(resp)
		}
	}
	if d.dec != nil {
		frames, err := d.dec.Feed(data)
		if err != nil {
			d.hub.Publish(Event{Kind: EventError, Code: ErrDecodeFailure, Message: err.Error()})
			d.cfg.Metrics.ObserveError(d.ID)
		}
		for _, frame := range frames {
			d.cfg.Metrics.ObserveFrameIn(d.ID)
			pkt := Packet{Timestamp: time.Now(), Direction: DirectionIn, Data: frame}
			if named, ok := d.dec.(ProtocolNamed); ok {
				pkt.ProtocolName = named.ProtocolName()
			}
			if md, ok := d.dec.(FrameMetadata); ok {
				pkt.Metadata = md.Metadata(frame)
			}
			d.hub.Publish(Event{Kind: EventProtocolDecoded, Packet: pkt})
		}
	}

	window := d.rx.Suffix(d.engine.RetentionLen() + len(data))
	for _, f := range d.engine.EvaluateBuffer(window) {
		// TriggerFired precedes the BytesOut its action produces
		d.hub.Publish(Event{Kind: EventTriggerFired, Fired: f})
		d.applyAction(f.Action)
	}
}

func (d *Dispatcher) applyAction(a trigger.Action) {
	switch a.Kind {
	case trigger.ActSend:
		d.enqueueOutbound(a.Bytes)
	case trigger.ActSendText:
		d.enqueueOutbound([]byte(a.Text))
	case trigger.ActChain:
		for _, sub := range a.Actions {
			d.applyAction(sub)
		}
	case trigger.ActLog:
		d.cfg.Logger.Info().Str("session", string(d.ID)).Str("text", a.Text).Msg("trigger log action")
	case trigger.ActNotify:
		// no separate side effect: the EventTriggerFired publication in
		// handleInbound/Run already carries this action to subscribers.
	}
}

func (d *Dispatcher) enqueueOutbound(b []byte) {
	if len(b) == 0 {
		return
	}
	select {
	case d.outbound <- b:
		d.hub.Publish(Event{Kind: EventBytesOut, Bytes: b})
		d.cfg.Metrics.ObserveBytesOut(d.ID, len(b))
		d.cfg.Metrics.ObserveFrameOut(d.ID)
	case <-d.done:
	}
}

// handleCommand applies one command at the interleaving point between
// inbound chunks, returning true if the dispatcher should stop running.
func (d *Dispatcher) handleCommand(cmd Command) bool {
	var err error
	stop := false
	switch cmd.kind {
	case cmdSend:
		d.enqueueOutbound(cmd.bytes)
	case cmdSendBreak:
		err = d.sendBreak()
	case cmdSetModemLine:
		err = d.setModemLine(cmd.modemLine, cmd.modemState)
	case cmdAddTrigger:
		err = d.engine.Add(cmd.trig)
	case cmdRemoveTrigger:
		d.engine.Remove(cmd.trigID)
	case cmdAttachTerminal:
		d.term = cmd.term
	case cmdSetDecoder:
		d.dec = cmd.decoder
	case cmdReconnect:
		rerr := d.reconnect()
		if errors.Is(rerr, errReconnectCancelled) {
			stop = true
		} else {
			err = rerr
		}
	case cmdDisconnect:
		d.disconnect()
		stop = true
	}
	cmd.reply <- err
	return stop
}

func (d *Dispatcher) sendBreak() error {
	type breaker interface{ SendBreak() error }
	t := d.currentTransport()
	if b, ok := t.(breaker); ok {
		return b.SendBreak()
	}
	return fmt.Errorf("transport::unsupported: %s does not support SendBreak", t.Kind())
}

func (d *Dispatcher) setModemLine(line transport.ModemLine, state bool) error {
	type modemSetter interface {
		SetModemLine(transport.ModemLine, bool) error
	}
	t := d.currentTransport()
	if m, ok := t.(modemSetter); ok {
		return m.SetModemLine(line, state)
	}
	return fmt.Errorf("transport::unsupported: %s does not support SetModemLine", t.Kind())
}

func (d *Dispatcher) disconnect() {
	d.setState(StateDisconnecting)
	if t := d.currentTransport(); t != nil {
		_ = t.Close()
	}
	close(d.outbound)
	d.setState(StateDisconnected)
}

// handleTransportFailure reacts to a transport read or write error:
// reconnect if configured,
// otherwise move straight to Disconnected. Returns true if Run should
// stop.
func (d *Dispatcher) handleTransportFailure(cause error) bool {
	if !d.cfg.AutoReconnect {
		d.setState(StateDisconnected)
		return true
	}
	err := d.reconnectWithBackoff()
	if err == nil {
		return false
	}
	if errors.Is(err, errReconnectCancelled) {
		// disconnect() already ran and set the terminal state; no FailReason.
		return true
	}
	reason := FailReason{Message: "reconnect attempts exhausted", Cause: err}
	d.mu.Lock()
	d.failedAt = &reason
	d.mu.Unlock()
	d.setState(StateFailed)
	return true
}

// errReconnectCancelled signals that a command processed during a backoff
// wait (ordinarily Disconnect) ended the dispatcher before any reconnect
// attempt could succeed or exhaust.
var errReconnectCancelled = errors.New("session: reconnect cancelled")

// reconnectWithBackoff waits out each backoff interval with a select that
// also watches d.commands, so a Disconnect queued mid-backoff is applied
// immediately instead of waiting for the current attempt (or all
// attempts) to run out.
func (d *Dispatcher) reconnectWithBackoff() error {
	d.setState(StateReconnecting)
	maxAttempts := d.cfg.Backoff.maxAttemptsOrDefault()
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-time.After(d.cfg.Backoff.Delay(attempt)):
		case cmd := <-d.commands:
			if done := d.handleCommand(cmd); done {
				return errReconnectCancelled
			}
			attempt-- // this attempt's wait was interrupted, not spent
			continue
		case <-d.done:
			return errors.New("dispatcher stopped during reconnect")
		}
		t, err := d.conn()
		if err == nil {
			d.mu.Lock()
			d.current = t
			d.mu.Unlock()
			d.setState(StateConnected)
			d.engine.NoteBytesReceived(time.Now())
			go d.readLoop(t)
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (d *Dispatcher) currentTransport() transport.Transport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// reconnect services an explicit Reconnect command: the live transport is
// closed first so its read loop winds down, then the ordinary backoff
// redial runs. Chunks still in flight from the closed transport are
// discarded by Run's staleness check.
func (d *Dispatcher) reconnect() error {
	if t := d.currentTransport(); t != nil {
		_ = t.Close()
	}
	return d.reconnectWithBackoff()
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	from := d.state
	if from == s {
		d.mu.Unlock()
		return
	}
	if !validTransition(from, s) {
		d.mu.Unlock()
		return
	}
	d.state = s
	d.mu.Unlock()
	d.hub.Publish(Event{Kind: EventStateChanged, FromState: from, ToState: s})
	d.cfg.Metrics.SetState(d.ID, s)
}
