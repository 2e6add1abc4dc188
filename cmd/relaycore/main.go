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
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"relaycore/internal/session"
	"relaycore/internal/transport"
	"relaycore/internal/trigger"
	"relaycore/internal/vtterm"
)

// arrayFlags collects repeatable -trigger flags of the form
// "substring:TEXT:REPLY" or "regex:PATTERN:REPLY".
type arrayFlags []string

func (*arrayFlags) String() string        { return "" }
func (af *arrayFlags) Set(v string) error { *af = append(*af, v); return nil }

func parseTrigger(spec string, seq int) (*trigger.Trigger, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("trigger spec %q: want kind:match:reply", spec)
	}
	kind, match, reply := parts[0], parts[1], parts[2]
	reply = strings.ReplaceAll(reply, "\\n", "\n")

	var cond trigger.Condition
	switch kind {
	case "substring":
		cond = trigger.Condition{Kind: trigger.CondSubstring, Text: match}
	case "regex":
		cond = trigger.Condition{Kind: trigger.CondRegex, Pattern: match}
	default:
		return nil, fmt.Errorf("trigger spec %q: unknown kind %q (want substring or regex)", spec, kind)
	}
	return &trigger.Trigger{
		ID:        fmt.Sprintf("cli-trigger-%d", seq),
		Enabled:   true,
		Condition: cond,
		Action:    trigger.Action{Kind: trigger.ActSendText, Text: reply},
	}, nil
}

func main() {
	var kind, addr, serialPort string
	var baud int
	var cols, rows int
	var autoReconnect bool
	var fakeDelay time.Duration
	var verbose bool
	var triggerSpecs arrayFlags

	flag.StringVar(&kind, "transport", "tcp", "Transport kind: tcp, serial, telnet, ssh")
	flag.StringVar(&addr, "addr", "", "Address to dial (tcp/telnet/ssh host:port)")
	flag.StringVar(&serialPort, "serial", "", "Serial device path (e.g. /dev/ttyUSB0)")
	flag.IntVar(&baud, "baud", 115200, "Serial baud rate")
	flag.IntVar(&cols, "cols", 80, "Terminal columns")
	flag.IntVar(&rows, "rows", 24, "Terminal rows")
	flag.BoolVar(&autoReconnect, "reconnect", true, "Automatically reconnect on transport failure")
	flag.DurationVar(&fakeDelay, "fakeDelay", 0, "Artificial one-way write latency, for testing slow links")
	flag.BoolVar(&verbose, "v", false, "Verbose (debug-level) logging")
	flag.Var(&triggerSpecs, "trigger", "Auto-response trigger `kind:match:reply` (repeatable)")
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if verbose {
		logLevel = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(logLevel).With().Timestamp().Logger()

	connector, err := buildConnector(kind, addr, serialPort, baud, cols, rows, fakeDelay)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not build transport connector")
	}

	cfg := session.Config{
		AutoReconnect: autoReconnect,
		Backoff:       session.DefaultBackoffPolicy(),
		Logger:        logger,
	}

	s := session.Open(connector, cfg)
	logger.Info().Str("session", string(s.ID)).Str("transport", kind).Msg("session opened")

	term := vtterm.NewEmulator(rows, cols)
	if err := s.Submit(session.AttachTerminal(term)); err != nil {
		logger.Fatal().Err(err).Msg("attach terminal failed")
	}

	for i, spec := range triggerSpecs {
		trig, err := parseTrigger(spec, i)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid -trigger flag")
		}
		if err := s.Submit(session.AddTrigger(trig)); err != nil {
			logger.Fatal().Err(err).Msg("add trigger failed")
		}
	}

	sub := s.Hub().Subscribe()
	defer sub.Unsubscribe()
	go logEvents(logger, sub)

	stdinLoop(s, logger)

	_ = s.Submit(session.Disconnect())
	if err := s.Wait(); err != nil {
		logger.Error().Err(err).Msg("session ended with error")
		os.Exit(1)
	}
}

func buildConnector(kind, addr, serialPort string, baud, cols, rows int, fakeDelay time.Duration) (session.Connector, error) {
	wrap := func(t transport.Transport, err error) (transport.Transport, error) {
		if err != nil || fakeDelay <= 0 {
			return t, err
		}
		return transport.NewDelayedTransport(t, fakeDelay, 64), nil
	}

	switch kind {
	case "tcp":
		if addr == "" {
			return nil, fmt.Errorf("-addr is required for transport=tcp")
		}
		return func() (transport.Transport, error) {
			return wrap(transport.DialTCP(transport.TCPConfig{Addr: addr}))
		}, nil
	case "telnet":
		if addr == "" {
			return nil, fmt.Errorf("-addr is required for transport=telnet")
		}
		return func() (transport.Transport, error) {
			return wrap(transport.DialTelnet(transport.TelnetConfig{Addr: addr, Cols: cols, Rows: rows}))
		}, nil
	case "serial":
		if serialPort == "" {
			return nil, fmt.Errorf("-serial is required for transport=serial")
		}
		return func() (transport.Transport, error) {
			return wrap(transport.OpenSerial(transport.SerialConfig{Port: serialPort, Baud: baud}))
		}, nil
	case "ssh":
		if addr == "" {
			return nil, fmt.Errorf("-addr is required for transport=ssh")
		}
		return nil, fmt.Errorf("transport=ssh requires a ClientConfig (credentials); wire one in buildConnector before use")
	default:
		return nil, fmt.Errorf("unknown transport kind %q", kind)
	}
}

func logEvents(logger zerolog.Logger, sub *session.Subscription) {
	for {
		select {
		case e, ok := <-sub.Durable():
			if !ok {
				return
			}
			handleEvent(logger, e)
		case e, ok := <-sub.Lossy():
			if !ok {
				return
			}
			handleEvent(logger, e)
		}
	}
}

func handleEvent(logger zerolog.Logger, e session.Event) {
	switch e.Kind {
	case session.EventStateChanged:
		logger.Info().Str("from", e.FromState.String()).Str("to", e.ToState.String()).Msg("state changed")
	case session.EventTriggerFired:
		if e.Fired.Trigger != nil {
			logger.Debug().Str("trigger", e.Fired.Trigger.ID).Msg("trigger fired")
		}
	case session.EventError:
		logger.Warn().Int("code", int(e.Code)).Str("message", e.Message).Msg("session error event")
	case session.EventBytesIn:
		os.Stdout.Write(e.Bytes)
	case session.EventBytesOut:
		logger.Debug().Int("n", len(e.Bytes)).Msg("bytes out")
	case session.EventProtocolDecoded:
		logger.Debug().Str("protocol", e.Packet.ProtocolName).Int("n", len(e.Packet.Data)).Msg("protocol frame decoded")
	}
}

func stdinLoop(s *session.Session, logger zerolog.Logger) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if err := s.Submit(session.Send(append([]byte(nil), buf[:n]...))); err != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
