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
	"fmt"
	"os"
	"time"

	"github.com/tarm/serial"
	"golang.org/x/sys/unix"
)

// SerialConfig describes a local serial port connection.
type SerialConfig struct {
	Port        string
	Baud        int
	DataBits    byte // 5-8, 0 defaults to 8
	Parity      serial.Parity
	StopBits    serial.StopBits
	ReadTimeout time.Duration
}

// SerialTransport drives a local serial port through github.com/tarm/serial.
// tarm/serial's Port does not expose the line-control ioctls BREAK and
// DTR/RTS need, so SerialTransport opens a second file descriptor on the
// same device purely for TIOCSBRK/TIOCMBIS-family ioctls; both descriptors
// refer to the same tty and can be driven concurrently.
type SerialTransport struct {
	statTracker
	cfg  SerialConfig
	port *serial.Port
	ctl  *os.File
}

// OpenSerial opens the named serial port with the given configuration.
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	dataBits := cfg.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 100 * time.Millisecond
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		Size:        dataBits,
		Parity:      cfg.Parity,
		StopBits:    cfg.StopBits,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, err
	}
	ctl, err := os.OpenFile(cfg.Port, os.O_RDWR, 0)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: open control descriptor: %w", err)
	}
	return &SerialTransport{statTracker: newStatTracker(), cfg: cfg, port: port, ctl: ctl}, nil
}

func (t *SerialTransport) Read(p []byte) (int, error) {
	n, err := t.port.Read(p)
	t.noteRead(n)
	return n, err
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	n, err := t.port.Write(p)
	t.noteWrite(n)
	return n, err
}

func (t *SerialTransport) Close() error {
	_ = t.ctl.Close()
	return t.port.Close()
}

// SendBreak drives a 250ms BREAK condition on the line via TIOCSBRK/TIOCCBRK,
// backing the SupportsBreak capability this transport kind declares.
func (t *SerialTransport) SendBreak() error {
	fd := int(t.ctl.Fd())
	if err := unix.IoctlSetInt(fd, unix.TIOCSBRK, 0); err != nil {
		return fmt.Errorf("serial: TIOCSBRK: %w", err)
	}
	time.Sleep(250 * time.Millisecond)
	if err := unix.IoctlSetInt(fd, unix.TIOCCBRK, 0); err != nil {
		return fmt.Errorf("serial: TIOCCBRK: %w", err)
	}
	return nil
}

// SetModemLine raises or lowers DTR or RTS via TIOCMBIS/TIOCMBIC, backing
// the SupportsModemControl capability this transport kind declares.
func (t *SerialTransport) SetModemLine(line ModemLine, on bool) error {
	var bit int
	switch line {
	case LineDTR:
		bit = unix.TIOCM_DTR
	case LineRTS:
		bit = unix.TIOCM_RTS
	default:
		return fmt.Errorf("serial: unknown modem line %v", line)
	}
	req := uint(unix.TIOCMBIS)
	if !on {
		req = unix.TIOCMBIC
	}
	if err := unix.IoctlSetInt(int(t.ctl.Fd()), req, bit); err != nil {
		return fmt.Errorf("serial: set %v: %w", line, err)
	}
	return nil
}

func (t *SerialTransport) Kind() Kind { return KindSerial }

func (t *SerialTransport) Capabilities() Capabilities {
	c, _ := CapabilitiesFor(KindSerial)
	return c
}

func (t *SerialTransport) Stats() Stats { return t.stats() }
