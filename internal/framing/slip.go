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
package framing

import "errors"

// SLIP byte-stuffing constants, RFC 1055.
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// ErrBadEscape reports a SLIP ESC byte not followed by ESC_END or ESC_ESC.
var ErrBadEscape = errors.New("framing: bad SLIP escape sequence")

// SlipEncode wraps p in END markers, escaping any END/ESC bytes within it.
func SlipEncode(p []byte) []byte {
	out := make([]byte, 0, len(p)+2)
	out = append(out, slipEnd)
	for _, b := range p {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	out = append(out, slipEnd)
	return out
}

// SlipDecoder accumulates a SLIP byte stream and yields decoded payloads as
// complete frames arrive. Incomplete trailing data is retained across calls.
//
// Every encoded frame is exactly two END markers bracketing a (possibly
// empty) stuffed payload, so the decoder treats the first END seen as the
// opening of a frame and every END after that as closing the frame in
// progress (and simultaneously opening the next one); this makes empty
// frames round-trip correctly and tolerates back-to-back frames sharing a
// single END marker.
type SlipDecoder struct {
	buf      []byte
	started  bool
	escaping bool
	desynced bool
}

// Feed appends stream to the decoder and returns zero or more decoded
// payloads. A FramingError wrapping ErrBadEscape is returned if an ESC byte
// is followed by anything other than ESC_END/ESC_ESC; the decoder resyncs
// at the next END marker and discards the malformed frame.
func (d *SlipDecoder) Feed(stream []byte) ([][]byte, error) {
	var frames [][]byte
	var err error
	for _, b := range stream {
		switch {
		case b == slipEnd:
			if d.started && !d.desynced {
				frame := make([]byte, len(d.buf))
				copy(frame, d.buf)
				frames = append(frames, frame)
			}
			d.buf = d.buf[:0]
			d.started = true
			d.escaping = false
			d.desynced = false
		case d.escaping:
			switch b {
			case slipEscEnd:
				d.buf = append(d.buf, slipEnd)
			case slipEscEsc:
				d.buf = append(d.buf, slipEsc)
			default:
				if err == nil {
					err = &FramingError{Kind: ErrKindBadEscape, Err: ErrBadEscape}
				}
				d.desynced = true
			}
			d.escaping = false
		case b == slipEsc:
			d.escaping = true
		default:
			if d.started {
				d.buf = append(d.buf, b)
			}
		}
	}
	return frames, err
}
