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

// Default STX/ETX delimiters.
const (
	DefaultSTX byte = 0x02
	DefaultETX byte = 0x03
)

// StxEtxCodec encodes/decodes frames delimited by a configurable STX/ETX
// byte pair. There is no payload escaping: callers must guarantee payloads
// never contain either delimiter.
type StxEtxCodec struct {
	STX, ETX byte

	buf     []byte
	inFrame bool
}

// NewStxEtxCodec builds a codec using the default 0x02/0x03 delimiters.
func NewStxEtxCodec() *StxEtxCodec {
	return &StxEtxCodec{STX: DefaultSTX, ETX: DefaultETX}
}

// Encode wraps p with STX and ETX.
func (c *StxEtxCodec) Encode(p []byte) []byte {
	out := make([]byte, 0, len(p)+2)
	out = append(out, c.STX)
	out = append(out, p...)
	out = append(out, c.ETX)
	return out
}

// Feed appends stream and returns zero or more decoded payloads. Bytes
// outside an STX...ETX span are discarded.
func (c *StxEtxCodec) Feed(stream []byte) [][]byte {
	var frames [][]byte
	for _, b := range stream {
		switch {
		case b == c.STX:
			c.inFrame = true
			c.buf = c.buf[:0]
		case b == c.ETX:
			if c.inFrame {
				frame := make([]byte, len(c.buf))
				copy(frame, c.buf)
				frames = append(frames, frame)
				c.inFrame = false
			}
		case c.inFrame:
			c.buf = append(c.buf, b)
		}
	}
	return frames
}
