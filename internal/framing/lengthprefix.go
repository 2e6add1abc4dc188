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

import (
	"encoding/binary"
	"errors"
)

// ErrOversize reports a length-prefix frame whose declared payload length
// exceeds the configured maximum.
var ErrOversize = errors.New("framing: length-prefixed payload exceeds maximum")

// PrefixWidth is the size in bytes of the length prefix.
type PrefixWidth int

const (
	Prefix1 PrefixWidth = 1
	Prefix2 PrefixWidth = 2
	Prefix4 PrefixWidth = 4
)

// LengthPrefixCodec frames payloads with a fixed-width length prefix of
// configurable width and endianness.
type LengthPrefixCodec struct {
	Width      PrefixWidth
	BigEndian  bool
	MaxPayload int // 0 means unbounded

	buf []byte
}

// NewLengthPrefixCodec builds a codec with a 2-byte big-endian prefix and
// no maximum, the common default for line-oriented binary protocols.
func NewLengthPrefixCodec() *LengthPrefixCodec {
	return &LengthPrefixCodec{Width: Prefix2, BigEndian: true}
}

func (c *LengthPrefixCodec) order() binary.ByteOrder {
	if c.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (c *LengthPrefixCodec) putLength(dst []byte, n int) {
	switch c.Width {
	case Prefix1:
		dst[0] = byte(n)
	case Prefix2:
		c.order().PutUint16(dst, uint16(n))
	case Prefix4:
		c.order().PutUint32(dst, uint32(n))
	}
}

func (c *LengthPrefixCodec) getLength(src []byte) int {
	switch c.Width {
	case Prefix1:
		return int(src[0])
	case Prefix2:
		return int(c.order().Uint16(src))
	case Prefix4:
		return int(c.order().Uint32(src))
	}
	return 0
}

// Encode prefixes p with its length. Returns ErrOversize (wrapped in a
// FramingError) if p exceeds MaxPayload.
func (c *LengthPrefixCodec) Encode(p []byte) ([]byte, error) {
	if c.MaxPayload > 0 && len(p) > c.MaxPayload {
		return nil, &FramingError{Kind: ErrKindOversize, Err: ErrOversize}
	}
	out := make([]byte, int(c.Width)+len(p))
	c.putLength(out, len(p))
	copy(out[c.Width:], p)
	return out, nil
}

// Feed appends stream and returns zero or more decoded payloads. The
// decoder waits for a full prefix plus payload before yielding a frame;
// incomplete trailing data is retained. Returns ErrOversize if a declared
// length exceeds MaxPayload, at which point the stream is desynchronized
// and the caller should treat the connection as unrecoverable.
func (c *LengthPrefixCodec) Feed(stream []byte) ([][]byte, error) {
	c.buf = append(c.buf, stream...)
	var frames [][]byte
	width := int(c.Width)
	for {
		if len(c.buf) < width {
			return frames, nil
		}
		n := c.getLength(c.buf)
		if c.MaxPayload > 0 && n > c.MaxPayload {
			return frames, &FramingError{Kind: ErrKindOversize, Err: ErrOversize}
		}
		if len(c.buf) < width+n {
			return frames, nil
		}
		frame := make([]byte, n)
		copy(frame, c.buf[width:width+n])
		frames = append(frames, frame)
		c.buf = c.buf[width+n:]
	}
}
