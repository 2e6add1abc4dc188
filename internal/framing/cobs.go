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

// ErrTruncated reports a COBS overhead byte promising more data than the
// frame actually contains.
var ErrTruncated = errors.New("framing: truncated COBS frame")

// CobsEncode applies Consistent Overhead Byte Stuffing and appends the
// trailing 0x00 frame delimiter: the output contains no 0x00 byte except
// that delimiter (a single leading overhead byte precedes each zero-free
// run of up to 254 bytes). Empty input is legal and encodes to 0x01 0x00.
func CobsEncode(p []byte) []byte {
	out := make([]byte, 0, len(p)+len(p)/254+2)
	codeIdx := len(out)
	out = append(out, 0) // placeholder overhead byte
	code := byte(1)

	flush := func() {
		out[codeIdx] = code
		codeIdx = len(out)
		out = append(out, 0)
		code = 1
	}

	for _, b := range p {
		if b == 0 {
			flush()
			continue
		}
		out = append(out, b)
		code++
		if code == 0xFF {
			flush()
		}
	}
	out[codeIdx] = code
	out = append(out, 0x00) // frame delimiter
	return out
}

// CobsDecode reverses CobsEncode on a single delimiter-stripped frame
// (callers are expected to have already split on the trailing 0x00
// delimiter, e.g. via CobsDecoder). Returns ErrTruncated wrapped in a
// FramingError if an overhead byte claims more bytes than remain.
func CobsDecode(p []byte) ([]byte, error) {
	out := make([]byte, 0, len(p))
	i := 0
	for i < len(p) {
		code := int(p[i])
		if code == 0 {
			return nil, &FramingError{Kind: ErrKindTruncated, Err: ErrTruncated}
		}
		i++
		span := code - 1
		if i+span > len(p) {
			return nil, &FramingError{Kind: ErrKindTruncated, Err: ErrTruncated}
		}
		out = append(out, p[i:i+span]...)
		i += span
		if code < 0xFF && i < len(p) {
			out = append(out, 0)
		}
	}
	return out, nil
}

// CobsDecoder accumulates a zero-delimited COBS byte stream (the Cheshire-
// Baker convention: 0x00 terminates each frame) and yields decoded payloads
// as frames complete. Incomplete trailing data is retained across calls.
type CobsDecoder struct {
	buf []byte
}

// Feed appends stream and returns zero or more decoded payloads, plus the
// first decode error encountered (frames after a bad one are still
// attempted).
func (d *CobsDecoder) Feed(stream []byte) ([][]byte, error) {
	var frames [][]byte
	var firstErr error
	for _, b := range stream {
		if b == 0 {
			payload, err := CobsDecode(d.buf)
			d.buf = d.buf[:0]
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			frames = append(frames, payload)
			continue
		}
		d.buf = append(d.buf, b)
	}
	return frames, firstErr
}
