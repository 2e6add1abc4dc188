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
	"bytes"
	"testing"
)

func TestCobsRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0x00, 0x00, 0x00},
		{0x11, 0x22, 0x00, 0x33},
		make([]byte, 600), // forces multiple 254-byte spans
		allBytes(),
	}
	for _, p := range cases {
		enc := CobsEncode(p)
		var dec CobsDecoder
		frames, err := dec.Feed(enc)
		if err != nil {
			t.Fatalf("Feed error on len %d: %v", len(p), err)
		}
		if len(frames) != 1 {
			t.Fatalf("expected 1 frame for len %d, got %d", len(p), len(frames))
		}
		if !bytes.Equal(frames[0], p) {
			t.Fatalf("round trip mismatch for len %d: got %v want %v", len(p), frames[0], p)
		}
	}
}

func TestCobsNoZeroInBody(t *testing.T) {
	p := []byte{0x00, 0x01, 0x00, 0x02, 0x00}
	enc := CobsEncode(p)
	body := enc[:len(enc)-1] // strip trailing delimiter
	for _, b := range body {
		if b == 0x00 {
			t.Fatalf("encoded body contains 0x00: %v", body)
		}
	}
}

func TestCobsTruncated(t *testing.T) {
	_, err := CobsDecode([]byte{0x05, 0x01, 0x02}) // claims 4 more bytes, only 2 present
	if err == nil {
		t.Fatal("expected truncated error")
	}
}
