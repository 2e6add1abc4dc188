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
	"bytes"
	"testing"

	"relaycore/internal/framing"
)

func TestStxEtxAdapterNeverErrors(t *testing.T) {
	codec := framing.NewStxEtxCodec()
	dec := NewStxEtxDecoder(codec)

	frames, err := dec.Feed(append(codec.Encode([]byte("frame1")), codec.Encode([]byte("frame2"))...))
	if err != nil {
		t.Fatalf("Feed() error = %v, want nil", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], []byte("frame1")) || !bytes.Equal(frames[1], []byte("frame2")) {
		t.Fatalf("frames = %q, %q", frames[0], frames[1])
	}
}

func TestStxEtxAdapterHandlesSplitStream(t *testing.T) {
	codec := framing.NewStxEtxCodec()
	dec := NewStxEtxDecoder(codec)
	encoded := codec.Encode([]byte("split"))

	frames, err := dec.Feed(encoded[:len(encoded)/2])
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames from partial stream, want 0", len(frames))
	}
	frames, err = dec.Feed(encoded[len(encoded)/2:])
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte("split")) {
		t.Fatalf("frames = %v, want [\"split\"]", frames)
	}
}
