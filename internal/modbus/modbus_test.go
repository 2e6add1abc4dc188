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
package modbus

import (
	"errors"
	"reflect"
	"testing"

	"relaycore/internal/framing"
)

func TestRTUEncodeDecodeIdentity(t *testing.T) {
	cases := []struct {
		fc   byte
		data []byte
	}{
		{byte(FuncReadHoldingRegisters), []byte{0x04, 0x00, 0x0A, 0x00, 0x0B}},
		{byte(FuncReadCoils), []byte{0x01, 0x01}},
		{byte(FuncWriteSingleCoil), []byte{0x00, 0x10, 0xFF, 0x00}},
		{byte(FuncWriteSingleRegister), []byte{0x00, 0x10, 0x00, 0x2A}},
	}
	for _, c := range cases {
		frame := EncodeRTU(0x01, c.fc, c.data)
		pdu, err := DecodeRTU(frame)
		if err != nil {
			t.Fatalf("fc=%#x: %v", c.fc, err)
		}
		reencoded := EncodeResponse(pdu)
		if !reflect.DeepEqual(reencoded, append([]byte{c.fc}, c.data...)) {
			t.Fatalf("fc=%#x: round trip mismatch: got %v want %v", c.fc, reencoded, append([]byte{c.fc}, c.data...))
		}
	}
}

func TestRTUChecksumMismatch(t *testing.T) {
	frame := []byte{0x01, 0x03, 0x02, 0x00, 0x0A, 0x00, 0x00}
	_, err := DecodeRTU(frame)
	var ferr *framing.FramingError
	if !errors.As(err, &ferr) || ferr.Kind != framing.ErrKindChecksumMismatch {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}
}

func TestRTUException(t *testing.T) {
	frame := EncodeRTU(0x01, byte(FuncReadHoldingRegisters)|0x80, []byte{0x02})
	pdu, err := DecodeRTU(frame)
	if err != nil {
		t.Fatal(err)
	}
	if pdu.Kind != KindException || pdu.Exception != 0x02 {
		t.Fatalf("got %+v", pdu)
	}
}

func TestRTUUnknownFunctionIsRaw(t *testing.T) {
	frame := EncodeRTU(0x01, 0x44, []byte{0xAA, 0xBB})
	pdu, err := DecodeRTU(frame)
	if err != nil {
		t.Fatal(err)
	}
	if pdu.Kind != KindRaw || !reflect.DeepEqual(pdu.Raw, []byte{0xAA, 0xBB}) {
		t.Fatalf("got %+v", pdu)
	}
}

func TestTCPDecoderFramesAcrossFeeds(t *testing.T) {
	msg := EncodeTCP(7, 0x01, byte(FuncReadHoldingRegisters), []byte{0x04, 0x00, 0x0A, 0x00, 0x0B})
	var d TCPDecoder
	frames, err := d.Feed(msg[:5])
	if err != nil || len(frames) != 0 {
		t.Fatalf("expected no frames yet: %v %v", frames, err)
	}
	frames, err = d.Feed(msg[5:])
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Header.Transaction != 7 || f.Header.Unit != 0x01 {
		t.Fatalf("got %+v", f.Header)
	}
	if f.PDU.Kind != KindRegister || !reflect.DeepEqual(f.PDU.Registers, []uint16{0x0A, 0x0B}) {
		t.Fatalf("got %+v", f.PDU)
	}
}

func TestInterFrameSilence(t *testing.T) {
	if s := InterFrameSilence(9600); s <= 0 {
		t.Fatalf("expected positive silence interval, got %v", s)
	}
	if s := InterFrameSilence(0); s != 0 {
		t.Fatalf("expected zero for non-positive baud, got %v", s)
	}
}
