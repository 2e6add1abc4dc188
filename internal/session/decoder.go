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
	"time"

	"relaycore/internal/framing"
	"relaycore/internal/modbus"
)

// FrameDecoder is the uniform interface the dispatcher drives a
// SetDecoder-configured framing codec through: feed raw inbound bytes,
// get back zero or more complete frame payloads.
type FrameDecoder interface {
	Feed(stream []byte) ([][]byte, error)
}

// ProtocolNamed is implemented by a FrameDecoder that knows what protocol
// it decodes, surfaced on a ProtocolDecoded Packet.
type ProtocolNamed interface {
	ProtocolName() string
}

// FrameMetadata is implemented by a FrameDecoder that can extract
// protocol-specific fields from an already-extracted frame, surfaced on a
// ProtocolDecoded Packet's Metadata.
type FrameMetadata interface {
	Metadata(frame []byte) map[string]interface{}
}

// Direction marks which way a Packet travelled relative to this session.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// Packet is one fully decoded protocol frame, published alongside (not in
// place of) the raw BytesIn/BytesOut stream once a protocol decoder has
// recognized a complete frame.
type Packet struct {
	Timestamp    time.Time
	Direction    Direction
	Data         []byte
	ProtocolName string
	Metadata     map[string]interface{}
}

// stxEtxAdapter adapts framing.StxEtxCodec's error-free Feed to
// FrameDecoder, since STX/ETX framing has no failure mode of its own
// (unmatched bytes are simply discarded, not reported).
type stxEtxAdapter struct {
	codec *framing.StxEtxCodec
}

// NewStxEtxDecoder wraps codec as a FrameDecoder.
func NewStxEtxDecoder(codec *framing.StxEtxCodec) FrameDecoder {
	return stxEtxAdapter{codec: codec}
}

func (a stxEtxAdapter) Feed(stream []byte) ([][]byte, error) {
	return a.codec.Feed(stream), nil
}

// modbusRTUAdapter decodes Modbus RTU frames, one per Feed call. RTU has
// no start/end markers of its own — frame boundaries are normally found
// via the 3.5-character inter-frame silence (modbus.InterFrameSilence) —
// so this adapter relies on the same boundary the dispatcher's serial
// read timeout already approximates: each inbound chunk handed to Feed is
// treated as one candidate frame.
type modbusRTUAdapter struct{}

// NewModbusRTUDecoder returns a FrameDecoder that decodes Modbus RTU
// frames and surfaces their PDU fields via FrameMetadata.
func NewModbusRTUDecoder() FrameDecoder { return modbusRTUAdapter{} }

func (modbusRTUAdapter) ProtocolName() string { return "modbus-rtu" }

func (modbusRTUAdapter) Feed(stream []byte) ([][]byte, error) {
	if len(stream) == 0 {
		return nil, nil
	}
	if _, err := modbus.DecodeRTU(stream); err != nil {
		return nil, err
	}
	return [][]byte{stream}, nil
}

func (modbusRTUAdapter) Metadata(frame []byte) map[string]interface{} {
	pdu, err := modbus.DecodeRTU(frame)
	if err != nil {
		return nil
	}
	md := map[string]interface{}{
		"slave":    pdu.Slave,
		"function": byte(pdu.Function),
		"kind":     int(pdu.Kind),
	}
	switch pdu.Kind {
	case modbus.KindBits:
		md["bits"] = pdu.Bits
	case modbus.KindRegister:
		md["registers"] = pdu.Registers
	case modbus.KindException:
		md["exception"] = pdu.Exception
	case modbus.KindRaw:
		md["raw"] = pdu.Raw
	}
	return md
}
