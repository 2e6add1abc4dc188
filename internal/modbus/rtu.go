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
	"encoding/binary"

	"relaycore/internal/framing"
)

// minRTUFrameLen is slave(1) + fc(1) + crc(2); data may legally be empty.
const minRTUFrameLen = 4

// DecodeRTU parses a complete RTU frame: slave(1) | fc(1) | data(n) |
// crc(2, little-endian, Modbus variant). The CRC is verified before the
// PDU is decoded; a mismatch yields a FramingError(ChecksumMismatch) and
// no PDU.
func DecodeRTU(frame []byte) (*PDU, error) {
	if len(frame) < minRTUFrameLen {
		return nil, &ShortFrameError{Reason: "RTU frame shorter than minimum 4 bytes"}
	}
	body := frame[:len(frame)-2]
	wantCRC := binary.LittleEndian.Uint16(frame[len(frame)-2:])
	gotCRC := framing.CRC16(framing.CRC16Modbus, body)
	if gotCRC != wantCRC {
		return nil, &framing.FramingError{Kind: framing.ErrKindChecksumMismatch, Err: errChecksumMismatch}
	}

	slave := frame[0]
	fc := frame[1]
	data := frame[2 : len(frame)-2]
	return DecodePDU(slave, fc, data)
}

// EncodeRTU serializes slave/fc/data into a complete RTU frame with a
// trailing CRC-16/Modbus.
func EncodeRTU(slave byte, fc byte, data []byte) []byte {
	body := make([]byte, 0, 2+len(data))
	body = append(body, slave, fc)
	body = append(body, data...)
	crc := framing.CRC16(framing.CRC16Modbus, body)
	out := make([]byte, len(body)+2)
	copy(out, body)
	binary.LittleEndian.PutUint16(out[len(body):], crc)
	return out
}

// InterFrameSilence returns the standard Modbus RTU 3.5-character silence
// interval for the given baud rate, the caller-configurable inter-frame
// timeout used to detect frame boundaries on a serial link.
func InterFrameSilence(baud int) float64 {
	if baud <= 0 {
		return 0
	}
	// one character on the wire is ~11 bits (8 data + start + stop + margin);
	// 3.5 character times in seconds.
	charTime := 11.0 / float64(baud)
	return 3.5 * charTime
}
