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

import "encoding/binary"

// mbapLen is the fixed MBAP header length: transaction(2) protocol(2)
// length(2) unit(1).
const mbapLen = 7

// MBAPHeader is the Modbus Application Protocol header preceding every
// Modbus TCP PDU.
type MBAPHeader struct {
	Transaction uint16
	Protocol    uint16 // always 0 for Modbus
	Length      uint16 // byte count of unit+fc+data that follows
	Unit        byte
}

// TCPFrame is a decoded Modbus TCP message: header plus typed PDU.
type TCPFrame struct {
	Header MBAPHeader
	PDU    *PDU
}

// TCPDecoder accumulates a Modbus TCP byte stream (length-delimited via the
// MBAP header) and yields complete frames as they arrive.
type TCPDecoder struct {
	buf []byte
}

// Feed appends stream and returns zero or more decoded frames. Incomplete
// trailing data is retained across calls.
func (d *TCPDecoder) Feed(stream []byte) ([]*TCPFrame, error) {
	d.buf = append(d.buf, stream...)
	var out []*TCPFrame
	for {
		if len(d.buf) < mbapLen {
			return out, nil
		}
		length := binary.BigEndian.Uint16(d.buf[4:6])
		total := mbapLen - 1 + int(length) // header up to+incl unit is 7 bytes, but Length counts unit+fc+data
		if len(d.buf) < total {
			return out, nil
		}
		header := MBAPHeader{
			Transaction: binary.BigEndian.Uint16(d.buf[0:2]),
			Protocol:    binary.BigEndian.Uint16(d.buf[2:4]),
			Length:      length,
			Unit:        d.buf[6],
		}
		if int(length) < 2 {
			return out, &ShortFrameError{Reason: "MBAP length too small to contain a function code"}
		}
		fc := d.buf[7]
		data := d.buf[8:total]
		pdu, err := DecodePDU(header.Unit, fc, data)
		d.buf = d.buf[total:]
		if err != nil {
			return out, err
		}
		out = append(out, &TCPFrame{Header: header, PDU: pdu})
	}
}

// EncodeTCP serializes a Modbus TCP message with its MBAP header.
func EncodeTCP(transaction uint16, unit byte, fc byte, data []byte) []byte {
	body := make([]byte, 0, 1+1+len(data))
	body = append(body, fc)
	body = append(body, data...)

	out := make([]byte, mbapLen+len(body))
	binary.BigEndian.PutUint16(out[0:2], transaction)
	binary.BigEndian.PutUint16(out[2:4], 0) // protocol
	binary.BigEndian.PutUint16(out[4:6], uint16(1+len(body)))
	out[6] = unit
	copy(out[7:], body)
	return out
}
