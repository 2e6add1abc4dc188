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

// DecodePDU interprets fc and the bytes following it (data) into a typed
// PDU. Unknown function codes are returned as KindRaw rather than an
// error. A high function-code bit (fc&0x80) indicates a Modbus exception
// response and is decoded as KindException with a one-byte exception code.
func DecodePDU(slave byte, fc byte, data []byte) (*PDU, error) {
	if fc&exceptionBit != 0 {
		if len(data) < 1 {
			return nil, &ShortFrameError{Reason: "exception response missing code"}
		}
		return &PDU{
			Slave:     slave,
			Function:  FunctionCode(fc & 0x7F),
			Kind:      KindException,
			Exception: data[0],
		}, nil
	}

	switch FunctionCode(fc) {
	case FuncReadCoils, FuncReadDiscreteInputs:
		return decodeBitsResponse(slave, FunctionCode(fc), data)
	case FuncReadHoldingRegisters, FuncReadInputRegisters:
		return decodeRegistersResponse(slave, FunctionCode(fc), data)
	case FuncWriteSingleCoil:
		return decodeWriteSingleCoil(slave, data)
	case FuncWriteSingleRegister:
		return decodeWriteSingleRegister(slave, data)
	case FuncWriteMultipleCoils:
		return decodeWriteMultipleCoils(slave, data)
	case FuncWriteMultipleRegisters:
		return decodeWriteMultipleRegisters(slave, data)
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return &PDU{Slave: slave, Function: FunctionCode(fc), Kind: KindRaw, Raw: raw}, nil
	}
}

func decodeBitsResponse(slave byte, fc FunctionCode, data []byte) (*PDU, error) {
	if len(data) < 1 {
		return nil, &ShortFrameError{Reason: "missing byte count"}
	}
	count := int(data[0])
	if len(data) < 1+count {
		return nil, &ShortFrameError{Reason: "byte count exceeds available data"}
	}
	bits := unpackBits(data[1 : 1+count])
	return &PDU{Slave: slave, Function: fc, Kind: KindBits, Bits: bits}, nil
}

func decodeRegistersResponse(slave byte, fc FunctionCode, data []byte) (*PDU, error) {
	if len(data) < 1 {
		return nil, &ShortFrameError{Reason: "missing byte count"}
	}
	count := int(data[0])
	if len(data) < 1+count || count%2 != 0 {
		return nil, &ShortFrameError{Reason: "byte count exceeds available data or is odd"}
	}
	regs := unpackRegistersBE(data[1 : 1+count])
	return &PDU{Slave: slave, Function: fc, Kind: KindRegister, Registers: regs}, nil
}

func decodeWriteSingleCoil(slave byte, data []byte) (*PDU, error) {
	if len(data) < 4 {
		return nil, &ShortFrameError{Reason: "write single coil requires 4 bytes"}
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])
	return &PDU{Slave: slave, Function: FuncWriteSingleCoil, Kind: KindBits, Address: addr, Bits: []bool{value == 0xFF00}}, nil
}

func decodeWriteSingleRegister(slave byte, data []byte) (*PDU, error) {
	if len(data) < 4 {
		return nil, &ShortFrameError{Reason: "write single register requires 4 bytes"}
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])
	return &PDU{Slave: slave, Function: FuncWriteSingleRegister, Kind: KindRegister, Address: addr, Registers: []uint16{value}}, nil
}

func decodeWriteMultipleCoils(slave byte, data []byte) (*PDU, error) {
	if len(data) < 4 {
		return nil, &ShortFrameError{Reason: "write multiple coils requires at least 4 bytes"}
	}
	if len(data) == 4 {
		// response form: address + quantity, no bit payload present.
		return &PDU{Slave: slave, Function: FuncWriteMultipleCoils, Kind: KindBits}, nil
	}
	byteCount := int(data[4])
	if len(data) < 5+byteCount {
		return nil, &ShortFrameError{Reason: "write multiple coils byte count exceeds available data"}
	}
	bits := unpackBits(data[5 : 5+byteCount])
	return &PDU{Slave: slave, Function: FuncWriteMultipleCoils, Kind: KindBits, Bits: bits}, nil
}

func decodeWriteMultipleRegisters(slave byte, data []byte) (*PDU, error) {
	if len(data) < 4 {
		return nil, &ShortFrameError{Reason: "write multiple registers requires at least 4 bytes"}
	}
	if len(data) == 4 {
		return &PDU{Slave: slave, Function: FuncWriteMultipleRegisters, Kind: KindRegister}, nil
	}
	byteCount := int(data[4])
	if len(data) < 5+byteCount || byteCount%2 != 0 {
		return nil, &ShortFrameError{Reason: "write multiple registers byte count exceeds available data or is odd"}
	}
	regs := unpackRegistersBE(data[5 : 5+byteCount])
	return &PDU{Slave: slave, Function: FuncWriteMultipleRegisters, Kind: KindRegister, Registers: regs}, nil
}

func unpackBits(b []byte) []bool {
	bits := make([]bool, 0, len(b)*8)
	for _, byteVal := range b {
		for i := 0; i < 8; i++ {
			bits = append(bits, byteVal&(1<<uint(i)) != 0)
		}
	}
	return bits
}

func unpackRegistersBE(b []byte) []uint16 {
	regs := make([]uint16, len(b)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(b[i*2 : i*2+2])
	}
	return regs
}

// EncodeResponse serializes a PDU back into fc+data form, for round-trip
// testing and for constructing responses. It is the inverse of DecodePDU
// for exception, raw, read (0x01-0x04) and write-single (0x05, 0x06) PDUs.
// Write-multiple PDUs (0x0F, 0x10) do not round-trip: DecodePDU keeps
// neither their address nor their quantity, and they are encoded in the
// read-response form (byte count followed by the values).
func EncodeResponse(p *PDU) []byte {
	switch p.Kind {
	case KindException:
		return []byte{byte(p.Function) | exceptionBit, p.Exception}
	case KindBits:
		switch p.Function {
		case FuncWriteSingleCoil:
			value := uint16(0x0000)
			if len(p.Bits) > 0 && p.Bits[0] {
				value = 0xFF00
			}
			out := make([]byte, 5)
			out[0] = byte(p.Function)
			binary.BigEndian.PutUint16(out[1:3], p.Address)
			binary.BigEndian.PutUint16(out[3:5], value)
			return out
		default:
			packed := packBits(p.Bits)
			out := []byte{byte(p.Function), byte(len(packed))}
			return append(out, packed...)
		}
	case KindRegister:
		switch p.Function {
		case FuncWriteSingleRegister:
			out := make([]byte, 5)
			out[0] = byte(p.Function)
			binary.BigEndian.PutUint16(out[1:3], p.Address)
			if len(p.Registers) > 0 {
				binary.BigEndian.PutUint16(out[3:5], p.Registers[0])
			}
			return out
		default:
			out := []byte{byte(p.Function), byte(len(p.Registers) * 2)}
			for _, r := range p.Registers {
				buf := make([]byte, 2)
				binary.BigEndian.PutUint16(buf, r)
				out = append(out, buf...)
			}
			return out
		}
	case KindRaw:
		return append([]byte{byte(p.Function)}, p.Raw...)
	}
	return nil
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
