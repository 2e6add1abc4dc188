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
// Package modbus decodes Modbus RTU and TCP protocol data units on top of
// the framing/checksum primitives in internal/framing.
package modbus

import (
	"errors"
	"fmt"
)

var errChecksumMismatch = errors.New("modbus: RTU CRC mismatch")

// FunctionCode identifies a Modbus request/response function.
type FunctionCode byte

const (
	FuncReadCoils              FunctionCode = 0x01
	FuncReadDiscreteInputs     FunctionCode = 0x02
	FuncReadHoldingRegisters   FunctionCode = 0x03
	FuncReadInputRegisters     FunctionCode = 0x04
	FuncWriteSingleCoil        FunctionCode = 0x05
	FuncWriteSingleRegister    FunctionCode = 0x06
	FuncWriteMultipleCoils     FunctionCode = 0x0F
	FuncWriteMultipleRegisters FunctionCode = 0x10

	exceptionBit = 0x80
)

// Kind classifies a decoded PDU's payload shape.
type Kind int

const (
	KindBits     Kind = iota // coils / discrete inputs
	KindRegister             // uint16 registers
	KindRaw                  // unknown function code, passed through
	KindException
)

// PDU is the decoded result of a Modbus protocol data unit.
type PDU struct {
	Slave    byte // RTU slave address; for TCP, the MBAP unit id
	Function FunctionCode
	Kind     Kind

	Address   uint16   // write functions: starting address
	Bits      []bool   // KindBits
	Registers []uint16 // KindRegister
	Raw       []byte   // KindRaw: fc-stripped payload as received
	Exception byte     // KindException: exception code 1..11
}

// ExceptionError reports a Modbus exception response.
type ExceptionError struct {
	Function FunctionCode
	Code     byte
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus: exception 0x%02x on function 0x%02x", e.Code, byte(e.Function))
}

// ShortFrameError reports a PDU too short to contain its declared fields.
type ShortFrameError struct {
	Reason string
}

func (e *ShortFrameError) Error() string { return "modbus: short frame: " + e.Reason }

// UnknownFunctionError is not itself an error value returned by Decode
// (unknown function codes decode successfully as KindRaw); it is kept for
// callers that want to distinguish "didn't understand this FC" after the
// fact.
type UnknownFunctionError struct {
	Function FunctionCode
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("modbus: unknown function code 0x%02x", byte(e.Function))
}
