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
package vtterm

import (
	"testing"
)

func TestPlainTextAdvancesCursor(t *testing.T) {
	e := NewEmulator(24, 80)
	e.Write([]byte("hi"))
	if got := e.Screen.Cell(1, 1).Rune; got != 'h' {
		t.Fatalf("cell(1,1) = %q", got)
	}
	if got := e.Screen.Cell(1, 2).Rune; got != 'i' {
		t.Fatalf("cell(1,2) = %q", got)
	}
	if c := e.Screen.Cursor(); c.Row != 1 || c.Col != 3 {
		t.Fatalf("cursor = %+v", c)
	}
}

func TestCRLFAndScroll(t *testing.T) {
	e := NewEmulator(2, 10)
	e.Write([]byte("row1\r\nrow2\r\nrow3"))
	if got := e.Screen.Cell(1, 1).Rune; got != 'r' {
		t.Fatalf("expected scroll to have happened, row1 cell = %q", got)
	}
	if got := string(cellsToRunes(e.Screen, 2)); got[:4] != "row3" {
		t.Fatalf("row2 = %q", got)
	}
}

func cellsToRunes(s *Screen, row int) []rune {
	out := make([]rune, s.cols)
	for c := 1; c <= s.cols; c++ {
		out[c-1] = s.Cell(row, c).Rune
	}
	return out
}

func TestSGRRedForeground(t *testing.T) {
	e := NewEmulator(24, 80)
	e.Write([]byte("\x1b[31mred\x1b[0m"))
	cell := e.Screen.Cell(1, 1)
	if cell.Rune != 'r' {
		t.Fatalf("rune = %q", cell.Rune)
	}
	if cell.Fg.Mode != ColorIndexed || cell.Fg.Index != 1 {
		t.Fatalf("fg = %+v", cell.Fg)
	}
	reset := e.Screen.Cell(1, 4)
	_ = reset // cursor past "red"; nothing written there yet
}

func TestSGR24BitColor(t *testing.T) {
	e := NewEmulator(24, 80)
	e.Write([]byte("\x1b[38;2;10;20;30mx"))
	cell := e.Screen.Cell(1, 1)
	if cell.Fg.Mode != ColorRGB || cell.Fg.R != 10 || cell.Fg.G != 20 || cell.Fg.B != 30 {
		t.Fatalf("fg = %+v", cell.Fg)
	}
}

func TestCursorPositioningClips(t *testing.T) {
	e := NewEmulator(10, 10)
	e.Write([]byte("\x1b[999;999H"))
	c := e.Screen.Cursor()
	if c.Row != 10 || c.Col != 10 {
		t.Fatalf("cursor = %+v, want clipped to (10,10)", c)
	}
}

func TestEraseInDisplay(t *testing.T) {
	e := NewEmulator(3, 5)
	e.Write([]byte("aaaaa\r\nbbbbb\r\nccccc"))
	e.Write([]byte("\x1b[H\x1b[2J"))
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 5; c++ {
			if got := e.Screen.Cell(r, c).Rune; got != ' ' {
				t.Fatalf("cell(%d,%d) = %q, want blank after ED 2", r, c, got)
			}
		}
	}
}

func TestAlternateScreenSwitch(t *testing.T) {
	e := NewEmulator(5, 5)
	e.Write([]byte("primary"))
	e.Write([]byte("\x1b[?1049h"))
	e.Write([]byte("alt"))
	if got := e.Screen.Cell(1, 1).Rune; got != 'a' {
		t.Fatalf("alt screen cell(1,1) = %q", got)
	}
	e.Write([]byte("\x1b[?1049l"))
	if got := e.Screen.Cell(1, 1).Rune; got != 'p' {
		t.Fatalf("primary screen cell(1,1) = %q after returning", got)
	}
}

func TestUTF8MultibyteDecoding(t *testing.T) {
	e := NewEmulator(5, 10)
	e.Write([]byte("caf\xc3\xa9")) // "café"
	if got := e.Screen.Cell(1, 4).Rune; got != 'é' {
		t.Fatalf("cell(1,4) = %q", got)
	}
}

func TestNoCrashOnArbitraryBytes(t *testing.T) {
	e := NewEmulator(24, 80)
	// A grab-bag of control sequences, truncated escapes, and raw high
	// bytes: the parser must never panic regardless of input shape.
	inputs := [][]byte{
		{0x1b},
		{0x1b, '['},
		{0x1b, '[', '9', '9', ';'},
		{0x1b, '[', '?', '2', '5'},
		{0xff, 0xfe, 0x80, 0x81},
		{0x1b, ']', '0', ';', 't', 'i', 't', 'l', 'e'},
		{0x1b, 'P', 'a', 'b', 'c'},
		[]byte("\x1b[38;2;1;2"), // truncated extended color
	}
	for _, in := range inputs {
		e.Write(in)
	}
	e.Write([]byte("still alive"))
}

func TestDeviceStatusReportQueuesResponse(t *testing.T) {
	e := NewEmulator(24, 80)
	e.Write([]byte("\x1b[6n"))
	resp := e.Pending()
	if len(resp) == 0 {
		t.Fatal("expected a queued CPR response")
	}
}

func TestOSCWindowTitle(t *testing.T) {
	e := NewEmulator(24, 80)
	e.Write([]byte("\x1b]0;build console\x07"))
	if got := e.Screen.Title(); got != "build console" {
		t.Fatalf("Title() = %q, want %q", got, "build console")
	}
}

func TestOSCTerminatedBySTDoesNotPrintBackslash(t *testing.T) {
	e := NewEmulator(24, 80)
	e.Write([]byte("\x1b]2;t\x1b\\after"))
	if got := e.Screen.Title(); got != "t" {
		t.Fatalf("Title() = %q, want %q", got, "t")
	}
	if got := e.Screen.Cell(1, 1).Rune; got != 'a' {
		t.Fatalf("cell(1,1) = %q, want 'a' (ST terminator must be consumed)", got)
	}
}

func TestBracketedPasteAndMouseModes(t *testing.T) {
	e := NewEmulator(24, 80)
	e.Write([]byte("\x1b[?2004h\x1b[?1000h\x1b[?1006h"))
	if !e.Screen.BracketedPaste() {
		t.Fatal("expected bracketed paste enabled after DECSET 2004")
	}
	if on, sgr := e.Screen.MouseReporting(); !on || !sgr {
		t.Fatalf("MouseReporting() = (%v, %v), want both enabled", on, sgr)
	}
	e.Write([]byte("\x1b[?2004l"))
	if e.Screen.BracketedPaste() {
		t.Fatal("expected bracketed paste disabled after DECRST 2004")
	}
}

func TestCSILeadingEmptyParameterDefaults(t *testing.T) {
	e := NewEmulator(24, 80)
	e.Write([]byte("\x1b[;5H")) // row omitted, column 5
	if c := e.Screen.Cursor(); c.Row != 1 || c.Col != 5 {
		t.Fatalf("cursor = %+v, want (1,5)", c)
	}
}
