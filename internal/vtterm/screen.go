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
// Package vtterm implements a VT100/VT220/ANSI terminal emulator: a
// byte-by-byte CSI/SGR/OSC parser driving a fixed-size screen buffer model.
package vtterm

// Attrs packs the boolean SGR render attributes into bit flags.
type Attrs uint8

const (
	AttrBold Attrs = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrReverse
	AttrHidden
	AttrStrike
)

// ColorMode tags how a Cell's foreground/background color is represented.
type ColorMode uint8

const (
	ColorDefault ColorMode = iota
	ColorIndexed           // 0-255, including the 16 ANSI/bright colors
	ColorRGB
)

// Color is a terminal color in one of three representations: the 16 ANSI
// colors, 256-indexed, or 24-bit direct.
type Color struct {
	Mode    ColorMode
	Index   uint8
	R, G, B uint8
}

// Cell is a single screen position: a Unicode code point plus its render
// state.
type Cell struct {
	Rune  rune
	Fg    Color
	Bg    Color
	Attrs Attrs
}

func blankCell() Cell {
	return Cell{Rune: ' '}
}

// CursorStyle names a cursor shape. The parser does not interpret DECSCUSR,
// so Cursor.Style stays at its zero value, CursorBlock.
type CursorStyle int

const (
	CursorBlock CursorStyle = iota
	CursorUnderline
	CursorBar
)

// Cursor is the terminal's cursor state, 1-indexed; cursor operations
// clip to [1,rows]x[1,cols].
type Cursor struct {
	Row, Col int
	Visible  bool
	Style    CursorStyle
}

// savedCursor mirrors DECSC/DECRC save/restore (and CSI s / CSI u): the
// alternate buffer shares this saved state with the primary.
type savedCursor struct {
	valid bool
	cur   Cursor
	fg    Color
	bg    Color
	attrs Attrs
}

// buffer is one of the two (primary/alternate) grids of identical
// dimensions that make up a Screen.
type buffer struct {
	rows, cols int
	cells      [][]Cell
}

func newBuffer(rows, cols int) *buffer {
	b := &buffer{rows: rows, cols: cols}
	b.cells = make([][]Cell, rows)
	for r := range b.cells {
		b.cells[r] = make([]Cell, cols)
		for c := range b.cells[r] {
			b.cells[r][c] = blankCell()
		}
	}
	return b
}

// resize preserves content, clipping from the top when shrinking height and
// right-padding with blanks when growing either dimension.
func (b *buffer) resize(rows, cols int) {
	newCells := make([][]Cell, rows)
	rowOffset := 0
	if b.rows > rows {
		rowOffset = b.rows - rows // clip from the top: keep the bottom `rows` rows
	}
	for r := 0; r < rows; r++ {
		newCells[r] = make([]Cell, cols)
		for c := range newCells[r] {
			newCells[r][c] = blankCell()
		}
		srcRow := r + rowOffset
		if srcRow >= 0 && srcRow < b.rows {
			n := cols
			if b.cols < n {
				n = b.cols
			}
			copy(newCells[r][:n], b.cells[srcRow][:n])
		}
	}
	b.rows, b.cols = rows, cols
	b.cells = newCells
}

// Screen is the terminal's two-buffer display model: a primary buffer with
// attached scrollback, and an alternate buffer used by full-screen
// programs (DECSET ?1049) that shares cursor-saved state but not
// scrollback.
type Screen struct {
	rows, cols int

	primary *buffer
	alt     *buffer
	altMode bool

	scrollback    [][]Cell // primary only
	maxScrollback int

	cursor Cursor
	saved  savedCursor

	curFg, curBg Color
	curAttrs     Attrs

	scrollTop, scrollBottom int // 0-indexed, inclusive
	autowrap                bool
	pendingWrap             bool

	g0LineDrawing bool // DEC special graphics charset active on G0

	title          string // last OSC 0/1/2 window title
	bracketedPaste bool   // DECSET ?2004
	mouseTracking  bool   // DECSET ?1000
	mouseSGR       bool   // DECSET ?1006
}

// NewScreen builds a rows x cols screen with autowrap enabled and the
// cursor at the home position, matching common terminal defaults.
func NewScreen(rows, cols int) *Screen {
	s := &Screen{
		rows: rows, cols: cols,
		primary:       newBuffer(rows, cols),
		alt:           newBuffer(rows, cols),
		maxScrollback: 10000,
		cursor:        Cursor{Row: 1, Col: 1, Visible: true},
		scrollTop:     0,
		scrollBottom:  rows - 1,
		autowrap:      true,
	}
	return s
}

func (s *Screen) active() *buffer {
	if s.altMode {
		return s.alt
	}
	return s.primary
}

// Resize applies a new terminal size to both buffers, clipping cursor
// position into range.
func (s *Screen) Resize(rows, cols int) {
	s.primary.resize(rows, cols)
	s.alt.resize(rows, cols)
	s.rows, s.cols = rows, cols
	s.scrollTop, s.scrollBottom = 0, rows-1
	s.clipCursor()
}

// Cell returns the cell at 1-indexed (row, col) in the active buffer.
func (s *Screen) Cell(row, col int) Cell {
	b := s.active()
	if row < 1 || row > b.rows || col < 1 || col > b.cols {
		return blankCell()
	}
	return b.cells[row-1][col-1]
}

// Cursor returns the current cursor state.
func (s *Screen) Cursor() Cursor { return s.cursor }

// Title returns the window title most recently set via OSC 0/1/2, or the
// empty string if none has been set.
func (s *Screen) Title() string { return s.title }

// BracketedPaste reports whether the application has enabled bracketed
// paste mode (DECSET ?2004); hosts wrap pasted text in ESC[200~ / ESC[201~
// when it is on.
func (s *Screen) BracketedPaste() bool { return s.bracketedPaste }

// MouseReporting reports whether X11 mouse tracking (DECSET ?1000) is
// enabled and whether SGR extended coordinates (DECSET ?1006) apply.
func (s *Screen) MouseReporting() (enabled, sgr bool) {
	return s.mouseTracking, s.mouseSGR
}

// SetAlternateBuffer switches between the primary and alternate buffers
// (DECSET/DECRST ?1049). Entering the alternate buffer clears it;
// returning to the primary buffer leaves its contents as they were. Either
// switch moves the cursor to the home position.
func (s *Screen) SetAlternateBuffer(enabled bool) {
	if enabled == s.altMode {
		return
	}
	s.altMode = enabled
	if enabled {
		// entering the alt screen always starts from a blank page; the
		// primary buffer underneath is left untouched for when we return.
		for r := range s.alt.cells {
			for c := range s.alt.cells[r] {
				s.alt.cells[r][c] = blankCell()
			}
		}
	}
	s.cursor.Row, s.cursor.Col = 1, 1
}

func (s *Screen) clipCursor() {
	if s.cursor.Row < 1 {
		s.cursor.Row = 1
	}
	if s.cursor.Row > s.rows {
		s.cursor.Row = s.rows
	}
	if s.cursor.Col < 1 {
		s.cursor.Col = 1
	}
	if s.cursor.Col > s.cols {
		s.cursor.Col = s.cols
	}
}

// put writes r at the current cursor position honoring autowrap, advances
// the cursor, and scrolls the active region when the cursor runs past the
// bottom margin.
func (s *Screen) put(r rune) {
	if s.pendingWrap {
		if s.autowrap {
			s.newline()
			s.cursor.Col = 1
		}
		s.pendingWrap = false
	}
	b := s.active()
	row, col := s.cursor.Row, s.cursor.Col
	if row >= 1 && row <= b.rows && col >= 1 && col <= b.cols {
		b.cells[row-1][col-1] = Cell{Rune: r, Fg: s.curFg, Bg: s.curBg, Attrs: s.curAttrs}
	}
	if col >= s.cols {
		// defer the wrap: the cursor visually rests on the last column
		// until the next printable character arrives (xterm behavior).
		if s.autowrap {
			s.pendingWrap = true
		}
	} else {
		s.cursor.Col++
	}
}

// newline moves the cursor down one row, scrolling the active scroll
// region up by one line if the cursor is already at the bottom margin.
func (s *Screen) newline() {
	if s.cursor.Row-1 == s.scrollBottom {
		s.scrollUp(1)
		return
	}
	if s.cursor.Row < s.rows {
		s.cursor.Row++
	}
}

// scrollUp shifts the active scroll region up n lines, appending blank
// lines at the bottom. Scrollback only accumulates for the primary buffer
// and only when the scroll region starts at row 1, whether or not it
// extends to the last row.
func (s *Screen) scrollUp(n int) {
	b := s.active()
	top, bottom := s.scrollTop, s.scrollBottom
	for i := 0; i < n; i++ {
		if !s.altMode && top == 0 {
			line := make([]Cell, len(b.cells[top]))
			copy(line, b.cells[top])
			s.scrollback = append(s.scrollback, line)
			if len(s.scrollback) > s.maxScrollback {
				s.scrollback = s.scrollback[len(s.scrollback)-s.maxScrollback:]
			}
		}
		copy(b.cells[top:bottom], b.cells[top+1:bottom+1])
		blank := make([]Cell, b.cols)
		for c := range blank {
			blank[c] = blankCell()
		}
		b.cells[bottom] = blank
	}
}

// scrollDown shifts the active scroll region down n lines (reverse index,
// CSI...T / scroll-region reverse), inserting blank lines at the top.
func (s *Screen) scrollDown(n int) {
	b := s.active()
	top, bottom := s.scrollTop, s.scrollBottom
	for i := 0; i < n; i++ {
		copy(b.cells[top+1:bottom+1], b.cells[top:bottom])
		blank := make([]Cell, b.cols)
		for c := range blank {
			blank[c] = blankCell()
		}
		b.cells[top] = blank
	}
}

// SetScrollRegion sets the scroll region (CSI r), 1-indexed inclusive.
func (s *Screen) SetScrollRegion(top, bottom int) {
	if top < 1 {
		top = 1
	}
	if bottom > s.rows {
		bottom = s.rows
	}
	if top >= bottom {
		s.scrollTop, s.scrollBottom = 0, s.rows-1
		return
	}
	s.scrollTop, s.scrollBottom = top-1, bottom-1
	s.cursor.Row, s.cursor.Col = 1, 1
}

// Scrollback returns the primary buffer's retained off-screen lines,
// oldest first.
func (s *Screen) Scrollback() [][]Cell { return s.scrollback }
