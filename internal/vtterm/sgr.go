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

// applySGR interprets one CSI "m" parameter list against the screen's
// current render state. Unknown parameters are ignored, matching typical
// terminal tolerance for vendor extensions.
func applySGR(s *Screen, params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			s.curFg = Color{}
			s.curBg = Color{}
			s.curAttrs = 0
		case p == 1:
			s.curAttrs |= AttrBold
		case p == 2:
			s.curAttrs |= AttrDim
		case p == 3:
			s.curAttrs |= AttrItalic
		case p == 4:
			s.curAttrs |= AttrUnderline
		case p == 5 || p == 6:
			s.curAttrs |= AttrBlink
		case p == 7:
			s.curAttrs |= AttrReverse
		case p == 8:
			s.curAttrs |= AttrHidden
		case p == 9:
			s.curAttrs |= AttrStrike
		case p == 22:
			s.curAttrs &^= AttrBold | AttrDim
		case p == 23:
			s.curAttrs &^= AttrItalic
		case p == 24:
			s.curAttrs &^= AttrUnderline
		case p == 25:
			s.curAttrs &^= AttrBlink
		case p == 27:
			s.curAttrs &^= AttrReverse
		case p == 28:
			s.curAttrs &^= AttrHidden
		case p == 29:
			s.curAttrs &^= AttrStrike
		case p >= 30 && p <= 37:
			s.curFg = Color{Mode: ColorIndexed, Index: uint8(p - 30)}
		case p == 38:
			n, c := parseExtendedColor(params, i)
			s.curFg = c
			i += n
		case p == 39:
			s.curFg = Color{}
		case p >= 40 && p <= 47:
			s.curBg = Color{Mode: ColorIndexed, Index: uint8(p - 40)}
		case p == 48:
			n, c := parseExtendedColor(params, i)
			s.curBg = c
			i += n
		case p == 49:
			s.curBg = Color{}
		case p >= 90 && p <= 97:
			s.curFg = Color{Mode: ColorIndexed, Index: uint8(p-90) + 8}
		case p >= 100 && p <= 107:
			s.curBg = Color{Mode: ColorIndexed, Index: uint8(p-100) + 8}
		}
	}
}

// parseExtendedColor decodes the 256-color (38;5;n) or 24-bit (38;2;r;g;b)
// extended color forms starting at params[i+1] (the selector after 38/48),
// returning how many extra params it consumed and the resulting color.
func parseExtendedColor(params []int, i int) (consumed int, c Color) {
	if i+1 >= len(params) {
		return 0, Color{}
	}
	switch params[i+1] {
	case 5:
		if i+2 >= len(params) {
			return 1, Color{}
		}
		return 2, Color{Mode: ColorIndexed, Index: uint8(params[i+2])}
	case 2:
		if i+4 >= len(params) {
			return len(params) - i - 1, Color{}
		}
		return 4, Color{
			Mode: ColorRGB,
			R:    uint8(params[i+2]),
			G:    uint8(params[i+3]),
			B:    uint8(params[i+4]),
		}
	default:
		return 1, Color{}
	}
}
