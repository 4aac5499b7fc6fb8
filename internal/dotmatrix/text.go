package dotmatrix

import (
	"periph.io/x/devices/v3/max7219"
)

const (
	GlyphSize  = 8
	spaceWidth = 4
	glyphGap   = 2
)

// Font is indexed by character code. Each glyph is eight rows, top first, with
// the leftmost pixel in the most significant bit.
type Font [][]byte

// DefaultFont is the CP437 raster set shipped with periph's max7219 driver.
func DefaultFont() Font {
	return Font(max7219.CP437Glyphs)
}

func (f Font) glyph(ch byte) []byte {
	if ch < ' ' || ch > '~' || int(ch) >= len(f) {
		ch = '?'
	}
	if int(ch) >= len(f) {
		return nil
	}
	return f[ch]
}

// advance is the drawn width of a glyph after dropping empty columns on its
// right.
func advance(g []byte) int {
	var used byte
	for _, row := range g {
		used |= row
	}
	w := GlyphSize
	for w > 0 && used&(1<<uint(GlyphSize-w)) == 0 {
		w--
	}
	return w
}

// SetFont replaces the glyph table. nil restores the default.
func (s *Surface) SetFont(f Font) {
	if f == nil {
		f = DefaultFont()
	}
	s.font = f
}

// Text draws str with its bottom-left corner at (x,y) and returns the width it
// covers. Space is a fixed gap; other glyphs are trimmed on the right and
// separated by two blank columns. Pixels falling off the surface are dropped.
func (s *Surface) Text(str string, x, y int) int {
	return s.text(str, x, y, true)
}

// TextWidth measures str without drawing.
func (s *Surface) TextWidth(str string) int {
	return s.text(str, 0, 0, false)
}

func (s *Surface) text(str string, x, y int, draw bool) int {
	total := 0
	for i := 0; i < len(str); i++ {
		if str[i] == ' ' {
			total += spaceWidth
			continue
		}
		g := s.font.glyph(str[i])
		w := advance(g)
		if draw {
			for r, row := range g {
				for c := 0; c < w; c++ {
					if row&(0x80>>uint(c)) != 0 {
						s.Set(x+total+c, y+GlyphSize-1-r, true)
					}
				}
			}
		}
		total += w + glyphGap
	}
	return total
}
