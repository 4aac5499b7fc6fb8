// Package dotmatrix presents a chain of MAX7219 chips as one monochrome
// surface. Drawing only touches the framebuffer; Show pushes it out.
package dotmatrix

import (
	"fmt"
	"image"
	"time"

	"github.com/coreman2200/funtimes-spectrum/internal/max7219"
	"github.com/coreman2200/funtimes-spectrum/model"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Surface couples a framebuffer with the chain it is shown on. Drawing
// coordinates grow right and up: y = 0 is the bottom row, which is digit 0
// on a panel wired the usual way. SetFlipY serves panels mounted with digit 0
// on top.
type Surface struct {
	grid    *model.PixelGrid
	chain   *max7219.Chain
	font    Font
	flipY   bool
	mirrors []display.Drawer
	log     zerolog.Logger
}

func New(grid *model.PixelGrid, chain *max7219.Chain, log zerolog.Logger) (*Surface, error) {
	if n := grid.Topology().ChainLen(); chain.Len() != n {
		return nil, fmt.Errorf("dotmatrix: chain has %d chips, topology needs %d", chain.Len(), n)
	}
	return &Surface{
		grid:  grid,
		chain: chain,
		font:  DefaultFont(),
		log:   log,
	}, nil
}

func (s *Surface) Width() int  { return s.grid.Topology().Width() }
func (s *Surface) Height() int { return s.grid.Topology().Height() }

func (s *Surface) Topology() model.Topology { return s.grid.Topology() }

func (s *Surface) Set(x, y int, on bool) { s.grid.Set(x, s.row(y), on) }
func (s *Surface) Get(x, y int) bool     { return s.grid.Get(x, s.row(y)) }
func (s *Surface) Toggle(x, y int)       { s.grid.Toggle(x, s.row(y)) }

// SetFlipY mirrors drawing vertically on the way into the framebuffer.
func (s *Surface) SetFlipY(flip bool) { s.flipY = flip }

func (s *Surface) FlipY() bool { return s.flipY }

func (s *Surface) row(y int) int {
	if s.flipY {
		return s.Height() - 1 - y
	}
	return y
}

// Clear blanks the framebuffer. The chips keep their content until Show.
func (s *Surface) Clear() { s.grid.Clear() }

// SetBlock draws a width x height bitmap with its bottom-left corner at
// (x,y). rows[0] is the top line; in each line the most significant of the
// low width bits is leftmost.
func (s *Surface) SetBlock(x, y int, rows []uint32, width, height int) {
	if width > 32 {
		width = 32
	}
	for r := 0; r < height && r < len(rows); r++ {
		for c := 0; c < width; c++ {
			bit := (rows[r] >> uint(width-1-c)) & 1
			s.Set(x+c, y+height-1-r, bit == 1)
		}
	}
}

// Show pushes all eight digit planes, digit 0 first, then refreshes any
// mirrors.
func (s *Surface) Show() error {
	for d := 0; d < model.DigitCount; d++ {
		if err := s.chain.BroadcastVector(max7219.Digit(d), s.grid.Plane(d)); err != nil {
			return fmt.Errorf("dotmatrix: show: %w", err)
		}
	}
	s.mirror()
	return nil
}

// Intensity sets the brightness of every chip. Only the low four bits count.
func (s *Surface) Intensity(v int) error {
	return s.chain.Broadcast(max7219.Intensity, byte(v)&0x0F)
}

// Blank puts every chip in shutdown (true) or normal operation (false).
func (s *Surface) Blank(blank bool) error {
	var on byte = 1
	if blank {
		on = 0
	}
	return s.chain.Broadcast(max7219.Shutdown, on)
}

// Test turns the lamp test on or off.
func (s *Surface) Test(on bool) error {
	var v byte
	if on {
		v = 1
	}
	return s.chain.Broadcast(max7219.DisplayTest, v)
}

// Init brings every chip out of power-on state: raw (undecoded) digits, all
// eight rows scanned, running, lamp test off, middle intensity and empty
// digit registers.
func (s *Surface) Init() error {
	steps := []struct {
		op max7219.Opcode
		v  byte
	}{
		{max7219.DecodeMode, 0},
		{max7219.ScanLimit, 7},
		{max7219.Shutdown, 1},
		{max7219.DisplayTest, 0},
		{max7219.Intensity, 7},
	}
	for _, st := range steps {
		if err := s.chain.Broadcast(st.op, st.v); err != nil {
			return fmt.Errorf("dotmatrix: init: %w", err)
		}
	}
	for d := 0; d < model.DigitCount; d++ {
		if err := s.chain.Broadcast(max7219.Digit(d), 0); err != nil {
			return fmt.Errorf("dotmatrix: init: %w", err)
		}
	}
	s.grid.Clear()
	return nil
}

// SweepChips lights every chip in turn for delay, addressing each one on its
// own. A miswired panel shows up as chips lighting out of order.
func (s *Surface) SweepChips(delay time.Duration) error {
	n := s.chain.Len()
	for i := 0; i < n; i++ {
		for d := 0; d < model.DigitCount; d++ {
			if err := s.chain.SendTo(i, max7219.Digit(d), 0xFF); err != nil {
				return fmt.Errorf("dotmatrix: sweep chip %d: %w", i, err)
			}
		}
		s.log.Debug().Int("chip", i).Msg("sweep")
		time.Sleep(delay)
		for d := 0; d < model.DigitCount; d++ {
			if err := s.chain.SendTo(i, max7219.Digit(d), 0); err != nil {
				return fmt.Errorf("dotmatrix: sweep chip %d: %w", i, err)
			}
		}
	}
	return nil
}

// Image snapshots the framebuffer upright, the top row first, as the panel
// shows it.
func (s *Surface) Image() *image1bit.VerticalLSB {
	w, h := s.Width(), s.Height()
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if s.Get(x, y) {
				img.SetBit(x, h-1-y, image1bit.On)
			}
		}
	}
	return img
}

// Mirror adds a preview that receives every frame after Show.
func (s *Surface) Mirror(d display.Drawer) {
	if d != nil {
		s.mirrors = append(s.mirrors, d)
	}
}

func (s *Surface) mirror() {
	if len(s.mirrors) == 0 {
		return
	}
	img := s.Image()
	for _, d := range s.mirrors {
		if err := d.Draw(d.Bounds(), img, image.Point{}); err != nil {
			s.log.Warn().Err(err).Str("drawer", d.String()).Msg("mirror draw failed")
		}
	}
}
