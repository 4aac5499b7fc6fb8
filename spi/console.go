package spi

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/extra/devices/screen"
)

// Console prints frames on the terminal. Each pixel row is its own periph
// screen line; after a frame the cursor goes back up so the next one
// overwrites it.
type Console struct {
	rows   []display.Drawer
	sep    io.Writer
	bounds image.Rectangle
}

// NewConsole returns a w x h terminal drawer.
func NewConsole(w, h int) *Console {
	return newConsole(w, h, func(w int) display.Drawer { return screen.New(w) }, os.Stdout)
}

func newConsole(w, h int, line func(w int) display.Drawer, sep io.Writer) *Console {
	c := &Console{sep: sep, bounds: image.Rect(0, 0, w, h)}
	for y := 0; y < h; y++ {
		c.rows = append(c.rows, line(w))
	}
	return c
}

func (c *Console) String() string          { return "console" }
func (c *Console) ColorModel() color.Model { return image1bit.BitModel }
func (c *Console) Bounds() image.Rectangle { return c.bounds }

func (c *Console) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(c.bounds)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		if y > r.Min.Y {
			fmt.Fprint(c.sep, "\n")
		}
		lr := image.Rect(r.Min.X, 0, r.Max.X, 1)
		if err := c.rows[y].Draw(lr, src, image.Pt(sp.X, sp.Y+y-r.Min.Y)); err != nil {
			return fmt.Errorf("spi: console row %d: %w", y, err)
		}
	}
	if n := r.Dy() - 1; n > 0 {
		fmt.Fprintf(c.sep, "\033[%dA", n)
	}
	return nil
}

// Halt leaves the cursor below the last frame.
func (c *Console) Halt() error {
	for y := 1; y < len(c.rows); y++ {
		fmt.Fprint(c.sep, "\n")
	}
	if len(c.rows) == 0 {
		return nil
	}
	return c.rows[len(c.rows)-1].Halt()
}
