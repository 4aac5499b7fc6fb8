// Package window shows the dot-matrix in a desktop window and maps the arrow
// keys and Enter onto the front-panel buttons.
package window

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/coreman2200/funtimes-spectrum/internal/input"
)

// ErrNoWindow is returned by Run in builds without a window backend.
var ErrNoWindow = errors.New("window: requires cgo (build with CGO_ENABLED=1)")

var (
	litColor  = color.RGBA{0xFF, 0x30, 0x10, 0xFF}
	darkColor = color.RGBA{0x20, 0x08, 0x04, 0xFF}
)

// Window is a display.Drawer. Frames are kept as RGBA and shown on the next
// window refresh.
type Window struct {
	Title string
	Scale int

	// Inject receives button edges from the keyboard.
	Inject func(input.Event)

	mu    sync.Mutex
	w, h  int
	pix   []byte
	dirty bool
	start time.Time
}

func New(w, h, scale int) *Window {
	if scale <= 0 {
		scale = 16
	}
	win := &Window{Title: "spectrum", Scale: scale, w: w, h: h, pix: make([]byte, w*h*4), start: time.Now()}
	for i := 0; i < w*h; i++ {
		put(win.pix[i*4:], darkColor)
	}
	return win
}

func (win *Window) String() string          { return "preview-window" }
func (win *Window) Halt() error             { return nil }
func (win *Window) ColorModel() color.Model { return image1bit.BitModel }
func (win *Window) Bounds() image.Rectangle { return image.Rect(0, 0, win.w, win.h) }

func (win *Window) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(win.Bounds())
	win.mu.Lock()
	defer win.mu.Unlock()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := darkColor
			if image1bit.BitModel.Convert(src.At(sp.X+x-r.Min.X, sp.Y+y-r.Min.Y)).(image1bit.Bit) {
				c = litColor
			}
			put(win.pix[(y*win.w+x)*4:], c)
		}
	}
	win.dirty = true
	return nil
}

// snapshot copies the pixels into dst when a new frame arrived.
func (win *Window) snapshot(dst []byte) bool {
	win.mu.Lock()
	defer win.mu.Unlock()
	if !win.dirty {
		return false
	}
	copy(dst, win.pix)
	win.dirty = false
	return true
}

func (win *Window) key(b input.Button, pressed bool) {
	if win.Inject != nil {
		win.Inject(input.Event{ID: b, Pressed: pressed, At: time.Since(win.start)})
	}
}

func put(p []byte, c color.RGBA) {
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}
