package window

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/coreman2200/funtimes-spectrum/internal/input"
)

func TestDrawColoursLitPixels(t *testing.T) {
	win := New(4, 2, 0)
	assert.Equal(t, 16, win.Scale)

	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 4, 2))
	img.SetBit(3, 1, image1bit.On)
	assert.NoError(t, win.Draw(win.Bounds(), img, image.Point{}))

	buf := make([]byte, 4*2*4)
	assert.True(t, win.snapshot(buf))
	assert.False(t, win.snapshot(buf), "no new frame")

	lit := (1*4 + 3) * 4
	assert.Equal(t, []byte{litColor.R, litColor.G, litColor.B, 0xFF}, buf[lit:lit+4])
	assert.Equal(t, []byte{darkColor.R, darkColor.G, darkColor.B, 0xFF}, buf[0:4])
}

func TestKeyInjects(t *testing.T) {
	win := New(8, 8, 1)
	var got []input.Event
	win.Inject = func(e input.Event) { got = append(got, e) }
	win.key(input.Center, true)
	win.key(input.Center, false)
	if assert.Len(t, got, 2) {
		assert.True(t, got[0].Pressed)
		assert.False(t, got[1].Pressed)
		assert.Equal(t, input.Center, got[1].ID)
	}
}
