package dotmatrix

import (
	"image"
	"image/color"
	"testing"

	"github.com/coreman2200/funtimes-spectrum/internal/max7219"
	"github.com/coreman2200/funtimes-spectrum/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func newSurface(t *testing.T, cols, rows int) (*Surface, *max7219.Recorder) {
	topo, err := model.NewTopology(cols, rows)
	require.NoError(t, err)
	rec := &max7219.Recorder{}
	chain, err := max7219.New(rec, topo.ChainLen())
	require.NoError(t, err)
	s, err := New(model.NewPixelGrid(topo), chain, zerolog.Nop())
	require.NoError(t, err)
	return s, rec
}

func TestNewRejectsMismatchedChain(t *testing.T) {
	topo, _ := model.NewTopology(4, 2)
	chain, _ := max7219.New(max7219.NopBus{}, 4)
	_, err := New(model.NewPixelGrid(topo), chain, zerolog.Nop())
	assert.Error(t, err)
}

func TestShowPushesEveryPlaneInOrder(t *testing.T) {
	s, rec := newSurface(t, 4, 2)
	s.Set(5, 3, true)  // chip 0, digit 3
	s.Set(30, 9, true) // chip 7, digit 1
	require.NoError(t, s.Show())

	frames := rec.Frames()
	require.Len(t, frames, 8)
	for d, f := range frames {
		require.Len(t, f, 8)
		for _, w := range f {
			assert.Equal(t, byte(max7219.Digit(d)), w[0])
		}
	}
	// chip 0 is the last word on the wire, chip 7 the first
	assert.Equal(t, byte(1<<5), frames[3][7][1])
	assert.Equal(t, byte(1<<6), frames[1][0][1])
	assert.Zero(t, frames[0][0][1])
}

func TestClearDoesNotPush(t *testing.T) {
	s, rec := newSurface(t, 2, 1)
	s.Set(1, 1, true)
	s.Clear()
	assert.False(t, s.Get(1, 1))
	assert.Empty(t, rec.Frames())
}

func TestIntensityAndBlank(t *testing.T) {
	s, rec := newSurface(t, 2, 1)
	require.NoError(t, s.Intensity(0x1C))
	require.NoError(t, s.Blank(true))
	require.NoError(t, s.Blank(false))
	require.NoError(t, s.Test(true))

	assert.Equal(t, []max7219.Frame{
		{{0x0A, 0x0C}, {0x0A, 0x0C}},
		{{0x0C, 0}, {0x0C, 0}},
		{{0x0C, 1}, {0x0C, 1}},
		{{0x0F, 1}, {0x0F, 1}},
	}, rec.Frames())
}

func TestInitSequence(t *testing.T) {
	s, rec := newSurface(t, 1, 1)
	s.Set(0, 0, true)
	require.NoError(t, s.Init())

	want := []max7219.Frame{{{0x09, 0}}, {{0x0B, 7}}, {{0x0C, 1}}, {{0x0F, 0}}, {{0x0A, 7}}}
	for d := 0; d < 8; d++ {
		want = append(want, max7219.Frame{{byte(max7219.Digit(d)), 0}})
	}
	assert.Equal(t, want, rec.Frames())
	assert.False(t, s.Get(0, 0))
}

func TestSetBlock(t *testing.T) {
	s, _ := newSurface(t, 2, 1)
	s.SetBlock(6, 2, []uint32{0b101, 0b010}, 3, 2)
	// first line on top
	assert.True(t, s.Get(6, 3))
	assert.False(t, s.Get(7, 3))
	assert.True(t, s.Get(8, 3))
	assert.True(t, s.Get(7, 2))
	assert.False(t, s.Get(6, 2))
}

func TestFlipYReversesRows(t *testing.T) {
	s, rec := newSurface(t, 1, 1)
	assert.False(t, s.FlipY(), "digit 0 is the bottom row by default")
	s.Set(2, 0, true)
	require.NoError(t, s.Show())
	assert.Equal(t, byte(1<<2), rec.Frames()[0][0][1])

	rec.Reset()
	s.Clear()
	s.SetFlipY(true)
	s.Set(2, 0, true)
	assert.True(t, s.Get(2, 0))
	require.NoError(t, s.Show())
	frames := rec.Frames()
	assert.Zero(t, frames[0][0][1])
	assert.Equal(t, byte(1<<2), frames[7][0][1], "bottom row lands on digit 7")

	s.Toggle(2, 0)
	assert.False(t, s.Get(2, 0))
	s.Set(0, 8, true)
	assert.False(t, s.Get(0, 8), "rows above the top are dropped")
}

func TestImageIsUprightEitherWay(t *testing.T) {
	for _, flip := range []bool{false, true} {
		s, _ := newSurface(t, 1, 1)
		s.SetFlipY(flip)
		s.Set(3, 0, true)
		img := s.Image()
		assert.Equal(t, image1bit.On, img.BitAt(3, 7), "flip=%v", flip)
		assert.Equal(t, image1bit.Off, img.BitAt(3, 0), "flip=%v", flip)
	}
}

func TestSweepAddressesEachChip(t *testing.T) {
	s, rec := newSurface(t, 3, 1)
	require.NoError(t, s.SweepChips(0))
	frames := rec.Frames()
	require.Len(t, frames, 3*2*8)
	// first lit word belongs to chip 0, which sits last on the wire
	assert.Equal(t, max7219.Frame{{0, 0}, {0, 0}, {0x01, 0xFF}}, frames[0])
	assert.Equal(t, max7219.Frame{{0, 0}, {0x01, 0xFF}, {0, 0}}, frames[16])
}

type fakeDrawer struct {
	bounds image.Rectangle
	last   image.Image
	calls  int
}

func (f *fakeDrawer) String() string          { return "fake" }
func (f *fakeDrawer) Halt() error             { return nil }
func (f *fakeDrawer) ColorModel() color.Model { return image1bit.BitModel }
func (f *fakeDrawer) Bounds() image.Rectangle { return f.bounds }
func (f *fakeDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.calls++
	f.last = src
	return nil
}

func TestImageAndMirror(t *testing.T) {
	s, _ := newSurface(t, 2, 1)
	s.Set(9, 4, true)
	img := s.Image()
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
	assert.Equal(t, image1bit.On, img.BitAt(9, 3))
	assert.Equal(t, image1bit.Off, img.BitAt(8, 3))

	d := &fakeDrawer{bounds: img.Bounds()}
	s.Mirror(d)
	require.NoError(t, s.Show())
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, image1bit.On, d.last.(*image1bit.VerticalLSB).BitAt(9, 3))
}

var testFont = func() Font {
	f := make(Font, 128)
	for i := range f {
		f[i] = make([]byte, 8)
	}
	f['A'] = []byte{0xE0, 0xA0, 0xE0, 0xA0, 0xA0, 0, 0, 0} // 3 wide
	f['?'] = []byte{0x80, 0x80, 0, 0x80, 0, 0, 0, 0}       // 1 wide
	return f
}()

func TestTextMetrics(t *testing.T) {
	s, _ := newSurface(t, 4, 1)
	s.SetFont(testFont)

	assert.Equal(t, 5, s.TextWidth("A"))
	assert.Equal(t, 5+4+5, s.TextWidth("A A"))
	assert.Equal(t, 3, s.TextWidth("\x01"), "unknown codes fall back to '?'")

	w := s.Text("AA", 1, 0)
	assert.Equal(t, 10, w)
	// the top glyph row lands seven rows above the baseline
	assert.True(t, s.Get(1, 7))
	assert.True(t, s.Get(3, 7))
	assert.False(t, s.Get(2, 6))
	assert.True(t, s.Get(2, 5))
	assert.False(t, s.Get(1, 0))
	assert.True(t, s.Get(6, 7), "second glyph starts after a two column gap")
	assert.False(t, s.Get(4, 7))
	assert.False(t, s.Get(5, 7))
}

func TestScroller(t *testing.T) {
	s, _ := newSurface(t, 2, 1)
	s.SetFont(testFont)
	sc := NewScroller(s, "A")

	steps := 0
	for more := true; more; steps++ {
		more = sc.Step(s)
	}
	assert.Equal(t, 5+16, steps)
	assert.True(t, sc.Done())
	assert.False(t, sc.Step(s))

	sc = NewScroller(s, "A")
	sc.Step(s)
	assert.True(t, s.Get(15, 7), "first step draws at the right edge")
	assert.True(t, s.Get(15, 4))
	assert.False(t, s.Get(15, 3))
}

func TestScrollerMatchesBannerRows(t *testing.T) {
	s, _ := newSurface(t, 4, 2)
	s.SetFont(testFont)
	sc := NewScroller(s, "A")
	for i := 0; i < 10; i++ {
		sc.Step(s)
	}
	// glyph rows 0..4 of a 16-row panel sit on rows 12..8
	assert.True(t, s.Get(22, 12))
	assert.True(t, s.Get(22, 8))
	assert.False(t, s.Get(22, 7))
	assert.False(t, s.Get(22, 13))
}
