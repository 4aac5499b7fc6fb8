package render

import (
	"math"

	"github.com/coreman2200/funtimes-spectrum/model"
)

// WaveScale maps centred ADC counts to rows.
const WaveScale float32 = 1.0 / 128

// Waveform plots one sample per column around the row just below the middle,
// positive samples upwards, starting at the first rising zero crossing so a
// steady tone stands still.
type Waveform struct {
	Scale float32
}

func (w *Waveform) Mode() model.Mode { return model.ModeWaveform }

func (w *Waveform) Render(c Canvas, s []float32, gain float32) {
	width, h := c.Width(), c.Height()
	off := trigger(s, width)
	mid := h/2 - 1
	for x := 0; x < width && off+x < len(s); x++ {
		dy := math.Round(float64(s[off+x] * w.Scale * gain))
		c.Set(x, mid+int(dy), true)
	}
}

// trigger finds the first i with s[i-1] < 0 < s[i]. It falls back to 0 when
// there is none or when fewer than width samples would follow it.
func trigger(s []float32, width int) int {
	for i := 1; i < len(s); i++ {
		if s[i] > 0 && s[i-1] < 0 {
			if i >= len(s)-width {
				return 0
			}
			return i
		}
	}
	return 0
}

// Bars draws one column per bin from the bottom row up.
type Bars struct {
	For model.Mode
}

func (b *Bars) Mode() model.Mode { return b.For }

func (b *Bars) Render(c Canvas, v []float32, _ float32) {
	w, h := c.Width(), c.Height()
	for x := 0; x < w && x < len(v); x++ {
		n := barHeight(v[x], 1)
		for j := 0; j < n && j < h; j++ {
			c.Set(x, j, true)
		}
	}
}

// Mirror draws each bin as a bar growing both ways from the horizontal centre
// line.
type Mirror struct{}

func (m *Mirror) Mode() model.Mode { return model.ModeLogFFTMirror }

func (m *Mirror) Render(c Canvas, v []float32, _ float32) {
	w, h := c.Width(), c.Height()
	down, up := h/2-1, h/2
	for x := 0; x < w && x < len(v); x++ {
		n := barHeight(v[x], 0.5)
		for j := 0; j < n && j < h/2; j++ {
			c.Set(x, up+j, true)
			c.Set(x, down-j, true)
		}
	}
}

func barHeight(v, k float32) int {
	f := math.Floor(float64(v * k))
	if f < 0 || math.IsNaN(f) {
		f = 0
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	return int(f) + 1
}
