package audio

import (
	"fmt"
	"math"
	"strings"

	"github.com/coreman2200/funtimes-spectrum/model"
	"github.com/madelynnblue/go-dsp/window"
)

const (
	// LinearScale maps a normalised bin magnitude to rows. A full scale
	// 12-bit sine lands near the top of a 16 row panel.
	LinearScale float32 = 1.0 / 128
	// LogScale maps log2(1+magnitude) to rows.
	LogScale float32 = 1.5
)

// Window names a taper applied before the FFT.
type Window string

const (
	WindowNone    Window = "none"
	WindowHamming Window = "hamming"
	WindowHann    Window = "hann"
)

func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "", WindowNone:
		return WindowNone, nil
	case WindowHamming, WindowHann:
		return w, nil
	}
	return "", fmt.Errorf("audio: unknown window %q", s)
}

func (w Window) coefficients(n int) []float32 {
	var c []float64
	switch w {
	case WindowHamming:
		c = window.Hamming(n)
	case WindowHann:
		c = window.Hann(n)
	default:
		return nil
	}
	out := make([]float32, n)
	for i, v := range c {
		out[i] = float32(v)
	}
	return out
}

// Transformer turns a filled Buffer into display values in place.
type Transformer struct {
	n      int
	window []float32
	tw     *twiddles

	LinearScale float32
	LogScale    float32
}

func NewTransformer(n int, w Window) *Transformer {
	return &Transformer{
		n:           n,
		window:      w.coefficients(n),
		tw:          newTwiddles(n),
		LinearScale: LinearScale,
		LogScale:    LogScale,
	}
}

// Transform consumes the raw counts in b and returns a view into its arena:
// N centred samples for the waveform mode, N/2 scaled bin magnitudes for the
// spectral modes. The window only applies to the spectral modes.
func (t *Transformer) Transform(b *Buffer, mode model.Mode, gain float32) []float32 {
	n := t.n
	x := b.data

	removeMean(x[:n])
	if !mode.Spectral() {
		return x[:n]
	}
	if t.window != nil {
		for i, w := range t.window {
			x[i] *= w
		}
	}

	for i := n - 1; i >= 0; i-- {
		x[2*i+1] = 0
		x[2*i] = x[i]
	}
	t.tw.fft(x)

	bins := n / 2
	norm := 1 / float32(bins)
	for k := 0; k < bins; k++ {
		re, im := x[2*k], x[2*k+1]
		v := float32(math.Sqrt(float64(re*re+im*im))) * norm
		if mode.Logarithmic() {
			v = float32(math.Log2(1+float64(v))) * t.LogScale * gain
		} else {
			v *= t.LinearScale * gain
		}
		x[k] = v
	}
	return x[:bins]
}

func removeMean(x []float32) {
	if len(x) == 0 {
		return
	}
	var sum float64
	for _, v := range x {
		sum += float64(v)
	}
	mean := float32(sum / float64(len(x)))
	for i := range x {
		x[i] -= mean
	}
}
