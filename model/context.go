package model

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// Mode selects how processed audio is presented.
type Mode int32

const (
	ModeWaveform Mode = iota
	ModeLinearFFT
	ModeLogFFT
	ModeLogFFTMirror

	ModeCount = int(ModeLogFFTMirror) + 1
)

var modeNames = [...]string{"WAVE", "FFT", "LOG", "MIRROR"}

func (m Mode) String() string {
	if m < 0 || int(m) >= ModeCount {
		return "?"
	}
	return modeNames[m]
}

// ParseMode accepts the banner names, case-insensitively.
func ParseMode(s string) (Mode, error) {
	for i, n := range modeNames {
		if strings.EqualFold(n, s) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("model: unknown mode %q", s)
}

// Next advances cyclically, wrapping to the first mode after the last.
func (m Mode) Next() Mode {
	return Mode((int(m) + 1) % ModeCount)
}

// Spectral reports whether the mode needs the FFT stage.
func (m Mode) Spectral() bool {
	return m != ModeWaveform
}

// Logarithmic reports whether bins are log2 compressed.
func (m Mode) Logarithmic() bool {
	return m == ModeLogFFT || m == ModeLogFFTMirror
}

// Direction names one of the four held-state flags shown in the HUD.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// RenderContext is the state shared between the scheduler loop and the
// capture completion path. Every field is a single atomic value so neither
// side can observe a torn write. The scheduler writes mode, gain, brightness,
// direction and banner state; the capture path writes only the pending flag.
type RenderContext struct {
	mode       atomic.Int32
	gain       atomic.Uint32 // float32 bits
	brightness atomic.Int32
	held       [4]atomic.Bool

	bannerPending atomic.Bool
	bannerMoving  atomic.Bool

	CapturePending atomic.Bool
}

func NewRenderContext(mode Mode, gain float32, brightness int) *RenderContext {
	c := &RenderContext{}
	c.SetMode(mode)
	c.SetGain(gain)
	c.SetBrightness(brightness)
	return c
}

func (c *RenderContext) Mode() Mode        { return Mode(c.mode.Load()) }
func (c *RenderContext) SetMode(m Mode)    { c.mode.Store(int32(m)) }
func (c *RenderContext) Gain() float32     { return math.Float32frombits(c.gain.Load()) }
func (c *RenderContext) SetGain(g float32) { c.gain.Store(math.Float32bits(g)) }
func (c *RenderContext) Brightness() int   { return int(c.brightness.Load()) }

// SetBrightness stores v clamped to the 0..15 intensity range.
func (c *RenderContext) SetBrightness(v int) {
	if v < 0 {
		v = 0
	} else if v > 15 {
		v = 15
	}
	c.brightness.Store(int32(v))
}

func (c *RenderContext) Held(d Direction) bool {
	if d < Up || d > Right {
		return false
	}
	return c.held[d].Load()
}

func (c *RenderContext) SetHeld(d Direction, v bool) {
	if d < Up || d > Right {
		return
	}
	c.held[d].Store(v)
}

// RequestBanner asks the scheduler to show the mode name once.
func (c *RenderContext) RequestBanner() { c.bannerPending.Store(true) }

// TakeBanner consumes a pending banner request and marks the banner moving.
func (c *RenderContext) TakeBanner() bool {
	if !c.bannerPending.CompareAndSwap(true, false) {
		return false
	}
	c.bannerMoving.Store(true)
	return true
}

func (c *RenderContext) EndBanner() { c.bannerMoving.Store(false) }

// BannerBusy is true while a banner is requested or scrolling. Capture results
// arriving in that window are dropped.
func (c *RenderContext) BannerBusy() bool {
	return c.bannerPending.Load() || c.bannerMoving.Load()
}
