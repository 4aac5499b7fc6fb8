package render

import (
	"sort"

	"github.com/coreman2200/funtimes-spectrum/model"
)

// Canvas is the drawing side of a display surface.
type Canvas interface {
	Width() int
	Height() int
	Set(x, y int, on bool)
	Clear()
}

// Renderer draws one kind of audio view.
type Renderer interface {
	Mode() model.Mode
	Render(c Canvas, values []float32, gain float32)
}

type Registry struct{ m map[model.Mode]Renderer }

func NewRegistry() *Registry { return &Registry{m: map[model.Mode]Renderer{}} }

// DefaultRegistry holds the built-in renderer for every mode.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Waveform{Scale: WaveScale})
	r.Register(&Bars{For: model.ModeLinearFFT})
	r.Register(&Bars{For: model.ModeLogFFT})
	r.Register(&Mirror{})
	return r
}

func (r *Registry) Register(rr Renderer) {
	if rr == nil {
		return
	}
	r.m[rr.Mode()] = rr
}

func (r *Registry) Get(m model.Mode) (Renderer, bool) { rr, ok := r.m[m]; return rr, ok }

func (r *Registry) List() []model.Mode {
	out := make([]model.Mode, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
