package render

import (
	"fmt"
	"time"

	"github.com/coreman2200/funtimes-spectrum/model"
)

// Engine draws a transformed burst onto a canvas with the HUD in the
// bottom-left corner.
type Engine struct {
	reg *Registry

	// metrics (last draw duration)
	Last struct {
		DrawMS float64
	}
}

func NewEngine(reg *Registry) *Engine {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Engine{reg: reg}
}

// Draw clears c, marks the held directions and renders values with the
// renderer registered for mode. Nothing is pushed to hardware.
func (e *Engine) Draw(c Canvas, mode model.Mode, ctx *model.RenderContext, values []float32) error {
	start := time.Now()
	rr, ok := e.reg.Get(mode)
	if !ok {
		return fmt.Errorf("render: no renderer for mode %s", mode)
	}
	c.Clear()
	hud(c, ctx)
	rr.Render(c, values, ctx.Gain())
	e.Last.DrawMS = float64(time.Since(start).Microseconds()) / 1000.0
	return nil
}

func hud(c Canvas, ctx *model.RenderContext) {
	if ctx.Held(model.Up) {
		c.Set(1, 0, true)
	}
	if ctx.Held(model.Down) {
		c.Set(1, 2, true)
	}
	if ctx.Held(model.Left) {
		c.Set(0, 1, true)
	}
	if ctx.Held(model.Right) {
		c.Set(2, 1, true)
	}
}
