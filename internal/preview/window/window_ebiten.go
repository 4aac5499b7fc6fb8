//go:build cgo

package window

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/coreman2200/funtimes-spectrum/internal/input"
)

var keys = map[ebiten.Key]input.Button{
	ebiten.KeyEnter:      input.Center,
	ebiten.KeyArrowLeft:  input.Left,
	ebiten.KeyArrowRight: input.Right,
	ebiten.KeyArrowUp:    input.Up,
	ebiten.KeyArrowDown:  input.Down,
}

// Run opens the window and blocks until it is closed or ctx ends. It must be
// called from the main goroutine.
func (win *Window) Run(ctx context.Context) error {
	ebiten.SetWindowTitle(win.Title)
	ebiten.SetWindowSize(win.w*win.Scale, win.h*win.Scale)
	ebiten.SetTPS(60)
	return ebiten.RunGame(&game{ctx: ctx, win: win, scratch: make([]byte, len(win.pix))})
}

type game struct {
	ctx     context.Context
	win     *Window
	img     *ebiten.Image
	scratch []byte
}

func (g *game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	for k, b := range keys {
		if inpututil.IsKeyJustPressed(k) {
			g.win.key(b, true)
		}
		if inpututil.IsKeyJustReleased(k) {
			g.win.key(b, false)
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.img == nil {
		g.img = ebiten.NewImage(g.win.w, g.win.h)
		g.win.mu.Lock()
		g.win.dirty = true
		g.win.mu.Unlock()
	}
	if g.win.snapshot(g.scratch) {
		g.img.WritePixels(g.scratch)
	}
	screen.DrawImage(g.img, nil)
}

func (g *game) Layout(_, _ int) (int, int) {
	return g.win.w, g.win.h
}
