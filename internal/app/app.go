// Package app wires the display chain, capture pipeline, renderers, buttons
// and scheduler into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-spectrum/internal/audio"
	"github.com/coreman2200/funtimes-spectrum/internal/config"
	diag "github.com/coreman2200/funtimes-spectrum/internal/diagnostics"
	"github.com/coreman2200/funtimes-spectrum/internal/dotmatrix"
	"github.com/coreman2200/funtimes-spectrum/internal/input"
	"github.com/coreman2200/funtimes-spectrum/internal/max7219"
	"github.com/coreman2200/funtimes-spectrum/internal/render"
	"github.com/coreman2200/funtimes-spectrum/internal/scheduler"
	"github.com/coreman2200/funtimes-spectrum/model"
)

// Hardware is what the caller opened before building an App.
type Hardware struct {
	Bus     max7219.Bus
	Sampler audio.Sampler
	// LED is the heartbeat output, nil for none.
	LED scheduler.LED
	// Drawers receive a copy of every frame pushed to the chain.
	Drawers []display.Drawer
}

type App struct {
	Cfg      *config.Config
	Ctx      *model.RenderContext
	Surface  *dotmatrix.Surface
	Engine   *render.Engine
	Pipeline *audio.Pipeline
	Input    *input.Controller
	Diag     *diag.Board

	sched   *scheduler.Scheduler
	lock    sync.Mutex
	faults  chan error
	closers []func() error
	log     zerolog.Logger
}

// New builds every component from cfg. Buttons named in cfg are opened here;
// host.Init must have run when the periph or cdev backends are selected.
func New(cfg *config.Config, hw Hardware, log zerolog.Logger) (*App, error) {
	if hw.Bus == nil || hw.Sampler == nil {
		return nil, errors.New("app: bus and sampler are required")
	}
	mode, err := model.ParseMode(cfg.UI.Mode)
	if err != nil {
		return nil, err
	}
	win, err := audio.ParseWindow(cfg.Audio.Window)
	if err != nil {
		return nil, err
	}
	topo, err := model.NewTopology(cfg.Display.Cols, cfg.Display.Rows)
	if err != nil {
		return nil, err
	}
	chain, err := max7219.New(hw.Bus, topo.ChainLen())
	if err != nil {
		return nil, err
	}
	surface, err := dotmatrix.New(model.NewPixelGrid(topo), chain, log)
	if err != nil {
		return nil, err
	}
	surface.SetFlipY(cfg.Display.FlipY)
	for _, d := range hw.Drawers {
		surface.Mirror(d)
	}

	a := &App{
		Cfg:     cfg,
		Ctx:     model.NewRenderContext(mode, cfg.UI.Gain, cfg.UI.Brightness),
		Surface: surface,
		Engine:  render.NewEngine(nil),
		Input:   input.NewController(),
		Diag:    diag.NewBoard(64),
		faults:  make(chan error, 1),
		log:     log,
	}

	a.Pipeline, err = audio.NewPipeline(audio.PipelineConfig{
		Samples: cfg.Audio.Samples,
		Window:  win,
		Width:   topo.Width(),
	}, hw.Sampler, a.Ctx, audio.SinkFunc(a.present), log)
	if err != nil {
		return nil, err
	}
	a.Pipeline.Fault = a.fault

	a.sched, err = scheduler.New(scheduler.Deps{
		Ctx:     a.Ctx,
		Display: surface,
		Lock:    &a.lock,
		Events:  a.Input.Events(),
		Poller:  a.Input,
		Capture: a.Pipeline,
		LED:     hw.LED,
		Log:     log,
	}, scheduler.DefaultTiming(), scheduler.Gain{
		Min:      cfg.UI.GainMin,
		Max:      cfg.UI.GainMax,
		Step:     cfg.UI.GainStep,
		FastStep: cfg.UI.GainFastStep,
	})
	if err != nil {
		return nil, err
	}

	if err := a.openButtons(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// present runs on the sampler goroutine. The banner may have started since
// the pipeline looked, so it is checked again under the lock.
func (a *App) present(values []float32, mode model.Mode) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.Ctx.BannerBusy() {
		return audio.ErrSuperseded
	}
	if err := a.Engine.Draw(a.Surface, mode, a.Ctx, values); err != nil {
		return err
	}
	return a.Surface.Show()
}

func (a *App) fault(err error) {
	select {
	case a.faults <- err:
	default:
	}
}

func (a *App) openButtons() error {
	b := a.Cfg.Buttons
	debounce := time.Duration(b.DebounceMs) * time.Millisecond
	switch b.Backend {
	case "periph":
		pull := gpio.PullDown
		if b.ActiveLow {
			pull = gpio.PullUp
		}
		for name, pin := range b.Pins {
			id, err := input.ParseButton(name)
			if err != nil {
				return err
			}
			p, err := input.OpenPeriph(pin, pull)
			if err != nil {
				return err
			}
			if err := a.Input.Register(input.Config{ID: id, Pin: p, Debounce: debounce, Invert: b.ActiveLow}); err != nil {
				return err
			}
		}
	case "cdev":
		lines := map[input.Button]int{}
		for name, off := range b.Lines {
			id, err := input.ParseButton(name)
			if err != nil {
				return err
			}
			lines[id] = off
		}
		src, err := input.OpenCdev(a.Input, input.CdevConfig{
			Chip:      b.Chip,
			Lines:     lines,
			Debounce:  debounce,
			ActiveLow: b.ActiveLow,
			PullUp:    b.ActiveLow,
		}, a.sched.Now)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, src.Close)
	}
	return nil
}

// Boot initialises every chip, runs the optional chip sweep and applies the
// configured brightness.
func (a *App) Boot() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if err := a.Surface.Init(); err != nil {
		return err
	}
	if ms := a.Cfg.Display.SweepMs; ms > 0 {
		if err := a.Surface.SweepChips(time.Duration(ms) * time.Millisecond); err != nil {
			return err
		}
	}
	if err := a.Surface.Intensity(a.Ctx.Brightness()); err != nil {
		return err
	}
	return a.Surface.Show()
}

// Run boots the display and runs the scheduler until ctx is done or a fault
// stops it. Faults are also posted to Diag.
func (a *App) Run(ctx context.Context) error {
	err := a.run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		a.Diag.Report(diag.FromError(err))
	}
	return err
}

func (a *App) run(ctx context.Context) error {
	select {
	case <-a.faults:
	default:
	}
	if err := a.Boot(); err != nil {
		return fmt.Errorf("app: boot: %w", err)
	}
	a.log.Info().
		Stringer("topology", a.Surface.Topology()).
		Stringer("mode", a.Ctx.Mode()).
		Int("samples", a.Cfg.Audio.Samples).
		Msg("running")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.sched.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case err := <-a.faults:
		cancel()
		<-done
		return fmt.Errorf("app: present: %w", err)
	}
}

// Health summarises the running state for the /health endpoint.
func (a *App) Health() map[string]any {
	a.lock.Lock()
	drawMS := a.Engine.Last.DrawMS
	a.lock.Unlock()
	return map[string]any{
		"mode":       a.Ctx.Mode().String(),
		"gain":       a.Ctx.Gain(),
		"brightness": a.Ctx.Brightness(),
		"capture":    a.Pipeline.Stats(),
		"dropped":    a.Input.Dropped(),
		"draw_ms":    drawMS,
		"recent":     a.Diag.Recent(),
	}
}

func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
