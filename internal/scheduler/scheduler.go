// Package scheduler runs the cooperative main loop: input handling,
// hold-to-repeat, the heartbeat LED, the mode banner and capture re-arming.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreman2200/funtimes-spectrum/internal/dotmatrix"
	"github.com/coreman2200/funtimes-spectrum/internal/input"
	"github.com/coreman2200/funtimes-spectrum/model"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
)

// Tick is the loop period of Run.
const Tick = time.Millisecond

type Timing struct {
	Heartbeat        time.Duration
	GainRepeat       time.Duration
	GainSpeedup      time.Duration
	BrightnessRepeat time.Duration
	BannerStep       time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Heartbeat:        500 * time.Millisecond,
		GainRepeat:       50 * time.Millisecond,
		GainSpeedup:      750 * time.Millisecond,
		BrightnessRepeat: 250 * time.Millisecond,
		BannerStep:       30 * time.Millisecond,
	}
}

// Gain bounds and step sizes. The buttons stop one step above Min.
type Gain struct {
	Min, Max       float32
	Step, FastStep float32
}

func DefaultGain() Gain {
	return Gain{Min: 0.1, Max: 20, Step: 0.1, FastStep: 0.5}
}

// Floor is the lowest gain the buttons can reach: one step above Min.
func (g Gain) Floor() float32 { return g.Min + g.Step }

// Capture arms one audio burst if none is pending.
type Capture interface {
	Start() bool
}

// Poller samples button pins; input.Controller implements it.
type Poller interface {
	Poll(now time.Duration)
}

// LED is the heartbeat output; gpio.PinOut satisfies it.
type LED interface {
	Out(l gpio.Level) error
}

// Deps are the collaborators of a Scheduler. Display is guarded by Lock, which
// the capture path shares.
type Deps struct {
	Ctx     *model.RenderContext
	Display *dotmatrix.Surface
	Lock    sync.Locker
	Events  <-chan input.Event
	Poller  Poller
	Capture Capture
	LED     LED
	Log     zerolog.Logger
}

type hold struct {
	since, last time.Duration
}

type Scheduler struct {
	Deps
	timing Timing
	gain   Gain
	start  time.Time

	holds    [4]hold
	lastBeat time.Duration
	led      gpio.Level
	banner   *dotmatrix.Scroller
	lastStep time.Duration
}

func New(d Deps, t Timing, g Gain) (*Scheduler, error) {
	if d.Ctx == nil || d.Display == nil || d.Lock == nil || d.Capture == nil {
		return nil, fmt.Errorf("scheduler: missing dependency")
	}
	if g.Step <= 0 || g.Floor() > g.Max {
		return nil, fmt.Errorf("scheduler: bad gain range %+v", g)
	}
	if g.FastStep < g.Step {
		g.FastStep = g.Step
	}
	return &Scheduler{Deps: d, timing: t, gain: g, start: time.Now()}, nil
}

// Now is the loop clock: monotonic time since New.
func (s *Scheduler) Now() time.Duration {
	return time.Since(s.start)
}

// Run steps the loop every Tick until ctx is done or a step fails.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Step(s.Now()); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Step runs one pass of the loop at time now. It only blocks on the display
// lock.
func (s *Scheduler) Step(now time.Duration) error {
	if s.Poller != nil {
		s.Poller.Poll(now)
	}
	if err := s.drain(now); err != nil {
		return err
	}
	if err := s.repeat(now); err != nil {
		return err
	}
	s.heartbeat(now)
	if err := s.stepBanner(now); err != nil {
		return err
	}
	if !s.Ctx.CapturePending.Load() {
		s.Capture.Start()
	}
	return nil
}

func (s *Scheduler) drain(now time.Duration) error {
	for {
		select {
		case ev := <-s.Events:
			if err := s.handle(ev, now); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

var directions = map[input.Button]model.Direction{
	input.Up:    model.Up,
	input.Down:  model.Down,
	input.Left:  model.Left,
	input.Right: model.Right,
}

func (s *Scheduler) handle(ev input.Event, now time.Duration) error {
	s.Log.Debug().Stringer("button", ev.ID).Bool("pressed", ev.Pressed).Msg("input")
	if ev.ID == input.Center {
		if !ev.Pressed {
			m := s.Ctx.Mode().Next()
			s.Ctx.SetMode(m)
			s.Ctx.RequestBanner()
			s.Log.Info().Stringer("mode", m).Msg("mode")
		}
		return nil
	}
	d, ok := directions[ev.ID]
	if !ok {
		return nil
	}
	s.Ctx.SetHeld(d, ev.Pressed)
	if !ev.Pressed {
		return nil
	}
	s.holds[d] = hold{since: now, last: now}
	return s.nudge(d, s.gain.Step)
}

func (s *Scheduler) repeat(now time.Duration) error {
	for d := model.Up; d <= model.Right; d++ {
		if !s.Ctx.Held(d) {
			continue
		}
		h := &s.holds[d]
		every, step := s.timing.BrightnessRepeat, s.gain.Step
		if d == model.Up || d == model.Down {
			every = s.timing.GainRepeat
			if now-h.since >= s.timing.GainSpeedup {
				step = s.gain.FastStep
			}
		}
		if now-h.last < every {
			continue
		}
		h.last = now
		if err := s.nudge(d, step); err != nil {
			return err
		}
	}
	return nil
}

// nudge applies one step in direction d: gain for up/down, brightness for
// left/right.
func (s *Scheduler) nudge(d model.Direction, step float32) error {
	switch d {
	case model.Up, model.Down:
		g := s.Ctx.Gain()
		if d == model.Up {
			g += step
		} else {
			g -= step
		}
		if floor := s.gain.Floor(); g < floor {
			g = floor
		}
		if g > s.gain.Max {
			g = s.gain.Max
		}
		s.Ctx.SetGain(g)
		return nil
	}
	b := s.Ctx.Brightness()
	if d == model.Left {
		b--
	} else {
		b++
	}
	s.Ctx.SetBrightness(b)
	s.Lock.Lock()
	defer s.Lock.Unlock()
	if err := s.Display.Intensity(s.Ctx.Brightness()); err != nil {
		return fmt.Errorf("scheduler: brightness: %w", err)
	}
	return nil
}

func (s *Scheduler) heartbeat(now time.Duration) {
	if now-s.lastBeat < s.timing.Heartbeat {
		return
	}
	s.lastBeat = now
	s.led = !s.led
	if s.LED == nil {
		return
	}
	if err := s.LED.Out(s.led); err != nil {
		s.Log.Warn().Err(err).Msg("heartbeat")
	}
}

func (s *Scheduler) stepBanner(now time.Duration) error {
	if s.banner == nil {
		if !s.Ctx.TakeBanner() {
			return nil
		}
		s.banner = dotmatrix.NewScroller(s.Display, s.Ctx.Mode().String())
	} else if now-s.lastStep < s.timing.BannerStep {
		return nil
	}
	s.lastStep = now

	s.Lock.Lock()
	s.banner.Step(s.Display)
	err := s.Display.Show()
	s.Lock.Unlock()

	if s.banner.Done() || err != nil {
		s.banner = nil
		s.Ctx.EndBanner()
	}
	if err != nil {
		return fmt.Errorf("scheduler: banner: %w", err)
	}
	return nil
}

// Heartbeat reports the current LED level.
func (s *Scheduler) Heartbeat() gpio.Level { return s.led }
