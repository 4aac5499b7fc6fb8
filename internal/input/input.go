// Package input debounces the five front-panel buttons and delivers their
// edges as events.
package input

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Button identifies a front-panel key.
type Button uint8

const (
	Center Button = iota
	Left
	Right
	Up
	Down
)

// MaxButtons is the number of keys a Controller accepts.
const MaxButtons = 5

var buttonNames = [...]string{"center", "left", "right", "up", "down"}

func (b Button) String() string {
	if int(b) < len(buttonNames) {
		return buttonNames[b]
	}
	return fmt.Sprintf("button(%d)", uint8(b))
}

// ParseButton maps a config key back to a Button.
func ParseButton(s string) (Button, error) {
	for i, n := range buttonNames {
		if n == s {
			return Button(i), nil
		}
	}
	return 0, fmt.Errorf("input: unknown button %q", s)
}

// Event is one accepted edge. At is on the clock passed to Poll.
type Event struct {
	ID      Button
	Pressed bool
	At      time.Duration
}

var (
	ErrTooMany   = errors.New("input: too many buttons")
	ErrDuplicate = errors.New("input: button already registered")
)

// Pin reads a raw input level, true meaning high.
type Pin interface {
	Read() bool
}

// Config describes one button. A nil Pin registers a button whose edges are
// delivered with Inject instead of by polling.
type Config struct {
	ID       Button
	Pin      Pin
	Debounce time.Duration
	// Invert treats a low level as pressed.
	Invert bool
}

type button struct {
	cfg       Config
	stable    bool
	candidate bool
	since     time.Duration
}

// EventQueue is the capacity of the event channel.
const EventQueue = 32

// Controller polls registered pins and queues debounced edges.
type Controller struct {
	mu      sync.Mutex
	buttons []*button
	events  chan Event
	dropped atomic.Uint64
}

func NewController() *Controller {
	return &Controller{events: make(chan Event, EventQueue)}
}

func (c *Controller) Register(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buttons) >= MaxButtons {
		return fmt.Errorf("%w: %s would be number %d", ErrTooMany, cfg.ID, len(c.buttons)+1)
	}
	for _, b := range c.buttons {
		if b.cfg.ID == cfg.ID {
			return fmt.Errorf("%w: %s", ErrDuplicate, cfg.ID)
		}
	}
	c.buttons = append(c.buttons, &button{cfg: cfg})
	return nil
}

// Poll samples every polled pin. A level must hold for the button's debounce
// interval before its edge is queued.
func (c *Controller) Poll(now time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buttons {
		if b.cfg.Pin == nil {
			continue
		}
		pressed := b.cfg.Pin.Read() != b.cfg.Invert
		if pressed != b.candidate {
			b.candidate = pressed
			b.since = now
		}
		if b.candidate != b.stable && now-b.since >= b.cfg.Debounce {
			b.stable = b.candidate
			c.emit(Event{ID: b.cfg.ID, Pressed: b.stable, At: now})
		}
	}
}

// Inject queues an edge debounced elsewhere, for instance by the kernel.
func (c *Controller) Inject(ev Event) {
	c.emit(ev)
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
	}
}

func (c *Controller) Events() <-chan Event { return c.events }

// Dropped counts edges lost to a full queue.
func (c *Controller) Dropped() uint64 { return c.dropped.Load() }

// VirtualPin is a Pin set from software: keyboard previews and tests.
type VirtualPin struct {
	level atomic.Bool
}

func (p *VirtualPin) Read() bool    { return p.level.Load() }
func (p *VirtualPin) Set(high bool) { p.level.Store(high) }
