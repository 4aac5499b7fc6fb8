package diagnostics

import (
	"errors"
	"sync"
	"time"

	"github.com/coreman2200/funtimes-spectrum/internal/input"
	"github.com/coreman2200/funtimes-spectrum/internal/max7219"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
	At             time.Time      `json:"at"`
}

// FromError classifies err into an operator-facing diagnostic.
func FromError(err error) Diagnostic {
	d := Diagnostic{Severity: Err, Code: "fault", Summary: "unexpected failure", Detail: err.Error()}
	switch {
	case errors.Is(err, max7219.ErrBusTimeout):
		d.Code = "display.bus_timeout"
		d.Summary = "display bus never went idle"
		d.LikelyCauses = []string{"SPI controller hung", "wrong SPI port selected"}
		d.SuggestedFixes = []string{"check the spi port in config.yaml", "power cycle the panel"}
	case errors.Is(err, max7219.ErrLength), errors.Is(err, max7219.ErrPosition):
		d.Code = "display.topology"
		d.Summary = "frame does not match the chip chain"
		d.LikelyCauses = []string{"display cols/rows do not match the wiring"}
	case errors.Is(err, input.ErrTooMany), errors.Is(err, input.ErrDuplicate):
		d.Code = "input.config"
		d.Summary = "button configuration rejected"
		d.SuggestedFixes = []string{"map each of the five buttons once"}
	}
	return d
}

// Board keeps the most recent diagnostics and fans new ones out to listeners.
type Board struct {
	mu        sync.Mutex
	max       int
	items     []Diagnostic
	listeners []func(Diagnostic)
	now       func() time.Time
}

func NewBoard(max int) *Board {
	if max <= 0 {
		max = 64
	}
	return &Board{max: max, now: time.Now}
}

// Subscribe registers fn for every later Report. fn must not block.
func (b *Board) Subscribe(fn func(Diagnostic)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

func (b *Board) Report(d Diagnostic) {
	if d.At.IsZero() {
		d.At = b.now()
	}
	b.mu.Lock()
	b.items = append(b.items, d)
	if len(b.items) > b.max {
		b.items = b.items[len(b.items)-b.max:]
	}
	ls := append([]func(Diagnostic){}, b.listeners...)
	b.mu.Unlock()
	for _, fn := range ls {
		fn(d)
	}
}

// Recent returns a copy, oldest first.
func (b *Board) Recent() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Diagnostic(nil), b.items...)
}
