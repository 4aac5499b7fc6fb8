package max7219

import (
	"fmt"
	"sync"
)

// NopBus accepts everything and is never busy. Used when no display is
// attached.
type NopBus struct{}

func (NopBus) Select(bool) error  { return nil }
func (NopBus) Write([]byte) error { return nil }
func (NopBus) Busy() bool         { return false }

// Frame is the sequence of words written during one chip-select window.
type Frame [][2]byte

// Recorder is an in-memory Bus that keeps every completed chip-select window.
// BusyFor makes Busy report true for the next k polls; a negative k keeps it
// busy forever.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
	open   Frame
	active bool
	busy   int
	err    error
}

func (r *Recorder) Select(active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case active && r.active:
		return fmt.Errorf("recorder: select while already selected")
	case active:
		r.open = nil
	case r.active:
		r.frames = append(r.frames, r.open)
		r.open = nil
	}
	r.active = active
	return nil
}

func (r *Recorder) Write(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if !r.active {
		return fmt.Errorf("recorder: write without select")
	}
	if len(p) != 2 {
		return fmt.Errorf("recorder: word of %d bytes", len(p))
	}
	r.open = append(r.open, [2]byte{p[0], p[1]})
	return nil
}

func (r *Recorder) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy == 0 {
		return false
	}
	if r.busy > 0 {
		r.busy--
	}
	return true
}

func (r *Recorder) BusyFor(k int) {
	r.mu.Lock()
	r.busy = k
	r.mu.Unlock()
}

// FailWrites makes every following Write return err.
func (r *Recorder) FailWrites(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Frames returns the completed windows.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Selected reports whether chip-select is currently held low.
func (r *Recorder) Selected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames, r.open, r.active = nil, nil, false
	r.mu.Unlock()
}
