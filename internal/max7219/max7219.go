// Package max7219 speaks the daisy-chain protocol of MAX7219 LED drivers.
//
// Every chip in the chain is a 16-bit shift register. A transaction shifts
// exactly one 2-byte word per chip while chip-select is held low; the rising
// edge of chip-select latches all of them at once. The first word on the wire
// ends up in the chip farthest from the controller.
package max7219

import (
	"errors"
	"fmt"
	"time"
)

// Opcode is the register address half of a command word.
type Opcode byte

const (
	NoOp        Opcode = 0x00
	Digit0      Opcode = 0x01
	DecodeMode  Opcode = 0x09
	Intensity   Opcode = 0x0A
	ScanLimit   Opcode = 0x0B
	Shutdown    Opcode = 0x0C
	DisplayTest Opcode = 0x0F
)

// Digit returns the register of digit row d (0..7).
func Digit(d int) Opcode {
	return Digit0 + Opcode(d&7)
}

func (o Opcode) String() string {
	switch {
	case o == NoOp:
		return "noop"
	case o >= Digit0 && o <= Digit0+7:
		return fmt.Sprintf("digit%d", o-Digit0)
	case o == DecodeMode:
		return "decode"
	case o == Intensity:
		return "intensity"
	case o == ScanLimit:
		return "scanlimit"
	case o == Shutdown:
		return "shutdown"
	case o == DisplayTest:
		return "test"
	}
	return fmt.Sprintf("op(0x%02x)", byte(o))
}

var (
	ErrBusTimeout = errors.New("max7219: bus stayed busy")
	ErrPosition   = errors.New("max7219: chip position out of range")
	ErrLength     = errors.New("max7219: vector length does not match chain")
)

// DefaultTimeout bounds each wait for the bus to go idle.
const DefaultTimeout = 10 * time.Millisecond

const pollInterval = 20 * time.Microsecond

// Bus is the byte-level transport under a chain: a chip-select line, a
// transmit path and a busy indicator.
type Bus interface {
	// Select drives chip-select. active=true pulls the line low.
	Select(active bool) error
	Write(p []byte) error
	// Busy reports whether the previous Write is still shifting out.
	Busy() bool
}

// Chain addresses n chips sharing one chip-select line.
type Chain struct {
	bus     Bus
	n       int
	timeout time.Duration
	word    [2]byte
}

func New(bus Bus, n int) (*Chain, error) {
	if bus == nil {
		return nil, errors.New("max7219: nil bus")
	}
	if n <= 0 {
		return nil, fmt.Errorf("max7219: invalid chain length %d", n)
	}
	return &Chain{bus: bus, n: n, timeout: DefaultTimeout}, nil
}

// SetTimeout changes the idle wait bound. Non-positive values restore the
// default.
func (c *Chain) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	c.timeout = d
}

// Len is the number of chips in the chain.
func (c *Chain) Len() int {
	return c.n
}

// SendTo writes (op, data) to chip nth and a no-op to every other chip.
func (c *Chain) SendTo(nth int, op Opcode, data byte) error {
	if nth < 0 || nth >= c.n {
		return fmt.Errorf("%w: %d of %d", ErrPosition, nth, c.n)
	}
	target := c.n - nth - 1
	return c.transact(op, func(i int) (Opcode, byte) {
		if i == target {
			return op, data
		}
		return NoOp, 0
	})
}

// Broadcast writes the same (op, data) to every chip.
func (c *Chain) Broadcast(op Opcode, data byte) error {
	return c.transact(op, func(int) (Opcode, byte) {
		return op, data
	})
}

// BroadcastVector writes data[k] to chip k. len(data) must equal Len.
func (c *Chain) BroadcastVector(op Opcode, data []byte) error {
	if len(data) != c.n {
		return fmt.Errorf("%w: got %d, want %d", ErrLength, len(data), c.n)
	}
	return c.transact(op, func(i int) (Opcode, byte) {
		return op, data[c.n-i-1]
	})
}

// transact runs one chip-select window. word(i) yields the i-th word on the
// wire. Chip-select is released on every path.
func (c *Chain) transact(op Opcode, word func(i int) (Opcode, byte)) (err error) {
	if err := c.bus.Select(true); err != nil {
		return fmt.Errorf("max7219: %s: select: %w", op, err)
	}
	defer func() {
		if rerr := c.bus.Select(false); rerr != nil && err == nil {
			err = fmt.Errorf("max7219: %s: release: %w", op, rerr)
		}
	}()

	if err := c.waitIdle(); err != nil {
		return fmt.Errorf("%w (%s)", err, op)
	}
	for i := 0; i < c.n; i++ {
		o, d := word(i)
		c.word[0], c.word[1] = byte(o), d
		if err := c.bus.Write(c.word[:]); err != nil {
			return fmt.Errorf("max7219: %s: write word %d: %w", op, i, err)
		}
	}
	if err := c.waitIdle(); err != nil {
		return fmt.Errorf("%w (%s)", err, op)
	}
	return nil
}

func (c *Chain) waitIdle() error {
	if !c.bus.Busy() {
		return nil
	}
	deadline := time.Now().Add(c.timeout)
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		<-t.C
		if !c.bus.Busy() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusTimeout
		}
	}
}
