// Package spi carries display chain traffic over a periph SPI controller, or
// prints it on the terminal when no controller is present.
package spi

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"
)

// DefaultClock is conservative for long ribbon cables between panels.
const DefaultClock = 1 * physic.MegaHertz

// PeriphBus adapts a periph spi.Conn to max7219.Bus. Words written between
// Select(true) and Select(false) are gathered and sent as a single Tx, which
// keeps the kernel's chip-select asserted across the whole window.
type PeriphBus struct {
	conn pspi.Conn
	cs   gpio.PinOut
	buf  []byte
	open bool
}

// NewPeriphBus connects to port in mode 0, 8 bits per word. When cs is not nil
// the port is opened with NoCS and cs is driven around every window.
func NewPeriphBus(port pspi.Port, clock physic.Frequency, cs gpio.PinOut) (*PeriphBus, error) {
	if clock <= 0 {
		clock = DefaultClock
	}
	mode := pspi.Mode0
	if cs != nil {
		mode |= pspi.NoCS
		if err := cs.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("spi: chip-select idle: %w", err)
		}
	}
	c, err := port.Connect(clock, mode, 8)
	if err != nil {
		return nil, fmt.Errorf("spi: connect: %w", err)
	}
	return &PeriphBus{conn: c, cs: cs}, nil
}

func (b *PeriphBus) Select(active bool) error {
	if active {
		b.buf = b.buf[:0]
		b.open = true
		if b.cs != nil {
			return b.cs.Out(gpio.Low)
		}
		return nil
	}
	if !b.open {
		return nil
	}
	b.open = false
	var err error
	if len(b.buf) > 0 {
		err = b.conn.Tx(b.buf, nil)
	}
	if b.cs != nil {
		if cerr := b.cs.Out(gpio.High); err == nil {
			err = cerr
		}
	}
	return err
}

func (b *PeriphBus) Write(p []byte) error {
	if !b.open {
		return fmt.Errorf("spi: write outside a select window")
	}
	b.buf = append(b.buf, p...)
	return nil
}

// Busy is always false; Tx returns once the transfer is done.
func (b *PeriphBus) Busy() bool {
	return false
}

func (b *PeriphBus) String() string {
	return fmt.Sprintf("spi{%s}", b.conn)
}
