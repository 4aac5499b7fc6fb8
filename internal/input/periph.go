package input

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// PeriphPin reads a periph GPIO input.
type PeriphPin struct {
	gpio.PinIn
}

func (p PeriphPin) Read() bool {
	return p.PinIn.Read() == gpio.High
}

// OpenPeriph looks name up in the periph registry and configures it as an
// input with the given pull. host.Init must have run.
func OpenPeriph(name string, pull gpio.Pull) (PeriphPin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return PeriphPin{}, fmt.Errorf("input: no GPIO named %q", name)
	}
	if err := p.In(pull, gpio.NoEdge); err != nil {
		return PeriphPin{}, fmt.Errorf("input: %s: %w", name, err)
	}
	return PeriphPin{PinIn: p}, nil
}
