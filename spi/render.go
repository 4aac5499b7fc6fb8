package spi

import (
	"fmt"

	"github.com/coreman2200/funtimes-spectrum/internal/max7219"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
)

// Options selects the SPI port driving the display chain.
type Options struct {
	Port  string // spireg name, "" for the first port
	Clock physic.Frequency
	// CSPin names a GPIO used as chip-select. Empty uses the port's hardware
	// CS line.
	CSPin string
	// Console falls back to drawing on the terminal when no port is found.
	Console bool
	// Width and Height size the console fallback in pixels.
	Width, Height int
}

// Output is the display transport picked at boot.
type Output struct {
	Bus max7219.Bus
	// Fallback is set when no port was found and Console is on. The frames
	// still go through Bus (a NopBus) so the protocol path stays exercised.
	Fallback display.Drawer
	Spi      bool

	closer func() error
}

func (o *Output) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer()
}

// InitOutput opens the configured port. host.Init must have run.
func InitOutput(opts Options, log zerolog.Logger) (*Output, error) {
	out := &Output{}
	port, err := spireg.Open(opts.Port)
	if err != nil {
		if !opts.Console {
			return nil, fmt.Errorf("spi: open %q: %w", opts.Port, err)
		}
		log.Warn().Err(err).Msg("failed to find a SPI port, printing at the console")
		out.Bus = max7219.NopBus{}
		out.Fallback = NewConsole(opts.Width, opts.Height)
		return out, nil
	}

	var cs gpio.PinOut
	if opts.CSPin != "" {
		p := gpioreg.ByName(opts.CSPin)
		if p == nil {
			_ = port.Close()
			return nil, fmt.Errorf("spi: no GPIO named %q", opts.CSPin)
		}
		cs = p
	}

	bus, err := NewPeriphBus(port, opts.Clock, cs)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	log.Info().Str("port", port.String()).Str("clock", opts.Clock.String()).Msg("display on SPI")
	out.Bus = bus
	out.Spi = true
	out.closer = port.Close
	return out, nil
}
