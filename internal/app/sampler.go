package app

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/coreman2200/funtimes-spectrum/internal/audio"
	"github.com/coreman2200/funtimes-spectrum/internal/config"
)

// OpenSampler builds the configured audio source. The returned close func is
// never nil.
func OpenSampler(c config.Audio) (audio.Sampler, func() error, error) {
	rate := physic.Frequency(c.RateHz) * physic.Hertz
	nop := func() error { return nil }
	switch c.Source {
	case "tone":
		return &audio.ToneSampler{
			Rate:      rate,
			Freq:      c.ToneHz,
			Amplitude: c.ToneAmplitude,
			Offset:    c.ToneOffset,
			Noise:     c.ToneNoise,
			Realtime:  true,
		}, nop, nil
	case "mcp3008":
		port, err := spireg.Open(c.ADCPort)
		if err != nil {
			return nil, nop, fmt.Errorf("app: adc port %q: %w", c.ADCPort, err)
		}
		s, err := audio.NewMCP3008(port, c.ADCChannel, rate)
		if err != nil {
			_ = port.Close()
			return nil, nop, err
		}
		return s, port.Close, nil
	}
	return nil, nop, fmt.Errorf("app: audio source %q", c.Source)
}
