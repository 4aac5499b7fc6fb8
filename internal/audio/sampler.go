package audio

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var ErrBusy = errors.New("audio: sampler already armed")

// Sampler fills dst with raw counts in the background and calls done exactly
// once when the burst ends. done runs on the sampler's goroutine.
type Sampler interface {
	Arm(dst []float32, done func(error)) error
}

// ToneSampler synthesises a sine on a DC offset, quantised like an ADC. Phase
// carries over between bursts.
type ToneSampler struct {
	Rate      physic.Frequency
	Freq      float64 // Hz
	Amplitude float64 // counts
	Offset    float64 // counts
	Noise     float64 // counts, uniform
	// Realtime makes each burst take as long as real sampling would.
	Realtime bool

	mu    sync.Mutex
	phase float64
	rng   *rand.Rand
	armed atomic.Bool
}

func (s *ToneSampler) Arm(dst []float32, done func(error)) error {
	if s.Rate <= 0 {
		return fmt.Errorf("audio: tone sampler rate %s", s.Rate)
	}
	if !s.armed.CompareAndSwap(false, true) {
		return ErrBusy
	}
	go func() {
		start := time.Now()
		s.fill(dst)
		if s.Realtime {
			burst := time.Duration(len(dst)) * s.Rate.Period()
			time.Sleep(burst - time.Since(start))
		}
		s.armed.Store(false)
		done(nil)
	}()
	return nil
}

func (s *ToneSampler) fill(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Noise > 0 && s.rng == nil {
		s.rng = rand.New(rand.NewSource(1))
	}
	step := 2 * math.Pi * s.Freq * float64(s.Rate.Period()) / float64(time.Second)
	for i := range dst {
		v := s.Offset + s.Amplitude*math.Sin(s.phase)
		if s.Noise > 0 {
			v += (s.rng.Float64()*2 - 1) * s.Noise
		}
		if v < 0 {
			v = 0
		}
		dst[i] = float32(math.Round(v))
		s.phase = math.Mod(s.phase+step, 2*math.Pi)
	}
}

// MCP3008Sampler reads one single-ended channel of an MCP3008 10-bit ADC,
// pacing conversions with a ticker at Rate.
type MCP3008Sampler struct {
	conn    spi.Conn
	channel int
	rate    physic.Frequency
	armed   atomic.Bool
}

// NewMCP3008 connects to port. A zero rate converts back to back.
func NewMCP3008(port spi.Port, channel int, rate physic.Frequency) (*MCP3008Sampler, error) {
	if channel < 0 || channel > 7 {
		return nil, fmt.Errorf("audio: mcp3008 channel %d", channel)
	}
	c, err := port.Connect(1350*physic.KiloHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("audio: mcp3008: %w", err)
	}
	return &MCP3008Sampler{conn: c, channel: channel, rate: rate}, nil
}

func (m *MCP3008Sampler) Arm(dst []float32, done func(error)) error {
	if !m.armed.CompareAndSwap(false, true) {
		return ErrBusy
	}
	go func() {
		err := m.burst(dst)
		m.armed.Store(false)
		done(err)
	}()
	return nil
}

func (m *MCP3008Sampler) burst(dst []float32) error {
	var tick <-chan time.Time
	if m.rate > 0 {
		t := time.NewTicker(m.rate.Period())
		defer t.Stop()
		tick = t.C
	}
	w := [3]byte{0x01, 0x80 | byte(m.channel)<<4, 0}
	var r [3]byte
	for i := range dst {
		if tick != nil && i > 0 {
			<-tick
		}
		if err := m.conn.Tx(w[:], r[:]); err != nil {
			return fmt.Errorf("audio: mcp3008 sample %d: %w", i, err)
		}
		dst[i] = float32(int(r[1]&0x03)<<8 | int(r[2]))
	}
	return nil
}
