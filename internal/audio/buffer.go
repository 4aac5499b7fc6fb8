// Package audio turns bursts of raw ADC counts into waveform or spectrum
// columns for the display.
package audio

import (
	"fmt"
	"math/bits"
)

// Buffer is the capture arena: 2N float32 slots. A sampler writes N raw
// counts into the front half, then the transform reuses the whole arena as N
// interleaved complex values. The raw counts do not survive a transform.
type Buffer struct {
	data []float32
	n    int
}

func NewBuffer(n int) (*Buffer, error) {
	if n < 2 || bits.OnesCount(uint(n)) != 1 {
		return nil, fmt.Errorf("audio: sample count %d is not a power of two", n)
	}
	return &Buffer{data: make([]float32, 2*n), n: n}, nil
}

// N is the number of samples per burst.
func (b *Buffer) N() int { return b.n }

// Samples is the front half where a sampler stores raw counts.
func (b *Buffer) Samples() []float32 { return b.data[:b.n] }

// Arena exposes all 2N slots.
func (b *Buffer) Arena() []float32 { return b.data }
