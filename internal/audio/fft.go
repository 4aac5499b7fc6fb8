package audio

import (
	"math"
	"math/bits"
)

// twiddles holds exp(-2πik/n) for k < n/2.
type twiddles struct {
	n   int
	cos []float32
	sin []float32
}

func newTwiddles(n int) *twiddles {
	t := &twiddles{n: n, cos: make([]float32, n/2), sin: make([]float32, n/2)}
	for k := range t.cos {
		s, c := math.Sincos(-2 * math.Pi * float64(k) / float64(n))
		t.cos[k], t.sin[k] = float32(c), float32(s)
	}
	return t
}

// fft runs an iterative radix-2 transform over x, which holds n complex values
// as re,im pairs. n must match the twiddle table.
func (t *twiddles) fft(x []float32) {
	n := t.n
	if n < 2 {
		return
	}
	shift := uint(bits.UintSize - bits.Len(uint(n-1)))
	for i := 0; i < n; i++ {
		j := int(bits.Reverse(uint(i)) >> shift)
		if j > i {
			x[2*i], x[2*j] = x[2*j], x[2*i]
			x[2*i+1], x[2*j+1] = x[2*j+1], x[2*i+1]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		step := n / size
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				wr, wi := t.cos[k*step], t.sin[k*step]
				a, b := 2*(start+k), 2*(start+k+half)
				br := x[b]*wr - x[b+1]*wi
				bi := x[b]*wi + x[b+1]*wr
				x[b], x[b+1] = x[a]-br, x[a+1]-bi
				x[a], x[a+1] = x[a]+br, x[a+1]+bi
			}
		}
	}
}
