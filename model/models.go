package model

import (
	"errors"
	"fmt"
)

const (
	// CellSize is the edge length, in pixels, of one driver chip's matrix.
	CellSize int = 8
	// DigitCount is the number of digit (row) registers in each chip.
	DigitCount int = 8
)

var ErrTopology = errors.New("model: invalid topology")

// Topology is a cols x rows grid of identical daisy-chained driver chips.
type Topology struct {
	Cols int
	Rows int
}

func NewTopology(cols, rows int) (Topology, error) {
	if cols <= 0 || rows <= 0 {
		return Topology{}, fmt.Errorf("%w: %dx%d", ErrTopology, cols, rows)
	}
	return Topology{Cols: cols, Rows: rows}, nil
}

// ChainLen is the number of chips on the bus.
func (t Topology) ChainLen() int {
	return t.Cols * t.Rows
}

func (t Topology) Width() int {
	return t.Cols * CellSize
}

func (t Topology) Height() int {
	return t.Rows * CellSize
}

func (t Topology) String() string {
	return fmt.Sprintf("%dx%d chips (%dx%d px)", t.Cols, t.Rows, t.Width(), t.Height())
}

// PixelGrid is the bit-packed framebuffer. It is organised as a series of
// row-planes: all chips' digit 0 bytes, then all chips' digit 1 bytes, and so
// on, so that one plane is exactly what a single chain transaction carries.
type PixelGrid struct {
	topo  Topology
	cells []byte
}

func NewPixelGrid(t Topology) *PixelGrid {
	return &PixelGrid{
		topo:  t,
		cells: make([]byte, t.ChainLen()*DigitCount),
	}
}

func (g *PixelGrid) Topology() Topology {
	return g.topo
}

// Locate resolves pixel (x,y) to a byte index and bit offset. ok is false for
// coordinates outside the grid.
//
// The chip row (y>>3) advances the chip index by a whole row of columns. This
// is verified for rows <= 2; taller or non-rectangular chains may be wired in
// a different order.
func (g *PixelGrid) Locate(x, y int) (index int, bit uint, ok bool) {
	if x < 0 || y < 0 || x >= g.topo.Width() || y >= g.topo.Height() {
		return 0, 0, false
	}
	digit := y & 7
	cellX := (x >> 3) + (y>>3)*g.topo.Cols
	return digit*g.topo.ChainLen() + cellX, uint(x & 7), true
}

func (g *PixelGrid) Get(x, y int) bool {
	i, bit, ok := g.Locate(x, y)
	if !ok {
		return false
	}
	return (g.cells[i]>>bit)&1 == 1
}

func (g *PixelGrid) Set(x, y int, on bool) {
	i, bit, ok := g.Locate(x, y)
	if !ok {
		return
	}
	if on {
		g.cells[i] |= 1 << bit
	} else {
		g.cells[i] &^= 1 << bit
	}
}

func (g *PixelGrid) Toggle(x, y int) {
	i, bit, ok := g.Locate(x, y)
	if !ok {
		return
	}
	g.cells[i] ^= 1 << bit
}

func (g *PixelGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = 0
	}
}

// Plane returns the ChainLen bytes of one digit row-plane. The slice aliases
// the grid.
func (g *PixelGrid) Plane(digit int) []byte {
	n := g.topo.ChainLen()
	return g.cells[digit*n : (digit+1)*n]
}

// Bytes exposes the raw storage, mainly for tests and snapshots.
func (g *PixelGrid) Bytes() []byte {
	return g.cells
}
