package max7219

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChain(t *testing.T, n int) (*Chain, *Recorder) {
	rec := &Recorder{}
	c, err := New(rec, n)
	require.NoError(t, err)
	return c, rec
}

func TestSendTo(t *testing.T) {
	for _, tc := range []struct {
		name   string
		n, nth int
		want   Frame
	}{
		{"last of eight", 8, 7, Frame{{0x0A, 0x05}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0}}},
		{"first of four", 4, 0, Frame{{0, 0}, {0, 0}, {0, 0}, {0x0A, 0x05}}},
		{"single chip", 1, 0, Frame{{0x0A, 0x05}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newChain(t, tc.n)
			require.NoError(t, c.SendTo(tc.nth, Intensity, 0x05))
			frames := rec.Frames()
			require.Len(t, frames, 1)
			assert.Equal(t, tc.want, frames[0])
			assert.False(t, rec.Selected())
		})
	}
}

func TestSendToOutOfRange(t *testing.T) {
	c, rec := newChain(t, 4)
	assert.ErrorIs(t, c.SendTo(4, Intensity, 1), ErrPosition)
	assert.ErrorIs(t, c.SendTo(-1, Intensity, 1), ErrPosition)
	assert.Empty(t, rec.Frames())
}

func TestBroadcast(t *testing.T) {
	c, rec := newChain(t, 3)
	require.NoError(t, c.Broadcast(Shutdown, 1))
	assert.Equal(t, []Frame{{{0x0C, 1}, {0x0C, 1}, {0x0C, 1}}}, rec.Frames())
}

func TestBroadcastVectorReversesOrder(t *testing.T) {
	c, rec := newChain(t, 4)
	require.NoError(t, c.BroadcastVector(Digit(2), []byte{0xA0, 0xA1, 0xA2, 0xA3}))
	assert.Equal(t, []Frame{{{0x03, 0xA3}, {0x03, 0xA2}, {0x03, 0xA1}, {0x03, 0xA0}}}, rec.Frames())

	assert.ErrorIs(t, c.BroadcastVector(Digit0, []byte{1, 2, 3}), ErrLength)
	assert.Len(t, rec.Frames(), 1)
}

func TestWaitsForIdleBus(t *testing.T) {
	c, rec := newChain(t, 2)
	rec.BusyFor(3)
	require.NoError(t, c.Broadcast(DecodeMode, 0))
	assert.Len(t, rec.Frames(), 1)
}

func TestStuckBusTimesOutAndReleases(t *testing.T) {
	c, rec := newChain(t, 2)
	c.SetTimeout(2 * time.Millisecond)
	rec.BusyFor(-1)

	err := c.Broadcast(Intensity, 3)
	assert.ErrorIs(t, err, ErrBusTimeout)
	assert.False(t, rec.Selected())
}

func TestWriteErrorReleases(t *testing.T) {
	c, rec := newChain(t, 2)
	boom := errors.New("boom")
	rec.FailWrites(boom)

	assert.ErrorIs(t, c.Broadcast(Intensity, 3), boom)
	assert.False(t, rec.Selected())
}

func TestOpcodeNames(t *testing.T) {
	assert.Equal(t, "digit7", Digit(7).String())
	assert.Equal(t, "shutdown", Shutdown.String())
	assert.Equal(t, Opcode(0x08), Digit(7))
}

func TestNewRejectsEmptyChain(t *testing.T) {
	_, err := New(NopBus{}, 0)
	assert.Error(t, err)
	_, err = New(nil, 1)
	assert.Error(t, err)
}
