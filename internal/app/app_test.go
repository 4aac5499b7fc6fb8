package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-spectrum/internal/audio"
	"github.com/coreman2200/funtimes-spectrum/internal/config"
	"github.com/coreman2200/funtimes-spectrum/internal/input"
	"github.com/coreman2200/funtimes-spectrum/internal/max7219"
	"github.com/coreman2200/funtimes-spectrum/model"
)

// 2x1 chips, 16x8 pixels.
func testConfig() *config.Config {
	c := config.Default()
	c.Display.Cols, c.Display.Rows = 2, 1
	c.Audio.Samples = 64
	return c
}

func tone() *audio.ToneSampler {
	return &audio.ToneSampler{Rate: 8 * physic.KiloHertz, Freq: 500, Amplitude: 400, Offset: 512}
}

// failingBus fails every write after the first n.
type failingBus struct {
	max7219.Recorder
	mu sync.Mutex
	n  int
}

var errBoom = errors.New("boom")

func (b *failingBus) Write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.n == 0 {
		return errBoom
	}
	b.n--
	return b.Recorder.Write(p)
}

func TestNewValidates(t *testing.T) {
	_, err := New(testConfig(), Hardware{}, zerolog.Nop())
	assert.Error(t, err)

	c := testConfig()
	c.UI.Mode = "DISCO"
	_, err = New(c, Hardware{Bus: max7219.NopBus{}, Sampler: tone()}, zerolog.Nop())
	assert.Error(t, err)

	c = testConfig()
	c.Audio.Samples = 16
	_, err = New(c, Hardware{Bus: max7219.NopBus{}, Sampler: tone()}, zerolog.Nop())
	assert.Error(t, err, "16 samples cannot fill 16 columns")
}

func TestRunBootsAndPresents(t *testing.T) {
	rec := &max7219.Recorder{}
	a, err := New(testConfig(), Hardware{Bus: rec, Sampler: tone()}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = a.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	frames := rec.Frames()
	require.NotEmpty(t, frames)
	assert.Equal(t, max7219.Frame{{byte(max7219.DecodeMode), 0}, {byte(max7219.DecodeMode), 0}}, frames[0])
	assert.Greater(t, a.Pipeline.Stats().Frames, uint64(0))
	assert.Empty(t, a.Diag.Recent())
}

func TestRunReportsBootFailure(t *testing.T) {
	rec := &max7219.Recorder{}
	rec.FailWrites(errBoom)
	a, err := New(testConfig(), Hardware{Bus: rec, Sampler: tone()}, zerolog.Nop())
	require.NoError(t, err)

	err = a.Run(context.Background())
	assert.ErrorIs(t, err, errBoom)
	recent := a.Diag.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "fault", recent[0].Code)
	assert.False(t, rec.Selected(), "chip-select released")
}

func TestRunStopsOnPresentFault(t *testing.T) {
	// Boot writes 13 broadcasts, one intensity and an 8-plane show, two words
	// each.
	bus := &failingBus{n: (13 + 1 + 8) * 2}
	a, err := New(testConfig(), Hardware{Bus: bus, Sampler: tone()}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = a.Run(ctx)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "present")
	assert.GreaterOrEqual(t, a.Pipeline.Stats().Errors, uint64(1))
}

func TestInjectedCenterAdvancesMode(t *testing.T) {
	a, err := New(testConfig(), Hardware{Bus: max7219.NopBus{}, Sampler: tone()}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, model.ModeLinearFFT, a.Ctx.Mode())

	a.Input.Inject(input.Event{ID: input.Center, Pressed: true})
	a.Input.Inject(input.Event{ID: input.Center, Pressed: false})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = a.Run(ctx)
	assert.Equal(t, model.ModeLogFFT, a.Ctx.Mode())

	h := a.Health()
	assert.Equal(t, "LOG", h["mode"])
	assert.Equal(t, 7, h["brightness"])
	assert.Contains(t, h, "capture")
}

func TestPresentYieldsToBanner(t *testing.T) {
	rec := &max7219.Recorder{}
	a, err := New(testConfig(), Hardware{Bus: rec, Sampler: tone()}, zerolog.Nop())
	require.NoError(t, err)
	values := make([]float32, 16)
	for i := range values {
		values[i] = 7
	}

	// the banner starts after the pipeline looked but before the lock
	a.Ctx.RequestBanner()
	err = a.present(values, model.ModeLinearFFT)
	assert.ErrorIs(t, err, audio.ErrSuperseded)
	assert.Empty(t, rec.Frames())

	require.True(t, a.Ctx.TakeBanner())
	a.Ctx.EndBanner()
	require.NoError(t, a.present(values, model.ModeLinearFFT))
	assert.Len(t, rec.Frames(), 8)
}

func TestFlipYFromConfig(t *testing.T) {
	c := testConfig()
	c.Display.FlipY = true
	a, err := New(c, Hardware{Bus: max7219.NopBus{}, Sampler: tone()}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, a.Surface.FlipY())

	a, err = New(testConfig(), Hardware{Bus: max7219.NopBus{}, Sampler: tone()}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, a.Surface.FlipY())
}

func TestOpenSampler(t *testing.T) {
	s, closeFn, err := OpenSampler(config.Default().Audio)
	require.NoError(t, err)
	assert.IsType(t, &audio.ToneSampler{}, s)
	assert.NoError(t, closeFn())

	bad := config.Default().Audio
	bad.Source = "mic"
	_, closeFn, err = OpenSampler(bad)
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}
