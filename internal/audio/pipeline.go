package audio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/coreman2200/funtimes-spectrum/model"
	"github.com/rs/zerolog"
)

// Sink presents one transformed burst. It runs on the sampler goroutine.
type Sink interface {
	Present(values []float32, mode model.Mode) error
}

// ErrSuperseded is returned by a Sink that dropped the burst because the
// banner took the display first. The burst counts as discarded.
var ErrSuperseded = errors.New("audio: display taken by banner")

type SinkFunc func(values []float32, mode model.Mode) error

func (f SinkFunc) Present(values []float32, mode model.Mode) error { return f(values, mode) }

// Stats counts completed bursts by outcome.
type Stats struct {
	Frames    uint64 `json:"frames"`
	Discarded uint64 `json:"discarded"`
	Errors    uint64 `json:"errors"`
}

// Pipeline arms the sampler and handles its completions. Only one burst is
// ever in flight; the pending flag lives in the shared RenderContext.
type Pipeline struct {
	buf     *Buffer
	tr      *Transformer
	sampler Sampler
	ctx     *model.RenderContext
	sink    Sink
	log     zerolog.Logger

	// Fault receives presentation errors.
	Fault func(error)

	frames    atomic.Uint64
	discarded atomic.Uint64
	errors    atomic.Uint64
}

type PipelineConfig struct {
	Samples int
	Window  Window
	// Width of the display. A burst must cover at least two screens.
	Width int
}

func NewPipeline(cfg PipelineConfig, s Sampler, ctx *model.RenderContext, sink Sink, log zerolog.Logger) (*Pipeline, error) {
	buf, err := NewBuffer(cfg.Samples)
	if err != nil {
		return nil, err
	}
	if cfg.Samples < 2*cfg.Width {
		return nil, fmt.Errorf("audio: %d samples cannot fill %d columns", cfg.Samples, cfg.Width)
	}
	return &Pipeline{
		buf:     buf,
		tr:      NewTransformer(cfg.Samples, cfg.Window),
		sampler: s,
		ctx:     ctx,
		sink:    sink,
		log:     log,
	}, nil
}

// Start arms a burst unless one is already pending. It reports whether a
// burst was armed.
func (p *Pipeline) Start() bool {
	if !p.ctx.CapturePending.CompareAndSwap(false, true) {
		return false
	}
	if err := p.sampler.Arm(p.buf.Samples(), p.complete); err != nil {
		p.ctx.CapturePending.Store(false)
		p.log.Warn().Err(err).Msg("arm capture")
		return false
	}
	return true
}

func (p *Pipeline) complete(err error) {
	defer p.ctx.CapturePending.Store(false)

	if p.ctx.BannerBusy() {
		p.discarded.Add(1)
		return
	}
	if err != nil {
		p.errors.Add(1)
		p.log.Warn().Err(err).Msg("capture failed")
		return
	}

	mode := p.ctx.Mode()
	values := p.tr.Transform(p.buf, mode, p.ctx.Gain())
	if err := p.sink.Present(values, mode); errors.Is(err, ErrSuperseded) {
		p.discarded.Add(1)
		return
	} else if err != nil {
		p.errors.Add(1)
		if p.Fault != nil {
			p.Fault(err)
		}
		return
	}
	p.frames.Add(1)
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:    p.frames.Load(),
		Discarded: p.discarded.Load(),
		Errors:    p.errors.Load(),
	}
}
