package input

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// CdevConfig maps buttons to line offsets on one GPIO character device.
type CdevConfig struct {
	Chip     string
	Lines    map[Button]int
	Debounce time.Duration
	// ActiveLow treats a low line as pressed.
	ActiveLow bool
	PullUp    bool
}

// CdevSource holds kernel-debounced line requests that feed a Controller.
type CdevSource struct {
	lines []*gpiocdev.Line
}

// OpenCdev requests every configured line with edge events on both edges.
// now supplies the timestamp for injected events, on the scheduler's clock.
func OpenCdev(c *Controller, cfg CdevConfig, now func() time.Duration) (*CdevSource, error) {
	s := &CdevSource{}
	for id, offset := range cfg.Lines {
		if err := c.Register(Config{ID: id, Debounce: cfg.Debounce}); err != nil {
			s.Close()
			return nil, err
		}
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(cdevHandler(c, id, now)),
		}
		if cfg.Debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
		}
		if cfg.ActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		if cfg.PullUp {
			opts = append(opts, gpiocdev.WithPullUp)
		}
		l, err := gpiocdev.RequestLine(cfg.Chip, offset, opts...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("input: %s on %s:%d: %w", id, cfg.Chip, offset, err)
		}
		s.lines = append(s.lines, l)
	}
	return s, nil
}

func cdevHandler(c *Controller, id Button, now func() time.Duration) func(gpiocdev.LineEvent) {
	return func(evt gpiocdev.LineEvent) {
		c.Inject(cdevEvent(id, evt, now()))
	}
}

// cdevEvent translates a line edge. Lines are requested with the active level
// already applied, so a rising edge is a press.
func cdevEvent(id Button, evt gpiocdev.LineEvent, at time.Duration) Event {
	return Event{ID: id, Pressed: evt.Type == gpiocdev.LineEventRisingEdge, At: at}
}

func (s *CdevSource) Close() error {
	var first error
	for _, l := range s.lines {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.lines = nil
	return first
}
