package dotmatrix

// Scroller moves a line of text from the right edge to off the left edge, one
// column per Step. It keeps no timer; the caller decides when to step.
type Scroller struct {
	text  string
	y     int
	i     int
	steps int
}

// NewScroller prepares text vertically centred on s.
func NewScroller(s *Surface, text string) *Scroller {
	return &Scroller{
		text:  text,
		y:     s.Height()/2 - GlyphSize/2 + 1,
		steps: s.TextWidth(text) + s.Width(),
	}
}

// Step redraws the next position and reports whether more steps remain. The
// caller shows the surface afterwards.
func (sc *Scroller) Step(s *Surface) bool {
	if sc.i >= sc.steps {
		return false
	}
	s.Clear()
	s.Text(sc.text, s.Width()-1-sc.i, sc.y)
	sc.i++
	return sc.i < sc.steps
}

func (sc *Scroller) Done() bool { return sc.i >= sc.steps }

func (sc *Scroller) Text() string { return sc.text }
