package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

var ErrGaveUp = errors.New("app: too many restarts")

// Looper keeps a run function alive, restarting it after errors and panics
// with a doubling backoff.
type Looper struct {
	MaxRestarts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Log         zerolog.Logger

	wait func(ctx context.Context, d time.Duration) bool
}

func NewLooper(maxRestarts int, log zerolog.Logger) *Looper {
	return &Looper{
		MaxRestarts: maxRestarts,
		MinBackoff:  200 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		Log:         log,
		wait:        sleepCtx,
	}
}

// Run returns nil once ctx is done, or ErrGaveUp after more than MaxRestarts
// failures in a row. A run that lasted longer than MaxBackoff resets the
// count.
func (l *Looper) Run(ctx context.Context, run func(context.Context) error) error {
	backoff := l.MinBackoff
	failures := 0
	for {
		start := time.Now()
		err := protect(ctx, run)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		if time.Since(start) > l.MaxBackoff {
			failures, backoff = 0, l.MinBackoff
		}
		failures++
		if failures > l.MaxRestarts {
			return fmt.Errorf("%w: %v", ErrGaveUp, err)
		}
		l.Log.Error().Err(err).Int("attempt", failures).Dur("backoff", backoff).Msg("run failed, restarting")
		if !l.wait(ctx, backoff) {
			return nil
		}
		backoff *= 2
		if backoff > l.MaxBackoff {
			backoff = l.MaxBackoff
		}
	}
}

func protect(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return run(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
