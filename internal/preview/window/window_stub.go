//go:build !cgo

package window

import "context"

func (win *Window) Run(_ context.Context) error {
	return ErrNoWindow
}
