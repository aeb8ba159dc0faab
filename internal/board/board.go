// Package board provides access to the two-axis centre-of-gravity sensing
// board over its wireless serial bridge. The acquisition engine consumes it
// only through the Board read primitives; pairing and transport details stay
// on this side of the boundary.
package board

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/balance.report/internal/timeutil"
)

var (
	// ErrNotConnected is returned by read primitives after the link has
	// been closed or has failed.
	ErrNotConnected = errors.New("board not connected")

	// ErrNoFrame is returned when no report has arrived from the board
	// yet. WaitReady blocks until the first frame, so a running
	// acquisition loop should never observe it.
	ErrNoFrame = errors.New("no frame received from board")

	// ErrUnknownButton is returned for a button id the board does not
	// report.
	ErrUnknownButton = errors.New("unknown button id")
)

// PowerButton is the board's only button, used as the startup "ready" gate.
const PowerButton = 0

// Board is the device collaborator consumed by the acquisition loop. All
// reads return the board's most recent report; a failed link poisons every
// subsequent read so the loop can fault rather than continue on stale data.
type Board interface {
	// ReadCOG returns the board-reported centre-of-gravity offsets.
	ReadCOG() (x, y float64, err error)

	// ReadSensors returns the four per-corner load-cell readings.
	ReadSensors() (s1, s2, s3, s4 float64, err error)

	// ReadBattery returns the battery level in [0,1].
	ReadBattery() (float64, error)

	// ButtonPressed reports whether the given button is currently held.
	ButtonPressed(id int) (bool, error)

	// Connected reports whether the link is still up.
	Connected() bool

	// Close tears down the link. Safe to call on all exit paths.
	Close() error
}

// WaitReady polls the board's power button until it is held, gating engine
// start on an explicit user action. It returns the board's error if a poll
// fails, or ctx.Err() on cancellation.
func WaitReady(ctx context.Context, b Board, clock timeutil.Clock, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	for {
		pressed, err := b.ButtonPressed(PowerButton)
		if err != nil && !errors.Is(err, ErrNoFrame) {
			return err
		}
		if err == nil && pressed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
}
