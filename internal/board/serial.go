package board

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// Frame is one parsed report from the board's serial bridge. The bridge
// streams CSV lines of the form
//
//	x,y,s1,s2,s3,s4,battery,button
//
// at the board's internal refresh rate, which is independent of (and often
// slower than) the engine's polling rate.
type Frame struct {
	CogX, CogY                         float64
	Sensor1, Sensor2, Sensor3, Sensor4 float64
	Battery                            float64
	Button                             bool
}

const frameFields = 8

// ParseFrame parses one bridge line into a Frame.
func ParseFrame(line string) (Frame, error) {
	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) != frameFields {
		return Frame{}, fmt.Errorf("invalid frame %q: expected %d fields, got %d", line, frameFields, len(segments))
	}

	vals := make([]float64, frameFields)
	for i, seg := range segments {
		v, err := strconv.ParseFloat(strings.TrimSpace(seg), 64)
		if err != nil {
			return Frame{}, fmt.Errorf("invalid frame field %d in %q: %w", i, line, err)
		}
		vals[i] = v
	}

	return Frame{
		CogX:    vals[0],
		CogY:    vals[1],
		Sensor1: vals[2],
		Sensor2: vals[3],
		Sensor3: vals[4],
		Sensor4: vals[5],
		Battery: vals[6],
		Button:  vals[7] != 0,
	}, nil
}

// Porter is the minimal interface the serial board needs from its port.
// It enables unit testing without real hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// SerialBoard is a Board backed by a serial port. A Monitor goroutine
// parses incoming frames and caches the latest one; the read primitives
// return that cached frame. Identical consecutive readings are therefore
// expected whenever the engine polls faster than the board refreshes;
// duplicate rejection happens upstream in the engine.
type SerialBoard struct {
	port Porter

	mu        sync.Mutex
	frame     Frame
	haveFrame bool
	readErr   error
	closed    bool
}

// Open connects to the board bridge at the given serial path.
func Open(path string, baudRate int) (*SerialBoard, error) {
	if baudRate <= 0 {
		baudRate = 115200
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to board at %s: %w", path, err)
	}
	return NewSerialBoard(port), nil
}

// NewSerialBoard wraps an already-open port. Callers must run Monitor for
// frames to arrive.
func NewSerialBoard(port Porter) *SerialBoard {
	return &SerialBoard{port: port}
}

// Monitor reads frames from the port until the context is cancelled or the
// port fails. On failure the error is retained so that every subsequent
// read primitive returns it: once the link misbehaves there is no way to
// tell a stale frame from a fresh one.
func (b *SerialBoard) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(b.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan lives in its own goroutine so the outer loop
	// can also observe context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			b.fail(err)
			return err

		case line, ok := <-lineChan:
			if !ok {
				if err := scan.Err(); err != nil {
					b.fail(err)
					return err
				}
				b.fail(io.EOF)
				return nil
			}
			frame, err := ParseFrame(line)
			if err != nil {
				// A single garbled line is not fatal; the bridge
				// resynchronises on the next newline.
				continue
			}
			b.mu.Lock()
			b.frame = frame
			b.haveFrame = true
			b.mu.Unlock()
		}
	}
}

func (b *SerialBoard) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr == nil {
		b.readErr = err
	}
}

// current returns the latest frame or the retained link error.
func (b *SerialBoard) current() (Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Frame{}, ErrNotConnected
	}
	if b.readErr != nil {
		return Frame{}, fmt.Errorf("board link failed: %w", b.readErr)
	}
	if !b.haveFrame {
		return Frame{}, ErrNoFrame
	}
	return b.frame, nil
}

// ReadCOG returns the latest centre-of-gravity offsets.
func (b *SerialBoard) ReadCOG() (float64, float64, error) {
	f, err := b.current()
	if err != nil {
		return 0, 0, err
	}
	return f.CogX, f.CogY, nil
}

// ReadSensors returns the latest per-corner load readings.
func (b *SerialBoard) ReadSensors() (float64, float64, float64, float64, error) {
	f, err := b.current()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return f.Sensor1, f.Sensor2, f.Sensor3, f.Sensor4, nil
}

// ReadBattery returns the latest battery level.
func (b *SerialBoard) ReadBattery() (float64, error) {
	f, err := b.current()
	if err != nil {
		return 0, err
	}
	return f.Battery, nil
}

// ButtonPressed reports the latest state of the given button.
func (b *SerialBoard) ButtonPressed(id int) (bool, error) {
	if id != PowerButton {
		return false, fmt.Errorf("%w: %d", ErrUnknownButton, id)
	}
	f, err := b.current()
	if err != nil {
		return false, err
	}
	return f.Button, nil
}

// Connected reports whether the link is still usable.
func (b *SerialBoard) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.readErr == nil
}

// Close tears down the serial link. Subsequent reads return
// ErrNotConnected.
func (b *SerialBoard) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	return b.port.Close()
}
