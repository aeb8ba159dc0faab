package board

import (
	"math"
	"sync"
)

// MockBoard implements Board with scripted frames for dev mode and tests.
// Each ReadCOG call selects the next scripted frame; ReadSensors and
// ReadBattery read from the frame selected by the most recent ReadCOG, so
// one acquisition cycle sees one coherent frame. When the script runs out
// the last frame repeats (or the script wraps, for wobble mode), which is
// exactly how a real board behaves when polled faster than it refreshes.
type MockBoard struct {
	mu      sync.Mutex
	frames  []Frame
	idx     int
	wrap    bool
	cur     Frame
	haveCur bool
	cycles  int
	failAt  int // ReadCOG calls >= failAt return readErr; 0 disables
	readErr error
	pressed bool
	closed  bool
}

// NewMockBoard creates a mock board with the power button already held.
func NewMockBoard(frames ...Frame) *MockBoard {
	return &MockBoard{frames: frames, pressed: true}
}

// NewWobbleBoard creates a mock board that synthesises a slow sway around
// the board centre, for dev mode without hardware. The pattern repeats
// every n frames.
func NewWobbleBoard(n int) *MockBoard {
	if n < 1 {
		n = 64
	}
	frames := make([]Frame, n)
	for i := range frames {
		phase := 2 * math.Pi * float64(i) / float64(n)
		x := 3.5 * math.Sin(phase)
		y := 2.0 * math.Cos(phase)
		load := 70.0 // kg on the board
		frames[i] = Frame{
			CogX:    x,
			CogY:    y,
			Sensor1: load/4 + x + y,
			Sensor2: load/4 - x + y,
			Sensor3: load/4 + x - y,
			Sensor4: load/4 - x - y,
			Battery: 0.82,
			Button:  true,
		}
	}
	b := NewMockBoard(frames...)
	b.wrap = true
	return b
}

// SetPressed controls the power button state.
func (m *MockBoard) SetPressed(pressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pressed = pressed
}

// FailAfter makes the ReadCOG of cycle n+1 (and everything after it) return
// err, simulating a mid-run link failure.
func (m *MockBoard) FailAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt = n + 1
	m.readErr = err
}

// Cycles returns how many ReadCOG calls have been made.
func (m *MockBoard) Cycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}

// ReadCOG selects the next scripted frame and returns its COG pair.
func (m *MockBoard) ReadCOG() (float64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, 0, ErrNotConnected
	}
	m.cycles++
	if m.failAt > 0 && m.cycles >= m.failAt {
		return 0, 0, m.readErr
	}
	if len(m.frames) == 0 {
		return 0, 0, ErrNoFrame
	}
	m.cur = m.frames[m.idx]
	m.haveCur = true
	if m.idx < len(m.frames)-1 {
		m.idx++
	} else if m.wrap {
		m.idx = 0
	}
	return m.cur.CogX, m.cur.CogY, nil
}

// ReadSensors returns the corner loads of the current frame.
func (m *MockBoard) ReadSensors() (float64, float64, float64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.currentLocked()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return f.Sensor1, f.Sensor2, f.Sensor3, f.Sensor4, nil
}

// ReadBattery returns the battery level of the current frame.
func (m *MockBoard) ReadBattery() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.currentLocked()
	if err != nil {
		return 0, err
	}
	return f.Battery, nil
}

// currentLocked returns the frame selected by the last ReadCOG.
func (m *MockBoard) currentLocked() (Frame, error) {
	if m.closed {
		return Frame{}, ErrNotConnected
	}
	if m.failAt > 0 && m.cycles >= m.failAt {
		return Frame{}, m.readErr
	}
	if len(m.frames) == 0 {
		return Frame{}, ErrNoFrame
	}
	if !m.haveCur {
		return m.frames[0], nil
	}
	return m.cur, nil
}

// ButtonPressed reports the scripted button state.
func (m *MockBoard) ButtonPressed(id int) (bool, error) {
	if id != PowerButton {
		return false, ErrUnknownButton
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrNotConnected
	}
	return m.pressed, nil
}

// Connected reports whether Close has been called.
func (m *MockBoard) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Close marks the mock board disconnected.
func (m *MockBoard) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
