package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/balance.report/internal/board"
	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/sample"
	"github.com/banshee-data/balance.report/internal/timeutil"
)

// DefaultSampleRateHz is the board's nominal refresh ceiling.
const DefaultSampleRateHz = 44.0

// State is the acquisition loop's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Sink receives the COG pair of each accepted sample. Implementations must
// not block: the loop treats the handoff as fire-and-forget and a slow
// display must never stall acquisition.
type Sink interface {
	Plot(x, y float64)
}

// Stats is a point-in-time copy of the loop's counters.
type Stats struct {
	State      string        `json:"state"`
	Cycles     uint64        `json:"cycles"`
	Accepted   uint64        `json:"accepted"`
	Duplicates uint64        `json:"duplicates"`
	Overruns   uint64        `json:"overruns"`
	Drift      time.Duration `json:"drift_ns"`
}

// Loop drives fixed-rate polling of the board: read, duplicate-check,
// store, display. One Loop runs at most once; it exclusively owns the board
// connection for its lifetime.
type Loop struct {
	board  board.Board
	store  *Store
	sink   Sink
	clock  timeutil.Clock
	period time.Duration

	suppressDupWarn bool

	state atomic.Int32
	epoch time.Time

	mu         sync.Mutex
	cycles     uint64
	accepted   uint64
	duplicates uint64
	overruns   uint64
	drift      time.Duration
}

// NewLoop creates an idle loop polling at rateHz. A nil sink disables the
// display handoff.
func NewLoop(b board.Board, store *Store, sink Sink, clock timeutil.Clock, rateHz float64, suppressDupWarn bool) (*Loop, error) {
	if rateHz <= 0 {
		return nil, fmt.Errorf("invalid sample rate %v Hz: must be positive", rateHz)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Loop{
		board:           b,
		store:           store,
		sink:            sink,
		clock:           clock,
		period:          time.Duration(float64(time.Second) / rateHz),
		suppressDupWarn: suppressDupWarn,
	}, nil
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Period returns the target polling period (1/Fs).
func (l *Loop) Period() time.Duration { return l.period }

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		State:      l.State().String(),
		Cycles:     l.cycles,
		Accepted:   l.accepted,
		Duplicates: l.duplicates,
		Overruns:   l.overruns,
		Drift:      l.drift,
	}
}

// Run polls the board until the context is cancelled or a read fails.
// Cancellation is observed at cycle boundaries only: the current
// read-and-store always completes before the loop stops. A board read
// error faults the loop and is returned to the caller; acquisition cannot
// safely continue once the device primitive misbehaves, because later
// reads could return stale or garbage data indistinguishable from
// duplicates.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		return fmt.Errorf("loop already started (state %s)", l.State())
	}
	l.epoch = l.clock.Now()
	warnedOverrun := false

	for {
		select {
		case <-ctx.Done():
			l.state.Store(int32(StateStopped))
			return nil
		default:
		}

		cycleStart := l.clock.Now()

		s, err := l.readSample()
		if err != nil {
			l.state.Store(int32(StateFaulted))
			return fmt.Errorf("board read failed: %w", err)
		}

		l.mu.Lock()
		l.cycles++
		l.mu.Unlock()

		if last, ok := l.store.LastAccepted(); ok && Duplicate(s, last) {
			l.mu.Lock()
			l.duplicates++
			n := l.duplicates
			l.mu.Unlock()
			if !l.suppressDupWarn {
				monitoring.Logf("duplicate sample dropped (board payload unchanged, %d total)", n)
			}
		} else {
			l.store.Accept(s)
			l.mu.Lock()
			l.accepted++
			l.mu.Unlock()
			if l.sink != nil {
				l.sink.Plot(s.CogX, s.CogY)
			}
		}

		// Duty-cycle correction: sleep only for what remains of the
		// target period after this cycle's processing cost.
		elapsed := l.clock.Since(cycleStart)
		if wait := l.period - elapsed; wait > 0 {
			l.clock.Sleep(wait)
		} else {
			l.mu.Lock()
			l.overruns++
			l.drift += -wait
			l.mu.Unlock()
			if !warnedOverrun {
				monitoring.Logf("cycle took %v, longer than the %v target period; configured rate is unattainable", elapsed, l.period)
				warnedOverrun = true
			}
		}
	}
}

// readSample pulls one coherent reading from the board. The stored
// timestamp is taken at read time rather than cycle start, minimising
// jitter in the recorded value.
func (l *Loop) readSample() (sample.Sample, error) {
	x, y, err := l.board.ReadCOG()
	if err != nil {
		return sample.Sample{}, err
	}
	s1, s2, s3, s4, err := l.board.ReadSensors()
	if err != nil {
		return sample.Sample{}, err
	}
	batt, err := l.board.ReadBattery()
	if err != nil {
		return sample.Sample{}, err
	}
	return sample.Sample{
		CogX:      x,
		CogY:      y,
		Sensor1:   s1,
		Sensor2:   s2,
		Sensor3:   s3,
		Sensor4:   s4,
		Battery:   batt,
		Timestamp: l.clock.Since(l.epoch).Seconds(),
	}, nil
}
