package engine

import (
	"sync"

	"github.com/banshee-data/balance.report/internal/sample"
)

// Store owns the two sample buffers: "session", which lives for the
// engine's lifetime, and "trial", a resettable recording window nested
// inside it. Every accepted sample lands in both buffers in the same call,
// so the trial sequence is always a suffix of the session sequence since
// the trial's last clear.
//
// All mutation funnels through the store mutex. The polling loop is the
// only producer, but exports may be invoked from an HTTP handler, and an
// export-plus-clear observed concurrently with an append would silently
// drop a sample.
type Store struct {
	mu      sync.Mutex
	session *sample.Buffer
	trial   *sample.Buffer
}

// NewStore creates empty session and trial buffers with the given capacity
// hints.
func NewStore(sessionCap, trialCap int) *Store {
	return &Store{
		session: sample.NewBuffer(sessionCap),
		trial:   sample.NewBuffer(trialCap),
	}
}

// Accept appends the sample to both buffers. Duplicate filtering happens
// upstream in the loop, before this call.
func (st *Store) Accept(s sample.Sample) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.session.Put(s)
	st.trial.Put(s)
}

// LastAccepted returns the most recently stored sample, or false when the
// session buffer is empty (fresh engine or just after a session export).
func (st *Store) LastAccepted() (sample.Sample, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session.Last()
}

// SessionRows returns the session buffer's logical row count.
func (st *Store) SessionRows() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session.Rows()
}

// TrialRows returns the trial buffer's logical row count.
func (st *Store) TrialRows() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.trial.Rows()
}

// LastN returns the most recent n session rows restricted to the given
// columns; sample.ErrOutOfRange when n exceeds the row count.
func (st *Store) LastN(n int, cols []int) ([][]float64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session.LastN(n, cols)
}

// ExportSession snapshots the session buffer and hands it to write. Only
// after write succeeds are the session and trial buffers cleared, so a
// failed export loses nothing. Clearing trial on a session export is
// deliberate policy, not an accident: a full-session save marks a trial
// boundary, and the next trial begins where the save ended.
//
// The whole snapshot-write-clear sequence holds the store mutex, making it
// atomic with respect to Accept.
func (st *Store) ExportSession(write func(sample.Snapshot) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := write(sample.TakeSnapshot(st.session)); err != nil {
		return err
	}
	st.session.Clear()
	st.trial.Clear()
	return nil
}

// ExportTrial snapshots the trial buffer and hands it to write, clearing
// only the trial buffer on success. The session buffer is untouched.
func (st *Store) ExportTrial(write func(sample.Snapshot) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := write(sample.TakeSnapshot(st.trial)); err != nil {
		return err
	}
	st.trial.Clear()
	return nil
}

// ClearTrial discards the trial buffer's rows without exporting them.
func (st *Store) ClearTrial() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.trial.Clear()
}
