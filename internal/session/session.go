// Package session ties a recorder to the trace it produced and runs the
// data-flow tracker over it. It is the surface a debugger front end talks to.
package session

import (
	"errors"
	"sync"

	"github.com/apex/log"

	"ppctrace/internal/dataflow"
	"ppctrace/internal/diag"
	"ppctrace/internal/trace"
)

// Session owns the recorded trace buffer. Tracking runs only read the
// buffer and may be issued concurrently.
type Session struct {
	Log log.Interface

	rec *trace.Recorder

	mu       sync.RWMutex
	entries  []trace.Entry
	timedOut bool
	diags    diag.Diags
}

// New returns a session recording from cpu. bps may be nil. A nil cpu gives
// an analysis-only session for traces supplied through Load.
func New(cpu trace.CPU, bps trace.Breakpoints) *Session {
	s := &Session{Log: log.Log}
	if cpu != nil {
		s.rec = trace.NewRecorder(cpu, bps)
	}
	return s
}

// Recorder exposes the underlying recorder, e.g. to replace its clock. It is
// nil for analysis-only sessions.
func (s *Session) Recorder() *trace.Recorder { return s.rec }

// Record captures a new trace, replacing the current one. An ignored call
// (CPU running, recording in progress) leaves the current trace untouched
// and reports a skipped notice.
func (s *Session) Record(opts trace.Options) (trace.Recording, error) {
	var (
		rec trace.Recording
		err error
	)
	if s.rec != nil {
		rec, err = s.rec.Record(opts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags.Reset()
	if !rec.Started {
		s.diags.Add(0, diag.KindSkipped, "cpu not stepping or recording already active")
		return rec, err
	}
	s.entries = rec.Entries
	s.timedOut = rec.TimedOut
	if rec.TimedOut {
		s.diags.Addf(rec.Start, diag.KindTimeout,
			"recording timed out after %d entries; backward analysis may be unreliable", len(rec.Entries))
	}
	if rec.Truncated {
		s.diags.Addf(rec.Start, diag.KindTruncated, "record limit reached at %d entries", len(rec.Entries))
	}
	if err != nil {
		s.Log.WithError(err).Warn("session: recording ended early")
	}
	return rec, err
}

// Load replaces the current trace, e.g. with one read back from disk.
func (s *Session) Load(entries []trace.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.timedOut = false
	s.diags.Reset()
}

// Entries returns the current trace. Callers must not modify it.
func (s *Session) Entries() []trace.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// TraceSize returns the number of recorded entries.
func (s *Session) TraceSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops the current trace.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.timedOut = false
	s.diags.Reset()
}

// Forward runs a forward tracking query over the current trace.
func (s *Session) Forward(q dataflow.Query) (dataflow.Result, error) {
	return s.track(q, dataflow.Forward)
}

// Backward runs a backward tracking query over the current trace.
func (s *Session) Backward(q dataflow.Query) (dataflow.Result, error) {
	return s.track(q, dataflow.Backward)
}

func (s *Session) track(q dataflow.Query, run func([]trace.Entry, dataflow.Query) (dataflow.Result, error)) (dataflow.Result, error) {
	s.mu.RLock()
	entries, timedOut := s.entries, s.timedOut
	s.mu.RUnlock()

	res, err := run(entries, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags.Reset()
	if err != nil {
		if errors.Is(err, dataflow.ErrInvalidRange) {
			s.diags.Add(0, diag.KindInvalidRange, err.Error())
		}
		return res, err
	}
	if res.Direction == dataflow.DirBackward && timedOut {
		s.diags.Add(0, diag.KindTimeout, "trace was cut short by the time limit; the origin may be missing")
	}
	if res.Truncated {
		s.diags.Addf(0, diag.KindTruncated, "result limit reached at %d outputs", len(res.Outputs))
	}
	s.Log.WithFields(log.Fields{
		"direction": res.Direction,
		"target":    q.Target,
		"outputs":   len(res.Outputs),
		"scanned":   res.Scanned,
	}).Debug("session: tracked")
	return res, nil
}

// Diags returns the notices of the last operation.
func (s *Session) Diags() []diag.Diag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]diag.Diag(nil), s.diags.Items()...)
}
