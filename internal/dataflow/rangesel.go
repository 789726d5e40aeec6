package dataflow

import (
	"errors"
	"fmt"

	"ppctrace/internal/trace"
)

// ErrInvalidRange means a requested range bound does not occur in the trace.
// The trace is unaffected; the caller can retry with other bounds.
var ErrInvalidRange = errors.New("dataflow: invalid range")

// Range optionally narrows a run to part of the trace. Start is where the
// scan begins (the newest end for backward runs).
type Range struct {
	Start    uint32
	End      uint32
	HasStart bool
	HasEnd   bool
}

// FullRange scans the whole trace.
func FullRange() Range { return Range{} }

// From starts the scan at the given address.
func From(start uint32) Range { return Range{Start: start, HasStart: true} }

// Between scans from start to end inclusive.
func Between(start, end uint32) Range {
	return Range{Start: start, End: end, HasStart: true, HasEnd: true}
}

// Span is an inclusive index range in scan order. Backward spans have
// Begin >= End.
type Span struct {
	Begin, End int
}

// Len returns the number of entries the span covers.
func (s Span) Len() int {
	if s.Begin <= s.End {
		return s.End - s.Begin + 1
	}
	return s.Begin - s.End + 1
}

// Select resolves a Range to a Span. Forward runs take the first occurrence
// of Start and the first occurrence of End after it; backward runs take the
// last occurrence of Start and the nearest End before it.
func Select(entries []trace.Entry, r Range, backward bool) (Span, error) {
	n := len(entries)
	if !backward {
		span := Span{Begin: 0, End: n - 1}
		if r.HasStart {
			span.Begin = indexFrom(entries, r.Start, 0, 1)
			if span.Begin < 0 {
				return Span{}, fmt.Errorf("%w: start 0x%08x not in trace", ErrInvalidRange, r.Start)
			}
		}
		if r.HasEnd {
			span.End = indexFrom(entries, r.End, span.Begin, 1)
			if span.End < 0 {
				return Span{}, fmt.Errorf("%w: end 0x%08x not in trace after start", ErrInvalidRange, r.End)
			}
		}
		if n == 0 {
			return Span{Begin: 0, End: -1}, nil
		}
		return span, nil
	}

	span := Span{Begin: n - 1, End: 0}
	if r.HasStart {
		span.Begin = indexFrom(entries, r.Start, n-1, -1)
		if span.Begin < 0 {
			return Span{}, fmt.Errorf("%w: start 0x%08x not in trace", ErrInvalidRange, r.Start)
		}
	}
	if r.HasEnd {
		span.End = indexFrom(entries, r.End, span.Begin, -1)
		if span.End < 0 {
			return Span{}, fmt.Errorf("%w: end 0x%08x not in trace before start", ErrInvalidRange, r.End)
		}
	}
	if n == 0 {
		return Span{Begin: -1, End: 0}, nil
	}
	return span, nil
}

// indexFrom scans from i in steps of dir for addr. Returns -1 if absent.
func indexFrom(entries []trace.Entry, addr uint32, i, dir int) int {
	for ; i >= 0 && i < len(entries); i += dir {
		if entries[i].Addr == addr {
			return i
		}
	}
	return -1
}
