// Package diag provides the non-fatal notices reported alongside recording,
// tracking and trace loading results.
package diag

import "fmt"

// Kind classifies a diagnostic message.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindTruncated    Kind = "truncated"
	KindInvalidRange Kind = "invalid_range"
	KindSkipped      Kind = "skipped"
	KindMalformed    Kind = "malformed"
)

// Diag records a non-fatal issue. Addr is the instruction address the issue
// refers to, or 0 when none applies.
type Diag struct {
	Addr uint32 `json:"addr"`
	Kind Kind   `json:"kind"`
	Msg  string `json:"msg"`
}

func (d Diag) String() string {
	if d.Addr == 0 {
		return fmt.Sprintf("[%s] %s", d.Kind, d.Msg)
	}
	return fmt.Sprintf("[%s] 0x%08x: %s", d.Kind, d.Addr, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(addr uint32, kind Kind, msg string) {
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(addr uint32, kind Kind, format string, args ...any) {
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }
func (d *Diags) Reset()        { d.items = nil }

// Has reports whether a diagnostic of the given kind was recorded.
func (d *Diags) Has(kind Kind) bool {
	for _, it := range d.items {
		if it.Kind == kind {
			return true
		}
	}
	return false
}

// Mode controls error handling behavior.
type Mode int

const (
	ModeStrict     Mode = iota // first malformed record returns an error
	ModeBestEffort             // skip malformed records, accumulate diags
)
