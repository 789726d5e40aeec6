// Package output reads and writes ppctrace artifacts: traces as JSON lines,
// tracking results as JSON, listings and DOT graphs.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ppctrace/internal/dataflow"
	"ppctrace/internal/diag"
	"ppctrace/internal/disasm"
	"ppctrace/internal/trace"
)

// TraceRecord is the on-disk form of a trace entry, one JSON object per line.
// Addresses are hex strings so the file stays readable.
type TraceRecord struct {
	Addr string `json:"addr"`
	Text string `json:"text"`
	Mem  string `json:"mem,omitempty"`
}

func hex32(v uint32) string { return fmt.Sprintf("0x%08x", v) }

func parseHex32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	return uint32(v), err
}

// NewTraceRecord converts an entry to its on-disk form.
func NewTraceRecord(e trace.Entry) TraceRecord {
	r := TraceRecord{Addr: hex32(e.Addr), Text: e.Text}
	if e.HasMem {
		r.Mem = hex32(e.MemTarget)
	}
	return r
}

// Entry converts a record back to a trace entry.
func (r TraceRecord) Entry() (trace.Entry, error) {
	addr, err := parseHex32(r.Addr)
	if err != nil {
		return trace.Entry{}, fmt.Errorf("addr %q: %w", r.Addr, err)
	}
	e := trace.Entry{Addr: addr, Text: r.Text}
	if r.Mem != "" {
		mem, err := parseHex32(r.Mem)
		if err != nil {
			return trace.Entry{}, fmt.Errorf("mem %q: %w", r.Mem, err)
		}
		e.MemTarget, e.HasMem = mem, true
	}
	return e, nil
}

// WriteTrace writes entries as JSON lines.
func WriteTrace(w io.Writer, entries []trace.Entry) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, e := range entries {
		if err := enc.Encode(NewTraceRecord(e)); err != nil {
			return fmt.Errorf("output: encode entry %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteTraceFile writes entries to path as JSON lines.
func WriteTraceFile(path string, entries []trace.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	if err := WriteTrace(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadTrace reads a JSON lines trace. Blank lines are ignored. In strict
// mode the first malformed line is an error; in best-effort mode it is
// skipped and reported to d.
func ReadTrace(r io.Reader, mode diag.Mode, d *diag.Diags) ([]trace.Entry, error) {
	var entries []trace.Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec TraceRecord
		err := json.Unmarshal([]byte(text), &rec)
		var e trace.Entry
		if err == nil {
			e, err = rec.Entry()
		}
		if err != nil {
			if mode == diag.ModeStrict {
				return entries, fmt.Errorf("output: trace line %d: %w", line, err)
			}
			if d != nil {
				d.Addf(0, diag.KindMalformed, "trace line %d skipped: %v", line, err)
			}
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("output: read trace: %w", err)
	}
	return entries, nil
}

// ReadTraceFile reads a JSON lines trace from path.
func ReadTraceFile(path string, mode diag.Mode, d *diag.Diags) ([]trace.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("output: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadTrace(f, mode, d)
}

// OutputRecord is one reported instruction in a result file.
type OutputRecord struct {
	Index int      `json:"index"`
	Addr  string   `json:"addr"`
	Text  string   `json:"text"`
	Mem   string   `json:"mem,omitempty"`
	Via   []string `json:"via,omitempty"`
}

// ResultRecord is the JSON form of a tracking result.
type ResultRecord struct {
	Direction string         `json:"direction"`
	Target    string         `json:"target"`
	Truncated bool           `json:"truncated"`
	Scanned   int            `json:"scanned"`
	Remaining []string       `json:"remaining"`
	Outputs   []OutputRecord `json:"outputs"`
	Diags     []diag.Diag    `json:"diags,omitempty"`
}

// NewResultRecord converts a result and its notices for JSON output.
func NewResultRecord(res dataflow.Result, diags []diag.Diag) ResultRecord {
	rr := ResultRecord{
		Direction: res.Direction.String(),
		Target:    res.Target.String(),
		Truncated: res.Truncated,
		Scanned:   res.Scanned,
		Remaining: []string{},
		Outputs:   make([]OutputRecord, 0, len(res.Outputs)),
		Diags:     diags,
	}
	for _, r := range res.Remaining.Regs {
		rr.Remaining = append(rr.Remaining, r.String())
	}
	for _, m := range res.Remaining.Mems {
		rr.Remaining = append(rr.Remaining, hex32(m))
	}
	for _, o := range res.Outputs {
		or := OutputRecord{Index: o.Index, Addr: hex32(o.Addr), Text: o.Text, Via: o.Via}
		if o.HasMem {
			or.Mem = hex32(o.MemTarget)
		}
		rr.Outputs = append(rr.Outputs, or)
	}
	return rr
}

// WriteResultJSON writes a tracking result as indented JSON.
func WriteResultJSON(w io.Writer, res dataflow.Result, diags []diag.Diag) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewResultRecord(res, diags)); err != nil {
		return fmt.Errorf("output: encode result: %w", err)
	}
	return nil
}

// FormatResult renders a result as a plain text listing.
func FormatResult(res dataflow.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; %s %s: %d outputs, %d scanned\n",
		res.Direction, res.Target, len(res.Outputs), res.Scanned)
	for _, o := range res.Outputs {
		b.WriteString(o.String())
		if len(o.Via) > 0 {
			fmt.Fprintf(&b, "  ; %s", strings.Join(o.Via, ", "))
		}
		b.WriteByte('\n')
	}
	if res.Truncated {
		b.WriteString("; truncated\n")
	}
	fmt.Fprintf(&b, "; still tracked: %s\n", res.Remaining)
	return b.String()
}

// WriteASM writes a disassembly listing to path, creating parent directories.
func WriteASM(path string, insts []disasm.Inst, lookup disasm.SymbolLookup, annotators ...disasm.Annotator) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}
	text := disasm.Format(insts, lookup, annotators...)
	return os.WriteFile(path, []byte(text), 0644)
}

// WriteDOT writes a rendered graph to path.
func WriteDOT(path, dot string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
