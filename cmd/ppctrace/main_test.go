package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ppctrace/internal/diag"
	"ppctrace/internal/output"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"0x80003100", 0x80003100, true},
		{" 4096 ", 4096, true},
		{"0x1ffffffff", 0, false},
		{"main", 0, false},
	}
	for _, tt := range tests {
		got, err := parseAddr(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parseAddr(%q) = 0x%x, %v", tt.in, got, err)
		}
	}
}

func TestDemoProducesTrace(t *testing.T) {
	dir := t.TempDir()
	if err := cmdDemo([]string{"--out", dir}); err != nil {
		t.Fatalf("cmdDemo: %v", err)
	}
	entries, err := output.ReadTraceFile(filepath.Join(dir, "trace.jsonl"), diag.ModeStrict, nil)
	if err != nil {
		t.Fatal(err)
	}
	// 4 setup + 4 iterations of 4 + store sequence of 3.
	if len(entries) != 23 {
		t.Fatalf("trace has %d entries, want 23", len(entries))
	}
	if entries[0].Addr != demoBase {
		t.Errorf("first entry at 0x%08x", entries[0].Addr)
	}
	store := entries[len(entries)-2]
	if !store.HasMem || store.MemTarget != demoSum {
		t.Errorf("store entry = %+v", store)
	}
	if _, err := os.Stat(filepath.Join(dir, "flow.dot")); err != nil {
		t.Errorf("flow.dot: %v", err)
	}
}

func TestTrackAndDisasmOnDemo(t *testing.T) {
	dir := t.TempDir()
	if err := cmdDemo([]string{"--out", dir}); err != nil {
		t.Fatalf("cmdDemo: %v", err)
	}
	dot := filepath.Join(dir, "track.dot")
	cfg := filepath.Join(dir, "timeline.dot")
	err := cmdTrack([]string{
		"--in", filepath.Join(dir, "trace.jsonl"),
		"--reg", "r3",
		"--dot", dot,
		"--cfg", cfg,
	})
	if err != nil {
		t.Fatalf("cmdTrack: %v", err)
	}
	for _, p := range []string{dot, cfg} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s: %v", p, err)
		}
	}

	err = cmdTrack([]string{
		"--in", filepath.Join(dir, "trace.jsonl"),
		"--reg", "r3",
		"--from", "0x12345678",
	})
	if err == nil {
		t.Error("expected invalid range error")
	}

	listing := filepath.Join(dir, "demo.txt")
	if err := cmdDisasm([]string{
		"--bin", filepath.Join(dir, "demo.bin"),
		"--base", "0x80003100",
		"--out", listing,
	}); err != nil {
		t.Fatalf("cmdDisasm: %v", err)
	}
	data, err := os.ReadFile(listing)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 11 {
		t.Errorf("listing has %d lines, want 11:\n%s", len(lines), data)
	}
	if !strings.Contains(string(data), "-> 0x80003110") {
		t.Errorf("loop branch not annotated:\n%s", data)
	}
}

func TestTrackBackwardRangeNewestFirst(t *testing.T) {
	dir := t.TempDir()
	if err := cmdDemo([]string{"--out", dir}); err != nil {
		t.Fatalf("cmdDemo: %v", err)
	}
	in := filepath.Join(dir, "trace.jsonl")
	store := "0x80003124"
	if err := cmdTrack([]string{"--in", in, "--reg", "r3", "--backward",
		"--from", store, "--to", "0x80003100"}); err != nil {
		t.Errorf("newest-to-oldest range: %v", err)
	}
	if err := cmdTrack([]string{"--in", in, "--reg", "r3", "--backward",
		"--from", "0x80003100", "--to", store}); err == nil {
		t.Error("program-order range accepted for a backward run")
	}
}

func TestTrackNeedsOneTarget(t *testing.T) {
	if err := cmdTrack([]string{"--in", "x.jsonl"}); err == nil {
		t.Error("expected error without a target")
	}
	if err := cmdTrack([]string{"--in", "x.jsonl", "--reg", "r3", "--mem", "0x10"}); err == nil {
		t.Error("expected error with two targets")
	}
}
