package diag

import "testing"

func TestDiags(t *testing.T) {
	var d Diags
	if d.Len() != 0 || d.Has(KindTimeout) {
		t.Fatal("zero Diags not empty")
	}
	d.Add(0, KindTimeout, "recording timed out")
	d.Addf(0x80003100, KindTruncated, "stopped after %d entries", 10)
	if d.Len() != 2 {
		t.Fatalf("Len = %d", d.Len())
	}
	if !d.Has(KindTruncated) || d.Has(KindSkipped) {
		t.Errorf("Has mismatch: %v", d.Items())
	}
	if got := d.Items()[0].String(); got != "[timeout] recording timed out" {
		t.Errorf("String = %q", got)
	}
	if got := d.Items()[1].String(); got != "[truncated] 0x80003100: stopped after 10 entries" {
		t.Errorf("String = %q", got)
	}
	d.Reset()
	if d.Len() != 0 {
		t.Errorf("Len after Reset = %d", d.Len())
	}
}
