package ptr

import "testing"

func TestTo(t *testing.T) {
	meters := 4000.0
	p := To(meters)
	if p == nil || *p != meters {
		t.Fatalf("To(%v) = %v", meters, p)
	}
	if p == &meters {
		t.Error("To() returned the address of its argument")
	}

	name := To("Leiden")
	*name = "Utrecht"
	if *To("Leiden") != "Leiden" {
		t.Error("To() shares storage between calls")
	}
}
