package calibrate

import "testing"

func TestRangeContains(t *testing.T) {
	r := Range{Min: 650, Max: 750}
	for _, v := range []float64{650, 700, 750} {
		if !r.Contains(v) {
			t.Errorf("expected %v inside %v", v, r)
		}
	}
	for _, v := range []float64{649.9, 750.1} {
		if r.Contains(v) {
			t.Errorf("expected %v outside %v", v, r)
		}
	}
}

func TestAdaptiveRangeWidensAfterConsecutiveDiscards(t *testing.T) {
	a := adaptiveRange{name: "test", value: Range{Min: 650, Max: 750}}

	for i := 0; i < 4; i++ {
		a.adjust(true, false, 5, 100)
	}
	if a.value != (Range{Min: 650, Max: 750}) {
		t.Fatalf("range widened too early: %v", a.value)
	}
	a.adjust(true, false, 5, 100)
	if a.value != (Range{Min: 550, Max: 850}) {
		t.Fatalf("expected one widening step, got %v", a.value)
	}
	if a.discarded != 0 {
		t.Fatalf("counter not cleared after widening: %d", a.discarded)
	}
}

func TestAdaptiveRangeCounterIgnoresMixedFrames(t *testing.T) {
	a := adaptiveRange{name: "test", value: Range{Min: 650, Max: 750}}

	// Frames that also accepted a candidate do not advance the counter.
	a.adjust(true, false, 5, 100)
	a.adjust(true, false, 5, 100)
	for i := 0; i < 10; i++ {
		a.adjust(true, true, 5, 100)
	}
	if a.discarded != 2 {
		t.Fatalf("mixed frames changed the counter: %d", a.discarded)
	}
	if a.value != (Range{Min: 650, Max: 750}) {
		t.Fatalf("range changed without reaching the threshold: %v", a.value)
	}
}

func TestAdaptiveRangeReset(t *testing.T) {
	a := adaptiveRange{name: "test", value: Range{Min: 450, Max: 950}, discarded: 3}
	a.reset(Range{Min: 650, Max: 750})
	if a.value != (Range{Min: 650, Max: 750}) || a.discarded != 0 {
		t.Fatalf("reset left %v, counter %d", a.value, a.discarded)
	}
}
