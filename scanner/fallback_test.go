package scanner

import "testing"

type fakeScanFFTHost struct {
	snapshot   []float64
	binWidthHz float64
	centerHz   float64
	ok         bool
}

func (f *fakeScanFFTHost) SetScannerFFTSize(n int) error { return nil }

func (f *fakeScanFFTHost) AcquireSnapshot(out []float64) (binWidthHz, centerHz float64, ok bool) {
	if !f.ok {
		return 0, 0, false
	}
	copy(out, f.snapshot)
	return f.binWidthHz, f.centerHz, true
}

func TestFallbackDetectorNoSnapshotYet(t *testing.T) {
	host := &fakeScanFFTHost{ok: false}
	d := NewFallbackDetector(host, 256)
	_, _, ok := d.Detect(100e6, 5000, -50)
	if ok {
		t.Fatal("expected ok=false when no snapshot has been acquired")
	}
}

func TestFallbackDetectorDetectsAboveLevel(t *testing.T) {
	n := 256
	snap := make([]float64, n)
	for i := range snap {
		snap[i] = -80
	}
	snap[128] = -30 // peak exactly at center frequency

	host := &fakeScanFFTHost{snapshot: snap, binWidthHz: 1000, centerHz: 100e6, ok: true}
	d := NewFallbackDetector(host, n)

	detected, peak, ok := d.Detect(100e6, 5000, -50)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !detected {
		t.Fatalf("expected detection, peak=%v level=-50", peak)
	}
	if peak != -30 {
		t.Fatalf("peak = %v, want -30", peak)
	}
}

func TestFallbackDetectorBelowLevelNotDetected(t *testing.T) {
	n := 256
	snap := make([]float64, n)
	for i := range snap {
		snap[i] = -80
	}

	host := &fakeScanFFTHost{snapshot: snap, binWidthHz: 1000, centerHz: 100e6, ok: true}
	d := NewFallbackDetector(host, n)

	detected, _, ok := d.Detect(100e6, 5000, -50)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if detected {
		t.Fatal("did not expect a detection below the configured level")
	}
}

func TestFallbackDetectorWindowLimitsSearch(t *testing.T) {
	n := 256
	snap := make([]float64, n)
	for i := range snap {
		snap[i] = -80
	}
	// A strong peak far outside the search window must not trigger a
	// detection at the target frequency.
	snap[250] = 0

	host := &fakeScanFFTHost{snapshot: snap, binWidthHz: 1000, centerHz: 100e6, ok: true}
	d := NewFallbackDetector(host, n)

	detected, _, ok := d.Detect(100e6, 2000, -50)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if detected {
		t.Fatal("a peak far outside the window should not cause a detection")
	}
}
