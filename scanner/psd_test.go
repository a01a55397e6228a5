package scanner

import (
	"math"
	"testing"
)

func TestNewPSDEngineClampsFFTSize(t *testing.T) {
	p, err := NewPSDEngine(100, 1e6, 0, WindowRectangular, 100)
	if err != nil {
		t.Fatalf("NewPSDEngine: %v", err)
	}
	if p.FFTSize() != minFFTSize {
		t.Fatalf("FFTSize = %d, want clamped to minFFTSize %d", p.FFTSize(), minFFTSize)
	}
}

func TestNewPSDEngineRejectsBadSampleRate(t *testing.T) {
	if _, err := NewPSDEngine(1024, 0, 0, WindowRectangular, 100); err != ErrBadSampleRate {
		t.Fatalf("err = %v, want ErrBadSampleRate", err)
	}
}

func TestPSDEngineBinWidthHz(t *testing.T) {
	p, err := NewPSDEngine(1024, 1024000, 0, WindowRectangular, 100)
	if err != nil {
		t.Fatalf("NewPSDEngine: %v", err)
	}
	if got := p.BinWidthHz(); got != 1000 {
		t.Fatalf("BinWidthHz = %v, want 1000", got)
	}
}

func TestPSDEngineCopyLatestFalseBeforeAnyFrame(t *testing.T) {
	p, err := NewPSDEngine(1024, 1024000, 0, WindowRectangular, 100)
	if err != nil {
		t.Fatalf("NewPSDEngine: %v", err)
	}
	out := make([]float64, p.FFTSize())
	if p.CopyLatest(out) {
		t.Fatal("expected CopyLatest to fail before any frame has been processed")
	}
}

func TestPSDEngineCenterFrequencyRoundTrips(t *testing.T) {
	p, err := NewPSDEngine(1024, 1024000, 0, WindowRectangular, 100)
	if err != nil {
		t.Fatalf("NewPSDEngine: %v", err)
	}
	p.SetCenterFrequency(146.52e6)
	if got := p.CenterFrequency(); got != 146.52e6 {
		t.Fatalf("CenterFrequency = %v, want 146.52e6", got)
	}
}

func TestPSDEngineFeedLocatesTonePeak(t *testing.T) {
	const n = 1024
	const fs = 1024000.0
	p, err := NewPSDEngine(n, fs, 0, WindowRectangular, 10)
	if err != nil {
		t.Fatalf("NewPSDEngine: %v", err)
	}

	// A pure tone at bin offset 10 above DC; after the engine's fftshift
	// this should land at raw index n/2+10.
	const toneBin = 10
	samples := make([]complex64, n*8)
	for i := range samples {
		theta := 2 * math.Pi * float64(toneBin) * float64(i) / n
		samples[i] = complex64(complex(math.Cos(theta), math.Sin(theta)))
	}
	p.Feed(samples)

	out := make([]float64, n)
	if !p.CopyLatest(out) {
		t.Fatal("expected a published frame after feeding several periods of data")
	}

	peakIdx, peakVal := 0, math.Inf(-1)
	for i, v := range out {
		if v > peakVal {
			peakVal, peakIdx = v, i
		}
	}
	want := n/2 + toneBin
	if diff := peakIdx - want; diff < -1 || diff > 1 {
		t.Fatalf("peak at bin %d (%.1f dB), want within 1 bin of %d", peakIdx, peakVal, want)
	}
}

// TestPSDEngineFeedEMAConvergesAcrossVaryingFrames feeds an alternating
// high/low tone across many frames and checks the published level against
// the closed-form single-pole EMA recurrence. A constant repeated tone
// (TestPSDEngineFeedLocatesTonePeak) cannot distinguish a correct
// accumulator from one that resets on a rotating schedule, since a
// constant input is a fixed point of both; varying the input across
// frames is required to catch that bug.
func TestPSDEngineFeedEMAConvergesAcrossVaryingFrames(t *testing.T) {
	const n = 1024
	const fs = 1024000.0
	p, err := NewPSDEngine(n, fs, 0, WindowRectangular, 10)
	if err != nil {
		t.Fatalf("NewPSDEngine: %v", err)
	}

	const toneBin = 10
	const ampHigh = 4.0
	const ampLow = 1.0

	// On-bin rectangular-window tone: X[toneBin] = amp*n exactly, so
	// power = amp^2*n^2*PSDScale = amp^2*n (PSDScale = 1/n here).
	rawDB := func(amp float64) float64 {
		return 20*math.Log10(amp) + 10*math.Log10(n)
	}
	tone := func(amp float64) []complex64 {
		samples := make([]complex64, n)
		for i := range samples {
			theta := 2 * math.Pi * float64(toneBin) * float64(i) / n
			samples[i] = complex64(complex(amp*math.Cos(theta), amp*math.Sin(theta)))
		}
		return samples
	}

	const numFrames = 12
	var expected float64
	for i := 0; i < numFrames; i++ {
		amp := ampHigh
		if i%2 == 1 {
			amp = ampLow
		}
		p.Feed(tone(amp))
		r := rawDB(amp)
		if i == 0 {
			expected = r
		} else {
			expected = p.alpha*r + (1-p.alpha)*expected
		}
	}

	out := make([]float64, n)
	if !p.CopyLatest(out) {
		t.Fatal("expected a published frame after feeding several frames")
	}
	got := out[n/2+toneBin]
	if diff := math.Abs(got - expected); diff > 0.05 {
		t.Fatalf("EMA at tone bin = %.4f dB, want %.4f dB (diff %.4f) — accumulator does not match the continuous single-pole EMA recurrence", got, expected, diff)
	}
}

func TestPSDEngineFeedDisabledIsNoOp(t *testing.T) {
	p, err := NewPSDEngine(1024, 1024000, 0, WindowRectangular, 100)
	if err != nil {
		t.Fatalf("NewPSDEngine: %v", err)
	}
	p.disabled.Store(true)
	p.Feed(make([]complex64, 4096))
	if p.ready.Load() {
		t.Fatal("expected Feed to be a no-op once the engine is disabled")
	}
}

func TestPSDEngineAcquireSnapshotMatchesCopyLatestAndCenter(t *testing.T) {
	const n = 1024
	p, err := NewPSDEngine(n, 1024000, 0, WindowRectangular, 10)
	if err != nil {
		t.Fatalf("NewPSDEngine: %v", err)
	}
	p.SetCenterFrequency(100e6)
	p.Feed(make([]complex64, n*4))

	out := make([]float64, n)
	binWidthHz, centerHz, ok := p.AcquireSnapshot(out)
	if !ok {
		t.Fatal("expected AcquireSnapshot to succeed after Feed")
	}
	if binWidthHz != p.BinWidthHz() {
		t.Fatalf("binWidthHz = %v, want %v", binWidthHz, p.BinWidthHz())
	}
	if centerHz != 100e6 {
		t.Fatalf("centerHz = %v, want 100e6", centerHz)
	}
}
