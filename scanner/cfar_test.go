package scanner

import (
	"math"
	"testing"
)

func flatPSD(n int, floorDB float64) []float64 {
	psd := make([]float64, n)
	for i := range psd {
		psd[i] = floorDB
	}
	return psd
}

func TestDetectFindsPeakAboveThreshold(t *testing.T) {
	const n = 256
	const fc = 100e6
	const binWidthHz = 1000.0

	psd := flatPSD(n, -80)
	peakBin := 150
	psd[peakBin] = -20
	f := binToFreq(float64(peakBin), fc, binWidthHz, n)

	res := Detect(psd, fc, binWidthHz, f, CFARConfig{
		ROIWidthHz:  2000,
		GuardHz:     1000,
		ReferenceHz: 50000,
		ThresholdDB: 8,
	})
	if !res.Detected {
		t.Fatalf("expected detection, got %+v", res)
	}
	if res.PeakDB != -20 {
		t.Fatalf("peak = %v, want -20", res.PeakDB)
	}
	if math.Abs(res.NoiseFloorDB-(-80)) > 1e-9 {
		t.Fatalf("noise floor = %v, want -80", res.NoiseFloorDB)
	}
	if !res.Refined {
		t.Fatal("expected a refined estimate for an interior peak")
	}
	if math.Abs(res.RefinedHz-f) > binWidthHz {
		t.Fatalf("refined freq %v too far from true peak %v", res.RefinedHz, f)
	}
}

func TestDetectFlatSpectrumNoDetection(t *testing.T) {
	const n = 256
	psd := flatPSD(n, -80)
	res := Detect(psd, 100e6, 1000, 100e6, CFARConfig{
		ROIWidthHz:  2000,
		GuardHz:     1000,
		ReferenceHz: 50000,
		ThresholdDB: 8,
	})
	if res.Detected {
		t.Fatalf("expected no detection on a flat spectrum, got %+v", res)
	}
}

func TestDetectBelowAbsoluteFloorNeverDetects(t *testing.T) {
	const n = 256
	psd := flatPSD(n, -95)
	peakBin := 128
	psd[peakBin] = -91 // still above noise+threshold but below absoluteFloorDB
	res := Detect(psd, 100e6, 1000, 100e6, CFARConfig{
		ROIWidthHz:  2000,
		GuardHz:     1000,
		ReferenceHz: 50000,
		ThresholdDB: 1,
	})
	if res.Detected {
		t.Fatalf("expected no detection below the absolute floor, got %+v", res)
	}
}

func TestBinIndexClampsToRange(t *testing.T) {
	const n = 64
	k := binIndex(1e12, 100e6, 1000, n)
	if k != n-1 {
		t.Fatalf("binIndex = %d, want clamped to %d", k, n-1)
	}
	k = binIndex(-1e12, 100e6, 1000, n)
	if k != 0 {
		t.Fatalf("binIndex = %d, want clamped to 0", k)
	}
}

func TestMedianOddAndEven(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("median([3,1,2]) = %v, want 2", got)
	}
	// median() here picks the upper middle element for even-length
	// inputs, matching sort.Float64s(...)[len/2].
	if got := median([]float64{1, 2, 3, 4}); got != 3 {
		t.Fatalf("median([1,2,3,4]) = %v, want 3", got)
	}
}
