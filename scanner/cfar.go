package scanner

import (
	"math"
	"sort"
)

// CFARConfig holds the parameters of one peak-detection decision (§4.4).
type CFARConfig struct {
	ROIWidthHz  float64
	GuardHz     float64
	ReferenceHz float64
	ThresholdDB float64
}

// CFARResult is the outcome of one detection attempt.
type CFARResult struct {
	Detected     bool
	PeakDB       float64
	NoiseFloorDB float64
	PeakBinIndex int
	RefinedHz    float64 // only meaningful if Refined is true
	Refined      bool
}

const (
	noiseFloorFallbackDB = -80.0
	absoluteFloorDB      = -90.0
)

// Detect runs the CFAR algorithm against a DC-centered PSD snapshot psd
// (length N), looking for a peak near absolute frequency f given the
// tuner's center frequency fc and the snapshot's bin width.
func Detect(psd []float64, fc, binWidthHz, f float64, cfg CFARConfig) CFARResult {
	n := len(psd)
	k := binIndex(f, fc, binWidthHz, n)

	w := maxInt(1, roundInt(cfg.ROIWidthHz/binWidthHz))
	g := roundInt(cfg.GuardHz / binWidthHz)
	r := roundInt(cfg.ReferenceHz / binWidthHz)

	roiLo := clampInt(k-w/2, 0, n-1)
	roiHi := clampInt(k+w/2, 0, n-1)

	peakDB := math.Inf(-1)
	peakBin := roiLo
	for i := roiLo; i <= roiHi; i++ {
		if psd[i] > peakDB {
			peakDB = psd[i]
			peakBin = i
		}
	}

	leftLo, leftHi := clampInt(k-w/2-g-r, 0, n-1), clampInt(k-w/2-g-1, 0, n-1)
	rightLo, rightHi := clampInt(k+w/2+g+1, 0, n-1), clampInt(k+w/2+g+r, 0, n-1)

	var ref []float64
	if leftHi >= leftLo {
		ref = appendFinite(ref, psd[leftLo:leftHi+1])
	}
	if rightHi >= rightLo {
		ref = appendFinite(ref, psd[rightLo:rightHi+1])
	}
	if len(ref) == 0 {
		// Both reference regions empty: fall back to all bins outside
		// the ROI.
		for i := 0; i < n; i++ {
			if i >= roiLo && i <= roiHi {
				continue
			}
			if !math.IsInf(psd[i], 0) && !math.IsNaN(psd[i]) {
				ref = append(ref, psd[i])
			}
		}
	}

	noiseDB := noiseFloorFallbackDB
	if len(ref) > 0 {
		noiseDB = median(ref)
	}

	detected := peakDB >= noiseDB+cfg.ThresholdDB && peakDB > absoluteFloorDB

	res := CFARResult{
		Detected:     detected,
		PeakDB:       peakDB,
		NoiseFloorDB: noiseDB,
		PeakBinIndex: peakBin,
	}

	if peakBin > 0 && peakBin < n-1 {
		l, c, rt := psd[peakBin-1], psd[peakBin], psd[peakBin+1]
		denom := l - 2*c + rt
		if math.Abs(denom) < 1e-6 {
			denom = 1e-6
		}
		delta := 0.5 * (l - rt) / denom
		delta = clampF(delta, -0.5, 0.5)
		refinedBin := float64(peakBin) + delta
		res.RefinedHz = binToFreq(refinedBin, fc, binWidthHz, n)
		res.Refined = true
	}

	return res
}

func binIndex(f, fc, binWidthHz float64, n int) int {
	k := roundInt((f-fc)/binWidthHz + float64(n)/2)
	return clampInt(k, 0, n-1)
}

func binToFreq(k, fc, binWidthHz float64, n int) float64 {
	return fc + (k-float64(n)/2)*binWidthHz
}

func roundInt(v float64) int { return int(math.Round(v)) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func appendFinite(dst []float64, src []float64) []float64 {
	for _, v := range src {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}
