package scanner

import (
	"math"
	"sync"

	"github.com/chzchzchz/sdrscan/radio"
)

// WaterfallSpectrumHost adapts the teacher's radio.SpectralPower (the
// host's own generic waterfall FFT) to ScanFFTHost, for use when the
// dedicated PSD path is disabled or has failed (§4.9). Acquisition holds
// a read lock only long enough to copy into the caller's buffer.
type WaterfallSpectrumHost struct {
	mu   sync.RWMutex
	sp   *radio.SpectralPower
	band radio.FreqBand
	bins int
}

func NewWaterfallSpectrumHost(band radio.FreqBand, bins int) *WaterfallSpectrumHost {
	return &WaterfallSpectrumHost{band: band, bins: bins}
}

// Refresh measures a fresh spectrum from an IQ batch channel (produced by
// radio.IQReader.Batch64) and publishes it for AcquireSnapshot. Intended
// to run periodically from the tuner's reader in legacy/fallback mode.
func (w *WaterfallSpectrumHost) Refresh(ch <-chan []complex64) error {
	w.mu.RLock()
	bins := w.bins
	band := w.band
	w.mu.RUnlock()

	sp := radio.NewSpectralPower(band, bins, 50)
	if err := sp.Measure(ch); err != nil {
		return wrapf("waterfall measure", err)
	}
	w.mu.Lock()
	w.sp = sp
	w.mu.Unlock()
	return nil
}

// SetScannerFFTSize implements ScanFFTHost.
func (w *WaterfallSpectrumHost) SetScannerFFTSize(n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bins = clampPow2(n, minFFTSize, maxFFTSize)
	return nil
}

// AcquireSnapshot copies the latest averaged spectrum into out.
func (w *WaterfallSpectrumHost) AcquireSnapshot(out []float64) (binWidthHz, centerHz float64, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.sp == nil {
		return 0, 0, false
	}
	avg := w.sp.Average()
	if len(avg) == 0 || len(out) < len(avg) {
		return 0, 0, false
	}
	copy(out, avg)
	binWidthHz = w.band.Width * 1e6 / float64(len(avg))
	centerHz = w.band.Center * 1e6
	return binWidthHz, centerHz, true
}

// FallbackDetector implements the §4.9 max-in-window detector against
// whatever ScanFFTHost it is given: acquire/copy/release, then detect on
// the copy so the lock is never held during detection.
type FallbackDetector struct {
	host    ScanFFTHost
	scratch []float64
}

func NewFallbackDetector(host ScanFFTHost, maxBins int) *FallbackDetector {
	return &FallbackDetector{host: host, scratch: make([]float64, maxBins)}
}

// Detect reports whether the maximum power in [f-windowHz/2, f+windowHz/2]
// meets or exceeds levelDBFS. ok is false if no snapshot is available yet.
func (d *FallbackDetector) Detect(f, windowHz, levelDBFS float64) (detected bool, peakDB float64, ok bool) {
	binWidthHz, centerHz, ok := d.host.AcquireSnapshot(d.scratch)
	if !ok || binWidthHz <= 0 {
		return false, 0, false
	}
	n := len(d.scratch)
	k := binIndex(f, centerHz, binWidthHz, n)
	w := maxInt(1, roundInt(windowHz/binWidthHz))
	lo, hi := clampInt(k-w/2, 0, n-1), clampInt(k+w/2, 0, n-1)

	peak := math.Inf(-1)
	for i := lo; i <= hi; i++ {
		if d.scratch[i] > peak {
			peak = d.scratch[i]
		}
	}
	return peak >= levelDBFS, peak, true
}
