package scanner

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/runningwild/go-fftw/fftw32"
)

// PSDEngine consumes IQ frames and produces a running, EMA-smoothed
// power-spectral-density estimate in dBFS, published through three
// preallocated buffers rotated behind atomic indices so a reader never
// observes a half-written spectrum and the writer never touches the
// reader's buffer (§4.3, §5).
type PSDEngine struct {
	mu sync.Mutex // serializes parameter setters against feed/reinit

	n       int
	fs      float64
	overlap float64
	hop     int
	avgMs   float64
	alpha   float64
	window  *Window

	ring *RingBuffer

	frame    []complex64 // scratch: raw samples pulled from the ring
	windowed []complex64 // scratch: frame after window multiplication
	raw      []float64   // scratch: this frame's dB values, DC-centered
	accum    []float64   // persistent EMA accumulator, never rotated or published directly

	buffers   [3][]float64
	writeIdx  atomic.Uint64
	processIdx atomic.Uint64
	readIdx   atomic.Uint64
	firstFrame bool
	ready     atomic.Bool
	disabled  atomic.Bool

	centerHzBits atomic.Uint64
}

// NewPSDEngine builds a PSD engine for the given FFT size, sample rate,
// window kind and EMA averaging time. It returns an error only if the
// requested size cannot be honored even after the downshift-and-retry
// policy in §7.
func NewPSDEngine(n int, fs float64, overlap float64, kind WindowKind, avgMs float64) (*PSDEngine, error) {
	if fs <= 0 {
		return nil, ErrBadSampleRate
	}
	p := &PSDEngine{}
	if err := p.reinitWithFallback(n, fs, overlap, kind, avgMs); err != nil {
		return nil, err
	}
	return p, nil
}

// reinit rebuilds every size-dependent structure. Errors here are handled
// by the caller's downshift policy, not surfaced to the feed path.
func (p *PSDEngine) reinit(n int, fs float64, overlap float64, kind WindowKind, avgMs float64) (err error) {
	n = clampPow2(n, minFFTSize, maxFFTSize)
	if fs <= 0 {
		return ErrBadSampleRate
	}
	overlap = clampF(overlap, 0, 0.99)
	hop := int(math.Round(float64(n) * (1 - overlap)))
	if hop < 1 {
		hop = 1
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner: psd allocation failed: %v", r)
		}
	}()

	window := NewWindow(kind, n)
	buffers := [3][]float64{
		make([]float64, n),
		make([]float64, n),
		make([]float64, n),
	}
	frame := make([]complex64, n)
	windowed := make([]complex64, n)
	raw := make([]float64, n)
	accum := make([]float64, n)
	ring := NewRingBuffer(4 * n)

	rHz := fs / float64(hop)
	tau := avgMs / 1000.0
	alpha := 1.0
	if rHz > 0 && tau > 0 {
		alpha = 1 - math.Exp(-1/(rHz*tau))
	}

	p.mu.Lock()
	p.n, p.fs, p.overlap, p.hop, p.avgMs, p.alpha = n, fs, overlap, hop, avgMs, alpha
	p.window, p.buffers, p.frame, p.windowed, p.raw, p.accum, p.ring = window, buffers, frame, windowed, raw, accum, ring
	p.firstFrame = true
	p.writeIdx.Store(0)
	p.processIdx.Store(1)
	p.readIdx.Store(2)
	p.ready.Store(false)
	p.disabled.Store(false)
	p.mu.Unlock()
	return nil
}

// SetFFTSize implements the resource-allocation-failure policy in §7:
// on failure, downshift to a smaller N (floor 8192) and retry once; if
// that also fails, disable the dedicated PSD path.
func (p *PSDEngine) SetFFTSize(n int) error {
	p.mu.Lock()
	fs, overlap, kind, avgMs := p.fs, p.overlap, p.window.Kind, p.avgMs
	p.mu.Unlock()
	return p.reinitWithFallback(n, fs, overlap, kind, avgMs)
}

// SetScannerFFTSize implements ScanFFTHost.
func (p *PSDEngine) SetScannerFFTSize(n int) error { return p.SetFFTSize(n) }

func (p *PSDEngine) SetOverlap(overlap float64) error {
	p.mu.Lock()
	n, fs, kind, avgMs := p.n, p.fs, p.window.Kind, p.avgMs
	p.mu.Unlock()
	return p.reinitWithFallback(n, fs, overlap, kind, avgMs)
}

func (p *PSDEngine) SetWindow(kind WindowKind) error {
	p.mu.Lock()
	n, fs, overlap, avgMs := p.n, p.fs, p.overlap, p.avgMs
	p.mu.Unlock()
	return p.reinitWithFallback(n, fs, overlap, kind, avgMs)
}

func (p *PSDEngine) SetAvgTimeMs(ms float64) error {
	p.mu.Lock()
	n, fs, overlap, kind := p.n, p.fs, p.overlap, p.window.Kind
	p.mu.Unlock()
	return p.reinitWithFallback(n, fs, overlap, kind, ms)
}

func (p *PSDEngine) SetSampleRate(fs float64) error {
	p.mu.Lock()
	n, overlap, kind, avgMs := p.n, p.overlap, p.window.Kind, p.avgMs
	p.mu.Unlock()
	return p.reinitWithFallback(n, fs, overlap, kind, avgMs)
}

// SetCenterFrequency records the tuner's current center frequency so
// snapshot consumers (the CFAR detector) can map bins to absolute Hz.
func (p *PSDEngine) SetCenterFrequency(hz float64) {
	p.centerHzBits.Store(math.Float64bits(hz))
}

func (p *PSDEngine) CenterFrequency() float64 {
	return math.Float64frombits(p.centerHzBits.Load())
}

func (p *PSDEngine) reinitWithFallback(n int, fs, overlap float64, kind WindowKind, avgMs float64) error {
	if err := p.reinit(n, fs, overlap, kind, avgMs); err == nil {
		return nil
	} else {
		floor := n / 2
		if floor < 8192 {
			floor = 8192
		}
		if floor != n {
			if err2 := p.reinit(floor, fs, overlap, kind, avgMs); err2 == nil {
				logOnce("psd-downshift", "downshifted FFT size to %d after allocation failure: %v", floor, err)
				return nil
			}
		}
		p.disabled.Store(true)
		logOnce("psd-disabled", "dedicated PSD path disabled after repeated allocation failure: %v", err)
		return err
	}
}

// FFTSize returns the current N (round-trips with SetFFTSize per §8).
func (p *PSDEngine) FFTSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// BinWidthHz returns Fs/N for the current configuration.
func (p *PSDEngine) BinWidthHz() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fs / float64(p.n)
}

// Disabled reports whether the dedicated PSD path has been shut down by
// the allocation-failure fallback policy.
func (p *PSDEngine) Disabled() bool { return p.disabled.Load() }

// Feed writes samples into the ring buffer and processes every complete
// frame that becomes available. It holds the engine lock for the whole
// call, so it waits while a setter or CopyLatest holds that lock. The
// ring, scratch frame, windowed buffer, and raw dB buffer are preallocated
// by reinit; the FFT output array is allocated by fftw32.FFT on each frame.
func (p *PSDEngine) Feed(samples []complex64) {
	if p.disabled.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ring.Write(samples)
	for p.ring.Available() >= p.n {
		if !p.ring.TryReadFrame(p.frame, p.n) {
			break
		}
		p.ring.Advance(p.hop)
		p.processFrameLocked()
	}
}

// processFrameLocked windows, transforms and accumulates one frame. The
// EMA state lives in p.accum, a dedicated buffer that is never one of the
// three rotating publish buffers and is therefore never touched by a
// write or read role: rotating write/process/read indices over the same
// three buffers puts each physical buffer through write, then process,
// then read before it is written again, so a role tied to a rotating
// buffer sees a different physical buffer's history every cycle. Only the
// blended result is copied into the current write buffer for publication.
func (p *PSDEngine) processFrameLocked() {
	for i, s := range p.frame {
		p.windowed[i] = s * complex(float32(p.window.Coeffs[i]), 0)
	}
	arr := fftw32.Array{Elems: p.windowed}
	result := fftw32.FFT(&arr)

	scale := p.window.PSDScale
	half := p.n / 2
	for k, v := range result.Elems {
		re, im := float64(real(v)), float64(imag(v))
		pw := (re*re + im*im) * scale
		db := 10 * math.Log10(math.Max(pw, 1e-20))
		p.raw[(k+half)%p.n] = db
	}

	if p.firstFrame {
		copy(p.accum, p.raw)
		p.firstFrame = false
	} else {
		a := p.alpha
		for i, v := range p.raw {
			p.accum[i] = a*v + (1-a)*p.accum[i]
		}
	}

	copy(p.buffers[p.writeIdx.Load()], p.accum)
	p.rotate()
	p.ready.Store(true)
}

// rotate advances all three indices by one, preserving pairwise
// distinctness (§3 invariant): if x != y (mod 3) then x+1 != y+1 (mod 3).
// processIdx no longer anchors any state (the EMA accumulator is separate)
// but still rotates to keep a spare buffer between the write and read
// roles at all times.
func (p *PSDEngine) rotate() {
	p.writeIdx.Store((p.writeIdx.Load() + 1) % 3)
	p.processIdx.Store((p.processIdx.Load() + 1) % 3)
	p.readIdx.Store((p.readIdx.Load() + 1) % 3)
}

// CopyLatest copies the most recently published spectrum into out. It
// returns false if the engine is disabled or has not yet produced a
// frame; out must have length >= FFTSize().
func (p *PSDEngine) CopyLatest(out []float64) bool {
	if p.disabled.Load() || !p.ready.Load() {
		return false
	}
	idx := p.readIdx.Load()
	p.mu.Lock()
	copy(out, p.buffers[idx])
	p.mu.Unlock()
	return true
}

// AcquireSnapshot implements ScanFFTHost for the CFAR detector: a copy of
// the latest spectrum plus the bin width and center frequency it was
// computed against.
func (p *PSDEngine) AcquireSnapshot(out []float64) (binWidthHz, centerHz float64, ok bool) {
	if !p.CopyLatest(out) {
		return 0, 0, false
	}
	return p.BinWidthHz(), p.CenterFrequency(), true
}
