package scanner

import "math"

// blackmanHarris7Coeffs are the 7-term Blackman-Harris coefficients used
// against successive multiples of 2*pi*i/(N-1) (§4.2).
var blackmanHarris7Coeffs = [7]float64{
	0.27105140069342,
	-0.43329793923448,
	0.21812299954311,
	-0.06592544638803,
	0.01081174209837,
	-0.00077658482522,
	0.00001388721735,
}

// Window is a precomputed length-N real analysis window and its associated
// power-normalization constants (§4.2).
type Window struct {
	Kind     WindowKind
	Coeffs   []float64
	U        float64 // RMS window power
	PSDScale float64 // 1/(N*U)
}

// NewWindow computes the window vector and its normalization constants for
// the given kind and length.
func NewWindow(kind WindowKind, n int) *Window {
	w := &Window{Kind: kind, Coeffs: make([]float64, n)}
	denom := float64(n - 1)
	if denom <= 0 {
		denom = 1
	}
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * float64(i) / denom
		switch kind {
		case WindowRectangular:
			w.Coeffs[i] = 1
		case WindowHann:
			w.Coeffs[i] = 0.5 - 0.5*math.Cos(phase)
		case WindowHamming:
			w.Coeffs[i] = 0.54 - 0.46*math.Cos(phase)
		case WindowBlackman:
			w.Coeffs[i] = 0.42 - 0.5*math.Cos(phase) + 0.08*math.Cos(2*phase)
		case WindowBlackmanHarris7:
			v := 0.0
			for k, a := range blackmanHarris7Coeffs {
				v += a * math.Cos(float64(k)*phase)
			}
			w.Coeffs[i] = v
		default:
			w.Coeffs[i] = 1
		}
	}

	sumSq := 0.0
	for _, v := range w.Coeffs {
		sumSq += v * v
	}
	w.U = sumSq / float64(n)
	if w.U <= 0 {
		w.U = 1e-20
	}
	w.PSDScale = 1.0 / (float64(n) * w.U)
	return w
}

// Len returns the window length.
func (w *Window) Len() int { return len(w.Coeffs) }
