package scanner

import (
	"math"
	"sync"
	"time"
)

// SquelchMode selects how the adaptive squelch controller computes its
// Dwell-time target (§4.7).
type SquelchMode int

const (
	SquelchManual SquelchMode = iota
	SquelchAuto
)

const squelchReapplyInterval = 250 * time.Millisecond

// SquelchController tightens the VFO squelch threshold on entering Dwell
// and restores it on exit, optionally tracking a running noise-floor
// estimate for the Auto mode (§4.7).
type SquelchController struct {
	mu sync.Mutex

	mode  SquelchMode
	delta float64

	noiseFloor float64

	active          bool
	originalSquelch float64
	lastReapply     time.Time
}

func NewSquelchController(mode SquelchMode, delta float64) *SquelchController {
	return &SquelchController{mode: mode, delta: delta}
}

// UpdateNoiseFloor folds a new instantaneous noise estimate into the
// running estimate. The scan loop calls it on Sweeping ticks without a
// detection and on Dwell ticks with one.
func (s *SquelchController) UpdateNoiseFloor(instantNoise float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noiseFloor = 0.95*s.noiseFloor + 0.05*instantNoise
}

// Enter saves the VFO's current squelch level and writes the computed
// Dwell-time target. Called by the scan loop on entering Dwell.
func (s *SquelchController) Enter(vfo VFO) error {
	orig, err := vfo.SquelchLevel()
	if err != nil {
		return wrapf("read squelch level", err)
	}

	s.mu.Lock()
	s.originalSquelch = orig
	delta := clampF(s.delta, 0, 20)
	var target float64
	if s.mode == SquelchAuto {
		target = math.Max(s.noiseFloor+delta, minSquelchDB)
	} else {
		target = math.Max(orig-s.delta, minSquelchDB)
	}
	s.active = true
	s.lastReapply = time.Now()
	s.mu.Unlock()

	return vfo.SetSquelchLevel(target)
}

// Tick re-applies the Auto-mode target every 250ms while Dwell continues
// and no signal is currently being received.
func (s *SquelchController) Tick(vfo VFO, receiving bool) error {
	s.mu.Lock()
	if !s.active || s.mode != SquelchAuto {
		s.mu.Unlock()
		return nil
	}
	if time.Since(s.lastReapply) < squelchReapplyInterval {
		s.mu.Unlock()
		return nil
	}
	s.lastReapply = time.Now()
	if receiving {
		s.mu.Unlock()
		return nil
	}
	delta := clampF(s.delta, 0, 20)
	target := math.Max(s.noiseFloor+delta, minSquelchDB)
	s.mu.Unlock()
	return vfo.SetSquelchLevel(target)
}

// Exit restores the squelch level saved on Enter. Idempotent: calling it
// when not active is a no-op, satisfying the "restored on every exit path"
// invariant even if Exit is reached more than once.
func (s *SquelchController) Exit(vfo VFO) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	orig := s.originalSquelch
	s.active = false
	s.mu.Unlock()
	return vfo.SetSquelchLevel(orig)
}

func (s *SquelchController) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *SquelchController) SetDelta(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delta = delta
}

func (s *SquelchController) NoiseFloor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noiseFloor
}
