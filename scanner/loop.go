package scanner

import (
	"context"
	"math"
	"time"

	"github.com/chzchzchz/sdrscan/radio"
)

// Auto-timing constants (§4.8).
const (
	baseRateHz  = 50.0
	baseTuningMs = 250.0
	baseLingerMs = 1000.0
	minTuningMs  = 10.0
	minLingerMs  = 50.0
)

// singleWindowHz is the detection window used for is_single scan entries
// regardless of VFO bandwidth or passbandRatio (§4.8).
const singleWindowHz = 5000.0

// Scanner drives the scan-loop state machine (§4.8): it owns the scan-list
// iterator, the PSD/CFAR path or fallback detector, the squelch controller
// and the profile applicator, and steps them once per tick. It implements
// nicerx.Task so it can be scheduled by the existing task queue.
type Scanner struct {
	cfg Config

	tuner Tuner
	vfo   VFO

	psd      *PSDEngine
	fallback *FallbackDetector

	iterator ScanListIterator
	bl       *Blacklist
	squelch  *SquelchController
	profiles *ProfileApplicator

	state ScannerState

	stopped bool
	pending Command

	name string
	band radio.FreqBand

	feedCh <-chan []complex64
}

// NewScanner builds a scanner from its collaborators. psd may be nil if
// UseDedicatedFFT is false; fallback may be nil if it is true. Exactly one
// of the two detection paths is exercised per tick: the PSD/CFAR path when
// psd is non-nil and not disabled, otherwise the fallback detector.
func NewScanner(name string, band radio.FreqBand, cfg Config, tuner Tuner, vfo VFO, iterator ScanListIterator, psd *PSDEngine, fallback *FallbackDetector) (*Scanner, error) {
	if tuner == nil || vfo == nil || iterator == nil {
		return nil, ErrNilPort
	}
	cfg.Clamp()
	dir := Up
	if !cfg.ScanUp {
		dir = Down
	}
	mode := SquelchManual
	if cfg.SquelchDeltaAuto {
		mode = SquelchAuto
	}
	return &Scanner{
		cfg:      cfg,
		tuner:    tuner,
		vfo:      vfo,
		psd:      psd,
		fallback: fallback,
		iterator: iterator,
		bl:       NewBlacklist(cfg.BlacklistTolerance),
		squelch:  NewSquelchController(mode, cfg.SquelchDelta),
		profiles: NewProfileApplicator(),
		state:    newScannerState(dir),
		name:     name,
		band:     band,
	}, nil
}

func (s *Scanner) Name() string          { return s.name }
func (s *Scanner) Band() radio.FreqBand  { return s.band }
func (s *Scanner) State() ScannerState   { return s.state }
func (s *Scanner) Blacklist() *Blacklist { return s.bl }

// SetPendingCommand records a user command applied at the start of the next
// tick (§4.8 item 6).
func (s *Scanner) SetPendingCommand(c Command) { s.pending = c }

// Start transitions Idle → Sweeping. It is a no-op if already running, and
// refuses to start against an empty scan list (§4.8, §8).
func (s *Scanner) Start() error {
	if s.state.State != Idle {
		return nil
	}
	if _, ok := s.iterator.Current(); !ok {
		return ErrEmptyScanList
	}
	s.state.State = Sweeping
	return nil
}

// Stop transitions to Idle from any state, restoring squelch if dwelling.
func (s *Scanner) Stop() {
	if s.state.State == Dwell {
		if err := s.squelch.Exit(s.vfo); err != nil {
			logDebug("stop: restore squelch: %v", err)
		}
	}
	s.state.State = Idle
}

// tuningTimeMs and lingerTimeMs implement the auto-timing formula in §4.8.
func (s *Scanner) tuningTimeMs() float64 {
	if !s.cfg.TuningTimeAuto {
		return s.cfg.TuningTime
	}
	scaled := baseTuningMs * baseRateHz / math.Max(s.cfg.ScanRateHz, minScanRateHz)
	return math.Max(minTuningMs, scaled)
}

func (s *Scanner) lingerTimeMs() float64 {
	if !s.cfg.TuningTimeAuto {
		return s.cfg.LingerTime
	}
	scaled := baseLingerMs * baseRateHz / math.Max(s.cfg.ScanRateHz, minScanRateHz)
	return math.Max(minLingerMs, scaled)
}

// TickInterval is the scheduling period for the caller's ticker: max(1,
// 1000/scanRateHz) ms.
func (s *Scanner) TickInterval() time.Duration {
	ms := 1000.0 / math.Max(s.cfg.ScanRateHz, minScanRateHz)
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// Step implements nicerx.Task: one tick of the scan loop.
func (s *Scanner) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.tick(time.Now())
	return nil
}

func (s *Scanner) tick(now time.Time) {
	s.applyPendingCommand()

	if !s.tuner.IsStarted() {
		s.Stop()
		return
	}
	if s.state.State == Idle {
		return
	}

	if s.state.State == Tuning {
		if now.Sub(s.state.LastTuneTS).Milliseconds() >= int64(s.tuningTimeMs()) {
			s.state.State = Sweeping
		}
		return
	}

	if s.state.State == Dwell {
		s.tickDwell(now)
		return
	}

	s.tickSweeping(now)
}

func (s *Scanner) applyPendingCommand() {
	cmd := s.pending
	s.pending = CommandNone
	switch cmd {
	case CommandNone:
		return
	case CommandReverse:
		s.state.Direction = s.state.Direction.Reverse()
	case CommandAdvance:
		// handled by falling through to Sweeping below
	case CommandReset:
		s.iterator.Refresh()
		s.profiles.Reset()
	case CommandBlacklistCurrent:
		s.bl.Add(s.state.CurrentFreq)
	}
	if s.state.State == Dwell {
		if err := s.squelch.Exit(s.vfo); err != nil {
			logDebug("command: restore squelch: %v", err)
		}
		s.state.State = Sweeping
	}
}

func (s *Scanner) tickDwell(now time.Time) {
	windowHz := s.detectionWindowHz(s.state.CurrentEntrySingle)
	detected, peakDB, noiseDB := s.detect(s.state.CurrentFreq, windowHz)
	receiving := detected
	s.state.PeakDB = peakDB
	s.state.NoiseFloorDB = noiseDB
	if detected {
		s.state.LastSignalTS = now
		s.squelch.UpdateNoiseFloor(noiseDB)
	}
	if err := s.squelch.Tick(s.vfo, receiving); err != nil {
		logDebug("dwell: squelch tick: %v", err)
	}
	if now.Sub(s.state.LastSignalTS).Milliseconds() >= int64(s.lingerTimeMs()) {
		if err := s.squelch.Exit(s.vfo); err != nil {
			logDebug("dwell exit: restore squelch: %v", err)
		}
		s.state.State = Sweeping
	}
}

func (s *Scanner) tickSweeping(now time.Time) {
	entry, ok := s.iterator.Current()
	if !ok {
		s.Stop()
		return
	}
	s.state.CurrentEntrySingle = entry.IsSingle
	s.state.CurrentProfile = entry.Profile

	windowHz := s.detectionWindowHz(entry.IsSingle)

	testFreq := entry.FrequencyHz
	if entry.IsSingle {
		testFreq = s.state.CurrentFreq
		if testFreq == 0 {
			testFreq = entry.FrequencyHz
		}
	}
	s.state.BookmarkName = s.bookmarkName(testFreq)

	detected, peakDB, noiseDB := s.detect(testFreq, windowHz)
	s.state.PeakDB = peakDB
	s.state.NoiseFloorDB = noiseDB
	if !detected {
		s.squelch.UpdateNoiseFloor(noiseDB)
	}

	if detected {
		s.enterDwell(now, testFreq, entry)
		return
	}

	next, ok := s.iterator.Next(s.state.Direction, s.bl)
	if !ok {
		s.Stop()
		return
	}
	s.retune(now, next)
}

func (s *Scanner) enterDwell(now time.Time, freq float64, entry ScanEntry) {
	s.state.CurrentFreq = freq
	s.state.LastSignalTS = now
	s.state.State = Dwell
	s.profiles.Apply(entry.Profile, s.vfo, s.tuner, freq)
	if err := s.squelch.Enter(s.vfo); err != nil {
		logDebug("enter dwell: squelch: %v", err)
	}
	if err := s.vfo.Retune(s.name, freq); err != nil {
		logDebug("enter dwell: retune: %v", err)
	}
}

func (s *Scanner) retune(now time.Time, entry ScanEntry) {
	if err := s.tuner.SetCenterFrequency(entry.FrequencyHz); err != nil {
		logDebug("retune: set center frequency: %v", err)
		return
	}
	if s.psd != nil {
		s.psd.SetCenterFrequency(entry.FrequencyHz)
	}
	if err := s.vfo.Retune(s.name, entry.FrequencyHz); err != nil {
		logDebug("retune: vfo retune: %v", err)
	}
	s.profiles.Apply(entry.Profile, s.vfo, s.tuner, entry.FrequencyHz)
	s.state.CurrentFreq = entry.FrequencyHz
	s.state.LastTuneTS = now
	s.state.State = Tuning
}

// detectionWindowHz implements §4.8's window selection: fixed 5 kHz for
// single entries, else VFO bandwidth scaled by passbandRatio (fallback) or
// the configured CFAR ROI width, scannerMinWidthHz (PSD path).
func (s *Scanner) detectionWindowHz(isSingle bool) float64 {
	if isSingle {
		return singleWindowHz
	}
	if s.psd != nil && !s.psd.Disabled() {
		return math.Max(s.cfg.ScannerMinWidthHz, 1)
	}
	bw, err := s.vfoBandwidthHz()
	if err != nil || bw <= 0 {
		bw = s.cfg.Interval
	}
	return bw * s.cfg.PassbandRatio / 100.0
}

// vfoBandwidthHz has no direct getter on VFO; fall back to the configured
// legacy step interval as an approximation when unavailable.
func (s *Scanner) vfoBandwidthHz() (float64, error) {
	return s.cfg.Interval, nil
}

// bookmarkName looks up hz against the iterator's backing frequency
// manager, if it has one (§4.12). LegacyIterator has none, so this is ""
// in legacy band-stepping mode.
func (s *Scanner) bookmarkName(hz float64) string {
	if bl, ok := s.iterator.(BookmarkLookup); ok {
		return bl.BookmarkName(hz)
	}
	return ""
}

// detect runs the CFAR path if the dedicated PSD is enabled and healthy,
// otherwise the max-in-window fallback. noiseDB is the instant_noise input
// to the squelch controller's running estimate (§4.7).
func (s *Scanner) detect(freq, windowHz float64) (detected bool, peakDB, noiseDB float64) {
	if s.psd != nil && !s.psd.Disabled() {
		snapshot := make([]float64, s.psd.FFTSize())
		binWidthHz, centerHz, ok := s.psd.AcquireSnapshot(snapshot)
		if !ok {
			return false, 0, 0
		}
		cfarCfg := CFARConfig{
			ROIWidthHz:  windowHz,
			GuardHz:     s.cfg.ScannerGuardHz,
			ReferenceHz: s.cfg.ScannerRefHz,
			ThresholdDB: s.cfg.ScannerThresholdDb,
		}
		res := Detect(snapshot, centerHz, binWidthHz, freq, cfarCfg)
		return res.Detected, res.PeakDB, res.NoiseFloorDB
	}
	if s.fallback != nil {
		det, peak, ok := s.fallback.Detect(freq, windowHz, s.cfg.Level)
		if !ok {
			return false, 0, 0
		}
		return det, peak, peak - 15
	}
	return false, 0, 0
}
