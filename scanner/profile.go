package scanner

import (
	"math"
	"sync"
)

// Profile is a bundle of demodulator settings applied to a VFO when the
// scanner selects a target (§3). It is owned by the frequency manager and
// only referenced, never owned, by the scanner.
type Profile struct {
	DemodMode       int
	BandwidthHz     float64
	SquelchEnabled  bool
	SquelchLevelDB  float64
	Deemphasis      bool
	AGCEnabled      bool
	RFGainDB        float64
	CenterOffsetHz  float64
	Name            string
	AutoApply       bool
}

const profileCacheFreqToleranceHz = 1000

// ProfileApplicator applies a tuning profile to a VFO when a new target is
// selected, caching the last applied tuple to avoid redundant
// reconfiguration (§4.6).
type ProfileApplicator struct {
	mu sync.Mutex

	applied       bool
	lastProfile   *Profile
	lastVFO       VFO
	lastFrequency float64
}

func NewProfileApplicator() *ProfileApplicator { return &ProfileApplicator{} }

// Apply sets demod mode, bandwidth, squelch, tuner gain and (where the VFO
// exposes them) deemphasis/AGC/center-offset. Interface errors are logged
// and otherwise ignored: profile failures never abort the scan loop.
func (a *ProfileApplicator) Apply(profile *Profile, vfo VFO, tuner Tuner, freqHz float64) {
	a.mu.Lock()
	if a.applied && a.lastProfile == profile && a.lastVFO == vfo &&
		math.Abs(freqHz-a.lastFrequency) < profileCacheFreqToleranceHz {
		a.mu.Unlock()
		return
	}
	a.applied, a.lastProfile, a.lastVFO, a.lastFrequency = true, profile, vfo, freqHz
	a.mu.Unlock()

	if profile == nil || vfo == nil {
		return
	}

	if err := vfo.SetMode(profile.DemodMode); err != nil {
		logDebug("profile: set mode: %v", err)
	}
	if err := vfo.SetBandwidth(profile.BandwidthHz); err != nil {
		logDebug("profile: set bandwidth: %v", err)
	}
	if profile.SquelchEnabled {
		if err := vfo.SetSquelchEnabled(true); err != nil {
			logDebug("profile: enable squelch: %v", err)
		}
		if err := vfo.SetSquelchLevel(profile.SquelchLevelDB); err != nil {
			logDebug("profile: set squelch level: %v", err)
		}
	} else if err := vfo.SetSquelchEnabled(false); err != nil {
		logDebug("profile: disable squelch: %v", err)
	}
	if profile.RFGainDB > 0 && tuner != nil {
		if err := tuner.SetGainDB(profile.RFGainDB); err != nil {
			logDebug("profile: set rf gain: %v", err)
		}
	}
	if ext, ok := vfo.(ExtendedVFO); ok {
		if err := ext.SetDeemphasis(profile.Deemphasis); err != nil {
			logDebug("profile: set deemphasis: %v", err)
		}
		if err := ext.SetAGC(profile.AGCEnabled); err != nil {
			logDebug("profile: set agc: %v", err)
		}
		if err := ext.SetCenterOffset(profile.CenterOffsetHz); err != nil {
			logDebug("profile: set center offset: %v", err)
		}
	}
}

// Reset clears the cache, forcing the next Apply to reconfigure
// regardless of the tuple it receives. Used on scan-list refresh, where
// cached profile references become invalid (§9 Design Notes).
func (a *ProfileApplicator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied, a.lastProfile, a.lastVFO, a.lastFrequency = false, nil, nil, 0
}
