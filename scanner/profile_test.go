package scanner

import "testing"

type fakeTuner struct {
	centerHz   float64
	gainDB     float64
	started    bool
	sampleRate float64
}

func (f *fakeTuner) SetCenterFrequency(hz float64) error { f.centerHz = hz; return nil }
func (f *fakeTuner) SetGainDB(db float64) error          { f.gainDB = db; return nil }
func (f *fakeTuner) IsStarted() bool                     { return f.started }
func (f *fakeTuner) SampleRate() float64                 { return f.sampleRate }

func TestProfileApplicatorAppliesSettings(t *testing.T) {
	vfo := NewNullVFO()
	tuner := &fakeTuner{}
	a := NewProfileApplicator()
	p := &Profile{
		DemodMode:      3,
		BandwidthHz:    12500,
		SquelchEnabled: true,
		SquelchLevelDB: -50,
		Deemphasis:     true,
		AGCEnabled:     true,
		RFGainDB:       20,
		CenterOffsetHz: 1000,
	}
	a.Apply(p, vfo, tuner, 100e6)

	if vfo.mode != 3 {
		t.Fatalf("mode = %d, want 3", vfo.mode)
	}
	if vfo.bandwidthHz != 12500 {
		t.Fatalf("bandwidth = %v, want 12500", vfo.bandwidthHz)
	}
	if !vfo.squelchEnabled || vfo.squelchLevel != -50 {
		t.Fatalf("squelch not applied: enabled=%v level=%v", vfo.squelchEnabled, vfo.squelchLevel)
	}
	if !vfo.deemphasis || !vfo.agc {
		t.Fatalf("deemphasis/agc not applied: %v/%v", vfo.deemphasis, vfo.agc)
	}
	if vfo.centerOffset != 1000 {
		t.Fatalf("center offset = %v, want 1000", vfo.centerOffset)
	}
	if tuner.gainDB != 20 {
		t.Fatalf("tuner gain = %v, want 20", tuner.gainDB)
	}
}

func TestProfileApplicatorCachesRepeatedApply(t *testing.T) {
	vfo := NewNullVFO()
	tuner := &fakeTuner{}
	a := NewProfileApplicator()
	p := &Profile{DemodMode: 1, RFGainDB: 5}

	a.Apply(p, vfo, tuner, 100e6)
	tuner.gainDB = -1 // sentinel: a cached second Apply must not touch this
	a.Apply(p, vfo, tuner, 100e6+1) // within profileCacheFreqToleranceHz

	if tuner.gainDB != -1 {
		t.Fatalf("expected cached Apply to skip reconfiguration, tuner.gainDB = %v", tuner.gainDB)
	}
}

func TestProfileApplicatorReappliesBeyondTolerance(t *testing.T) {
	vfo := NewNullVFO()
	tuner := &fakeTuner{}
	a := NewProfileApplicator()
	p := &Profile{DemodMode: 1, RFGainDB: 5}

	a.Apply(p, vfo, tuner, 100e6)
	tuner.gainDB = -1
	a.Apply(p, vfo, tuner, 100e6+profileCacheFreqToleranceHz*10)

	if tuner.gainDB != 5 {
		t.Fatalf("expected reapplication beyond the cache tolerance, tuner.gainDB = %v", tuner.gainDB)
	}
}

func TestProfileApplicatorResetForcesReapply(t *testing.T) {
	vfo := NewNullVFO()
	tuner := &fakeTuner{}
	a := NewProfileApplicator()
	p := &Profile{DemodMode: 1, RFGainDB: 5}

	a.Apply(p, vfo, tuner, 100e6)
	a.Reset()
	tuner.gainDB = -1
	a.Apply(p, vfo, tuner, 100e6)

	if tuner.gainDB != 5 {
		t.Fatalf("expected Reset to force reapplication, tuner.gainDB = %v", tuner.gainDB)
	}
}

func TestProfileApplicatorNilProfileIsNoOp(t *testing.T) {
	vfo := NewNullVFO()
	tuner := &fakeTuner{}
	a := NewProfileApplicator()
	a.Apply(nil, vfo, tuner, 100e6) // must not panic
}
