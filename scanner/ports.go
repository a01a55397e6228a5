// Package scanner implements the scanning engine: a dedicated PSD estimator,
// a CFAR peak detector, and the scan-loop state machine that steps a scan
// list, tunes a VFO, and dwells on detections.
//
// The scanner depends on its tuner, VFO and frequency-manager collaborators
// only through the interfaces in this file. It never reaches for a global
// singleton; every dependency is passed to NewScanner.
package scanner

// Tuner is the source of IQ samples and the frequency/gain command surface
// the scanner drives during a sweep.
type Tuner interface {
	SetCenterFrequency(hz float64) error
	SetGainDB(db float64) error
	IsStarted() bool
	SampleRate() float64
}

// VFO is the virtual receiver the scanner retunes and reconfigures when it
// selects a target. Demodulation itself is out of scope; the scanner only
// issues commands.
type VFO interface {
	SetMode(mode int) error
	SetBandwidth(hz float64) error
	SetSquelchEnabled(on bool) error
	SetSquelchLevel(db float64) error
	SquelchEnabled() (bool, error)
	SquelchLevel() (float64, error)
	Retune(name string, hz float64) error
}

// ExtendedVFO is implemented by VFOs that also expose deemphasis, AGC and a
// receive center offset. The profile applicator uses these opportunistically
// via a type assertion; a VFO that only implements VFO still works.
type ExtendedVFO interface {
	VFO
	SetDeemphasis(on bool) error
	SetAGC(on bool) error
	SetCenterOffset(hz float64) error
}

// FrequencyManager supplies the ordered scan list and bookmark lookups.
// NewFrequencyManagerIterator rejects a nil FrequencyManager with
// ErrNilPort; legacy band-stepping mode (§4.5) is the separate
// LegacyIterator, which the caller selects and passes to NewScanner.
type FrequencyManager interface {
	ScanList() ([]ScanEntry, error)
	BookmarkName(hz float64) string
}

// ScanFFTHost is the interface the scanner exposes to an IQ front-end that
// wants to feed the dedicated PSD path directly, and the interface a host
// waterfall exposes for the fallback path (§4.9). A concrete PSD engine
// implements the acquire/release side; radio.SpectralPower-backed adapters
// implement the snapshot side.
type ScanFFTHost interface {
	// SetScannerFFTSize clamps n to a power of two in [2^10, 2^20] and
	// re-initializes the FFT path if it changed.
	SetScannerFFTSize(n int) error
	// AcquireSnapshot copies the latest spectrum into a caller-owned
	// buffer along with the bin width and tuner center frequency at the
	// time of capture. ok is false if no spectrum has been produced yet.
	AcquireSnapshot(out []float64) (binWidthHz, centerHz float64, ok bool)
}

// ScanEntry is one item from a scan list: either a single frequency to
// probe narrowly, or a stepped band sample probed at full VFO bandwidth.
type ScanEntry struct {
	FrequencyHz float64
	Profile     *Profile
	IsSingle    bool
}

// FrequencyRange is a legacy band-stepping range, edited via configuration
// and consumed by the scan-list iterator's legacy mode.
type FrequencyRange struct {
	Name    string  `json:"name"`
	LowHz   float64 `json:"lowHz"`
	HighHz  float64 `json:"highHz"`
	Enabled bool    `json:"enabled"`
	GainDB  float64 `json:"gainDb"`
}

// Direction is the sweep direction used by the scan-list iterator and the
// scan loop's forward/reverse commands.
type Direction int

const (
	Up   Direction = 1
	Down Direction = -1
)

func (d Direction) Reverse() Direction {
	if d == Up {
		return Down
	}
	return Up
}

// Command is a pending user request applied at the start of the next tick.
type Command int

const (
	CommandNone Command = iota
	CommandReverse
	CommandAdvance
	CommandReset
	CommandBlacklistCurrent
)

// NullVFO is an in-memory VFO stub: it records the last value written to
// each setter and never returns an error. It is the minimal example a real
// demodulator integration starts from, and is enough to drive the scan loop
// under test.
type NullVFO struct {
	mode           int
	bandwidthHz    float64
	squelchEnabled bool
	squelchLevel   float64
	deemphasis     bool
	agc            bool
	centerOffset   float64
	lastRetune     string
	lastRetuneHz   float64
}

func NewNullVFO() *NullVFO { return &NullVFO{} }

func (v *NullVFO) SetMode(mode int) error             { v.mode = mode; return nil }
func (v *NullVFO) SetBandwidth(hz float64) error      { v.bandwidthHz = hz; return nil }
func (v *NullVFO) SetSquelchEnabled(on bool) error    { v.squelchEnabled = on; return nil }
func (v *NullVFO) SetSquelchLevel(db float64) error   { v.squelchLevel = db; return nil }
func (v *NullVFO) SquelchEnabled() (bool, error)      { return v.squelchEnabled, nil }
func (v *NullVFO) SquelchLevel() (float64, error)     { return v.squelchLevel, nil }
func (v *NullVFO) Retune(name string, hz float64) error {
	v.lastRetune, v.lastRetuneHz = name, hz
	return nil
}
func (v *NullVFO) SetDeemphasis(on bool) error   { v.deemphasis = on; return nil }
func (v *NullVFO) SetAGC(on bool) error          { v.agc = on; return nil }
func (v *NullVFO) SetCenterOffset(hz float64) error { v.centerOffset = hz; return nil }

var _ ExtendedVFO = (*NullVFO)(nil)
