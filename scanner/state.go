package scanner

import "time"

// State is one of the four scan-loop states (§4.8).
type State int

const (
	Idle State = iota
	Tuning
	Sweeping
	Dwell
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Tuning:
		return "Tuning"
	case Sweeping:
		return "Sweeping"
	case Dwell:
		return "Dwell"
	default:
		return "Unknown"
	}
}

// ScannerState is the scan loop's variant state (§3): the current
// frequency, sweep direction, the timestamps that drive the Tuning and
// Dwell timeouts, and the entry/profile currently selected.
type ScannerState struct {
	State State

	CurrentFreq float64
	Direction   Direction

	LastTuneTS   time.Time
	LastSignalTS time.Time

	CurrentEntrySingle bool
	CurrentProfile     *Profile

	BookmarkName string

	// PeakDB and NoiseFloorDB are the most recent detect() readings at
	// CurrentFreq, surfaced to telemetry/dashboard/capture consumers (§4.11,
	// §4.12, §4.13).
	PeakDB       float64
	NoiseFloorDB float64
}

func newScannerState(dir Direction) ScannerState {
	return ScannerState{State: Idle, Direction: dir}
}
