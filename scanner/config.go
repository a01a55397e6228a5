package scanner

import (
	"encoding/json"
	"math"
	"os"
)

// WindowKind names a supported analysis window (§4.2).
type WindowKind string

const (
	WindowRectangular     WindowKind = "rectangular"
	WindowHann            WindowKind = "hann"
	WindowHamming         WindowKind = "hamming"
	WindowBlackman        WindowKind = "blackman"
	WindowBlackmanHarris7 WindowKind = "blackman_harris_7"
)

const (
	minFFTSize = 1 << 10
	maxFFTSize = 1 << 20

	minSquelchDB = -100.0
	maxSquelchDB = 0.0

	minScanRateHz = 5.0
)

// TelemetryConfig governs §4.12: an optional websocket hub and an optional
// NATS republish target. Both are additive and off by default.
type TelemetryConfig struct {
	Listen  string `json:"listen"`
	NATSURL string `json:"natsUrl"`
}

// Config mirrors the JSON key table in spec.md §6 exactly, plus the two
// additive keys introduced for detection capture and telemetry.
type Config struct {
	StartFreq float64 `json:"startFreq"`
	StopFreq  float64 `json:"stopFreq"`
	Interval  float64 `json:"interval"`

	Level          float64 `json:"level"`
	PassbandRatio  float64 `json:"passbandRatio"`
	TuningTime     float64 `json:"tuningTime"`
	LingerTime     float64 `json:"lingerTime"`
	ScanRateHz     float64 `json:"scanRateHz"`
	UnlockHighSpeed bool   `json:"unlockHighSpeed"`
	TuningTimeAuto bool    `json:"tuningTimeAuto"`

	BlacklistedFreqs   []float64 `json:"blacklistedFreqs"`
	BlacklistTolerance float64   `json:"blacklistTolerance"`

	SquelchDelta     float64 `json:"squelchDelta"`
	SquelchDeltaAuto bool    `json:"squelchDeltaAuto"`

	ScanUp bool `json:"scanUp"`

	UseDedicatedFFT   bool       `json:"useDedicatedFFT"`
	ScannerFFTSize    int        `json:"scannerFFTSize"`
	ScannerOverlap    float64    `json:"scannerOverlap"`
	ScannerWindowType WindowKind `json:"scannerWindowType"`
	ScannerAvgTimeMs  float64    `json:"scannerAvgTimeMs"`
	ScannerGuardHz    float64    `json:"scannerGuardHz"`
	ScannerRefHz      float64    `json:"scannerRefHz"`
	ScannerMinWidthHz float64    `json:"scannerMinWidthHz"`
	ScannerThresholdDb float64   `json:"scannerThresholdDb"`

	FrequencyRanges []FrequencyRange `json:"frequencyRanges"`

	// CaptureOnDetect governs §4.11: bounded IQ capture + spectrogram
	// thumbnail on entering Dwell. Off by default.
	CaptureOnDetect bool `json:"captureOnDetect"`

	// Telemetry governs §4.12.
	Telemetry TelemetryConfig `json:"telemetry"`
}

// DefaultConfig returns the defaults from spec.md §6's table verbatim.
func DefaultConfig() Config {
	return Config{
		StartFreq:          88e6,
		StopFreq:           108e6,
		Interval:           100000,
		Level:              -50,
		PassbandRatio:      100,
		TuningTime:         250,
		LingerTime:         1000,
		ScanRateHz:         25,
		UnlockHighSpeed:    false,
		TuningTimeAuto:     false,
		BlacklistedFreqs:   nil,
		BlacklistTolerance: 1000,
		SquelchDelta:       2.5,
		SquelchDeltaAuto:   false,
		ScanUp:             true,
		UseDedicatedFFT:    true,
		ScannerFFTSize:     524288,
		ScannerOverlap:     0.5,
		ScannerWindowType:  WindowBlackmanHarris7,
		ScannerAvgTimeMs:   200,
		ScannerGuardHz:     2000,
		ScannerRefHz:       15000,
		ScannerMinWidthHz:  8000,
		ScannerThresholdDb: 8,
		FrequencyRanges:    nil,
		CaptureOnDetect:    false,
	}
}

// MaxScanRateHz implements the auto-timing cap from §4.8: 200 Hz unlocked,
// 50 Hz normal.
func (c Config) MaxScanRateHz() float64 {
	if c.UnlockHighSpeed {
		return 200
	}
	return 50
}

// Clamp enforces the invariants in spec.md §3 and the "transient
// configuration error" policy in §7: out-of-range values are clamped to the
// nearest valid value rather than rejected. It never returns an error.
func (c *Config) Clamp() {
	c.ScannerFFTSize = clampPow2(c.ScannerFFTSize, minFFTSize, maxFFTSize)
	if c.ScannerOverlap < 0 || math.IsNaN(c.ScannerOverlap) {
		c.ScannerOverlap = 0
	} else if c.ScannerOverlap > 0.99 {
		c.ScannerOverlap = 0.99
	}
	switch c.ScannerWindowType {
	case WindowRectangular, WindowHann, WindowHamming, WindowBlackman, WindowBlackmanHarris7:
	default:
		c.ScannerWindowType = WindowBlackmanHarris7
	}
	if c.ScannerAvgTimeMs <= 0 {
		c.ScannerAvgTimeMs = 200
	}
	maxRate := c.MaxScanRateHz()
	if c.ScanRateHz < minScanRateHz {
		c.ScanRateHz = minScanRateHz
	} else if c.ScanRateHz > maxRate {
		c.ScanRateHz = maxRate
	}
	c.SquelchDelta = clampF(c.SquelchDelta, 0, 20)
	if c.BlacklistTolerance < 0 {
		c.BlacklistTolerance = 0
	}
	if c.StopFreq <= c.StartFreq {
		c.StopFreq = c.StartFreq + c.Interval
	}
	if c.Interval <= 0 {
		c.Interval = 100000
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampPow2 clamps n into [lo, hi] and rounds it up to the next power of
// two (or down, if rounding up would exceed hi).
func clampPow2(n, lo, hi int) int {
	if n < lo {
		n = lo
	}
	if n > hi {
		n = hi
	}
	p := 1
	for p < n {
		p <<= 1
	}
	if p > hi {
		p >>= 1
	}
	return p
}

// configFile is the on-disk shape: a JSON object keyed by module name, so
// the scanner's configuration can share a file with other modules without
// clobbering their keys on save.
type configFile map[string]json.RawMessage

// LoadConfig reads moduleName's config object from path. A missing file or
// missing key yields DefaultConfig with no error, matching the "interface
// absence" tolerance the rest of the scanner shows for optional inputs.
func LoadConfig(path, moduleName string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return cfg, wrapf("load config", err)
	}
	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return cfg, wrapf("parse config", err)
	}
	raw, ok := cf[moduleName]
	if !ok {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, wrapf("parse "+moduleName+" config", err)
	}
	cfg.Clamp()
	return cfg, nil
}

// SaveConfig writes cfg under moduleName in path, preserving any other
// modules' keys already present in the file.
func SaveConfig(path, moduleName string, cfg Config) error {
	cf := configFile{}
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &cf)
	}
	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return wrapf("marshal config", err)
	}
	cf[moduleName] = encoded
	out, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return wrapf("marshal config file", err)
	}
	return os.WriteFile(path, out, 0644)
}
