package scanner

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// Sentinel errors for the boundary behaviors in spec §8.
var (
	ErrEmptyScanList     = errors.New("scanner: scan list is empty")
	ErrAllBlacklisted    = errors.New("scanner: all scan entries are blacklisted")
	ErrNilPort           = errors.New("scanner: required port is nil")
	ErrSourceStopped     = errors.New("scanner: source stopped")
	ErrBadSampleRate     = errors.New("scanner: sample rate must be > 0")
	ErrSnapshotUnavailable = errors.New("scanner: no PSD snapshot available")
)

// loggedOnce guards the "interface absence" log-once policy (§7): the frequency
// manager not being loaded, or a VFO command not being supported, should be
// reported exactly once per process rather than spamming every tick.
var (
	loggedOnceMu sync.Mutex
	loggedOnce   = map[string]bool{}
)

// logOnce logs msg the first time it is seen for a given key and is silent
// on every subsequent call. Used for interface-absence warnings (§7).
func logOnce(key, format string, args ...interface{}) {
	loggedOnceMu.Lock()
	seen := loggedOnce[key]
	loggedOnce[key] = true
	loggedOnceMu.Unlock()
	if !seen {
		log.Printf("scanner: "+format, args...)
	}
}

// logDebug reports a transient interface failure (§7): a command returned
// an error but the scan loop proceeds unaffected. There is no leveled
// logger anywhere in the corpus, so this is a plain prefixed log line.
func logDebug(format string, args ...interface{}) {
	log.Printf("scanner: debug: "+format, args...)
}

// wrapf is the one place %w wrapping is used, matching the one example in
// the retrieved pack that wraps errors this way.
func wrapf(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("scanner: %s: %w", op, err)
}
