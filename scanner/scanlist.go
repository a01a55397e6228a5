package scanner

import (
	"sync"
	"time"
)

// ScanListIterator produces an ordered, cyclic sequence of scan entries,
// skipping blacklisted frequencies (§4.5).
type ScanListIterator interface {
	Current() (ScanEntry, bool)
	Next(dir Direction, bl *Blacklist) (ScanEntry, bool)
	Refresh() error
}

const scanListRefreshInterval = 5 * time.Second

// BookmarkLookup is implemented by scan-list iterators backed by a store
// that can resolve a frequency to a bookmark name (§4.12). The scan loop
// checks for it opportunistically via a type assertion, the same pattern
// profile.go uses for ExtendedVFO; LegacyIterator has no such backing
// store and does not implement it.
type BookmarkLookup interface {
	BookmarkName(hz float64) string
}

// FrequencyManagerIterator is the preferred scan-list mode: it pulls an
// ordered list from an external frequency-manager store, polling every 5s
// (§4.5, §9 Open Question 1 — decided in DESIGN.md to keep polling rather
// than reacting to external pushes).
type FrequencyManagerIterator struct {
	fm FrequencyManager

	mu           sync.Mutex
	entries      []ScanEntry
	currentIndex int
	lastRefresh  time.Time
}

func NewFrequencyManagerIterator(fm FrequencyManager) (*FrequencyManagerIterator, error) {
	if fm == nil {
		return nil, ErrNilPort
	}
	it := &FrequencyManagerIterator{fm: fm}
	if err := it.Refresh(); err != nil {
		return nil, err
	}
	return it, nil
}

// Refresh pulls a fresh scan list from the frequency manager. The current
// index is preserved if it still fits; otherwise it resets to 0.
func (it *FrequencyManagerIterator) Refresh() error {
	entries, err := it.fm.ScanList()
	if err != nil {
		return wrapf("scan list refresh", err)
	}
	it.mu.Lock()
	it.entries = entries
	if it.currentIndex >= len(it.entries) {
		it.currentIndex = 0
	}
	it.lastRefresh = time.Now()
	it.mu.Unlock()
	return nil
}

func (it *FrequencyManagerIterator) maybeRefresh() {
	it.mu.Lock()
	stale := time.Since(it.lastRefresh) >= scanListRefreshInterval
	it.mu.Unlock()
	if stale {
		if err := it.Refresh(); err != nil {
			logDebug("scan list refresh: %v", err)
		}
	}
}

func (it *FrequencyManagerIterator) Current() (ScanEntry, bool) {
	it.maybeRefresh()
	it.mu.Lock()
	defer it.mu.Unlock()
	if len(it.entries) == 0 {
		return ScanEntry{}, false
	}
	return it.entries[it.currentIndex], true
}

// Next steps current_index by direction, skipping blacklisted entries for
// up to one full pass, per §4.5.
func (it *FrequencyManagerIterator) Next(dir Direction, bl *Blacklist) (ScanEntry, bool) {
	it.maybeRefresh()
	it.mu.Lock()
	defer it.mu.Unlock()
	n := len(it.entries)
	if n == 0 {
		return ScanEntry{}, false
	}
	for attempt := 0; attempt < n; attempt++ {
		it.currentIndex = wrapIndex(it.currentIndex+int(dir), n)
		e := it.entries[it.currentIndex]
		if bl == nil || !bl.IsBlacklisted(e.FrequencyHz) {
			return e, true
		}
	}
	return ScanEntry{}, false
}

// BookmarkName implements BookmarkLookup by delegating to the backing
// frequency manager.
func (it *FrequencyManagerIterator) BookmarkName(hz float64) string {
	return it.fm.BookmarkName(hz)
}

func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// LegacyIterator generates frequencies by stepping the active
// FrequencyRange by a fixed interval, wrapping to the next enabled range
// on reaching an edge (§4.5 legacy mode). All entries report IsSingle=false.
type LegacyIterator struct {
	mu          sync.Mutex
	ranges      []FrequencyRange
	rangeIdx    int
	currentFreq float64
	intervalHz  float64
}

func NewLegacyIterator(ranges []FrequencyRange, intervalHz float64) (*LegacyIterator, error) {
	it := &LegacyIterator{ranges: ranges, intervalHz: intervalHz, rangeIdx: -1}
	for i, r := range ranges {
		if r.Enabled {
			it.rangeIdx = i
			it.currentFreq = r.LowHz
			break
		}
	}
	if it.rangeIdx < 0 {
		return nil, ErrEmptyScanList
	}
	return it, nil
}

func (it *LegacyIterator) Refresh() error { return nil }

func (it *LegacyIterator) Current() (ScanEntry, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.rangeIdx < 0 {
		return ScanEntry{}, false
	}
	return ScanEntry{FrequencyHz: it.currentFreq, IsSingle: false}, true
}

func (it *LegacyIterator) Next(dir Direction, bl *Blacklist) (ScanEntry, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.rangeIdx < 0 {
		return ScanEntry{}, false
	}
	n := len(it.ranges)
	for attempt := 0; attempt <= n; attempt++ {
		it.currentFreq += it.intervalHz * float64(dir)
		r := it.ranges[it.rangeIdx]
		if dir == Up && it.currentFreq > r.HighHz {
			it.advanceRangeLocked(dir)
			it.currentFreq = it.ranges[it.rangeIdx].LowHz
		} else if dir == Down && it.currentFreq < r.LowHz {
			it.advanceRangeLocked(dir)
			it.currentFreq = it.ranges[it.rangeIdx].HighHz
		}
		e := ScanEntry{FrequencyHz: it.currentFreq, IsSingle: false}
		if bl == nil || !bl.IsBlacklisted(e.FrequencyHz) {
			return e, true
		}
	}
	return ScanEntry{}, false
}

// advanceRangeLocked moves to the next enabled range in dir, wrapping
// cyclically. If only the current range is enabled, it is left in place
// (the caller's edge-wrap on currentFreq handles wrapping within it).
func (it *LegacyIterator) advanceRangeLocked(dir Direction) {
	n := len(it.ranges)
	for step := 1; step <= n; step++ {
		idx := wrapIndex(it.rangeIdx+step*int(dir), n)
		if it.ranges[idx].Enabled {
			it.rangeIdx = idx
			return
		}
	}
}
