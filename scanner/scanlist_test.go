package scanner

import "testing"

type fakeFrequencyManager struct {
	entries   []ScanEntry
	err       error
	bookmarks map[float64]string
}

func (f *fakeFrequencyManager) ScanList() ([]ScanEntry, error) { return f.entries, f.err }
func (f *fakeFrequencyManager) BookmarkName(hz float64) string { return f.bookmarks[hz] }

func TestFrequencyManagerIteratorCurrentAndNext(t *testing.T) {
	fm := &fakeFrequencyManager{entries: []ScanEntry{
		{FrequencyHz: 100e6},
		{FrequencyHz: 101e6},
		{FrequencyHz: 102e6},
	}}
	it, err := NewFrequencyManagerIterator(fm)
	if err != nil {
		t.Fatalf("NewFrequencyManagerIterator: %v", err)
	}
	e, ok := it.Current()
	if !ok || e.FrequencyHz != 100e6 {
		t.Fatalf("Current() = %+v, %v; want 100e6, true", e, ok)
	}
	e, ok = it.Next(Up, nil)
	if !ok || e.FrequencyHz != 101e6 {
		t.Fatalf("Next(Up) = %+v, %v; want 101e6, true", e, ok)
	}
	e, ok = it.Next(Up, nil)
	if !ok || e.FrequencyHz != 102e6 {
		t.Fatalf("Next(Up) = %+v, %v; want 102e6, true", e, ok)
	}
	// wraps around
	e, ok = it.Next(Up, nil)
	if !ok || e.FrequencyHz != 100e6 {
		t.Fatalf("Next(Up) wraparound = %+v, %v; want 100e6, true", e, ok)
	}
}

func TestFrequencyManagerIteratorSkipsBlacklisted(t *testing.T) {
	fm := &fakeFrequencyManager{entries: []ScanEntry{
		{FrequencyHz: 100e6},
		{FrequencyHz: 101e6},
		{FrequencyHz: 102e6},
	}}
	it, err := NewFrequencyManagerIterator(fm)
	if err != nil {
		t.Fatalf("NewFrequencyManagerIterator: %v", err)
	}
	bl := NewBlacklist(10)
	bl.Set([]float64{101e6})
	e, ok := it.Next(Up, bl)
	if !ok || e.FrequencyHz != 102e6 {
		t.Fatalf("Next(Up) with blacklist = %+v, %v; want 102e6, true (skip 101e6)", e, ok)
	}
}

func TestFrequencyManagerIteratorAllBlacklistedReturnsFalse(t *testing.T) {
	fm := &fakeFrequencyManager{entries: []ScanEntry{{FrequencyHz: 100e6}, {FrequencyHz: 101e6}}}
	it, err := NewFrequencyManagerIterator(fm)
	if err != nil {
		t.Fatalf("NewFrequencyManagerIterator: %v", err)
	}
	bl := NewBlacklist(10)
	bl.Set([]float64{100e6, 101e6})
	if _, ok := it.Next(Up, bl); ok {
		t.Fatal("expected Next to fail when every entry is blacklisted")
	}
}

func TestFrequencyManagerIteratorEmptyScanList(t *testing.T) {
	fm := &fakeFrequencyManager{}
	it, err := NewFrequencyManagerIterator(fm)
	if err != nil {
		t.Fatalf("NewFrequencyManagerIterator: %v", err)
	}
	if _, ok := it.Current(); ok {
		t.Fatal("expected Current to fail on an empty scan list")
	}
}

func TestFrequencyManagerIteratorBookmarkNameDelegatesToManager(t *testing.T) {
	fm := &fakeFrequencyManager{
		entries:   []ScanEntry{{FrequencyHz: 146.52e6}},
		bookmarks: map[float64]string{146.52e6: "Calling"},
	}
	it, err := NewFrequencyManagerIterator(fm)
	if err != nil {
		t.Fatalf("NewFrequencyManagerIterator: %v", err)
	}
	var _ BookmarkLookup = it
	if got := it.BookmarkName(146.52e6); got != "Calling" {
		t.Fatalf("BookmarkName = %q, want %q", got, "Calling")
	}
	if got := it.BookmarkName(999e6); got != "" {
		t.Fatalf("BookmarkName for unknown frequency = %q, want empty", got)
	}
}

func TestNewFrequencyManagerIteratorNilRejected(t *testing.T) {
	if _, err := NewFrequencyManagerIterator(nil); err != ErrNilPort {
		t.Fatalf("err = %v, want ErrNilPort", err)
	}
}

func TestLegacyIteratorStepsAndWraps(t *testing.T) {
	ranges := []FrequencyRange{
		{Name: "a", LowHz: 100e6, HighHz: 100.01e6, Enabled: true},
	}
	it, err := NewLegacyIterator(ranges, 5000)
	if err != nil {
		t.Fatalf("NewLegacyIterator: %v", err)
	}
	e, ok := it.Current()
	if !ok || e.FrequencyHz != 100e6 {
		t.Fatalf("Current() = %+v, %v; want 100e6, true", e, ok)
	}
	e, _ = it.Next(Up, nil)
	if e.FrequencyHz != 100.005e6 {
		t.Fatalf("Next(Up) = %v, want 100.005e6", e.FrequencyHz)
	}
	it.Next(Up, nil)
	e, _ = it.Next(Up, nil)
	if e.FrequencyHz != 100e6 {
		t.Fatalf("Next(Up) past HighHz = %v, want wrap to 100e6", e.FrequencyHz)
	}
}

func TestLegacyIteratorWrapsAtRangeEdge(t *testing.T) {
	ranges := []FrequencyRange{
		{Name: "a", LowHz: 100e6, HighHz: 100e6 + 1000, Enabled: true},
	}
	it, err := NewLegacyIterator(ranges, 5000)
	if err != nil {
		t.Fatalf("NewLegacyIterator: %v", err)
	}
	e, ok := it.Next(Up, nil)
	if !ok {
		t.Fatal("expected Next to succeed by wrapping within the single range")
	}
	if e.FrequencyHz < ranges[0].LowHz || e.FrequencyHz > ranges[0].HighHz {
		t.Fatalf("wrapped frequency %v out of range [%v, %v]", e.FrequencyHz, ranges[0].LowHz, ranges[0].HighHz)
	}
}

func TestLegacyIteratorSkipsDisabledRanges(t *testing.T) {
	ranges := []FrequencyRange{
		{Name: "disabled", LowHz: 50e6, HighHz: 51e6, Enabled: false},
		{Name: "enabled", LowHz: 100e6, HighHz: 101e6, Enabled: true},
	}
	it, err := NewLegacyIterator(ranges, 5000)
	if err != nil {
		t.Fatalf("NewLegacyIterator: %v", err)
	}
	e, _ := it.Current()
	if e.FrequencyHz != 100e6 {
		t.Fatalf("expected iterator to start on the enabled range, got %v", e.FrequencyHz)
	}
}

func TestNewLegacyIteratorNoEnabledRangesFails(t *testing.T) {
	ranges := []FrequencyRange{{Name: "off", LowHz: 1, HighHz: 2, Enabled: false}}
	if _, err := NewLegacyIterator(ranges, 1000); err != ErrEmptyScanList {
		t.Fatalf("err = %v, want ErrEmptyScanList", err)
	}
}
