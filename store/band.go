package store

import (
	"encoding/csv"
	"encoding/gob"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzchzchz/sdrscan/radio"
	"github.com/chzchzchz/sdrscan/scanner"
)

type BandStore struct {
	bands     map[float64]BandRecord
	blacklist []float64
	rwmu      sync.RWMutex
}

// bandFile is the on-disk gob shape: bands keyed by center MHz plus the
// scanner blacklist, so both persist together in one file.
type bandFile struct {
	Bands     map[float64]BandRecord
	Blacklist []float64
}

type BandRecord struct {
	radio.FreqBand
	Date       time.Time
	Name       string
	Modulation string
}

func NewBandStore() *BandStore {
	return &BandStore{bands: make(map[float64]BandRecord)}
}

func (b *BandStore) ImportCSV(r io.Reader) error {
	csvr := csv.NewReader(r)
	csvr.Comma, csvr.Comment, csvr.FieldsPerRecord = ';', '#', -1
	records, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, v := range records {
		if len(v) != 5 {
			continue
		}
		for i := range v {
			v[i] = strings.TrimSpace(v[i])
		}
		centerhzStr, name, mod, bwhzStr := v[0], v[1], v[2], v[3]
		centerhz, _ := strconv.ParseInt(centerhzStr, 10, 64)
		bwhz, _ := strconv.ParseInt(bwhzStr, 10, 64)
		fb := radio.FreqBand{Center: float64(centerhz) / 1e6, Width: float64(bwhz) / 1e6}
		rec := BandRecord{
			FreqBand:   fb,
			Name:       name,
			Modulation: mod,
			Date:       now,
		}
		if _, ok := b.bands[rec.Center]; !ok {
			b.bands[rec.Center] = rec
		}
	}
	return nil
}

func (b *BandStore) Load(fpath string) error {
	f, err := os.Open(fpath)
	if err != nil {
		return err
	}
	defer f.Close()
	var bf bandFile
	if err := gob.NewDecoder(f).Decode(&bf); err != nil {
		return err
	}
	b.rwmu.Lock()
	defer b.rwmu.Unlock()
	b.bands, b.blacklist = bf.Bands, bf.Blacklist
	return nil
}

func (b *BandStore) Save(fpath string) error {
	f, err := os.OpenFile(fpath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	b.rwmu.RLock()
	bf := bandFile{Bands: b.bands, Blacklist: b.blacklist}
	b.rwmu.RUnlock()
	return gob.NewEncoder(f).Encode(&bf)
}

// Blacklist returns a copy of the persisted blacklist entries in Hz.
func (b *BandStore) Blacklist() []float64 {
	b.rwmu.RLock()
	defer b.rwmu.RUnlock()
	return append([]float64(nil), b.blacklist...)
}

// SetBlacklist replaces the persisted blacklist. Callers save the store
// afterward to flush it to disk.
func (b *BandStore) SetBlacklist(freqsHz []float64) {
	b.rwmu.Lock()
	defer b.rwmu.Unlock()
	b.blacklist = append([]float64(nil), freqsHz...)
}

func (b BandStore) Bands() []BandRecord {
	b.rwmu.RLock()
	ret := make([]BandRecord, 0, len(b.bands))
	for _, v := range b.bands {
		ret = append(ret, v)
	}
	b.rwmu.RUnlock()
	return ret
}

func (b *BandStore) Range(fb radio.FreqBand) (ret []radio.FreqBand) {
	b.rwmu.RLock()
	defer b.rwmu.RUnlock()
	for _, v := range b.bands {
		if fb.Overlaps(v.FreqBand) {
			ret = append(ret, v.FreqBand)
		}
	}
	return ret
}

func (b *BandStore) Add(fbs []radio.FreqBand) {
	if len(fbs) == 0 {
		return
	}
	br := radio.BandRange(fbs)
	allOverlaps := b.Range(br)
	var overlaps []radio.FreqBand
	for _, fb := range allOverlaps {
		if rec, ok := b.bands[fb.Center]; !ok || len(rec.Name) == 0 {
			overlaps = append(overlaps, fb)
		}
	}
	b.rwmu.Lock()
	defer b.rwmu.Unlock()
	for _, fb := range overlaps {
		delete(b.bands, fb.Center)
	}
	overlaps = append(overlaps, fbs...)
	fbs = radio.BandMerge(overlaps)
	for _, v := range fbs {
		b.bands[v.Center] = BandRecord{FreqBand: v, Date: time.Now()}
	}
}

// FrequencyManagerAdapter exposes a BandStore as a scanner.FrequencyManager:
// every recorded band becomes a single-frequency scan entry at its center,
// ordered by frequency so the scan-list iterator sweeps in a stable order.
type FrequencyManagerAdapter struct {
	store *BandStore
}

func NewFrequencyManagerAdapter(s *BandStore) *FrequencyManagerAdapter {
	return &FrequencyManagerAdapter{store: s}
}

func (a *FrequencyManagerAdapter) ScanList() ([]scanner.ScanEntry, error) {
	bands := a.store.Bands()
	sort.Slice(bands, func(i, j int) bool { return bands[i].Center < bands[j].Center })
	entries := make([]scanner.ScanEntry, 0, len(bands))
	for _, rec := range bands {
		entries = append(entries, scanner.ScanEntry{
			FrequencyHz: rec.Center * 1e6,
			IsSingle:    true,
		})
	}
	return entries, nil
}

func (a *FrequencyManagerAdapter) BookmarkName(hz float64) string {
	mhz := hz / 1e6
	a.store.rwmu.RLock()
	defer a.store.rwmu.RUnlock()
	if rec, ok := a.store.bands[mhz]; ok {
		return rec.Name
	}
	return ""
}
