package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestDetectionStoreInsertAndRecent(t *testing.T) {
	dir := t.TempDir()
	s := NewDetectionStore(filepath.Join(dir, "detections.db"))
	defer s.Close()

	ctx := context.Background()
	d := Detection{
		FrequencyHz:     146.52e6,
		PeakDB:          -22,
		NoiseFloorDB:    -70,
		Bookmark:        "repeater",
		Timestamp:       time.Now(),
		IQPath:          "/tmp/capture.iq",
		SpectrogramPath: "/tmp/capture.iq.jpg",
	}
	id, err := s.Insert(ctx, d)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d, want a positive row id", id)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(Recent) = %d, want 1", len(got))
	}
	if got[0].FrequencyHz != d.FrequencyHz || got[0].Bookmark != d.Bookmark {
		t.Fatalf("got %+v, want frequency/bookmark to match %+v", got[0], d)
	}
}

func TestDetectionStoreRecentOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	s := NewDetectionStore(filepath.Join(dir, "detections.db"))
	defer s.Close()

	ctx := context.Background()
	older := Detection{FrequencyHz: 100e6, Timestamp: time.Now().Add(-time.Hour)}
	newer := Detection{FrequencyHz: 200e6, Timestamp: time.Now()}
	if _, err := s.Insert(ctx, older); err != nil {
		t.Fatalf("Insert older: %v", err)
	}
	if _, err := s.Insert(ctx, newer); err != nil {
		t.Fatalf("Insert newer: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(got))
	}
	if got[0].FrequencyHz != newer.FrequencyHz {
		t.Fatalf("Recent[0].FrequencyHz = %v, want the newest (200e6) first", got[0].FrequencyHz)
	}
}

func TestDetectionStoreRecentRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	s := NewDetectionStore(filepath.Join(dir, "detections.db"))
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Insert(ctx, Detection{FrequencyHz: float64(i) * 1e6, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Recent) = %d, want 2 (limit)", len(got))
	}
}

func TestDetectionStoreInRangeFiltersByFrequency(t *testing.T) {
	dir := t.TempDir()
	s := NewDetectionStore(filepath.Join(dir, "detections.db"))
	defer s.Close()

	ctx := context.Background()
	inRange := Detection{FrequencyHz: 146.52e6, Timestamp: time.Now()}
	outOfRange := Detection{FrequencyHz: 433e6, Timestamp: time.Now()}
	if _, err := s.Insert(ctx, inRange); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := s.Insert(ctx, outOfRange); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.InRange(ctx, 144e6, 148e6)
	if err != nil {
		t.Fatalf("InRange: %v", err)
	}
	if len(got) != 1 || got[0].FrequencyHz != inRange.FrequencyHz {
		t.Fatalf("InRange = %+v, want only the 146.52e6 detection", got)
	}
}

func TestDetectionStoreEmptyDatabaseReturnsNoRows(t *testing.T) {
	dir := t.TempDir()
	s := NewDetectionStore(filepath.Join(dir, "detections.db"))
	defer s.Close()

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(Recent) = %d, want 0 on a fresh database", len(got))
	}
}
