package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Detection is one captured dwell event (§4.11): a CFAR/fallback hit that
// triggered an IQ capture, plus the paths of the artifacts it produced.
type Detection struct {
	ID            int64
	FrequencyHz   float64
	PeakDB        float64
	NoiseFloorDB  float64
	Bookmark      string
	Timestamp     time.Time
	IQPath        string
	SpectrogramPath string
}

const createDetectionsSQL = `
CREATE TABLE IF NOT EXISTS detections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	frequency_hz REAL NOT NULL,
	peak_db REAL NOT NULL,
	noise_floor_db REAL NOT NULL,
	bookmark TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	iq_path TEXT NOT NULL,
	spectrogram_path TEXT NOT NULL
)`

const insertDetectionSQL = `
INSERT INTO detections (frequency_hz, peak_db, noise_floor_db, bookmark, timestamp, iq_path, spectrogram_path)
VALUES (?, ?, ?, ?, ?, ?, ?)`

const selectDetectionsSQL = `
SELECT id, frequency_hz, peak_db, noise_floor_db, bookmark, timestamp, iq_path, spectrogram_path
FROM detections
ORDER BY timestamp DESC
LIMIT ?`

const selectDetectionsInRangeSQL = `
SELECT id, frequency_hz, peak_db, noise_floor_db, bookmark, timestamp, iq_path, spectrogram_path
FROM detections
WHERE frequency_hz BETWEEN ? AND ?
ORDER BY timestamp DESC`

// DetectionStore persists detection-capture records to a sqlite3 database,
// lazily opening the connection and initializing the schema on first use
// (§4.11).
type DetectionStore struct {
	dbPath string

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error
}

func NewDetectionStore(dbPath string) *DetectionStore {
	return &DetectionStore{dbPath: dbPath}
}

func (s *DetectionStore) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening detections db: %w", err)
			return
		}
		if _, err := db.Exec(createDetectionsSQL); err != nil {
			db.Close()
			s.dbErr = fmt.Errorf("initializing detections schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

// Insert records one detection and returns its assigned ID.
func (s *DetectionStore) Insert(ctx context.Context, d Detection) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, insertDetectionSQL,
		d.FrequencyHz, d.PeakDB, d.NoiseFloorDB, d.Bookmark, d.Timestamp.UTC(), d.IQPath, d.SpectrogramPath)
	if err != nil {
		return 0, fmt.Errorf("inserting detection: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the most recent detections, newest first.
func (s *DetectionStore) Recent(ctx context.Context, limit int) ([]Detection, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectDetectionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()
	return scanDetections(rows)
}

// InRange returns detections whose frequency falls within [lowHz, highHz].
func (s *DetectionStore) InRange(ctx context.Context, lowHz, highHz float64) ([]Detection, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectDetectionsInRangeSQL, lowHz, highHz)
	if err != nil {
		return nil, fmt.Errorf("querying detections in range: %w", err)
	}
	defer rows.Close()
	return scanDetections(rows)
}

func scanDetections(rows *sql.Rows) ([]Detection, error) {
	var out []Detection
	for rows.Next() {
		var d Detection
		if err := rows.Scan(&d.ID, &d.FrequencyHz, &d.PeakDB, &d.NoiseFloorDB, &d.Bookmark, &d.Timestamp, &d.IQPath, &d.SpectrogramPath); err != nil {
			return nil, fmt.Errorf("scanning detection: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DetectionStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
