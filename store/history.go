// Package store persists completed scans for the history and dashboard views.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/diagnosis"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
    id            TEXT PRIMARY KEY,
    created_at    INTEGER NOT NULL,
    name          TEXT NOT NULL,
    mime_type     TEXT NOT NULL,
    size_bytes    INTEGER NOT NULL,
    width         INTEGER NOT NULL,
    height        INTEGER NOT NULL,
    origin        TEXT NOT NULL,
    digest        TEXT NOT NULL,
    disease       TEXT NOT NULL,
    confidence    REAL NOT NULL,
    healthy       INTEGER NOT NULL,
    fertilizer    TEXT,
    latitude      REAL,
    longitude     REAL
);

CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at);
CREATE INDEX IF NOT EXISTS idx_scans_disease ON scans(disease);
`

// ErrNotFound is returned when a scan does not exist.
var ErrNotFound = errors.New("store: scan not found")

// Scan is one recorded diagnosis.
type Scan struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Name       string    `json:"name"`
	MIMEType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Origin     string    `json:"origin"`
	Digest     string    `json:"digest"`
	Disease    string    `json:"disease"`
	Confidence float64   `json:"confidence"`
	Healthy    bool      `json:"healthy"`
	Fertilizer string    `json:"fertilizer,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
}

// NewScan builds a record from an artifact and its prediction.
func NewScan(a *camera.Artifact, p diagnosis.Prediction) Scan {
	d := a.Digest()
	return Scan{
		ID:         a.ID,
		CreatedAt:  a.CreatedAt,
		Name:       a.Name,
		MIMEType:   a.MIMEType,
		Size:       a.Size(),
		Width:      a.Width,
		Height:     a.Height,
		Origin:     a.Origin.String(),
		Digest:     hex.EncodeToString(d[:]),
		Disease:    p.Disease,
		Confidence: p.Confidence,
		Healthy:    p.Healthy,
	}
}

// Store is the SQLite scan history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts or replaces a scan.
func (s *Store) Record(ctx context.Context, sc Scan) error {
	if sc.ID == "" {
		return errors.New("store: scan has no id")
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scans (id, created_at, name, mime_type, size_bytes, width, height, origin, digest, disease, confidence, healthy, fertilizer, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.CreatedAt.UnixNano(), sc.Name, sc.MIMEType, sc.Size, sc.Width, sc.Height, sc.Origin, sc.Digest,
		sc.Disease, sc.Confidence, sc.Healthy, nullString(sc.Fertilizer), sc.Latitude, sc.Longitude,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// SetFertilizer attaches the recommended product to a recorded scan.
func (s *Store) SetFertilizer(ctx context.Context, id, fertilizer string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE scans SET fertilizer = ? WHERE id = ?`, fertilizer, id)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectScan = `SELECT id, created_at, name, mime_type, size_bytes, width, height, origin, digest, disease, confidence, healthy, fertilizer, latitude, longitude FROM scans`

// Get returns one scan by id.
func (s *Store) Get(ctx context.Context, id string) (Scan, error) {
	row := s.db.QueryRowContext(ctx, selectScan+` WHERE id = ?`, id)
	sc, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Scan{}, ErrNotFound
	}
	return sc, err
}

// Recent returns up to limit scans, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectScan+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()
	var out []Scan
	for rows.Next() {
		sc, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// DiseaseCounts aggregates scans per disease since the given time.
func (s *Store) DiseaseCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT disease, COUNT(*) FROM scans WHERE created_at >= ? GROUP BY disease`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRow(r rowScanner) (Scan, error) {
	var (
		sc         Scan
		created    int64
		fertilizer sql.NullString
		lat, lon   sql.NullFloat64
	)
	err := r.Scan(&sc.ID, &created, &sc.Name, &sc.MIMEType, &sc.Size, &sc.Width, &sc.Height, &sc.Origin,
		&sc.Digest, &sc.Disease, &sc.Confidence, &sc.Healthy, &fertilizer, &lat, &lon)
	if err != nil {
		return Scan{}, err
	}
	sc.CreatedAt = time.Unix(0, created)
	sc.Fertilizer = fertilizer.String
	if lat.Valid {
		sc.Latitude = &lat.Float64
	}
	if lon.Valid {
		sc.Longitude = &lon.Float64
	}
	return sc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
