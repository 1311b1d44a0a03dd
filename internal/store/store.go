// Package store keeps the history of detection runs in SQLite.
//
// Every run, each image it produced and each box drawn are recorded so that
// counts can be listed, summarized and compared with what the labels say.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ironsheep/palmcount/internal/annotate"
	"github.com/ironsheep/palmcount/internal/detection"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one recorded detection run.
type Run struct {
	ID         int64      `json:"id"`
	Number     int        `json:"number"`
	Dir        string     `json:"dir"`
	ModelPath  string     `json:"model_path"`
	Confidence float64    `json:"confidence"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ImageCount int        `json:"image_count"`
	TotalCount int        `json:"total_count"`
}

// ImageRecord is one annotated result image.
type ImageRecord struct {
	ID       int64           `json:"id"`
	RunID    int64           `json:"run_id"`
	Filename string          `json:"filename"`
	Path     string          `json:"path"`
	Count    int             `json:"count"`
	Boxes    []detection.Box `json:"boxes"`
}

// Store wraps the SQLite connection. Writes are serialized.
type Store struct {
	conn *sql.DB
	mu   sync.RWMutex
}

var _ annotate.Recorder = (*Store)(nil)

// Open opens or creates the database at path and migrates its schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		number INTEGER NOT NULL,
		dir TEXT NOT NULL UNIQUE,
		model_path TEXT NOT NULL,
		confidence REAL NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		image_count INTEGER DEFAULT 0,
		total_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		path TEXT NOT NULL,
		count INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS boxes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id INTEGER NOT NULL,
		x1 REAL NOT NULL,
		y1 REAL NOT NULL,
		x2 REAL NOT NULL,
		y2 REAL NOT NULL,
		score REAL NOT NULL,
		class INTEGER NOT NULL,
		FOREIGN KEY (image_id) REFERENCES images(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_images_run_id ON images(run_id);
	CREATE INDEX IF NOT EXISTS idx_boxes_image_id ON boxes(image_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func normalizeDir(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// BeginRun inserts a run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, info annotate.RunInfo) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO runs (number, dir, model_path, confidence, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, info.Number, normalizeDir(info.Dir), info.ModelPath, info.Confidence, info.StartedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

// RecordImage stores one result image and its boxes in a single transaction.
func (s *Store) RecordImage(ctx context.Context, runID int64, img annotate.ImageResult, boxes []detection.Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO images (run_id, filename, path, count)
		VALUES (?, ?, ?, ?)
	`, runID, img.Filename, img.Path, img.Count)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	imageID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO boxes (image_id, x1, y1, x2, y2, score, class)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range boxes {
		if _, err := stmt.ExecContext(ctx, imageID, b.X1, b.Y1, b.X2, b.Y2, b.Score, b.Class); err != nil {
			return fmt.Errorf("failed to insert box: %w", err)
		}
	}
	return tx.Commit()
}

// FinishRun stamps the run as complete with its totals.
func (s *Store) FinishRun(ctx context.Context, runID int64, res *annotate.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, image_count = ?, total_count = ?
		WHERE id = ?
	`, time.Now().UTC(), len(res.Images), res.Total, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

const runColumns = `id, number, dir, model_path, confidence, started_at, finished_at, image_count, total_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.Number, &r.Dir, &r.ModelPath, &r.Confidence,
		&r.StartedAt, &finished, &r.ImageCount, &r.TotalCount); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// RunByDir returns the run recorded for a run folder.
func (s *Store) RunByDir(ctx context.Context, dir string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE dir = ?`, normalizeDir(dir))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return r, nil
}

// RunByID returns a single run.
func (s *Store) RunByID(ctx context.Context, id int64) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return r, nil
}

// ImagesForRun returns the images of a run in filename order, with boxes.
func (s *Store) ImagesForRun(ctx context.Context, runID int64) ([]ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, run_id, filename, path, count
		FROM images WHERE run_id = ? ORDER BY filename
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}

	images := []ImageRecord{}
	index := map[int64]int{}
	for rows.Next() {
		var rec ImageRecord
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Filename, &rec.Path, &rec.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		rec.Boxes = []detection.Box{}
		index[rec.ID] = len(images)
		images = append(images, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	boxRows, err := s.conn.QueryContext(ctx, `
		SELECT b.image_id, b.x1, b.y1, b.x2, b.y2, b.score, b.class
		FROM boxes b JOIN images i ON i.id = b.image_id
		WHERE i.run_id = ? ORDER BY b.id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query boxes: %w", err)
	}
	defer boxRows.Close()

	for boxRows.Next() {
		var imageID int64
		var b detection.Box
		if err := boxRows.Scan(&imageID, &b.X1, &b.Y1, &b.X2, &b.Y2, &b.Score, &b.Class); err != nil {
			return nil, fmt.Errorf("failed to scan box: %w", err)
		}
		if i, ok := index[imageID]; ok {
			images[i].Boxes = append(images[i].Boxes, b)
		}
	}
	return images, boxRows.Err()
}
