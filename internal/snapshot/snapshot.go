// Package snapshot persists the last built index to a SQLite file so a new
// process can answer questions without re-indexing.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"ragchat/internal/domain"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no index snapshot")

const schemaVersion = "1"

const schema = `
DROP TABLE IF EXISTS meta;
DROP TABLE IF EXISTS files;
DROP TABLE IF EXISTS chunks;
CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE files (position INTEGER PRIMARY KEY, path TEXT NOT NULL);
CREATE TABLE chunks (
	position INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	source TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	content TEXT NOT NULL,
	vector BLOB NOT NULL
);`

// Snapshot is everything needed to rebuild a query-ready index.
// Vectors[i] belongs to Chunks[i].
type Snapshot struct {
	Embedder  string
	Dimension int
	Files     []string
	Summary   string
	Chunks    []domain.DocumentChunk
	Vectors   [][]float64
	CreatedAt time.Time
}

// Store reads and writes a snapshot file.
type Store struct {
	path string
}

func New(path string) *Store { return &Store{path: path} }

func (s *Store) Path() string { return s.path }

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping snapshot: %w", err)
	}
	return db, nil
}

// Save replaces the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if len(snap.Chunks) != len(snap.Vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrInvalidInput, len(snap.Chunks), len(snap.Vectors))
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	meta := map[string]string{
		"version":    schemaVersion,
		"embedder":   snap.Embedder,
		"dimension":  strconv.Itoa(snap.Dimension),
		"summary":    snap.Summary,
		"created_at": created.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", k, err)
		}
	}
	for i, f := range snap.Files {
		if _, err := tx.ExecContext(ctx, `INSERT INTO files (position, path) VALUES (?, ?)`, i, f); err != nil {
			return fmt.Errorf("failed to write file %s: %w", f, err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (position, id, source, ordinal, content, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range snap.Chunks {
		if len(snap.Vectors[i]) != snap.Dimension {
			return fmt.Errorf("%w: chunk %d has %d components, snapshot has %d", domain.ErrDimensionMismatch, i, len(snap.Vectors[i]), snap.Dimension)
		}
		if _, err := stmt.ExecContext(ctx, i, c.ID, c.Source, c.Ordinal, c.Content, encodeVector(snap.Vectors[i])); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Load reads the stored snapshot. It returns ErrNoSnapshot when the file
// does not exist or holds no snapshot.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta := map[string]string{}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, ErrNoSnapshot
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		meta[k] = v
	}
	rows.Close()
	if meta["version"] != schemaVersion {
		return nil, ErrNoSnapshot
	}

	snap := &Snapshot{Embedder: meta["embedder"], Summary: meta["summary"]}
	if snap.Dimension, err = strconv.Atoi(meta["dimension"]); err != nil {
		return nil, fmt.Errorf("corrupt snapshot dimension: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, meta["created_at"]); err == nil {
		snap.CreatedAt = t
	}

	rows, err = db.QueryContext(ctx, `SELECT path FROM files ORDER BY position`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Files = append(snap.Files, p)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx, `SELECT id, source, ordinal, content, vector FROM chunks ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c    domain.DocumentChunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Ordinal, &c.Content, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob, snap.Dimension)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		snap.Chunks = append(snap.Chunks, c)
		snap.Vectors = append(snap.Vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snap.Chunks) == 0 {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Clear removes the snapshot file.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func encodeVector(v []float64) []byte {
	blob := make([]byte, len(v)*8)
	for i, x := range v {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(x))
	}
	return blob
}

func decodeVector(blob []byte, dim int) ([]float64, error) {
	if len(blob) != dim*8 {
		return nil, fmt.Errorf("%w: vector blob has %d bytes, want %d", domain.ErrDimensionMismatch, len(blob), dim*8)
	}
	v := make([]float64, dim)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return v, nil
}
