package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ozlaw/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		format TEXT NOT NULL,
		size INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
	CREATE INDEX IF NOT EXISTS idx_documents_ingested_at ON documents(ingested_at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordDocument upserts rec. IngestedAt is set to now when zero.
func (s *SQLiteStorage) RecordDocument(ctx context.Context, rec *models.IngestRecord) error {
	if rec.IngestedAt.IsZero() {
		rec.IngestedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, path, format, size, mtime, chunk_count, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   path = excluded.path,
		   format = excluded.format,
		   size = excluded.size,
		   mtime = excluded.mtime,
		   chunk_count = excluded.chunk_count,
		   ingested_at = excluded.ingested_at`,
		rec.ID, rec.Path, string(rec.Format), rec.Size, rec.ModTime, rec.ChunkCount, rec.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// GetDocument returns a record by ID, or ErrNotFound.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.IngestRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, format, size, mtime, chunk_count, ingested_at
		 FROM documents WHERE id = ?`, id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteDocument removes the record. Entries already in the vector store are untouched.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListDocuments returns records ordered by path.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.IngestRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, format, size, mtime, chunk_count, ingested_at
		 FROM documents ORDER BY path LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.IngestRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountDocuments returns the number of recorded documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the number of chunks across all recorded documents.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunk_count), 0) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.IngestRecord, error) {
	var rec models.IngestRecord
	var format string
	if err := row.Scan(&rec.ID, &rec.Path, &format, &rec.Size, &rec.ModTime, &rec.ChunkCount, &rec.IngestedAt); err != nil {
		return nil, err
	}
	rec.Format = models.Format(format)
	return &rec, nil
}
