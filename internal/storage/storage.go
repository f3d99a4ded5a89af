// Package storage defines the registry of ingested documents.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/ozlaw/internal/models"
)

// ErrNotFound is returned when a document is not in the registry.
var ErrNotFound = errors.New("document not found")

// Storage records which documents were ingested into the vector store, and when.
// The vector store itself is append-only; the registry is what lets re-runs skip unchanged files.
type Storage interface {
	// RecordDocument inserts or replaces the record for rec.ID.
	RecordDocument(ctx context.Context, rec *models.IngestRecord) error
	GetDocument(ctx context.Context, id string) (*models.IngestRecord, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.IngestRecord, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
