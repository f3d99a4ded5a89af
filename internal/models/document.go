// Package models defines core data structures for documents, chunks, conversations, and answers.
package models

import "time"

// Format is the document format tag used to pick an extractor.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatRTF  Format = "rtf"
	FormatText Format = "text"
)

// Metadata keys stored with every vector store entry.
const (
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaDocID      = "doc_id"
)

// Document is a source file handed to the extractor during ingestion. It is not persisted itself.
type Document struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Format Format `json:"format"`
}

// Chunk is a bounded substring of a document's text, the unit of embedding and retrieval.
type Chunk struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Index    int               `json:"chunk_index"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScoredChunk is a chunk returned by a similarity query, best first.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// IngestRecord is the registry entry written after a document's chunks were stored.
type IngestRecord struct {
	ID         string    `json:"id" db:"id"`
	Path       string    `json:"path" db:"path"`
	Format     Format    `json:"format" db:"format"`
	Size       int64     `json:"size" db:"size"`
	ModTime    int64     `json:"mtime" db:"mtime"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}
