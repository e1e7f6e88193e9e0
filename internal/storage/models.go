package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DocumentRecord is a loaded source document (a file, or a single PDF page)
// as catalogued during ingestion.
type DocumentRecord struct {
	ID        string // UUID
	Source    string // Path relative to the input directory
	Page      int    // 0-based PDF page index, -1 for single-part documents
	Title     string // Extracted title, empty when none
	CreatedAt time.Time
}

// ChunkRecord is a chunk of a document, indexed for vector search.
type ChunkRecord struct {
	ID         string // UUID (same as the Qdrant point ID)
	DocumentID string // Foreign key to documents.id
	ChunkIndex int    // Index within the document (starts at 0)
	Text       string // Chunk text content
}
