package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"docchat/internal/loader"
)

// Chunk is a bounded-length piece of a source Document, used as the unit of
// embedding. Consecutive chunks from the same document share a fixed-size
// overlapping region to preserve context across boundaries.
type Chunk struct {
	ID       string            // Freshly generated uuid, unique per run
	Index    int               // Chunk index within the document (starts at 0)
	Text     string            // Chunk text content
	Metadata map[string]string // Inherited from the parent document
}

// separators tried in order when looking for a break point inside a window:
// paragraph, line, sentence, word.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter splits documents into overlapping chunks bounded by a maximum
// size. Sizes are measured in runes, not bytes.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New creates a Splitter. overlap must be smaller than chunkSize.
func New(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0")
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size)")
	}
	return &Splitter{
		chunkSize: chunkSize,
		overlap:   overlap,
	}, nil
}

// SplitDocuments splits each document into an ordered sequence of chunks.
func (s *Splitter) SplitDocuments(docs []loader.Document) []Chunk {
	var chunks []Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.SplitDocument(doc)...)
	}
	return chunks
}

// SplitDocument splits a single document into an ordered sequence of chunks.
// Each chunk gets a copy of the document's metadata and a fresh uuid.
// An empty document yields no chunks.
func (s *Splitter) SplitDocument(doc loader.Document) []Chunk {
	var chunks []Chunk
	for i, part := range s.splitText(doc.Text) {
		meta := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		chunks = append(chunks, Chunk{
			ID:       uuid.New().String(),
			Index:    i,
			Text:     part,
			Metadata: meta,
		})
	}
	return chunks
}

// splitText splits text into overlapping parts of at most chunkSize runes.
// A text at or under the size limit is returned as a single part equal to
// the full text. Each subsequent part starts exactly overlap runes before
// the previous part's end.
func (s *Splitter) splitText(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var parts []string
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			parts = append(parts, string(runes[start:]))
			break
		}

		end = s.breakPoint(runes, start, end)
		parts = append(parts, string(runes[start:end]))
		start = end - s.overlap
	}

	return parts
}

// breakPoint picks the cut position for the window [start, limit), preferring
// natural boundaries. A boundary is only usable if cutting there still makes
// forward progress once the next chunk steps back by the overlap; otherwise
// the window is cut hard at limit.
func (s *Splitter) breakPoint(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := start + utf8.RuneCountInString(window[:idx+len(sep)])
		if cut > start+s.overlap {
			return cut
		}
	}
	return limit
}
