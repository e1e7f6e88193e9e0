package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"docchat/internal/contextutil"
	"docchat/internal/loader"
	"docchat/internal/splitter"
	"docchat/internal/storage"
	"docchat/internal/vectorstore"
)

// DocumentLoader produces the documents to ingest.
type DocumentLoader interface {
	Load(ctx context.Context) ([]loader.Document, error)
}

// TextEmbedder generates one embedding vector per input text.
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Result summarizes a single ingestion run.
type Result struct {
	DocumentsLoaded int
	ChunksCreated   int
	PointsUpserted  int
	ChunkSizes      ChunkSizeStats
	Duration        time.Duration
}

// Pipeline orchestrates one ingestion run: load documents, split them into
// overlapping chunks, embed the chunk texts, and persist the records into
// the SQLite catalog and the Qdrant collection.
//
// The run is sequential and not resumable: a loader failure on a single file
// is skipped with a warning inside the loader, but embedding or storage
// failures abort the run with no partial-consistency guarantee.
type Pipeline struct {
	loader      DocumentLoader
	splitter    *splitter.Splitter
	embedder    TextEmbedder
	docRepo     storage.DocumentStore
	chunkRepo   storage.ChunkStore
	vectorStore vectorstore.VectorStore
	collection  string
	vectorSize  int
}

// NewPipeline creates a new ingestion pipeline. All dependencies are passed
// in explicitly; nothing is initialized at package level.
func NewPipeline(
	docLoader DocumentLoader,
	split *splitter.Splitter,
	embedder TextEmbedder,
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	vectorStore vectorstore.VectorStore,
	collection string,
	vectorSize int,
) *Pipeline {
	return &Pipeline{
		loader:      docLoader,
		splitter:    split,
		embedder:    embedder,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		vectorStore: vectorStore,
		collection:  collection,
		vectorSize:  vectorSize,
	}
}

// Run executes a single ingestion pass and returns its summary.
// Chunk ids are freshly generated each run, so re-running against the same
// input appends new records rather than replacing old ones.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	docs, err := p.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	var (
		docRecords   []*storage.DocumentRecord
		chunkRecords []*storage.ChunkRecord
		chunks       []splitter.Chunk
	)

	for _, doc := range docs {
		docID := uuid.New().String()
		docRecords = append(docRecords, documentRecord(docID, doc))

		for _, chunk := range p.splitter.SplitDocument(doc) {
			chunkRecords = append(chunkRecords, &storage.ChunkRecord{
				ID:         chunk.ID,
				DocumentID: docID,
				ChunkIndex: chunk.Index,
				Text:       chunk.Text,
			})
			chunks = append(chunks, chunk)
		}
	}

	logger.InfoContext(ctx, "split documents", "documents", len(docs), "chunks", len(chunks))

	result := &Result{
		DocumentsLoaded: len(docs),
		ChunksCreated:   len(chunks),
		ChunkSizes:      ComputeChunkSizeStats(chunks),
	}

	if err := p.vectorStore.EnsureCollection(ctx, p.collection, p.vectorSize); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	for _, record := range docRecords {
		if err := p.docRepo.Insert(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to insert document: %w", err)
		}
	}

	if len(chunks) == 0 {
		result.Duration = time.Since(start)
		logger.InfoContext(ctx, "no chunks to ingest", "documents", len(docs))
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{
			ID:   chunk.ID,
			Vec:  embeddings[i],
			Meta: pointMeta(chunkRecords[i].DocumentID, chunk),
		}
	}

	for _, record := range chunkRecords {
		if err := p.chunkRepo.Insert(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	result.PointsUpserted = len(points)

	result.Duration = time.Since(start)
	logger.InfoContext(ctx, "ingestion completed",
		"documents", result.DocumentsLoaded,
		"chunks", result.ChunksCreated,
		"points", result.PointsUpserted,
		"duration", result.Duration,
	)

	return result, nil
}

// documentRecord builds the catalog record for a loaded document.
func documentRecord(docID string, doc loader.Document) *storage.DocumentRecord {
	page := -1
	if v, ok := doc.Metadata[loader.MetaPage]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			page = n
		}
	}

	return &storage.DocumentRecord{
		ID:     docID,
		Source: doc.Metadata[loader.MetaSource],
		Page:   page,
		Title:  doc.Metadata[loader.MetaTitle],
	}
}

// pointMeta builds the vector point payload: the chunk text, its position,
// its parent document id, and the metadata inherited from the source.
func pointMeta(docID string, chunk splitter.Chunk) map[string]any {
	meta := map[string]any{
		"text":        chunk.Text,
		"document_id": docID,
		"chunk_index": chunk.Index,
	}
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	return meta
}
