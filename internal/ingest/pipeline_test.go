package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"go.uber.org/mock/gomock"

	"docchat/internal/loader"
	"docchat/internal/splitter"
	"docchat/internal/storage"
	storagemocks "docchat/internal/storage/mocks"
	"docchat/internal/vectorstore"
	vsmocks "docchat/internal/vectorstore/mocks"
)

func init() {
	// Keep test output quiet
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const testVectorSize = 8

// stubLoader returns a fixed set of documents.
type stubLoader struct {
	docs []loader.Document
	err  error
}

func (s *stubLoader) Load(_ context.Context) ([]loader.Document, error) {
	return s.docs, s.err
}

// stubEmbedder returns zero vectors of a fixed size.
type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, testVectorSize)
	}
	return vectors, nil
}

func newTestRepos(t *testing.T) (*storage.DocumentRepo, *storage.ChunkRepo) {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return storage.NewDocumentRepo(db), storage.NewChunkRepo(db)
}

func newTestPipeline(t *testing.T, docs []loader.Document, embedder TextEmbedder, store vectorstore.VectorStore) (*Pipeline, *storage.DocumentRepo, *storage.ChunkRepo) {
	t.Helper()

	split, err := splitter.New(40, 10)
	if err != nil {
		t.Fatalf("failed to create splitter: %v", err)
	}
	docRepo, chunkRepo := newTestRepos(t)
	p := NewPipeline(&stubLoader{docs: docs}, split, embedder, docRepo, chunkRepo, store, "docs_collection", testVectorSize)
	return p, docRepo, chunkRepo
}

func TestPipeline_Run_EmptyTree(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := vsmocks.NewMockVectorStore(ctrl)
	mockStore.EXPECT().
		EnsureCollection(gomock.Any(), "docs_collection", testVectorSize).
		Return(nil)

	embedder := &stubEmbedder{}
	p, docRepo, chunkRepo := newTestPipeline(t, nil, embedder, mockStore)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.DocumentsLoaded != 0 || result.ChunksCreated != 0 || result.PointsUpserted != 0 {
		t.Errorf("Run() = %+v, want all-zero counters", result)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for empty input, want 0", embedder.calls)
	}

	ctx := context.Background()
	if n, _ := docRepo.Count(ctx); n != 0 {
		t.Errorf("document count = %d, want 0", n)
	}
	if n, _ := chunkRepo.Count(ctx); n != 0 {
		t.Errorf("chunk count = %d, want 0", n)
	}
}

func TestPipeline_Run_SingleDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := vsmocks.NewMockVectorStore(ctrl)

	docs := []loader.Document{{
		Text:     "A short document that fits in one chunk.",
		Metadata: map[string]string{loader.MetaSource: "a.txt"},
	}}

	var upserted []vectorstore.Point
	gomock.InOrder(
		mockStore.EXPECT().
			EnsureCollection(gomock.Any(), "docs_collection", testVectorSize).
			Return(nil),
		mockStore.EXPECT().
			Upsert(gomock.Any(), "docs_collection", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
				upserted = points
				return nil
			}),
	)

	p, docRepo, chunkRepo := newTestPipeline(t, docs, &stubEmbedder{}, mockStore)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.DocumentsLoaded != 1 {
		t.Errorf("DocumentsLoaded = %d, want 1", result.DocumentsLoaded)
	}
	if result.ChunksCreated != 1 || result.PointsUpserted != 1 {
		t.Errorf("chunks = %d, points = %d, want 1 and 1", result.ChunksCreated, result.PointsUpserted)
	}

	if len(upserted) != 1 {
		t.Fatalf("upserted %d points, want 1", len(upserted))
	}
	point := upserted[0]
	if len(point.Vec) != testVectorSize {
		t.Errorf("point vector size = %d, want %d", len(point.Vec), testVectorSize)
	}
	if point.Meta["text"] != docs[0].Text {
		t.Errorf("point text = %v, want the chunk text", point.Meta["text"])
	}
	if point.Meta[loader.MetaSource] != "a.txt" {
		t.Errorf("point source = %v, want a.txt", point.Meta[loader.MetaSource])
	}

	ctx := context.Background()
	chunk, err := chunkRepo.GetByID(ctx, point.ID)
	if err != nil {
		t.Fatalf("chunk %s not catalogued: %v", point.ID, err)
	}
	if chunk.Text != docs[0].Text {
		t.Errorf("catalogued chunk text = %q, want the document text", chunk.Text)
	}

	doc, err := docRepo.GetByID(ctx, chunk.DocumentID)
	if err != nil {
		t.Fatalf("document %s not catalogued: %v", chunk.DocumentID, err)
	}
	if doc.Source != "a.txt" {
		t.Errorf("catalogued document source = %q, want a.txt", doc.Source)
	}
	if doc.Page != -1 {
		t.Errorf("catalogued document page = %d, want -1 for single-part sources", doc.Page)
	}
}

func TestPipeline_Run_MultiDocumentCounts(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := vsmocks.NewMockVectorStore(ctrl)
	mockStore.EXPECT().
		EnsureCollection(gomock.Any(), "docs_collection", testVectorSize).
		Return(nil)

	var upserted []vectorstore.Point
	mockStore.EXPECT().
		Upsert(gomock.Any(), "docs_collection", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
			upserted = points
			return nil
		})

	docs := []loader.Document{
		{
			Text:     "First document with enough text to produce several overlapping chunks for this run.",
			Metadata: map[string]string{loader.MetaSource: "one.txt"},
		},
		{
			Text:     "Second document, also long enough that the splitter has to cut it into multiple parts.",
			Metadata: map[string]string{loader.MetaSource: "two.md", loader.MetaTitle: "Second"},
		},
	}

	p, docRepo, chunkRepo := newTestPipeline(t, docs, &stubEmbedder{}, mockStore)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.DocumentsLoaded != 2 {
		t.Errorf("DocumentsLoaded = %d, want 2", result.DocumentsLoaded)
	}
	if result.ChunksCreated < 4 {
		t.Errorf("ChunksCreated = %d, want several per document", result.ChunksCreated)
	}
	if result.PointsUpserted != result.ChunksCreated {
		t.Errorf("PointsUpserted = %d, want %d (one per chunk)", result.PointsUpserted, result.ChunksCreated)
	}
	if result.ChunkSizes.Max > 40 {
		t.Errorf("max chunk size = %v, want at most the configured limit", result.ChunkSizes.Max)
	}
	if result.Duration <= 0 {
		t.Error("Duration should be positive")
	}

	seen := make(map[string]struct{}, len(upserted))
	for _, point := range upserted {
		if _, dup := seen[point.ID]; dup {
			t.Fatalf("duplicate point ID %s", point.ID)
		}
		seen[point.ID] = struct{}{}
	}

	ctx := context.Background()
	if n, _ := docRepo.Count(ctx); n != 2 {
		t.Errorf("catalogued documents = %d, want 2", n)
	}
	if n, _ := chunkRepo.Count(ctx); n != result.ChunksCreated {
		t.Errorf("catalogued chunks = %d, want %d", n, result.ChunksCreated)
	}
}

func TestPipeline_Run_LoaderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := vsmocks.NewMockVectorStore(ctrl)

	split, err := splitter.New(40, 10)
	if err != nil {
		t.Fatalf("failed to create splitter: %v", err)
	}
	docRepo, chunkRepo := newTestRepos(t)
	p := NewPipeline(
		&stubLoader{err: errors.New("missing directory")},
		split, &stubEmbedder{}, docRepo, chunkRepo, mockStore, "docs_collection", testVectorSize,
	)

	if _, err := p.Run(context.Background()); err == nil {
		t.Error("Run() should fail when loading fails")
	}
}

func TestPipeline_Run_EmbedderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := vsmocks.NewMockVectorStore(ctrl)
	mockStore.EXPECT().
		EnsureCollection(gomock.Any(), "docs_collection", testVectorSize).
		Return(nil)

	docs := []loader.Document{{
		Text:     "some text",
		Metadata: map[string]string{loader.MetaSource: "a.txt"},
	}}

	p, _, chunkRepo := newTestPipeline(t, docs, &stubEmbedder{err: errors.New("rate limited")}, mockStore)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when embedding fails")
	}

	// Chunks are only catalogued after embeddings succeed
	if n, _ := chunkRepo.Count(context.Background()); n != 0 {
		t.Errorf("catalogued chunks = %d, want 0 after failed embedding", n)
	}
}

func TestPipeline_Run_DocumentInsertFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := vsmocks.NewMockVectorStore(ctrl)
	mockStore.EXPECT().
		EnsureCollection(gomock.Any(), "docs_collection", testVectorSize).
		Return(nil)

	mockDocRepo := storagemocks.NewMockDocumentStore(ctrl)
	mockDocRepo.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(errors.New("disk full"))

	mockChunkRepo := storagemocks.NewMockChunkStore(ctrl)

	split, err := splitter.New(40, 10)
	if err != nil {
		t.Fatalf("failed to create splitter: %v", err)
	}
	docs := []loader.Document{{
		Text:     "some text",
		Metadata: map[string]string{loader.MetaSource: "a.txt"},
	}}
	embedder := &stubEmbedder{}
	p := NewPipeline(&stubLoader{docs: docs}, split, embedder, mockDocRepo, mockChunkRepo, mockStore, "docs_collection", testVectorSize)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the document catalog write fails")
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times after catalog failure, want 0", embedder.calls)
	}
}

func TestPipeline_Run_ChunkInsertFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := vsmocks.NewMockVectorStore(ctrl)
	mockStore.EXPECT().
		EnsureCollection(gomock.Any(), "docs_collection", testVectorSize).
		Return(nil)

	mockDocRepo := storagemocks.NewMockDocumentStore(ctrl)
	mockDocRepo.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(nil)

	mockChunkRepo := storagemocks.NewMockChunkStore(ctrl)
	mockChunkRepo.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(errors.New("disk full"))

	split, err := splitter.New(40, 10)
	if err != nil {
		t.Fatalf("failed to create splitter: %v", err)
	}
	docs := []loader.Document{{
		Text:     "some text",
		Metadata: map[string]string{loader.MetaSource: "a.txt"},
	}}
	p := NewPipeline(&stubLoader{docs: docs}, split, &stubEmbedder{}, mockDocRepo, mockChunkRepo, mockStore, "docs_collection", testVectorSize)

	// Vectors are never upserted when the chunk catalog write fails
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the chunk catalog write fails")
	}
}

func TestPipeline_Run_EnsureCollectionFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := vsmocks.NewMockVectorStore(ctrl)
	mockStore.EXPECT().
		EnsureCollection(gomock.Any(), "docs_collection", testVectorSize).
		Return(errors.New("size mismatch"))

	docs := []loader.Document{{
		Text:     "some text",
		Metadata: map[string]string{loader.MetaSource: "a.txt"},
	}}

	p, docRepo, _ := newTestPipeline(t, docs, &stubEmbedder{}, mockStore)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the collection cannot be ensured")
	}
	if n, _ := docRepo.Count(context.Background()); n != 0 {
		t.Errorf("catalogued documents = %d, want 0 after collection failure", n)
	}
}
