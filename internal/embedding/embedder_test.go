package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

// fakeProvider returns canned vectors and records how it was called.
type fakeProvider struct {
	dim        int
	calls      int
	batchSizes []int
	failUntil  int   // fail the first N calls
	failWith   error // error returned while failing
}

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.calls <= f.failUntil {
		return nil, f.failWith
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, f.dim)
	}
	return vectors, nil
}

func fastRetry() RetryConfig {
	return RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

func TestEmbedder_EmbedTexts_Empty(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	e := NewEmbedder(provider, 10, 4, 0, fastRetry())

	vectors, err := e.EmbedTexts(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("EmbedTexts() returned %d vectors, want 0", len(vectors))
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times for empty input, want 0", provider.calls)
	}
}

func TestEmbedder_EmbedTexts_Batching(t *testing.T) {
	tests := []struct {
		name           string
		batchSize      int
		texts          int
		wantBatchSizes []int
	}{
		{name: "single partial batch", batchSize: 10, texts: 3, wantBatchSizes: []int{3}},
		{name: "exact batches", batchSize: 2, texts: 4, wantBatchSizes: []int{2, 2}},
		{name: "trailing partial batch", batchSize: 3, texts: 7, wantBatchSizes: []int{3, 3, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{dim: 4}
			e := NewEmbedder(provider, tt.batchSize, 4, 0, fastRetry())

			texts := make([]string, tt.texts)
			for i := range texts {
				texts[i] = fmt.Sprintf("text %d", i)
			}

			vectors, err := e.EmbedTexts(context.Background(), texts)
			if err != nil {
				t.Fatalf("EmbedTexts() error = %v", err)
			}
			if len(vectors) != tt.texts {
				t.Errorf("EmbedTexts() returned %d vectors, want %d", len(vectors), tt.texts)
			}
			if len(provider.batchSizes) != len(tt.wantBatchSizes) {
				t.Fatalf("provider received %d batches, want %d", len(provider.batchSizes), len(tt.wantBatchSizes))
			}
			for i, size := range tt.wantBatchSizes {
				if provider.batchSizes[i] != size {
					t.Errorf("batch %d size = %d, want %d", i, provider.batchSizes[i], size)
				}
			}
		})
	}
}

func TestEmbedder_EmbedTexts_RetriesTransient(t *testing.T) {
	provider := &fakeProvider{
		dim:       4,
		failUntil: 2,
		failWith:  errors.New("connection reset"),
	}
	e := NewEmbedder(provider, 10, 4, 0, fastRetry())

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v, want success after retries", err)
	}
	if len(vectors) != 2 {
		t.Errorf("EmbedTexts() returned %d vectors, want 2", len(vectors))
	}
	if provider.calls != 3 {
		t.Errorf("provider called %d times, want 3 (two failures plus success)", provider.calls)
	}
}

func TestEmbedder_EmbedTexts_PermanentAPIError(t *testing.T) {
	provider := &fakeProvider{
		dim:       4,
		failUntil: 100,
		failWith:  &openai.Error{StatusCode: 400},
	}
	e := NewEmbedder(provider, 10, 4, 0, fastRetry())

	if _, err := e.EmbedTexts(context.Background(), []string{"a"}); err == nil {
		t.Fatal("EmbedTexts() should fail on a permanent API error")
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1 (no retries on permanent errors)", provider.calls)
	}
}

func TestEmbedder_EmbedTexts_SizeMismatch(t *testing.T) {
	provider := &fakeProvider{dim: 3}
	e := NewEmbedder(provider, 10, 4, 0, fastRetry())

	if _, err := e.EmbedTexts(context.Background(), []string{"a"}); err == nil {
		t.Fatal("EmbedTexts() should fail when vectors have the wrong size")
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1 (size mismatch is not retried)", provider.calls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: &openai.Error{StatusCode: 429}, want: true},
		{name: "server error", err: &openai.Error{StatusCode: 503}, want: true},
		{name: "bad request", err: &openai.Error{StatusCode: 400}, want: false},
		{name: "unauthorized", err: &openai.Error{StatusCode: 401}, want: false},
		{name: "network failure", err: errors.New("dial tcp: timeout"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
