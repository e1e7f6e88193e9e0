package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// DefaultBatchSize balances requests-per-minute vs tokens-per-minute limits
// on the embeddings deployment.
const DefaultBatchSize = 100

// Provider makes a single embeddings request for a batch of texts.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// RetryConfig bounds the exponential backoff applied to failed batches.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns the retry policy used when config leaves the
// intervals unset.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Embedder generates embeddings for chunk texts. It batches requests for
// efficiency, applies a per-request timeout, retries transient provider
// errors with exponential backoff, and validates every returned vector
// against the expected size.
type Embedder struct {
	provider     Provider
	batchSize    int
	expectedSize int
	timeout      time.Duration
	retry        RetryConfig
}

// NewEmbedder creates an Embedder. If batchSize is 0, DefaultBatchSize is
// used; zero retry intervals fall back to DefaultRetryConfig. expectedSize
// is the vector size every embedding must have (it must match the target
// collection's vector size).
func NewEmbedder(provider Provider, batchSize, expectedSize int, timeout time.Duration, retry RetryConfig) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	defaults := DefaultRetryConfig()
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = defaults.InitialInterval
	}
	if retry.MaxInterval <= 0 {
		retry.MaxInterval = defaults.MaxInterval
	}
	if retry.MaxElapsedTime <= 0 {
		retry.MaxElapsedTime = defaults.MaxElapsedTime
	}
	return &Embedder{
		provider:     provider,
		batchSize:    batchSize,
		expectedSize: expectedSize,
		timeout:      timeout,
		retry:        retry,
	}
}

// EmbedTexts generates one embedding vector per input text, in order.
// A batch that still fails after the retry budget aborts the whole call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		vectors, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// embedBatchWithRetry embeds a single batch, retrying transient errors with
// exponential backoff. Non-transient errors fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		callCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		result, err := e.provider.EmbedBatch(callCtx, texts)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		for i, vec := range result {
			if len(vec) != e.expectedSize {
				return backoff.Permanent(fmt.Errorf("embedding %d has size %d, expected %d", i, len(vec), e.expectedSize))
			}
		}

		vectors = result
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retry.InitialInterval
	b.MaxInterval = e.retry.MaxInterval
	b.MaxElapsedTime = e.retry.MaxElapsedTime

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// isTransient reports whether an error is worth retrying: rate limits,
// server-side errors, and network failures. Other API errors (bad request,
// auth) are permanent.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Not an API error: treat as a network-level failure
	return true
}
