package ingest

import (
	"math"
	"sort"
	"unicode/utf8"

	"docchat/internal/splitter"
)

// ChunkSizeStats contains statistics about chunk sizes, measured in runes.
type ChunkSizeStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// ComputeChunkSizeStats computes size statistics over a chunk set.
// An empty set yields zero stats.
func ComputeChunkSizeStats(chunks []splitter.Chunk) ChunkSizeStats {
	if len(chunks) == 0 {
		return ChunkSizeStats{}
	}

	sizes := make([]int, len(chunks))
	sum := 0
	for i, chunk := range chunks {
		sizes[i] = utf8.RuneCountInString(chunk.Text)
		sum += sizes[i]
	}
	sort.Ints(sizes)

	p95Index := int(math.Ceil(0.95*float64(len(sizes)))) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkSizeStats{
		Min:  sizes[0],
		Max:  sizes[len(sizes)-1],
		Mean: float64(sum) / float64(len(sizes)),
		P95:  sizes[p95Index],
	}
}
