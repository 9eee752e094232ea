package curriculum

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// CosineSimilarity returns dot(a,b)/(|a||b|). It is 0 for empty, mismatched
// or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim))
}

// Search ranks chunks by similarity to query and greedily keeps them in rank
// order until the next one would overflow tokenBudget. Equal scores keep their
// input order. Failures yield an empty result rather than an error.
func (e *Engine) Search(ctx context.Context, query string, chunks []DocumentChunk, tokenBudget int) []DocumentChunk {
	if e.embedder == nil || len(chunks) == 0 || tokenBudget <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	qv, err := e.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, retrieval skipped", "error", err)
		return nil
	}

	type scored struct {
		chunk DocumentChunk
		score float64
	}
	ranked := make([]scored, len(chunks))
	for i, c := range chunks {
		ranked[i] = scored{chunk: c, score: CosineSimilarity(qv, c.Embedding)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var out []DocumentChunk
	used := 0
	for _, r := range ranked {
		cost := EstimateTokens(r.chunk.Text)
		if used+cost > tokenBudget {
			break
		}
		out = append(out, r.chunk)
		used += cost
	}
	return out
}

// RetrieveForTopic searches the chunks of every document on a topic of the
// active curriculum.
func (e *Engine) RetrieveForTopic(ctx context.Context, topicID, query string, tokenBudget int) []DocumentChunk {
	e.mu.Lock()
	t, err := e.findLocked(topicID)
	var chunks []DocumentChunk
	if err == nil {
		for _, d := range t.Documents {
			chunks = append(chunks, cloneDocument(d).Chunks...)
		}
	}
	e.mu.Unlock()

	if err != nil {
		slog.Debug("retrieval skipped", "topic_id", topicID, "error", err)
		return nil
	}
	return e.Search(ctx, query, chunks, tokenBudget)
}
