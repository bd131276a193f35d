// Package knowledge retrieves FAQ entries relevant to a chat message using
// embedding similarity.
package knowledge

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/caredesk/caredesk/internal/models"
	"github.com/caredesk/caredesk/internal/store"
)

// DefaultEmbedTimeout bounds a single embedding call during retrieval.
const DefaultEmbedTimeout = 8 * time.Second

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Retriever finds the best matching FAQ entry for a message.
type Retriever struct {
	st       store.Store
	embedder Embedder
}

// NewRetriever constructs a retriever. embedder may be nil, in which case
// retrieval always misses.
func NewRetriever(st store.Store, embedder Embedder) *Retriever {
	return &Retriever{st: st, embedder: embedder}
}

// BestMatch returns the FAQ entry whose embedding is most similar to the
// message, or nil when no entry applies. Retrieval is best effort: embedding
// or store failures degrade to a miss.
func (r *Retriever) BestMatch(ctx context.Context, message string) *models.KnowledgeEntry {
	if r.embedder == nil {
		return nil
	}
	entries, err := r.st.GetKnowledgeEntries()
	if err != nil {
		slog.Warn("Retriever.BestMatch: failed to load knowledge entries", "error", err)
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	ectx, cancel := context.WithTimeout(ctx, DefaultEmbedTimeout)
	defer cancel()
	query, err := r.embedder.Embed(ectx, message)
	if err != nil {
		slog.Warn("Retriever.BestMatch: embedding failed", "error", err)
		return nil
	}

	var best *models.KnowledgeEntry
	bestScore := 0.0
	for i := range entries {
		score := CosineSimilarity(query, entries[i].Embedding)
		if best == nil || score > bestScore {
			best = &entries[i]
			bestScore = score
		}
	}
	return best
}

// CosineSimilarity computes the cosine similarity of two vectors. Mismatched
// lengths and zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
