package index

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/semlink/semlink/internal/vectormath"
)

// DefaultTopK is the result count when the caller does not specify one.
const DefaultTopK = 5

// Ranker answers similarity queries with an exact linear scan over the
// store. At the corpus sizes this tool targets (thousands of notes) that
// is fast enough, and it never returns approximate results.
type Ranker struct {
	store *Store
}

// NewRanker creates a Ranker reading from store.
func NewRanker(store *Store) *Ranker {
	return &Ranker{store: store}
}

// Related returns the topK notes most similar to id, best first. Ties
// keep the store's scan order. The result is empty when id itself is not
// indexed; callers are expected to index it first.
func (r *Ranker) Related(id string, topK int) []Match {
	if topK <= 0 {
		topK = DefaultTopK
	}

	target, ok := r.store.Get(id)
	if !ok {
		log.Debug().Str("note", id).Msg("related query for unindexed note")
		return nil
	}

	items := r.store.All()
	matches := make([]Match, 0, len(items))
	for _, item := range items {
		if item.ID == id {
			continue
		}
		score, err := vectormath.Cosine(target.Embedding, item.Entry.Embedding)
		if err != nil {
			// Dimension mismatches happen when the embedding model
			// changed between indexing runs; skip rather than fail
			// the whole query.
			log.Warn().Str("note", item.ID).Err(err).Msg("skipping incomparable entry")
			continue
		}
		matches = append(matches, Match{ID: item.ID, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
