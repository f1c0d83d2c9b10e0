// Package index maintains the embedding index: one entry per known note,
// keyed by note id, persisted as a whole snapshot inside the settings
// blob. The builder owns all mutations; the ranker only reads.
package index

// Entry is one indexed note: the embedding vector and the note
// modification timestamp (unix nanoseconds) the vector was computed from.
type Entry struct {
	IndexedAt int64     `json:"indexedAt"`
	Embedding []float32 `json:"embedding"`
}

// Stale reports whether the entry no longer matches a note modified at
// modifiedAt. Any divergence counts; an entry computed from a newer
// version than the store reports is just as untrustworthy.
func (e Entry) Stale(modifiedAt int64) bool {
	return e.IndexedAt != modifiedAt
}

// Match is one ranked result from a similarity query.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}
