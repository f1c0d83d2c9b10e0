// Package notes provides access to the note collection: listing, reading
// and writing note content, and watching for changes. The embedding index
// never owns note content; it only references notes by id.
package notes

import "context"

// Document identifies one note in the vault. ID is the vault-relative,
// slash-separated path; ModifiedAt is the content modification time in
// unix nanoseconds and doubles as the index staleness marker.
type Document struct {
	ID         string
	ModifiedAt int64
}

// Store is the document-store collaborator consumed by the index builder.
type Store interface {
	// List returns every note currently in the collection.
	List(ctx context.Context) ([]Document, error)

	// Stat returns the current metadata for a single note.
	Stat(ctx context.Context, id string) (Document, error)

	// ReadContent returns the note's full text.
	ReadContent(ctx context.Context, id string) (string, error)

	// WriteContent replaces the note's full text.
	WriteContent(ctx context.Context, id, text string) error
}
