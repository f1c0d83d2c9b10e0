package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/semlink/semlink/internal/embeddings"
	"github.com/semlink/semlink/internal/notes"
	"github.com/semlink/semlink/internal/scheduler"
)

// DefaultBatchSize is the default number of notes per embedding call.
const DefaultBatchSize = 10

// Builder keeps the index consistent with the note collection. It diffs
// notes against the store by staleness marker, schedules embedding work
// on the rate-limited queue, and applies renames and deletes directly.
//
// Builder methods are meant to be driven from one owner goroutine; only
// the scheduler's worker runs concurrently with it. Entries touched by
// a rename or delete while their embed task is still in flight are
// redirected (or dropped) when the task commits, so the task never
// resurrects a note under its old id.
type Builder struct {
	store     *Store
	notes     notes.Store
	embedder  embeddings.Embedder
	sched     *scheduler.Scheduler
	batchSize int

	mu       sync.Mutex
	inflight map[string]*scheduler.Handle
	renamed  map[string]string // old id -> new id, for in-flight work
	deleted  map[string]bool   // tombstones for in-flight work
}

// NewBuilder creates a Builder. batchSize <= 0 selects the default.
func NewBuilder(store *Store, noteStore notes.Store, embedder embeddings.Embedder, sched *scheduler.Scheduler, batchSize int) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{
		store:     store,
		notes:     noteStore,
		embedder:  embedder,
		sched:     sched,
		batchSize: batchSize,
		inflight:  make(map[string]*scheduler.Handle),
		renamed:   make(map[string]string),
		deleted:   make(map[string]bool),
	}
}

// docRef captures a note at scheduling time. The staleness marker written
// on success is the ModifiedAt observed here, not at execution time.
type docRef struct {
	id         string
	modifiedAt int64
	text       string
}

// Reconcile scans the collection, batches every stale or missing note,
// and enqueues one embed task per batch. It returns the number of tasks
// scheduled; completion is observed through the scheduler's OnIdle.
func (b *Builder) Reconcile(ctx context.Context) (int, error) {
	docs, err := b.notes.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}

	var stale []docRef
	for _, d := range docs {
		if b.isInflight(d.ID) {
			continue
		}
		if e, ok := b.store.Get(d.ID); ok && !e.Stale(d.ModifiedAt) {
			continue
		}
		text, err := b.notes.ReadContent(ctx, d.ID)
		if err != nil {
			log.Warn().Str("note", d.ID).Err(err).Msg("skipping unreadable note")
			continue
		}
		stale = append(stale, docRef{id: d.ID, modifiedAt: d.ModifiedAt, text: text})
	}

	scheduled := 0
	for start := 0; start < len(stale); start += b.batchSize {
		end := start + b.batchSize
		if end > len(stale) {
			end = len(stale)
		}
		b.schedule(stale[start:end], false)
		scheduled++
	}

	if scheduled > 0 {
		log.Info().Int("notes", len(stale)).Int("tasks", scheduled).Msg("scheduled embedding work")
	}
	return scheduled, nil
}

// EnsureIndexed brings a single note up to date ahead of all queued
// work, waits for it, and kicks off a background reconcile so the rest
// of the corpus catches up without blocking the caller.
func (b *Builder) EnsureIndexed(ctx context.Context, id string) error {
	doc, err := b.notes.Stat(ctx, id)
	if err != nil {
		return fmt.Errorf("ensure indexed: %w", err)
	}

	var h *scheduler.Handle
	if existing := b.inflightHandle(id); existing != nil {
		h = existing
	} else if e, ok := b.store.Get(id); !ok || e.Stale(doc.ModifiedAt) {
		text, err := b.notes.ReadContent(ctx, id)
		if err != nil {
			return fmt.Errorf("ensure indexed: %w", err)
		}
		h = b.schedule([]docRef{{id: id, modifiedAt: doc.ModifiedAt, text: text}}, true)
	}

	go func() {
		if _, err := b.Reconcile(context.Background()); err != nil {
			log.Warn().Err(err).Msg("background reconcile failed")
		}
	}()

	if h == nil {
		return nil
	}
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnRenamed moves the index entry synchronously; content is unchanged so
// no embedding call is needed. In-flight work for the old id is
// redirected to the new one.
func (b *Builder) OnRenamed(oldID, newID string) {
	b.store.Rename(oldID, newID)

	b.mu.Lock()
	if b.hasInflightFor(oldID) {
		b.renamed[oldID] = newID
	}
	b.mu.Unlock()

	b.persist()
	log.Debug().Str("old", oldID).Str("new", newID).Msg("note renamed")
}

// OnDeleted drops the index entry synchronously. In-flight work for the
// id is discarded when it completes.
func (b *Builder) OnDeleted(id string) {
	b.store.Remove(id)

	b.mu.Lock()
	if b.hasInflightFor(id) {
		b.deleted[id] = true
	}
	b.mu.Unlock()

	b.persist()
	log.Debug().Str("note", id).Msg("note deleted from index")
}

// schedule enqueues one embed task for the batch and tracks its notes as
// in flight until the task settles.
func (b *Builder) schedule(batch []docRef, front bool) *scheduler.Handle {
	label := fmt.Sprintf("embed %d note(s)", len(batch))
	if len(batch) == 1 {
		label = "embed " + batch[0].id
	}

	run := b.embedTask(batch)
	var h *scheduler.Handle
	if front {
		h = b.sched.EnqueueFront(label, run)
	} else {
		h = b.sched.Enqueue(label, run)
	}

	b.mu.Lock()
	for _, d := range batch {
		b.inflight[d.id] = h
	}
	b.mu.Unlock()

	go b.settle(h, batch)
	return h
}

// embedTask builds the task body: one provider call for the whole batch,
// vectors mapped to notes strictly by position.
func (b *Builder) embedTask(batch []docRef) func() error {
	return func() error {
		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.text
		}

		vectors, err := b.embedder.Embed(context.Background(), texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			// Mis-assigning vectors by position would silently corrupt
			// the index; leave every entry untouched instead.
			return fmt.Errorf("%w: got %d vectors for %d texts", embeddings.ErrMalformedResponse, len(vectors), len(texts))
		}

		for i, d := range batch {
			b.commit(d.id, Entry{IndexedAt: d.modifiedAt, Embedding: vectors[i]})
		}
		b.persist()
		return nil
	}
}

// commit writes one entry, honoring renames and deletes that happened
// while the task was queued or running.
func (b *Builder) commit(id string, e Entry) {
	b.mu.Lock()
	resolved := b.resolveLocked(id)
	dropped := b.deleted[resolved]
	b.mu.Unlock()

	if dropped {
		log.Debug().Str("note", id).Msg("embedding discarded, note deleted while in flight")
		return
	}
	b.store.Put(resolved, e)
}

// settle clears in-flight bookkeeping once the task reaches a terminal
// state, whether it succeeded or failed.
func (b *Builder) settle(h *scheduler.Handle, batch []docRef) {
	<-h.Done()

	b.mu.Lock()
	for _, d := range batch {
		resolved := b.resolveLocked(d.id)
		delete(b.deleted, resolved)
		id := d.id
		for {
			next, ok := b.renamed[id]
			if !ok {
				break
			}
			delete(b.renamed, id)
			id = next
		}
		delete(b.inflight, d.id)
	}
	b.mu.Unlock()
}

// persist saves the index snapshot. Persistence failure downgrades to a
// warning: the in-memory index stays usable for the session.
func (b *Builder) persist() {
	if err := b.store.Save(); err != nil {
		log.Warn().Err(err).Msg("index persist failed, continuing in memory")
	}
}

func (b *Builder) isInflight(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.inflight[id]
	return ok
}

func (b *Builder) inflightHandle(id string) *scheduler.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight[id]
}

// resolveLocked follows rename redirects to the note's current id.
// Caller holds b.mu.
func (b *Builder) resolveLocked(id string) string {
	for {
		next, ok := b.renamed[id]
		if !ok {
			return id
		}
		id = next
	}
}

// hasInflightFor reports whether any in-flight note currently resolves
// to id. Caller holds b.mu.
func (b *Builder) hasInflightFor(id string) bool {
	for inflightID := range b.inflight {
		if b.resolveLocked(inflightID) == id {
			return true
		}
	}
	return false
}
