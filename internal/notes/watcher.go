package notes

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Op classifies a change notification from the vault.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpRenamed
	OpDeleted
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpRenamed:
		return "renamed"
	case OpDeleted:
		return "deleted"
	}
	return "unknown"
}

// Event is a single vault change. OldID is set only for OpRenamed.
type Event struct {
	Op    Op
	ID    string
	OldID string
}

// renameWindow is how long a rename of the old path may precede the
// create of the new path before the pair is treated as a plain delete.
const renameWindow = 200 * time.Millisecond

// Watcher translates raw fsnotify events on the vault directory into
// note-level change events. A rename arrives from the OS as a Rename on
// the old path followed shortly by a Create on the new path; the watcher
// pairs them so the index can move the entry without re-embedding.
type Watcher struct {
	vault   *Vault
	fsw     *fsnotify.Watcher
	events  chan Event
	pending *pendingRename

	// The events channel is closed on shutdown while pending-rename
	// timers may still fire from their own goroutines; every send is
	// serialized against that close.
	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

type pendingRename struct {
	id    string
	timer *time.Timer
}

// NewWatcher creates a Watcher over the given vault. Call Run to start it.
func NewWatcher(vault *Vault) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		vault:  vault,
		fsw:    fsw,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	// Watch the root and every existing subdirectory; fsnotify is not
	// recursive on its own.
	err = filepath.WalkDir(vault.Root(), func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		if path != vault.Root() && shouldExcludeDir(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch vault tree: %w", err)
	}

	return w, nil
}

// Events returns the note-level change stream.
func (w *Watcher) Events() <-chan Event { return w.events }

// Run processes raw events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	// Cancellation must also release a send stalled on a stopped
	// consumer, not only the loop below.
	go func() {
		select {
		case <-ctx.Done():
			w.close()
		case <-w.done:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("vault watcher error")
		}
	}
}

// close releases blocked senders first, then closes the event stream,
// so a pending-rename timer firing after shutdown cannot send on a
// closed channel. Safe to call more than once.
func (w *Watcher) close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		w.closed = true
		close(w.events)
		w.mu.Unlock()
		w.fsw.Close()
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.vault.Root(), ev.Name)
	if err != nil {
		return
	}
	id := filepath.ToSlash(rel)

	// New directories must be added to the watch set.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !shouldExcludeDir(info.Name()) {
				if err := w.fsw.Add(ev.Name); err != nil {
					log.Warn().Err(err).Str("dir", ev.Name).Msg("watch new directory")
				}
			}
			return
		}
	}

	if !matchesAny(id, w.vault.include) || matchesAny(id, w.vault.exclude) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Rename):
		// Hold the old id; if a create follows within the window this
		// was a rename, otherwise it degrades to a delete.
		w.holdRename(id)

	case ev.Op.Has(fsnotify.Create):
		if old, ok := w.takeRename(); ok {
			w.emit(Event{Op: OpRenamed, ID: id, OldID: old})
			return
		}
		w.emit(Event{Op: OpCreated, ID: id})

	case ev.Op.Has(fsnotify.Write):
		w.emit(Event{Op: OpModified, ID: id})

	case ev.Op.Has(fsnotify.Remove):
		w.emit(Event{Op: OpDeleted, ID: id})
	}
}

func (w *Watcher) holdRename(id string) {
	if w.pending != nil {
		// The previous rename's new path never appeared, so it was a
		// delete — unless its timer already fired and said so.
		if w.pending.timer.Stop() {
			w.emit(Event{Op: OpDeleted, ID: w.pending.id})
		}
	}
	p := &pendingRename{id: id}
	p.timer = time.AfterFunc(renameWindow, func() {
		w.emit(Event{Op: OpDeleted, ID: id})
	})
	w.pending = p
}

func (w *Watcher) takeRename() (string, bool) {
	if w.pending == nil {
		return "", false
	}
	p := w.pending
	w.pending = nil
	if !p.timer.Stop() {
		// Timer already fired and emitted a delete.
		return "", false
	}
	return p.id, true
}

// emit delivers ev unless the watcher has shut down. Holding the lock
// across the send keeps it mutually exclusive with closing the channel;
// the done case unblocks a send the consumer will never drain.
func (w *Watcher) emit(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	case <-w.done:
	}
}
