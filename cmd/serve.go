package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/semlink/semlink/internal/history"
	"github.com/semlink/semlink/internal/notes"
	"github.com/semlink/semlink/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the vault and serve the HTTP API",
	Long: `Runs the semlink daemon: a filesystem watcher that keeps the index in
sync as notes change, plus a local HTTP API for similarity queries,
rebuild triggers, run history, and a websocket feed of indexing events.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.close()

	hist, err := openHistory(comps.cfg)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer hist.Close()

	port := comps.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	srv := server.New(server.Config{
		Port:     port,
		TopK:     comps.cfg.TopK,
		AllowAll: comps.cfg.Server.AllowAll,
	}, comps.store, comps.ranker, comps.builder, comps.sched, hist)
	comps.fan.add(srv.Hub().Publish)

	watcher, err := notes.NewWatcher(comps.vault)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	// Catch up with changes made while the daemon was down.
	start := time.Now()
	beforeOK, beforeFail := comps.sched.Stats()
	if scheduled, err := comps.builder.Reconcile(ctx); err != nil {
		log.Warn().Err(err).Msg("startup reconcile failed")
	} else if scheduled > 0 {
		go recordRun(ctx, hist, comps.sched, history.TriggerWatch, start, scheduled, beforeOK, beforeFail)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := watcher.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return consumeVaultEvents(ctx, comps, hist, watcher.Events())
	})

	g.Go(func() error {
		err := srv.Start()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// consumeVaultEvents applies note-level change events to the index.
// Renames and deletes are applied synchronously; creates and edits go
// through the scheduler like any other stale note.
func consumeVaultEvents(ctx context.Context, comps *components, hist *history.DB, events <-chan notes.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			log.Debug().Stringer("op", ev.Op).Str("note", ev.ID).Msg("vault change")

			switch ev.Op {
			case notes.OpRenamed:
				comps.builder.OnRenamed(ev.OldID, ev.ID)
			case notes.OpDeleted:
				comps.builder.OnDeleted(ev.ID)
			case notes.OpCreated, notes.OpModified:
				start := time.Now()
				beforeOK, beforeFail := comps.sched.Stats()
				scheduled, err := comps.builder.Reconcile(ctx)
				if err != nil {
					log.Warn().Err(err).Msg("reconcile after vault change failed")
					continue
				}
				if scheduled > 0 {
					go recordRun(ctx, hist, comps.sched, history.TriggerWatch, start, scheduled, beforeOK, beforeFail)
				}
			}
		}
	}
}
