package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/semlink/semlink/internal/history"
	"github.com/semlink/semlink/internal/index"
)

type relatedResponse struct {
	Note    string        `json:"note"`
	Matches []index.Match `json:"matches"`
}

type rebuildResponse struct {
	Scheduled int `json:"scheduled"`
}

type statsResponse struct {
	Indexed   int `json:"indexed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// handleRelated answers GET /api/related/{note}?top=N. The note is
// brought up to date before ranking so the answer reflects its current
// content.
func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if id == "" {
		writeError(w, http.StatusBadRequest, "note path is required")
		return
	}

	topK := s.cfg.TopK
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		topK = n
	}

	if err := s.builder.EnsureIndexed(r.Context(), id); err != nil {
		log.Warn().Str("note", id).Err(err).Msg("related query: indexing failed")
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	matches := s.ranker.Related(id, topK)
	if matches == nil {
		matches = []index.Match{}
	}
	writeJSON(w, http.StatusOK, relatedResponse{Note: id, Matches: matches})
}

// handleRebuild answers POST /api/rebuild: it schedules work for every
// stale note and returns immediately. Completion is observable on /ws
// and in the run history.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	beforeOK, beforeFail := s.sched.Stats()
	start := time.Now()

	scheduled, err := s.builder.Reconcile(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if scheduled > 0 {
		go s.recordRun(history.TriggerAPI, start, scheduled, beforeOK, beforeFail)
	}
	writeJSON(w, http.StatusAccepted, rebuildResponse{Scheduled: scheduled})
}

// handleReindex answers POST /api/reindex/{note}: it reindexes a single
// note ahead of queued work and waits for it.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if id == "" {
		writeError(w, http.StatusBadRequest, "note path is required")
		return
	}

	if err := s.builder.EnsureIndexed(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"note": id, "status": "indexed"})
}

// handleHistory answers GET /api/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeJSON(w, http.StatusOK, []history.Run{})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.hist.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleStats answers GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	succeeded, failed := s.sched.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Indexed:   s.store.Len(),
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// recordRun waits for the queue to drain and writes one history row for
// the API-triggered rebuild.
func (s *Server) recordRun(trigger history.Trigger, start time.Time, scheduled, beforeOK, beforeFail int) {
	if s.hist == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if err := s.sched.OnIdle(ctx); err != nil {
		log.Warn().Err(err).Msg("rebuild run not recorded, queue never drained")
		return
	}

	afterOK, afterFail := s.sched.Stats()
	_, err := s.hist.Record(ctx, history.Run{
		StartedAt: start,
		Duration:  time.Since(start),
		Trigger:   trigger,
		Scheduled: scheduled,
		Succeeded: afterOK - beforeOK,
		Failed:    afterFail - beforeFail,
	})
	if err != nil {
		log.Warn().Err(err).Msg("recording rebuild run failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("writing response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
