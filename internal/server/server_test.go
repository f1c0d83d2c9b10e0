package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/semlink/semlink/internal/history"
	"github.com/semlink/semlink/internal/index"
	"github.com/semlink/semlink/internal/notes"
	"github.com/semlink/semlink/internal/persistence"
	"github.com/semlink/semlink/internal/scheduler"
)

// fixedVault serves a static set of notes.
type fixedVault struct {
	docs map[string]string // id -> text
}

func (v *fixedVault) List(context.Context) ([]notes.Document, error) {
	var out []notes.Document
	for id := range v.docs {
		out = append(out, notes.Document{ID: id, ModifiedAt: 1})
	}
	return out, nil
}

func (v *fixedVault) Stat(_ context.Context, id string) (notes.Document, error) {
	if _, ok := v.docs[id]; !ok {
		return notes.Document{}, fmt.Errorf("stat %s: not found", id)
	}
	return notes.Document{ID: id, ModifiedAt: 1}, nil
}

func (v *fixedVault) ReadContent(_ context.Context, id string) (string, error) {
	text, ok := v.docs[id]
	if !ok {
		return "", fmt.Errorf("read %s: not found", id)
	}
	return text, nil
}

func (v *fixedVault) WriteContent(_ context.Context, id, text string) error {
	v.docs[id] = text
	return nil
}

// lengthEmbedder maps each text to a deterministic vector.
type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (lengthEmbedder) Dimensions() int { return 2 }
func (lengthEmbedder) Name() string    { return "length" }

type nullBlobs struct{}

func (nullBlobs) Load() (*persistence.Blob, error) { return nil, nil }
func (nullBlobs) Save(*persistence.Blob) error     { return nil }

func newTestServer(t *testing.T, cfg Config, docs map[string]string) (*Server, *scheduler.Scheduler) {
	t.Helper()

	store := index.NewStore(nullBlobs{})
	sched := scheduler.New(scheduler.Config{
		WindowCap:      100,
		WindowDuration: 10 * time.Millisecond,
		MaxAttempts:    2,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
	})
	t.Cleanup(sched.Close)

	builder := index.NewBuilder(store, &fixedVault{docs: docs}, lengthEmbedder{}, sched, 10)
	ranker := index.NewRanker(store)

	hist, err := history.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	return New(cfg, store, ranker, builder, sched, hist), sched
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, Config{AllowAll: true}, nil)

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestRelatedEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{TopK: 5}, map[string]string{
		"a.md": "short",
		"b.md": "short!",
		"c.md": "a much longer note about something else entirely",
	})

	req := httptest.NewRequest("GET", "/api/related/a.md", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp relatedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Note != "a.md" {
		t.Errorf("note = %q, want a.md", resp.Note)
	}
	if len(resp.Matches) == 0 {
		t.Fatal("expected at least one match")
	}
	// b.md has nearly the same length as a.md, so it should rank first.
	if resp.Matches[0].ID != "b.md" {
		t.Errorf("top match = %q, want b.md", resp.Matches[0].ID)
	}
	for _, m := range resp.Matches {
		if m.ID == "a.md" {
			t.Error("target included in its own matches")
		}
	}
}

func TestRelatedUnknownNote(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, map[string]string{"a.md": "x"})

	req := httptest.NewRequest("GET", "/api/related/ghost.md", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestRelatedBadTopParam(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, map[string]string{"a.md": "x"})

	req := httptest.NewRequest("GET", "/api/related/a.md?top=zero", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRebuildAndStats(t *testing.T) {
	srv, sched := newTestServer(t, Config{}, map[string]string{
		"a.md": "one",
		"b.md": "two",
	})

	req := httptest.NewRequest("POST", "/api/rebuild", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	var resp rebuildResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Scheduled != 1 {
		t.Errorf("scheduled = %d, want 1 batch", resp.Scheduled)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.OnIdle(ctx); err != nil {
		t.Fatalf("OnIdle: %v", err)
	}

	req = httptest.NewRequest("GET", "/api/stats", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	var stats statsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Indexed != 2 {
		t.Errorf("indexed = %d, want 2", stats.Indexed)
	}
	if stats.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", stats.Succeeded)
	}
}

func TestReindexEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, map[string]string{"a.md": "note"})

	req := httptest.NewRequest("POST", "/api/reindex/a.md", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, nil)

	if _, err := srv.hist.Record(context.Background(), history.Run{
		Trigger:   history.TriggerRebuild,
		Scheduled: 2,
		Succeeded: 2,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/history?limit=5", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var runs []history.Run
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(runs) != 1 || runs[0].Trigger != history.TriggerRebuild {
		t.Errorf("runs = %+v, want the recorded rebuild", runs)
	}
}

func TestWebSocketReceivesEvents(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the hub to register the client.
	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Hub().Publish(scheduler.Event{TaskID: "t1", Label: "embed a.md", State: "running", Attempt: 1})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev scheduler.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.TaskID != "t1" || ev.State != "running" {
		t.Errorf("event = %+v", ev)
	}
}
