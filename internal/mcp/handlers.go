package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleRelatedNotes indexes the note if needed and returns its nearest
// neighbours by cosine similarity.
func (s *Server) handleRelatedNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := request.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: note"), nil
	}

	top := request.GetInt("top", s.topK)
	if top <= 0 {
		top = s.topK
	}

	if err := s.builder.EnsureIndexed(ctx, note); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("indexing %q failed: %v", note, err)), nil
	}

	matches := s.ranker.Related(note, top)
	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No related notes found for %q. The vault may hold only this note.", note)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Notes related to %s:\n", note))
	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("%d. %s (similarity %.1f%%)\n", i+1, m.ID, m.Score*100))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleReindexNote forces one note through the queue ahead of other work.
func (s *Server) handleReindexNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := request.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: note"), nil
	}

	if err := s.builder.EnsureIndexed(ctx, note); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reindexing %q failed: %v", note, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reindexed %s.", note)), nil
}

// handleRebuildIndex schedules embedding work for every stale note.
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scheduled, err := s.builder.Reconcile(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rebuild failed: %v", err)), nil
	}
	if scheduled == 0 {
		return mcp.NewToolResultText("Index is already up to date."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Scheduled %d embedding task(s); they run in the background.", scheduled)), nil
}
