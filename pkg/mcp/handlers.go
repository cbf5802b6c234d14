package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"scrape-gate/pkg/export"
	"scrape-gate/pkg/models"
	"scrape-gate/pkg/pipeline"
	"scrape-gate/pkg/session"
	"scrape-gate/pkg/utils"
)

const defaultListLimit = 20

// handleProcessURLs handles the process_urls tool
func (s *Server) handleProcessURLs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls := request.GetString("urls", "")
	mode, ok := models.ParseMode(request.GetString("mode", ""))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode '%s' (supported: text, json)", request.GetString("mode", ""))), nil
	}

	sub := session.Submission{
		Input:            urls,
		Mode:             mode,
		ExtractionPrompt: request.GetString("extraction_prompt", ""),
	}
	if raw := strings.TrimSpace(request.GetString("schema", "")); raw != "" {
		schema, err := pipeline.CompileOutputSchema(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if s.cfg.Processor != nil {
			sub.Processor = s.cfg.Processor.WithSchema(schema)
		}
	}

	b, err := s.cfg.Store.Submit(s.cfg.BaseCtx, sub)
	if errors.Is(err, utils.ErrNoURLs) {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"status":  "no_urls",
			"message": "No URLs to process",
		})), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start batch: %v", err)), nil
	}

	if request.GetBool("wait", false) {
		if err := b.Wait(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stopped waiting for batch %s: %v", b.ID, err)), nil
		}
		return mcp.NewToolResultText(formatJSON(b.Snapshot())), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"status":   "started",
		"batch_id": b.ID,
		"mode":     b.Mode,
		"total":    b.Len(),
	})), nil
}

// handleGetBatch handles the get_batch tool
func (s *Server) handleGetBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("batch_id", "")
	if id == "" {
		b := s.cfg.Store.Current()
		if b == nil {
			return mcp.NewToolResultError("no batch has been submitted yet"), nil
		}
		return mcp.NewToolResultText(formatJSON(b.Snapshot())), nil
	}

	b, err := s.cfg.Manager.Get(id)
	if err == nil {
		return mcp.NewToolResultText(formatJSON(b.Snapshot())), nil
	}
	if s.cfg.Archive != nil {
		if rec, archErr := s.cfg.Archive.GetBatch(id); archErr == nil {
			return mcp.NewToolResultText(formatJSON(rec)), nil
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("batch '%s' not found", id)), nil
}

// handleGetResult handles the get_result tool
func (s *Server) handleGetResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("batch_id", "")
	if id == "" {
		return mcp.NewToolResultError("batch_id parameter is required"), nil
	}
	index := request.GetInt("index", -1)

	b, err := s.cfg.Manager.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch '%s' not found", id)), nil
	}
	r, ok := b.Result(index)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("index %d out of range (batch has %d results)", index, b.Len())), nil
	}

	result := map[string]interface{}{
		"batch_id": b.ID,
		"index":    index,
		"label":    r.Status.Label(),
		"result":   r,
	}
	if r.HasData() {
		result["display_text"] = export.DisplayText(r)
		result["filename"] = export.Filename(r.URL, r.DataType)
		result["content_type"] = export.ContentType(r.DataType)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelBatch handles the cancel_batch tool
func (s *Server) handleCancelBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("batch_id", "")
	if id == "" {
		return mcp.NewToolResultError("batch_id parameter is required"), nil
	}
	cancelled, err := s.cfg.Manager.Cancel(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch '%s' not found", id)), nil
	}

	result := map[string]interface{}{
		"batch_id":  id,
		"cancelled": cancelled,
	}
	if !cancelled {
		result["message"] = "Batch had already finished"
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// batchSummary is one row of list_batches.
type batchSummary struct {
	ID          string                          `json:"id"`
	Mode        models.ProcessingMode           `json:"mode"`
	CreatedAt   string                          `json:"created_at"`
	CompletedAt string                          `json:"completed_at,omitempty"`
	Loading     bool                            `json:"loading"`
	Cancelled   bool                            `json:"cancelled,omitempty"`
	Total       int                             `json:"total"`
	Counts      map[models.ProcessingStatus]int `json:"counts"`
	Source      string                          `json:"source"` // "session" or "history"
}

// handleListBatches handles the list_batches tool
func (s *Server) handleListBatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}

	seen := make(map[string]bool)
	rows := make([]batchSummary, 0, limit)
	for _, b := range s.cfg.Manager.List() {
		if len(rows) >= limit {
			break
		}
		snap := b.Snapshot()
		row := batchSummary{
			ID:        snap.ID,
			Mode:      snap.Mode,
			CreatedAt: snap.CreatedAt.Format(time.RFC3339),
			Loading:   snap.Loading,
			Cancelled: snap.Cancelled,
			Total:     len(snap.Results),
			Counts:    snap.Counts,
			Source:    "session",
		}
		if snap.CompletedAt != nil {
			row.CompletedAt = snap.CompletedAt.Format(time.RFC3339)
		}
		rows = append(rows, row)
		seen[snap.ID] = true
	}

	if request.GetBool("include_history", false) && s.cfg.Archive != nil && len(rows) < limit {
		records, err := s.cfg.Archive.ListBatches(limit)
		if err != nil {
			s.log.Warnf("Failed to list archived batches: %v", err)
		}
		for _, rec := range records {
			if len(rows) >= limit {
				break
			}
			if seen[rec.ID] {
				continue
			}
			rows = append(rows, batchSummary{
				ID:          rec.ID,
				Mode:        rec.Mode,
				CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
				CompletedAt: rec.CompletedAt.Format(time.RFC3339),
				Cancelled:   rec.Cancelled,
				Total:       len(rec.Results),
				Counts:      rec.StatusCounts(),
				Source:      "history",
			})
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"batches": rows,
		"total":   len(rows),
	})), nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
