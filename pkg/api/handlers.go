package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"scrape-gate/pkg/export"
	"scrape-gate/pkg/input"
	"scrape-gate/pkg/models"
	"scrape-gate/pkg/pipeline"
	"scrape-gate/pkg/session"
	"scrape-gate/pkg/utils"
)

const maxImportBytes = 10 << 20

// SubmitRequest is the body of POST /api/batches.
type SubmitRequest struct {
	URLs             []string        `json:"urls"`
	Text             string          `json:"text,omitempty"` // newline-separated alternative to urls
	Mode             string          `json:"mode,omitempty"`
	ExtractionPrompt string          `json:"extraction_prompt,omitempty"`
	Schema           json.RawMessage `json:"schema,omitempty"`
}

// ResultResponse is one slot with its presentation fields.
type ResultResponse struct {
	BatchID     string           `json:"batch_id"`
	Index       int              `json:"index"`
	Result      models.UrlResult `json:"result"`
	Label       string           `json:"label"`
	DisplayText string           `json:"display_text,omitempty"`
	Filename    string           `json:"filename,omitempty"`
	ContentType string           `json:"content_type,omitempty"`
}

// ImportResponse is the body returned by POST /api/import.
type ImportResponse struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	mode, ok := models.ParseMode(req.Mode)
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown mode %q", req.Mode))
		return
	}

	sub := session.Submission{
		Input:            strings.Join([]string{input.JoinURLs(req.URLs), req.Text}, "\n"),
		Mode:             mode,
		ExtractionPrompt: req.ExtractionPrompt,
	}
	if len(req.Schema) > 0 && string(req.Schema) != "null" {
		schema, err := pipeline.CompileOutputSchema(string(req.Schema))
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.proc != nil {
			sub.Processor = s.proc.WithSchema(schema)
		}
	}

	b, err := s.store.Submit(s.baseCtx, sub)
	if errors.Is(err, utils.ErrNoURLs) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.log.Errorf("Failed to start batch: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not start batch")
		return
	}
	s.respondWithJSON(w, http.StatusAccepted, b.Snapshot())
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches := s.manager.List()
	out := make([]session.Snapshot, 0, len(batches))
	for _, b := range batches {
		out = append(out, b.Snapshot())
	}
	s.respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleCurrentBatch(w http.ResponseWriter, r *http.Request) {
	b := s.store.Current()
	if b == nil {
		s.respondWithError(w, http.StatusNotFound, "No batch has been submitted")
		return
	}
	s.respondWithJSON(w, http.StatusOK, b.Snapshot())
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookupBatch(w, r)
	if !ok {
		return
	}
	s.respondWithJSON(w, http.StatusOK, b.Snapshot())
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookupBatch(w, r)
	if !ok {
		return
	}
	cancelled := b.Cancel()
	s.respondWithJSON(w, http.StatusOK, map[string]any{"id": b.ID, "cancelled": cancelled})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	b, index, result, ok := s.lookupResult(w, r)
	if !ok {
		return
	}
	resp := ResultResponse{
		BatchID: b.ID,
		Index:   index,
		Result:  result,
		Label:   result.Status.Label(),
	}
	if result.HasData() {
		resp.DisplayText = export.DisplayText(result)
		resp.Filename = export.Filename(result.URL, result.DataType)
		resp.ContentType = export.ContentType(result.DataType)
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	_, _, result, ok := s.lookupResult(w, r)
	if !ok {
		return
	}
	if !result.HasData() {
		s.respondWithError(w, http.StatusConflict, fmt.Sprintf("Result is %s, not downloadable", result.Status))
		return
	}
	w.Header().Set("Content-Type", export.ContentType(result.DataType))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, export.Filename(result.URL, result.DataType)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, result.Data)
}

// handleImport returns the uploaded file's text verbatim. With ?format=feed
// the body is parsed as RSS/Atom and the item links are returned instead.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	var text string
	if r.URL.Query().Get("format") == "feed" {
		urls, err := input.ReadFeedURLs(body)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		text = input.JoinURLs(urls)
	} else {
		var err error
		if text, err = input.ReadText(body); err != nil {
			s.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	s.respondWithJSON(w, http.StatusOK, ImportResponse{Text: text, Count: len(input.ParseURLList(text))})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helper Functions ---

func (s *Server) lookupBatch(w http.ResponseWriter, r *http.Request) (*session.Batch, bool) {
	b, err := s.manager.Get(chi.URLParam(r, "batchID"))
	if err != nil {
		s.respondWithError(w, http.StatusNotFound, "Batch not found")
		return nil, false
	}
	return b, true
}

func (s *Server) lookupResult(w http.ResponseWriter, r *http.Request) (*session.Batch, int, models.UrlResult, bool) {
	b, ok := s.lookupBatch(w, r)
	if !ok {
		return nil, 0, models.UrlResult{}, false
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Result index must be an integer")
		return nil, 0, models.UrlResult{}, false
	}
	result, ok := b.Result(index)
	if !ok {
		s.respondWithError(w, http.StatusNotFound, "Result index out of range")
		return nil, 0, models.UrlResult{}, false
	}
	return b, index, result, true
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
