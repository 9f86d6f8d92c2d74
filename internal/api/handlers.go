package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/urbanknots/pkg/errors"
	uio "github.com/matzehuels/urbanknots/pkg/io"
	"github.com/matzehuels/urbanknots/pkg/pipeline"
	"github.com/matzehuels/urbanknots/pkg/session"
)

// ResolveRequest is the body of POST /v1/resolve.
type ResolveRequest struct {
	Bundle  pipeline.Bundle  `json:"bundle"`
	Options pipeline.Options `json:"options"`
}

// ResolveResponse describes a resolved and stored document.
type ResolveResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	ExpiresAt time.Time          `json:"expires_at"`
	Stats     Stats              `json:"stats"`
	Cache     pipeline.CacheInfo `json:"cache"`
	Functions uio.FunctionsFile  `json:"functions"`
	Buffers   uio.BuffersFile    `json:"buffers"`

	// Graphs holds knot graph artifacts keyed by artifact name.
	Graphs map[string][]byte `json:"graphs,omitempty"`
}

// Stats mirrors pipeline.Stats with millisecond timings.
type Stats struct {
	Layers    int   `json:"layers"`
	Vertices  int   `json:"vertices"`
	Knots     int   `json:"knots"`
	LoadMs    int64 `json:"load_ms"`
	ResolveMs int64 `json:"resolve_ms"`
	RenderMs  int64 `json:"render_ms"`
}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    errors.Code  `json:"code"`
	Class   errors.Class `json:"class"`
	Message string       `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request"))
		return
	}

	// JSON artifacts always come back in the response body.
	req.Options.Formats = withJSON(req.Options.Formats)
	result, err := s.runner.Execute(r.Context(), &req.Bundle, req.Options)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rec := result.Document.Snapshot(s.ttl)
	if err := s.store.Set(r.Context(), rec); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "store document"))
		return
	}

	resp := ResolveResponse{
		ID:        rec.ID,
		Name:      rec.Name,
		ExpiresAt: rec.ExpiresAt,
		Stats: Stats{
			Layers:    result.Stats.Layers,
			Vertices:  result.Stats.Vertices,
			Knots:     result.Stats.Knots,
			LoadMs:    result.Stats.LoadTime.Milliseconds(),
			ResolveMs: result.Stats.ResolveTime.Milliseconds(),
			RenderMs:  result.Stats.RenderTime.Milliseconds(),
		},
		Cache:     result.CacheInfo,
		Functions: rec.Functions,
		Buffers:   rec.Buffers,
	}
	for name, data := range result.Artifacts {
		if name == pipeline.ArtifactFunctions || name == pipeline.ArtifactBuffers {
			continue
		}
		if resp.Graphs == nil {
			resp.Graphs = make(map[string][]byte)
		}
		resp.Graphs[name] = data
	}
	w.Header().Set("Location", "/v1/documents/"+rec.ID)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := session.ValidateID(id); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "document %q", id))
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "load document"))
		return
	}
	if rec == nil {
		s.writeError(w, errors.New(errors.ErrCodeDocumentNotFound, "document %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := session.ValidateID(id); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "document %q", id))
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "delete document"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func withJSON(formats []string) []string {
	for _, f := range formats {
		if f == pipeline.FormatJSON {
			return formats
		}
	}
	return append([]string{pipeline.FormatJSON}, formats...)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:    code,
		Class:   errors.ClassOf(err),
		Message: errors.UserMessage(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
