package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/auth"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/extract"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// ---------------------------------------------------------------------------
// POST /api/documents
// ---------------------------------------------------------------------------

type submitRequest struct {
	SourceType string   `json:"source_type"` // "text" or "url"
	Text       string   `json:"text,omitempty"`
	URL        string   `json:"url,omitempty"`
	Title      string   `json:"title,omitempty"`
	Operations []string `json:"operations,omitempty"` // defaults to all
}

type submitResponse struct {
	Document model.Document `json:"document"`
	Jobs     []model.Job    `json:"jobs"`
}

// handleSubmit extracts inline so malformed input fails the request,
// then enqueues one job per operation and returns 202. Content lands in
// the blob store before the document row: the row is the visibility gate.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	operations := req.Operations
	if len(operations) == 0 {
		operations = []string{model.OpSummarize, model.OpTag, model.OpGroup}
	}
	for _, op := range operations {
		if !model.ValidOperation(op) {
			writeError(w, http.StatusBadRequest, "unknown operation "+strconv.Quote(op))
			return
		}
	}

	var (
		extraction *extract.Extraction
		err        error
	)
	switch req.SourceType {
	case model.SourceText:
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required for source_type text")
			return
		}
		extraction, err = s.deps.Extractor.FromText(req.Text, req.Title)
	case model.SourceURL:
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required for source_type url")
			return
		}
		extraction, err = s.deps.Extractor.FromURL(r.Context(), req.URL)
	default:
		writeError(w, http.StatusBadRequest, "source_type must be text or url")
		return
	}
	if err != nil {
		var exErr *model.ExtractionError
		if errors.As(err, &exErr) {
			writeError(w, http.StatusUnprocessableEntity, exErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "extraction failed")
		return
	}

	doc := model.NewDocument(uuid.NewString(), caller.UserID, req.SourceType, req.URL,
		extraction.Title, model.DocumentAddress(extraction.Fingerprint), extraction.Fingerprint, extraction.WordCount)

	if err := s.deps.Blobs.Put(doc.ContentAddress, []byte(extraction.Text)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store content")
		return
	}
	if err := s.deps.Repo.CreateDocument(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	// Make the raw document searchable before any artifact exists.
	if s.deps.Keyword != nil && s.deps.Vector != nil {
		s.deps.Keyword.Upsert(doc.ID, extraction.Text)
		s.deps.Vector.Upsert(doc.ID, extraction.Text)
	}

	jobs := make([]model.Job, 0, len(operations))
	for _, op := range operations {
		job, _, err := s.deps.Repo.EnqueueJob(r.Context(), model.NewJob(doc.ID, op, doc.Fingerprint, 1))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enqueue "+op)
			return
		}
		jobs = append(jobs, *job)
	}

	writeJSON(w, http.StatusAccepted, submitResponse{Document: doc, Jobs: jobs})
}

// ---------------------------------------------------------------------------
// GET /api/documents
// ---------------------------------------------------------------------------

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	docs, err := s.deps.Repo.ListDocumentsByOwner(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// ---------------------------------------------------------------------------
// GET /api/documents/{id}
// ---------------------------------------------------------------------------

type documentResponse struct {
	Document model.Document   `json:"document"`
	Jobs     []model.Job      `json:"jobs"`
	Versions []model.Artifact `json:"versions"`
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	doc, err := s.ownedDocument(r, caller)
	if err != nil {
		s.respondError(w, err)
		return
	}

	jobs, err := s.deps.Repo.ListJobsForDocument(r.Context(), doc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	versions, err := s.deps.Repo.ListArtifacts(r.Context(), doc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: *doc, Jobs: jobs, Versions: versions})
}

// ---------------------------------------------------------------------------
// GET /api/documents/{id}/result?kind=summarize
// ---------------------------------------------------------------------------

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		writeError(w, http.StatusBadRequest, "kind query parameter is required")
		return
	}
	res, err := s.deps.Query.Result(r.Context(), caller.UserID, r.PathValue("id"), kind)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// POST /api/documents/{id}/reprocess
// ---------------------------------------------------------------------------

type reprocessRequest struct {
	Operations []string `json:"operations,omitempty"`
}

// handleReprocess enqueues a fresh job version per operation. A version
// bump never rewrites history: old artifacts stay until the new job
// succeeds and moves the current pointer.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	doc, err := s.ownedDocument(r, caller)
	if err != nil {
		s.respondError(w, err)
		return
	}

	// Body is optional; an empty or absent body reprocesses everything.
	var req reprocessRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	operations := req.Operations
	if len(operations) == 0 {
		operations = []string{model.OpSummarize, model.OpTag, model.OpGroup}
	}

	jobs := make([]model.Job, 0, len(operations))
	for _, op := range operations {
		if !model.ValidOperation(op) {
			writeError(w, http.StatusBadRequest, "unknown operation "+strconv.Quote(op))
			return
		}
		version, err := s.deps.Repo.MaxJobVersion(r.Context(), doc.ID, op)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve version")
			return
		}
		job, _, err := s.deps.Repo.EnqueueJob(r.Context(), model.NewJob(doc.ID, op, doc.Fingerprint, version+1))
		if err != nil {
			// An active job for this operation blocks a new version.
			writeError(w, http.StatusConflict, "operation "+op+" already has an active job")
			return
		}
		jobs = append(jobs, *job)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"document_id": doc.ID, "jobs": jobs})
}

// ---------------------------------------------------------------------------
// GET /api/jobs/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	job, err := s.ownedJob(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ---------------------------------------------------------------------------
// POST /api/jobs/{id}/cancel
// ---------------------------------------------------------------------------

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	job, err := s.ownedJob(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.deps.Repo.CancelJob(r.Context(), job.ID); err != nil {
		if errors.Is(err, model.ErrStateConflict) {
			writeError(w, http.StatusConflict, "only QUEUED jobs can be cancelled")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": job.ID, "state": model.JobCancelled})
}

// ---------------------------------------------------------------------------
// POST /api/jobs/{id}/retry
// ---------------------------------------------------------------------------

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	job, err := s.ownedJob(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.deps.Repo.ReenqueueFailed(r.Context(), job.ID); err != nil {
		if errors.Is(err, model.ErrStateConflict) {
			writeError(w, http.StatusConflict, "only FAILED jobs can be retried")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to retry job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": job.ID, "state": model.JobQueued})
}

// ---------------------------------------------------------------------------
// GET /api/search?q=...&page=1
// ---------------------------------------------------------------------------

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, caller auth.Identity) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	result, err := s.deps.Query.Search(r.Context(), caller.UserID, q, page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// GET /api/health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tiers":  s.deps.Router.Snapshot(),
	})
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func (s *Server) ownedDocument(r *http.Request, caller auth.Identity) (*model.Document, error) {
	doc, err := s.deps.Repo.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != caller.UserID {
		return nil, model.ErrForbidden
	}
	return doc, nil
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
