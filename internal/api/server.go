// Package api is the HTTP surface: authenticated ingest, job lifecycle
// control, artifact retrieval and search. Handlers never run model
// adapters; submission enqueues and returns immediately.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/auth"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/extract"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/index"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/query"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/router"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/store"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// BlobStore is the API's view of the content store.
type BlobStore interface {
	Put(address string, value []byte) error
	Get(address string) ([]byte, error)
}

// Deps wires the server's collaborators.
type Deps struct {
	Repo       store.Repository
	Blobs      BlobStore
	Extractor  *extract.Extractor
	Verifier   *auth.Verifier
	Query      *query.Service
	Router     *router.Router
	Keyword    index.Index
	Vector     index.Index
	CORSOrigin string
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

// New creates a new API server.
func New(deps Deps) *Server {
	if deps.CORSOrigin == "" {
		deps.CORSOrigin = "*"
	}
	srv := &Server{deps: deps, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.deps.CORSOrigin, limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/documents", s.authed(s.handleSubmit))
	s.mux.HandleFunc("GET /api/documents", s.authed(s.handleListDocuments))
	s.mux.HandleFunc("GET /api/documents/{id}", s.authed(s.handleGetDocument))
	s.mux.HandleFunc("GET /api/documents/{id}/result", s.authed(s.handleResult))
	s.mux.HandleFunc("POST /api/documents/{id}/reprocess", s.authed(s.handleReprocess))
	s.mux.HandleFunc("GET /api/jobs/{id}", s.authed(s.handleGetJob))
	s.mux.HandleFunc("POST /api/jobs/{id}/cancel", s.authed(s.handleCancelJob))
	s.mux.HandleFunc("POST /api/jobs/{id}/retry", s.authed(s.handleRetryJob))
	s.mux.HandleFunc("GET /api/search", s.authed(s.handleSearch))
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
}

// authedHandler receives the verified caller alongside the request.
type authedHandler func(w http.ResponseWriter, r *http.Request, caller auth.Identity)

// authed verifies the bearer token before dispatching.
func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.deps.Verifier.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next(w, r, caller)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers for the configured origin.
func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ownedJob loads a job and enforces that caller owns its document.
func (s *Server) ownedJob(ctx context.Context, caller auth.Identity, jobID string) (*model.Job, error) {
	job, err := s.deps.Repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	doc, err := s.deps.Repo.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != caller.UserID {
		return nil, model.ErrForbidden
	}
	return job, nil
}
