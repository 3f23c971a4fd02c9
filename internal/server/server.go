package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/jobhunt-pipeline/internal/docgen"
	"github.com/jonathan/jobhunt-pipeline/internal/matching"
	"github.com/jonathan/jobhunt-pipeline/internal/scrape"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

// Store is the persistence surface the API needs. *db.DB satisfies it.
type Store interface {
	ListPostings(ctx context.Context, status types.PostingStatus, limit int) ([]*types.JobPosting, error)
	GetPosting(ctx context.Context, id string) (*types.JobPosting, error)
	SetPostingStatus(ctx context.Context, id string, status types.PostingStatus) error
	GetProfile(ctx context.Context, id string) (*types.CandidateProfile, error)
	SaveProfile(ctx context.Context, p *types.CandidateProfile) error
	SaveMatchResult(ctx context.Context, m *types.MatchResult) error
	ListMatchesForProfile(ctx context.Context, profileID string, limit int) ([]*types.MatchResult, error)
	RunStats(ctx context.Context) (map[workflow.State]int, error)
}

// CycleRunner triggers a scrape cycle on demand, over every enabled source
// or a named subset. The scheduler satisfies it.
type CycleRunner interface {
	RunSources(ctx context.Context, ids []string) *scrape.Summary
}

// Workflows is the application workflow surface. *workflow.Engine satisfies
// it.
type Workflows interface {
	Start(ctx context.Context, postingID, profileID string, docs workflow.Documents) (*workflow.WorkflowRun, error)
	Get(ctx context.Context, runID string) (*workflow.WorkflowRun, error)
	Cancel(ctx context.Context, runID string) error
	ResumeCaptcha(ctx context.Context, runID string) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	store      Store
	scraper    CycleRunner
	matcher    *matching.Engine
	workflows  Workflows
	renderer   docgen.Renderer
	validate   *validator.Validate
}

// Config holds server configuration
type Config struct {
	Port int
}

// Deps are the collaborators the server drives. Renderer may be nil when
// document generation is disabled.
type Deps struct {
	Store     Store
	Scraper   CycleRunner
	Matcher   *matching.Engine
	Workflows Workflows
	Renderer  docgen.Renderer
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		store:     deps.Store,
		scraper:   deps.Scraper,
		matcher:   deps.Matcher,
		workflows: deps.Workflows,
		renderer:  deps.Renderer,
		validate:  validator.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /scrape", s.handleScrape)
	mux.HandleFunc("GET /postings", s.handleListPostings)
	mux.HandleFunc("PUT /postings/{id}/status", s.handleSetPostingStatus)

	mux.HandleFunc("POST /profiles", s.handleSaveProfile)
	mux.HandleFunc("POST /matches/compute", s.handleComputeMatches)
	mux.HandleFunc("GET /profiles/{id}/matches", s.handleListMatches)

	mux.HandleFunc("POST /applications", s.handleStartApplication)
	mux.HandleFunc("GET /applications/stats", s.handleApplicationStats)
	mux.HandleFunc("GET /applications/{id}", s.handleGetApplication)
	mux.HandleFunc("POST /applications/{id}/resume-captcha", s.handleResumeCaptcha)
	mux.HandleFunc("POST /applications/{id}/cancel", s.handleCancelApplication)

	mux.HandleFunc("POST /documents", s.handleGenerateDocument)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // scrape cycles run inside requests
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the configured routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[server] listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[server] error: %v", err)
		}
	}()

	<-stop
	log.Println("[server] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("[server] stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[server] %s %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[server] failed to encode response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// decodeAndValidate decodes the JSON body into req and runs struct
// validation.
func (s *Server) decodeAndValidate(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ErrValidation{Field: verrs[0].Field(), Message: "failed " + verrs[0].Tag() + " validation"}
		}
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}
