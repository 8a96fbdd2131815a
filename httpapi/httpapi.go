// Package httpapi gives the Pipeline Manager and Document Store a thin
// chi-routed HTTP surface, per §14: job submission
// and lookup, library/version listing, search, and version deletion. It
// deliberately carries no auth or admin UI chrome — those remain external
// collaborator concerns per §1.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/docsvault/docerr"
	"github.com/hazyhaar/docsvault/jobmanager"
	"github.com/hazyhaar/docsvault/retriever"
	"github.com/hazyhaar/docsvault/scrape"
	"github.com/hazyhaar/docsvault/store"
	"github.com/hazyhaar/docsvault/urlutil"
)

// Server wires a Manager and Store to HTTP handlers.
type Server struct {
	Manager *jobmanager.Manager
	Store   *store.Store
	Logger  *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Router builds the chi router implementing §6's job submission and
// library surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/api/jobs/scrape", s.handleEnqueueScrape)
	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{id}", s.handleGetJob)
	r.Delete("/api/jobs/{id}", s.handleCancelJob)
	r.Get("/api/libraries", s.handleListLibraries)
	r.Get("/api/libraries/{name}", s.handleGetLibrary)
	r.Get("/api/libraries/{name}/search", s.handleSearch)
	r.Delete("/api/libraries/{name}/versions/{version}", s.handleDeleteVersion)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// scrapeRequest is the POST /api/jobs/scrape body, matching the canonical
// ScrapeOptions shape in §6. Boolean and depth/page-count fields use
// pointers so an absent field can be told apart from an explicit false/0.
// That distinction is kept for the booleans and maxDepth (an explicit
// maxDepth: 0 is taken literally); maxPages is collapsed to a plain int, so
// an explicit maxPages: 0 is treated like an absent one and gets the default.
type scrapeRequest struct {
	URL             string            `json:"url"`
	Library         string            `json:"library"`
	Version         string            `json:"version"`
	MaxPages        *int              `json:"maxPages"`
	MaxDepth        *int              `json:"maxDepth"`
	MaxConcurrency  int               `json:"maxConcurrency"`
	Scope           string            `json:"scope"`
	IncludePatterns []string          `json:"includePatterns"`
	ExcludePatterns []string          `json:"excludePatterns"`
	ScrapeMode      string            `json:"scrapeMode"`
	FollowRedirects *bool             `json:"followRedirects"`
	IgnoreErrors    *bool             `json:"ignoreErrors"`
	Headers         map[string]string `json:"headers"`
}

func boolOrDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (s *Server) handleEnqueueScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" || req.Library == "" {
		writeError(w, http.StatusBadRequest, errors.New("url and library are required"))
		return
	}
	if err := urlutil.Validate(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := scrape.Options{
		URL:             req.URL,
		Library:         req.Library,
		Version:         req.Version,
		MaxPages:        intOrZero(req.MaxPages),
		MaxDepth:        req.MaxDepth, // nil means "not set"; scrape.Options applies the default, an explicit 0 is taken literally
		MaxConcurrency:  req.MaxConcurrency,
		Scope:           urlutil.Scope(req.Scope),
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
		ScrapeMode:      req.ScrapeMode,
		FollowRedirects: boolOrDefault(req.FollowRedirects, true),
		IgnoreErrors:    boolOrDefault(req.IgnoreErrors, true),
		Headers:         req.Headers,
	}

	id, err := s.Manager.EnqueueJob(req.Library, req.Version, opts)
	if err != nil {
		s.logger().Error("httpapi: enqueue scrape job failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": id})
}

// progressView mirrors jobmanager.Progress for the wire.
type progressView struct {
	PagesScraped int    `json:"pagesScraped"`
	MaxPages     int    `json:"maxPages"`
	CurrentURL   string `json:"currentUrl,omitempty"`
	Depth        int    `json:"depth"`
	MaxDepth     int    `json:"maxDepth"`
}

type jobView struct {
	ID         string        `json:"id"`
	Library    string        `json:"library"`
	Version    string        `json:"version"`
	Status     string        `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	StartedAt  *time.Time    `json:"startedAt,omitempty"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
	Progress   progressView  `json:"progress"`
	Error      string        `json:"error,omitempty"`
}

func toJobView(snap jobmanager.Snapshot) jobView {
	v := jobView{
		ID:        snap.ID,
		Library:   snap.Library,
		Version:   snap.Version,
		Status:    string(snap.Status),
		CreatedAt: snap.CreatedAt,
		Progress: progressView{
			PagesScraped: snap.Progress.PagesScraped,
			MaxPages:     snap.Progress.MaxPages,
			CurrentURL:   snap.Progress.CurrentURL,
			Depth:        snap.Progress.Depth,
			MaxDepth:     snap.Progress.MaxDepth,
		},
	}
	if !snap.StartedAt.IsZero() {
		v.StartedAt = &snap.StartedAt
	}
	if !snap.FinishedAt.IsZero() {
		v.FinishedAt = &snap.FinishedAt
	}
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}
	return v
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.Manager.ListJobs()
	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = toJobView(j.Snapshot())
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.Manager.GetJob(id)
	if !ok {
		writeError(w, http.StatusNotFound, docerr.ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job.Snapshot()))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Manager.CancelJob(id); err != nil {
		if errors.Is(err, docerr.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type libraryView struct {
	Name     string              `json:"name"`
	Versions []store.VersionDetail `json:"versions"`
}

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	byLib, err := s.Store.QueryLibraryVersions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]libraryView, 0, len(byLib))
	for name, versions := range byLib {
		out = append(out, libraryView{Name: name, Versions: versions})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	byLib, err := s.Store.QueryLibraryVersions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	versions, ok := byLib[name]
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("library not found: "+name))
		return
	}
	writeJSON(w, http.StatusOK, libraryView{Name: name, Versions: versions})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := r.URL.Query()
	query := q.Get("query")
	version := q.Get("version")
	exactMatch := q.Get("exactMatch") == "true"

	limit := 5
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	resolved := version
	if !exactMatch {
		best, err := s.Store.FindBestVersion(r.Context(), name, version)
		if err != nil {
			if errors.Is(err, docerr.ErrVersionNotFound) {
				s.writeVersionNotFound(w, r, name, err)
				return
			}
			if errors.Is(err, docerr.ErrInvalidVersion) {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resolved = best
	}

	results, err := retriever.Retrieve(r.Context(), s.Store, retriever.Options{
		Library: name,
		Version: resolved,
		Query:   query,
		Limit:   limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": resolved, "results": results})
}

// writeVersionNotFound returns a VERSION_NOT_FOUND error decorated with a
// suggestion field listing the library's available versions, per §7's
// propagation rule for user-actionable search errors.
func (s *Server) writeVersionNotFound(w http.ResponseWriter, r *http.Request, library string, cause error) {
	var suggestions []string
	if byLib, err := s.Store.QueryLibraryVersions(r.Context()); err == nil {
		for _, v := range byLib[library] {
			suggestions = append(suggestions, v.Version)
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":      cause.Error(),
		"suggestion": suggestions,
	})
}

func (s *Server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version := chi.URLParam(r, "version")
	count, err := s.Store.DeleteDocuments(r.Context(), name, version)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}
