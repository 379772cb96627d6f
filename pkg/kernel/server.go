package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
	"github.com/skaldhq/skald/internal/core/services"
)

// Server exposes the report pipeline over HTTP: submission, job listing,
// progress polling, SSE event streams, and finished-report retrieval.
type Server struct {
	logger    *slog.Logger
	scheduler *services.JobScheduler
	jobs      ports.JobStore
	progress  *services.ProgressStore
	events    *services.EventBus
	store     ports.ObjectStore
}

func NewServer(
	logger *slog.Logger,
	scheduler *services.JobScheduler,
	jobs ports.JobStore,
	progress *services.ProgressStore,
	events *services.EventBus,
	store ports.ObjectStore,
) *Server {
	return &Server{
		logger:    logger,
		scheduler: scheduler,
		jobs:      jobs,
		progress:  progress,
		events:    events,
		store:     store,
	}
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" && r.URL.Path == "/healthz" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			return
		}
		if r.Method == "POST" && r.URL.Path == "/api/v1/reports" {
			s.handleCreateReport(w, r)
			return
		}
		if r.Method == "GET" && r.URL.Path == "/api/v1/reports" {
			s.handleListReports(w, r)
			return
		}
		if r.Method == "GET" && isReportSubresourcePath(r.URL.Path, "/progress") {
			s.handleGetProgress(w, r)
			return
		}
		if r.Method == "GET" && isReportSubresourcePath(r.URL.Path, "/events") {
			s.handleReportSSE(w, r)
			return
		}
		if r.Method == "GET" && isReportPath(r.URL.Path) {
			s.handleGetReport(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

const reportsPrefix = "/api/v1/reports/"

// isReportPath checks if an URL path matches /api/v1/reports/{id}
func isReportPath(path string) bool {
	if !strings.HasPrefix(path, reportsPrefix) {
		return false
	}
	id := path[len(reportsPrefix):]
	return id != "" && !strings.Contains(id, "/")
}

// isReportSubresourcePath checks if an URL path matches
// /api/v1/reports/{id}<suffix>, e.g. suffix "/progress" or "/events".
func isReportSubresourcePath(path, suffix string) bool {
	if !strings.HasPrefix(path, reportsPrefix) || !strings.HasSuffix(path, suffix) {
		return false
	}
	id := path[len(reportsPrefix) : len(path)-len(suffix)]
	return id != "" && !strings.Contains(id, "/")
}

func reportID(path, suffix string) domain.JobID {
	return domain.JobID(strings.TrimSuffix(strings.TrimPrefix(path, reportsPrefix), suffix))
}

// handleCreateReport queues a new analysis job.
// POST /api/v1/reports
// Body: {"youtube_url": "...", "user_id": "..."}
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		YoutubeURL string `json:"youtube_url"`
		UserID     string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.YoutubeURL) == "" {
		http.Error(w, "youtube_url is required", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = domain.AnonymousUser
	}

	jobID := domain.JobID(uuid.New().String())
	now := time.Now()
	job := domain.Job{
		ID:         jobID,
		UserID:     req.UserID,
		YoutubeURL: req.YoutubeURL,
		Status:     domain.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobs.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("failed to create job record", "error", err)
		http.Error(w, "failed to create job", http.StatusInternalServerError)
		return
	}

	if err := s.scheduler.Submit(r.Context(), services.PipelineRequest{
		JobID:      jobID,
		UserID:     req.UserID,
		YoutubeURL: req.YoutubeURL,
	}); err != nil {
		s.logger.Error("failed to queue job", "job_id", jobID, "error", err)
		http.Error(w, "queue full, try again later", http.StatusServiceUnavailable)
		return
	}

	s.logger.Info("report job queued", "job_id", jobID, "user_id", req.UserID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": string(jobID),
		"status": string(domain.JobStatusPending),
	})
}

// handleListReports returns job records, optionally filtered by user.
// GET /api/v1/reports?user_id=...
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		s.logger.Error("failed to list jobs", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleGetReport returns the finished report document for a completed job,
// or the job status while the pipeline is still running.
// GET /api/v1/reports/{id}
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := reportID(r.URL.Path, "")
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get job", "job_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if job.Status != domain.JobStatusCompleted {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"job_id": string(job.ID),
			"status": string(job.Status),
		})
		return
	}

	key := services.ReportKey(job.UserID, job.ID)
	if job.ResultKey != nil && *job.ResultKey != "" {
		key = *job.ResultKey
	}
	body, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.logger.Error("failed to fetch report object", "job_id", id, "key", key, "error", err)
		http.Error(w, "report not found in storage", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// handleGetProgress returns the latest progress snapshot for a job.
// GET /api/v1/reports/{id}/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id := reportID(r.URL.Path, "/progress")

	if p, ok := s.progress.GetProgress(id); ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
		return
	}

	// Progress entries expire; fall back to the job record so finished
	// jobs still answer after the TTL.
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get job", "job_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	p := domain.Progress{Message: string(job.Status), UpdatedAt: job.UpdatedAt}
	switch job.Status {
	case domain.JobStatusCompleted:
		p.Percent = 100
	case domain.JobStatusFailed:
		p.Percent = domain.ProgressFailed
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// handleReportSSE streams pipeline events for a job over SSE.
// GET /api/v1/reports/{id}/events
func (s *Server) handleReportSSE(w http.ResponseWriter, r *http.Request) {
	id := reportID(r.URL.Path, "/events")

	if _, err := s.jobs.GetJob(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get job", "job_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	eventCh, unsub := s.events.Subscribe(string(id))
	defer unsub()

	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-eventCh:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
			flusher.Flush()
			if event.Type == services.EventPipelineCompleted || event.Type == services.EventPipelineFailed {
				return
			}
		}
	}
}
