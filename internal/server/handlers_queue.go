package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"spectra/internal/jobs"
	"spectra/internal/workqueue"
)

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	items, err := s.queue.ListPending(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: FromJobs(items)})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.queue.Claim(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrClaimConflict):
			s.writeError(w, http.StatusConflict, "job already claimed")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, FromJob(job))
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := s.queue.Complete(r.Context(), id, []byte(req.ReportJSON), req.Error)
	if err != nil {
		s.writeCompletionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromJob(job))
}

func (s *Server) handleCompleteFix(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if !s.parseUpload(w, r) {
		return
	}

	errorMessage := r.FormValue("error")
	var job *jobs.Job
	if errorMessage != "" {
		job, err = s.queue.CompleteRemediation(r.Context(), id, nil, errorMessage)
	} else {
		file, _, formErr := r.FormFile("file")
		if formErr != nil {
			s.writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()
		job, err = s.queue.CompleteRemediation(r.Context(), id, file, "")
	}
	if err != nil {
		s.writeCompletionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromJob(job))
}

func (s *Server) writeCompletionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workqueue.ErrEmptyOutcome):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Running:      true,
		PID:          os.Getpid(),
		Mode:         s.cfg.Engine.Mode,
		Engine:       s.cfg.Engine.Kind,
		DatabasePath: s.store.Path(),
		Counts: map[string]int{
			"total":      stats.Total,
			"pending":    stats.Pending,
			"queued":     stats.Queued,
			"processing": stats.Processing,
			"completed":  stats.Completed,
			"failed":     stats.Failed,
		},
	})
}
