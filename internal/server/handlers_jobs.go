package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"spectra/internal/dispatch"
	"spectra/internal/jobs"
	"spectra/internal/logging"
	"spectra/internal/storage"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.parseUpload(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	profile := r.FormValue("profile")
	job, outcome, err := s.dispatcher.Submit(r.Context(), header.Filename, profile, file)
	if err != nil {
		if errors.Is(err, dispatch.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, SubmitResponse{Job: FromJob(job), Outcome: string(outcome)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []jobs.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	items, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: FromJobs(items)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, FromJob(job))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status != jobs.StatusCompleted || job.ResultJSONPath == "" {
		s.writeError(w, http.StatusConflict, "report not ready")
		return
	}
	report, err := os.ReadFile(job.ResultJSONPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "report unreadable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report); err != nil {
		s.logger.Warn("report write failed", logging.Int64("job_id", job.ID), logging.Error(err))
	}
}

func (s *Server) handleVisual(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status != jobs.StatusCompleted || job.ResultJSONPath == "" {
		s.writeError(w, http.StatusConflict, "visualization not ready")
		return
	}
	dashboard := filepath.Join(filepath.Dir(job.ResultJSONPath), storage.DashboardFilename)
	if _, err := os.Stat(dashboard); err != nil {
		s.writeError(w, http.StatusNotFound, "visualization not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, dashboard)
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if _, err := os.Stat(job.FilePath); err != nil {
		s.writeError(w, http.StatusNotFound, "video not found")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, job.FilePath)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	s.files.DeleteJobFiles(job.ID, job.FilePath, job.FixedFilePath)
	if _, err := s.store.Remove(r.Context(), job.ID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, id := range ids {
		job, err := s.store.GetByID(r.Context(), id)
		if err != nil || job == nil {
			continue
		}
		s.files.DeleteJobFiles(job.ID, job.FilePath, job.FixedFilePath)
		if _, err := s.store.Remove(r.Context(), job.ID); err != nil {
			s.logger.Warn("batch delete failed", logging.Int64("job_id", job.ID), logging.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	var req FixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, outcome, err := s.dispatcher.Remediate(r.Context(), id, strings.TrimSpace(req.FixType))
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrFixTypeRequired):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, jobs.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrFixUnavailable):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, SubmitResponse{Job: FromJob(job), Outcome: string(outcome)})
}

func (s *Server) handleFixedDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.FixStatus != jobs.FixCompleted || job.FixedFilePath == "" {
		s.writeError(w, http.StatusNotFound, "fixed file not available")
		return
	}
	if _, err := os.Stat(job.FixedFilePath); err != nil {
		s.writeError(w, http.StatusNotFound, "fixed file not available")
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(job.FixedFilePath)))
	http.ServeFile(w, r, job.FixedFilePath)
}
