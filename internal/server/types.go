package server

import (
	"time"

	"spectra/internal/jobs"
)

// timeFormat is used for RFC3339 timestamps in API payloads.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID               int64  `json:"id"`
	OriginalFilename string `json:"originalFilename"`
	Profile          string `json:"profile"`
	Status           string `json:"status"`
	Progress         int    `json:"progress"`
	CurrentStep      string `json:"currentStep,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	FixStatus        string `json:"fixStatus"`
	FixType          string `json:"fixType,omitempty"`
	HasFixedFile     bool   `json:"hasFixedFile"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
	CompletedAt      string `json:"completedAt,omitempty"`
}

// SubmitResponse pairs the created job with the dispatch outcome.
type SubmitResponse struct {
	Job     JobView `json:"job"`
	Outcome string  `json:"outcome"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// FixRequest is the body of a remediation request.
type FixRequest struct {
	FixType string `json:"fixType"`
}

// CompleteRequest is the body a remote worker posts for an analysis outcome.
// Exactly one of ReportJSON and Error should be set.
type CompleteRequest struct {
	ReportJSON string `json:"reportJson,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StatusResponse summarizes daemon and queue health.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Mode         string         `json:"mode"`
	Engine       string         `json:"engine"`
	DatabasePath string         `json:"databasePath"`
	Counts       map[string]int `json:"counts"`
}

// FromJob converts a store row to its API view. File system paths stay
// server-side; clients reach file content through the download endpoints.
func FromJob(job *jobs.Job) JobView {
	view := JobView{
		ID:               job.ID,
		OriginalFilename: job.OriginalFilename,
		Profile:          job.Profile,
		Status:           string(job.Status),
		Progress:         job.Progress,
		CurrentStep:      job.CurrentStep,
		ErrorMessage:     job.ErrorMessage,
		FixStatus:        string(job.FixStatus),
		FixType:          job.FixType,
		HasFixedFile:     job.FixedFilePath != "",
		CreatedAt:        formatTime(&job.CreatedAt),
		UpdatedAt:        formatTime(&job.UpdatedAt),
		CompletedAt:      formatTime(job.CompletedAt),
	}
	return view
}

// FromJobs converts a slice of store rows.
func FromJobs(items []*jobs.Job) []JobView {
	if len(items) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(items))
	for _, job := range items {
		out = append(out, FromJob(job))
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}
