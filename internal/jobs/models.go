package jobs

import (
	"strings"
	"time"
)

// Status represents the primary analysis lifecycle of a job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// FixStatus represents the independent remediation lifecycle. The zero value
// means remediation was never requested.
type FixStatus string

const (
	FixNone       FixStatus = "NONE"
	FixQueued     FixStatus = "QUEUED"
	FixProcessing FixStatus = "PROCESSING"
	FixCompleted  FixStatus = "COMPLETED"
	FixFailed     FixStatus = "FAILED"
)

var allStatuses = []Status{
	StatusPending,
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Job is one submitted media asset's end-to-end analysis record.
type Job struct {
	ID               int64
	OriginalFilename string
	FilePath         string
	Profile          string
	Status           Status
	Progress         int
	CurrentStep      string
	ResultJSONPath   string
	ErrorMessage     string
	FixStatus        FixStatus
	FixType          string
	FixedFilePath    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// StatsSummary counts jobs per key lifecycle state.
type StatsSummary struct {
	Total      int
	Pending    int
	Queued     int
	Processing int
	Completed  int
	Failed     int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is absorbing.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsTerminal reports whether the remediation track has finished.
func (f FixStatus) IsTerminal() bool {
	return f == FixCompleted || f == FixFailed
}

// Requested reports whether remediation was ever triggered for the job.
func (f FixStatus) Requested() bool {
	return f != "" && f != FixNone
}
