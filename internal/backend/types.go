package backend

import (
	"math"
	"time"
)

// FileRef is a résumé file selected for upload.
type FileRef struct {
	Path string
	Name string
	Size int64
}

// JobSubmission is one analysis request: a job description plus the résumés
// to score against it. It is built at submit time and never mutated.
type JobSubmission struct {
	Description string
	Files       []FileRef
}

// Category classifies a progress notification.
type Category string

const (
	CategoryInfo       Category = "info"
	CategorySuccess    Category = "success"
	CategoryWarning    Category = "warning"
	CategoryError      Category = "error"
	CategoryProcessing Category = "processing"
	CategoryComplete   Category = "complete"
)

// ParseCategory maps a wire type to a Category. Unknown types become info.
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategorySuccess, CategoryWarning, CategoryError, CategoryProcessing, CategoryComplete:
		return c
	}
	return CategoryInfo
}

// ProgressEvent is one notification received on the progress channel.
type ProgressEvent struct {
	// JobID is empty when the server did not tag the event.
	JobID      string
	Category   Category
	Message    string
	OccurredAt time.Time
}

// progressPayload is the wire shape of a progress_update event.
type progressPayload struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
	JobID     string  `json:"job_id,omitempty"`
}

func (p progressPayload) event() ProgressEvent {
	sec, frac := math.Modf(p.Timestamp)
	return ProgressEvent{
		JobID:      p.JobID,
		Category:   ParseCategory(p.Type),
		Message:    p.Message,
		OccurredAt: time.Unix(int64(sec), int64(frac*1e9)),
	}
}

// OutcomeKind tags the variant of a successful submission.
type OutcomeKind int

const (
	// OutcomeQueued means the backend accepted the job for background processing.
	OutcomeQueued OutcomeKind = iota
	// OutcomeCompletedSync means the backend processed files inline.
	OutcomeCompletedSync
	// OutcomeNoFilesProcessed means every file was skipped.
	OutcomeNoFilesProcessed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeQueued:
		return "queued"
	case OutcomeCompletedSync:
		return "completed_sync"
	case OutcomeNoFilesProcessed:
		return "no_files_processed"
	}
	return "unknown"
}

// SkippedFile is a file the backend refused, with its reason.
type SkippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// JobOutcome is the classified result of a well-formed success response.
type JobOutcome struct {
	JobID          string
	Kind           OutcomeKind
	ProcessedCount int
	Skipped        []SkippedFile
	TotalFiles     int
}

// analyzeResponse is the JSON body of POST /api/analyze.
type analyzeResponse struct {
	JobID          string        `json:"job_id"`
	Status         string        `json:"status"`
	ProcessedFiles []any         `json:"processed_files,omitempty"`
	SkippedFiles   []SkippedFile `json:"skipped_files,omitempty"`
	TotalFiles     int           `json:"total_files,omitempty"`
	Error          string        `json:"error,omitempty"`
}

func (r analyzeResponse) outcome() JobOutcome {
	o := JobOutcome{
		JobID:          r.JobID,
		ProcessedCount: len(r.ProcessedFiles),
		Skipped:        r.SkippedFiles,
		TotalFiles:     r.TotalFiles,
	}
	switch {
	case r.Status == "queued":
		o.Kind = OutcomeQueued
	case o.ProcessedCount > 0:
		o.Kind = OutcomeCompletedSync
	default:
		o.Kind = OutcomeNoFilesProcessed
	}
	return o
}
