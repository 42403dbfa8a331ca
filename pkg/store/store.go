// Package store records summarization jobs, their results and the
// processing statistics used to estimate run times.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Done reports whether the job reached a final state.
func (s JobStatus) Done() bool {
	return s == JobCompleted || s == JobFailed
}

// GraphStats holds the size of the knowledge graph built for a job.
type GraphStats struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Communities   int `json:"communities"`
}

// Job is one summarization request and, once finished, its outcome.
type Job struct {
	ID         string              `json:"id"`
	Source     string              `json:"source"`
	Method     summarizer.Method   `json:"method"`
	Options    summarizer.Options  `json:"options"`
	Status     JobStatus           `json:"status"`
	Result     *summarizer.Summary `json:"result,omitempty"`
	Graph      GraphStats          `json:"graph"`
	Mode       string              `json:"mode,omitempty"`
	Error      string              `json:"error,omitempty"`
	ExportKey  string              `json:"export_key,omitempty"`
	DurationMs int64               `json:"duration_ms"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// JobUpdate changes the mutable fields of a job. Nil fields are left as
// they are.
type JobUpdate struct {
	Status     JobStatus
	Result     *summarizer.Summary
	Graph      *GraphStats
	Mode       *string
	Error      *string
	ExportKey  *string
	DurationMs *int64
}

// Apply merges u into job and stamps the update time.
func (u JobUpdate) Apply(job *Job, now time.Time) {
	if u.Status != "" {
		job.Status = u.Status
	}
	if u.Result != nil {
		job.Result = u.Result
	}
	if u.Graph != nil {
		job.Graph = *u.Graph
	}
	if u.Mode != nil {
		job.Mode = *u.Mode
	}
	if u.Error != nil {
		job.Error = *u.Error
	}
	if u.ExportKey != nil {
		job.ExportKey = *u.ExportKey
	}
	if u.DurationMs != nil {
		job.DurationMs = *u.DurationMs
	}
	job.UpdatedAt = now
}

// Stat types for processing time records.
const (
	StatSummarize = "summarize"
	StatExtract   = "extract"
)

// JobStore persists jobs and processing statistics.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, id string, update JobUpdate) error
	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)

	// AddProcessingTime records that amount units of statType took duration.
	AddProcessingTime(ctx context.Context, amount int, duration time.Duration, statType string) error
	// PredictProcessingTime estimates the duration for amount units from the
	// recorded average. It returns zero without history.
	PredictProcessingTime(ctx context.Context, amount int, statType string) (time.Duration, error)
}

// Predict scales the per-unit average of totalDuration over totalAmount
// to amount units.
func Predict(totalAmount int64, totalDuration time.Duration, amount int) time.Duration {
	if totalAmount <= 0 || amount <= 0 {
		return 0
	}
	perUnit := float64(totalDuration) / float64(totalAmount)
	return time.Duration(perUnit * float64(amount))
}
