package models

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// Job represents an async migration run started from the HTTP API.
type Job struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"` // "migrate", "plan", "prune"
	Filters    Filters    `json:"filters"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Output     []string   `json:"output"`
	Report     *RunReport `json:"report,omitempty"`

	cancel context.CancelFunc
	mu     sync.Mutex
}

// AppendLog adds a log line to the job output.
func (j *Job) AppendLog(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Output = append(j.Output, line)
}

// LogsSince returns log lines starting from the given index.
func (j *Job) LogsSince(offset int) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if offset >= len(j.Output) {
		return nil
	}
	lines := make([]string, len(j.Output)-offset)
	copy(lines, j.Output[offset:])
	return lines
}

// State returns the current status under the job lock.
func (j *Job) State() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.State() != JobRunning
}

// SetCancel registers the function that stops the run.
func (j *Job) SetCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// Cancel stops a running job. The run notices between two records.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Complete marks the job as completed with its report.
func (j *Job) Complete(report *RunReport) {
	j.finish(JobCompleted, report, "")
}

// Fail marks the job as failed with an error message.
func (j *Job) Fail(report *RunReport, err string) {
	j.finish(JobFailed, report, err)
}

// Cancelled marks the job as stopped by the user.
func (j *Job) Cancelled(report *RunReport) {
	j.finish(JobCancelled, report, "cancelled by user")
}

func (j *Job) finish(status string, report *RunReport, err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Report = report
	j.Error = err
	now := time.Now()
	j.FinishedAt = &now
}

// MarshalJSON serializes the job under its lock; the run goroutine keeps
// appending output while handlers encode it.
func (j *Job) MarshalJSON() ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	type jobJSON struct {
		ID         string     `json:"id"`
		Type       string     `json:"type"`
		Filters    Filters    `json:"filters"`
		Status     string     `json:"status"`
		StartedAt  time.Time  `json:"started_at"`
		FinishedAt *time.Time `json:"finished_at,omitempty"`
		Error      string     `json:"error,omitempty"`
		Output     []string   `json:"output"`
		Report     *RunReport `json:"report,omitempty"`
	}
	return json.Marshal(jobJSON{
		ID:         j.ID,
		Type:       j.Type,
		Filters:    j.Filters,
		Status:     j.Status,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Error:      j.Error,
		Output:     j.Output,
		Report:     j.Report,
	})
}

// JobStore is an in-memory thread-safe store for jobs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create adds a new running job, assigning it a UUID. It returns nil when
// another job is still running: two runs against the same target would race
// on the same natural keys.
func (s *JobStore) Create(jobType string, f Filters) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if !j.Done() {
			return nil
		}
	}
	j := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Filters:   f,
		Status:    JobRunning,
		StartedAt: time.Now(),
		Output:    []string{},
	}
	s.jobs[j.ID] = j
	return j
}

// Get returns a job by ID.
func (s *JobStore) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// List returns all jobs, most recent first.
func (s *JobStore) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, j)
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].StartedAt.After(result[b].StartedAt)
	})
	return result
}
