package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Action is what the resolver did with one record.
type Action string

const (
	ActionCached  Action = "cached"
	ActionFound   Action = "found"
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionPlanned Action = "planned" // dry run: would be created
	ActionSkipped Action = "skipped" // excluded by configuration
	ActionFailed  Action = "failed"
)

// TypeCounts holds per-action counters for one entity type.
type TypeCounts struct {
	Cached  int `json:"cached" yaml:"cached"`
	Found   int `json:"found" yaml:"found"`
	Created int `json:"created" yaml:"created"`
	Updated int `json:"updated" yaml:"updated"`
	Planned int `json:"planned" yaml:"planned"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`
}

// Failure is a record that could not be migrated.
type Failure struct {
	Type  EntityType `json:"entity_type" yaml:"entity_type"`
	Key   string     `json:"natural_key" yaml:"natural_key"`
	Error string     `json:"error" yaml:"error"`
}

// Warning is a degraded but successful resolution, e.g. a dropped reference.
type Warning struct {
	Type    EntityType `json:"entity_type" yaml:"entity_type"`
	Key     string     `json:"natural_key" yaml:"natural_key"`
	Message string     `json:"message" yaml:"message"`
}

// RunReport summarizes one migration run.
type RunReport struct {
	ID         string                 `json:"id" yaml:"id"`
	Filters    Filters                `json:"filters" yaml:"filters"`
	StartedAt  time.Time              `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Stages     [][]string             `json:"stages" yaml:"stages"`
	Counts     map[string]*TypeCounts `json:"counts" yaml:"counts"`
	Gaps       int                    `json:"gaps" yaml:"gaps"`
	Failures   []Failure              `json:"failures" yaml:"failures"`
	Warnings   []Warning              `json:"warnings" yaml:"warnings"`
	Fatal      string                 `json:"fatal,omitempty" yaml:"fatal,omitempty"`
}

// NewRunReport starts an empty report with a fresh run id.
func NewRunReport(f Filters) *RunReport {
	return &RunReport{
		ID:        uuid.New().String(),
		Filters:   f,
		StartedAt: time.Now(),
		Counts:    make(map[string]*TypeCounts),
		Failures:  []Failure{},
		Warnings:  []Warning{},
	}
}

func (r *RunReport) counts(t EntityType) *TypeCounts {
	c, ok := r.Counts[t.String()]
	if !ok {
		c = &TypeCounts{}
		r.Counts[t.String()] = c
	}
	return c
}

// Record counts a successful (or skipped) resolution.
func (r *RunReport) Record(t EntityType, a Action) {
	c := r.counts(t)
	switch a {
	case ActionCached:
		c.Cached++
	case ActionFound:
		c.Found++
	case ActionCreated:
		c.Created++
	case ActionUpdated:
		c.Updated++
	case ActionPlanned:
		c.Planned++
	case ActionSkipped:
		c.Skipped++
	case ActionFailed:
		c.Failed++
	}
}

// Fail records a failed record.
func (r *RunReport) Fail(t EntityType, key string, err error) {
	r.counts(t).Failed++
	r.Failures = append(r.Failures, Failure{Type: t, Key: key, Error: err.Error()})
}

// Warn records a warning against a record.
func (r *RunReport) Warn(t EntityType, key, msg string) {
	r.Warnings = append(r.Warnings, Warning{Type: t, Key: key, Message: msg})
}

// Finish stamps the end time; fatal is the error that aborted the run, if any.
func (r *RunReport) Finish(fatal error) {
	now := time.Now()
	r.FinishedAt = &now
	if fatal != nil {
		r.Fatal = fatal.Error()
	}
}

// Totals sums the counters over every entity type.
func (r *RunReport) Totals() TypeCounts {
	var t TypeCounts
	for _, c := range r.Counts {
		t.Cached += c.Cached
		t.Found += c.Found
		t.Created += c.Created
		t.Updated += c.Updated
		t.Planned += c.Planned
		t.Skipped += c.Skipped
		t.Failed += c.Failed
	}
	return t
}

// HasFailures reports whether any record failed.
func (r *RunReport) HasFailures() bool {
	return len(r.Failures) > 0
}

// SortedFailures returns failures ordered by entity type then key.
func (r *RunReport) SortedFailures() []Failure {
	out := make([]Failure, len(r.Failures))
	copy(out, r.Failures)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Key < out[j].Key
	})
	return out
}
