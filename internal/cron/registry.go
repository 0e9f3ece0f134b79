package cron

import (
	"context"
	"fmt"
	"time"
)

// Job is a unit of scheduled logistics housekeeping.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry pairs a job with how often it should run.
type Entry struct {
	Job   Job
	Every time.Duration
}

type Registry struct {
	entries []Entry
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Add schedules job every d. Names must be unique because they key the
// redis lease and the metrics labels.
func (r *Registry) Add(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("job %s registered twice", name)
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, Entry{Job: job, Every: every})
	return nil
}

// Entries returns a copy in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}
