package cron

import (
	"context"
	"time"
)

// Job is one unit of periodic maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// entry pairs a job with its cadence. A zero cadence means every cycle.
type entry struct {
	job   Job
	every time.Duration
}

// Registry keeps jobs in registration order. Nil jobs and repeated names
// are ignored.
type Registry struct {
	entries []entry
}

// NewRegistry registers jobs that run on every cycle.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register adds a job that runs on every cycle.
func (r *Registry) Register(job Job) { r.RegisterEvery(job, 0) }

// RegisterEvery adds a job that runs at most once per every. Cadences
// shorter than the service interval behave like every cycle.
func (r *Registry) RegisterEvery(job Job, every time.Duration) {
	if job == nil || r.has(job.Name()) {
		return
	}
	if every < 0 {
		every = 0
	}
	r.entries = append(r.entries, entry{job: job, every: every})
}

func (r *Registry) has(name string) bool {
	for _, e := range r.entries {
		if e.job.Name() == name {
			return true
		}
	}
	return false
}

// Jobs returns the registered jobs in order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

func (r *Registry) schedule() []entry {
	out := make([]entry, len(r.entries))
	copy(out, r.entries)
	return out
}
