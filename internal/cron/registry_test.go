package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndDropsDuplicates(t *testing.T) {
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry := NewRegistry(jobA, nil)
	registry.RegisterEvery(jobB, -time.Minute)
	registry.RegisterEvery(&stubJob{name: "a"}, time.Hour)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	sched := registry.schedule()
	assert.Zero(t, sched[0].every)
	assert.Zero(t, sched[1].every, "negative cadence clamps to every cycle")

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}
