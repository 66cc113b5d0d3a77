package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

type fakeLock struct {
	acquired bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name  string
	err   error
	panic bool
	runs  int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if t.panic {
		panic("job exploded")
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("job ran without a deadline")
	}
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func newTestService(t *testing.T, registry *Registry, lock Lock) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: lock, Interval: time.Minute})
	require.NoError(t, err)
	return svc
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	first := &testJob{name: "first", err: errors.New("boom")}
	second := &testJob{name: "second"}
	third := &testJob{name: "third", panic: true}
	lock := &fakeLock{}
	svc := newTestService(t, NewRegistry(first, second, third), lock)

	err := svc.runCycle(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorContains(t, err, "third: panic: job exploded")
	for _, job := range []*testJob{first, second, third} {
		assert.Equal(t, 1, job.runs, job.name)
	}
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.acquired)
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "only"}
	svc := newTestService(t, NewRegistry(job), &fakeLock{acquired: true})

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunCycleHonoursCadence(t *testing.T) {
	everyCycle := &testJob{name: "dashboard"}
	hourly := &testJob{name: "stale"}
	registry := NewRegistry(everyCycle)
	registry.RegisterEvery(hourly, time.Hour)

	svc := newTestService(t, registry, &fakeLock{})
	clock := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	for _, step := range []time.Duration{0, 20 * time.Minute, 20 * time.Minute, 20 * time.Minute} {
		clock = clock.Add(step)
		require.NoError(t, svc.runCycle(context.Background()))
	}
	assert.Equal(t, 4, everyCycle.runs)
	assert.Equal(t, 2, hourly.runs, "runs at 08:00 and 09:00")
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "only"}
	svc := newTestService(t, NewRegistry(job), &fakeLock{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs, "first cycle runs before waiting")
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	assert.Error(t, err)

	svc, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, svc.interval)
	assert.Equal(t, defaultInterval, svc.jobTimeout)
}
