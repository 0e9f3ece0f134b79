package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
)

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type memoryLocker struct {
	held     map[string]bool
	released []string
	err      error
}

func (m *memoryLocker) TryLock(_ context.Context, job string) (func(context.Context) error, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held[job] {
		return nil, false, nil
	}
	return func(context.Context) error {
		m.released = append(m.released, job)
		return nil
	}, true, nil
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, locker Locker, clock *manualClock, reg *Registry) (*Service, *prometheus.Registry) {
	t.Helper()
	promReg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: reg,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(promReg),
		Clock:    clock.Now,
	})
	require.NoError(t, err)
	return svc, promReg
}

func TestRegistryRejectsInvalidEntries(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(&countingJob{name: "a"}, time.Minute))
	require.Error(t, reg.Add(&countingJob{name: "a"}, time.Hour))
	require.Error(t, reg.Add(&countingJob{name: "b"}, 0))
	require.Error(t, reg.Add(&countingJob{}, time.Minute))
	require.Error(t, reg.Add(nil, time.Minute))

	entries := reg.Entries()
	require.Len(t, entries, 1)
	entries[0].Every = time.Hour
	require.Equal(t, time.Minute, reg.Entries()[0].Every)
}

func TestRunDueHonorsPerJobIntervals(t *testing.T) {
	fast := &countingJob{name: "fast"}
	slow := &countingJob{name: "slow"}
	reg := NewRegistry()
	require.NoError(t, reg.Add(fast, 5*time.Minute))
	require.NoError(t, reg.Add(slow, time.Hour))
	clock := &manualClock{now: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)}
	locker := &memoryLocker{held: map[string]bool{}}
	svc, _ := newTestService(t, locker, clock, reg)

	for i := 0; i < 12; i++ {
		svc.runDue(context.Background())
		clock.now = clock.now.Add(5 * time.Minute)
	}

	require.Equal(t, 12, fast.runs)
	require.Equal(t, 1, slow.runs)
	require.Len(t, locker.released, 13)
}

func TestRunDueContinuesAfterFailure(t *testing.T) {
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	healthy := &countingJob{name: "healthy"}
	reg := NewRegistry()
	require.NoError(t, reg.Add(failing, time.Minute))
	require.NoError(t, reg.Add(healthy, time.Minute))
	svc, promReg := newTestService(t, &memoryLocker{held: map[string]bool{}}, &manualClock{now: time.Now()}, reg)

	svc.runDue(context.Background())

	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, healthy.runs)
	count, err := testutil.GatherAndCount(promReg, "cron_job_runs_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRunDueSkipsLeasedJob(t *testing.T) {
	job := &countingJob{name: "outbox-retention"}
	reg := NewRegistry()
	require.NoError(t, reg.Add(job, time.Minute))
	locker := &memoryLocker{held: map[string]bool{"outbox-retention": true}}
	svc, _ := newTestService(t, locker, &manualClock{now: time.Now()}, reg)

	svc.runDue(context.Background())
	require.Zero(t, job.runs)
	require.Empty(t, locker.released)

	locker.err = errors.New("redis down")
	svc.lastRun = map[string]time.Time{}
	svc.runDue(context.Background())
	require.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "once"}
	reg := NewRegistry()
	require.NoError(t, reg.Add(job, time.Hour))
	svc, _ := newTestService(t, &memoryLocker{held: map[string]bool{}}, &manualClock{now: time.Now()}, reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
	require.Equal(t, 1, job.runs)
}
