package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	fails    int // number of leading runs that fail
	runs     int
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }
func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	if j.runs <= j.fails {
		return errors.New("transient")
	}
	return nil
}

func TestScheduler_AddAndRemove(t *testing.T) {
	s := New(logger.Nop(), time.UTC)

	require.NoError(t, s.AddJob(&stubJob{name: "b", schedule: "0 30 17 * * 1-5"}))
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "@daily"}))
	assert.Error(t, s.AddJob(&stubJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&stubJob{name: "c", schedule: "not a cron"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
}

func TestScheduler_RunJobRetries(t *testing.T) {
	s := New(logger.Nop(), time.UTC).WithRetry(2, time.Millisecond)
	job := &stubJob{name: "flaky", schedule: "@daily", fails: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, job.runs)
	assert.Equal(t, 3, result.Attempts)

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, 1.0, s.GetJobStats()["flaky"].SuccessRate)
}

func TestScheduler_RunJobGivesUp(t *testing.T) {
	s := New(logger.Nop(), time.UTC).WithRetry(1, time.Millisecond)
	job := &stubJob{name: "broken", schedule: "@daily", fails: 10}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob(context.Background(), "broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "transient", result.Error)
	assert.Equal(t, 2, job.runs)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	require.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)

	_, err = s.RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestScheduler_NextRunsInLocation(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	s := New(logger.Nop(), shanghai)
	require.NoError(t, s.AddJob(&stubJob{name: "evening", schedule: "0 30 17 * * *"}))
	s.Start()
	defer s.Stop()

	next := s.NextRuns()["evening"]
	require.False(t, next.IsZero())
	local := next.In(shanghai)
	assert.Equal(t, 17, local.Hour())
	assert.Equal(t, 30, local.Minute())
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+5; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(5))
}

func TestJobHistory_Stats(t *testing.T) {
	t0 := time.Date(2024, 6, 3, 17, 30, 0, 0, time.UTC)
	h := &JobHistory{}
	h.AddResult(JobResult{StartTime: t0, Success: true})
	h.AddResult(JobResult{StartTime: t0.Add(24 * time.Hour), Success: false})
	h.AddResult(JobResult{StartTime: t0.Add(48 * time.Hour), Success: false})

	st := h.Stats(&stubJob{name: "bars", schedule: "@daily"})
	assert.Equal(t, "bars", st.JobName)
	assert.Equal(t, 3, st.TotalRuns)
	assert.Equal(t, 1, st.SuccessCount)
	assert.Equal(t, 2, st.FailureCount)
	assert.InDelta(t, 1.0/3, st.SuccessRate, 1e-12)
	require.NotNil(t, st.LastSuccess)
	assert.Equal(t, t0, *st.LastSuccess, "last success survives later failures")
	assert.Equal(t, t0.Add(48*time.Hour), *st.LastFailure)
	assert.Equal(t, t0.Add(48*time.Hour), *st.LastRun)

	empty := (&JobHistory{}).Stats(&stubJob{name: "x"})
	assert.Zero(t, empty.SuccessRate)
	assert.Nil(t, empty.LastRun)
}
