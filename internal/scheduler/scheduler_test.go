package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantfund/verdant/internal/domain"
)

type stubJob struct {
	name string
	err  error
	runs int
}

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func (j *stubJob) Name() string {
	return j.name
}

func newTestScheduler() *Scheduler {
	return New(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestRunByName(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "benchmark_refresh"}
	require.NoError(t, s.AddJob("0 0 3 * * *", job))

	err := s.RunByName("benchmark_refresh")
	require.NoError(t, err)
	assert.Equal(t, 1, job.runs)
}

func TestRunByName_Unknown(t *testing.T) {
	s := newTestScheduler()

	err := s.RunByName("no_such_job")
	require.Error(t, err)

	var notFound domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "job", notFound.Entity)
	assert.Equal(t, "no_such_job", notFound.ID)
}

func TestRunNow_PropagatesJobError(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "flaky", err: errors.New("scan failed")}

	err := s.RunNow(job)
	require.Error(t, err)
	assert.Equal(t, "scan failed", err.Error())
	assert.Equal(t, 1, job.runs)
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "broken"}

	err := s.AddJob("not a cron expression", job)
	require.Error(t, err)
	assert.Empty(t, s.JobNames(), "a job with a bad schedule must not register")
}

func TestJobNames_Sorted(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob("@hourly", &stubJob{name: "notification_scan"}))
	require.NoError(t, s.AddJob("@hourly", &stubJob{name: "benchmark_refresh"}))
	require.NoError(t, s.AddJob("@hourly", &stubJob{name: "daily_backup"}))

	assert.Equal(t, []string{"benchmark_refresh", "daily_backup", "notification_scan"}, s.JobNames())
}
