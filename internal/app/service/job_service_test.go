package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fredserve/internal/common"
	"fredserve/internal/domain/model"
	"fredserve/internal/domain/repository"
)

func newTestJobManager(retention time.Duration) (*JobManager, *repository.InMemoryJobRepository) {
	repo := repository.NewInMemoryJobRepository()
	return NewJobManager(repo, retention), repo
}

func TestCreateJobStartsAccepted(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusAccepted, job.Status)
	assert.Nil(t, job.Result)
	assert.Nil(t, job.Error)
	assert.Equal(t, 0, job.RetryCount)
}

func TestLifecycleAcceptedProcessingCompleted(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()

	require.NoError(t, m.StartJob(job.ID))
	require.NoError(t, m.UpdateProgress(job.ID, map[string]any{"rows_written": 10}))
	require.NoError(t, m.CompleteJob(job.ID, map[string]any{"file_path": "/tmp/out.csv"}))

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.NotNil(t, got.Result)
	assert.Nil(t, got.Error)
	rows, ok := got.Progress.Value("rows_written")
	require.True(t, ok)
	assert.Equal(t, int64(10), rows)
}

func TestStartJobRequiresAccepted(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()
	require.NoError(t, m.StartJob(job.ID))

	err := m.StartJob(job.ID)
	assert.True(t, common.IsCode(err, common.CodeJobState))
}

func TestFailJobRecordsError(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()
	require.NoError(t, m.StartJob(job.ID))

	require.NoError(t, m.FailJob(job.ID, common.NewAPIError(common.CodeTimeout, "upstream timed out")))

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, common.CodeTimeout, got.Error.Code)
	assert.Nil(t, got.Result)
}

func TestCancelJob(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()

	assert.True(t, m.CancelJob(job.ID, "no longer needed"))

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, common.CodeJobCancelled, got.Error.Code)
	assert.Equal(t, "no longer needed", got.Error.Details["reason"])

	// Cancelling again reports no effect.
	assert.False(t, m.CancelJob(job.ID, ""))
	// Cancelling a missing job reports no effect.
	assert.False(t, m.CancelJob("missing", ""))
}

func TestCompleteAfterCancelIsNoOp(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()
	require.True(t, m.CancelJob(job.ID, ""))

	require.NoError(t, m.CompleteJob(job.ID, map[string]any{"file_path": "late.csv"}))

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	assert.Nil(t, got.Result)
}

func TestFailAfterCompleteIsNoOp(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()
	require.NoError(t, m.StartJob(job.ID))
	require.NoError(t, m.CompleteJob(job.ID, "done"))

	require.NoError(t, m.FailJob(job.ID, common.NewAPIError(common.CodeJobError, "late failure")))

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Nil(t, got.Error)
}

func TestUpdateProgressRejectedOnTerminalJob(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()
	require.True(t, m.CancelJob(job.ID, ""))

	err := m.UpdateProgress(job.ID, map[string]any{"rows_written": 1})
	assert.True(t, common.IsCode(err, common.CodeJobState))
}

func TestIncrementRetry(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()

	count, err := m.IncrementRetry(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = m.IncrementRetry(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIncrementRetryRejectedOnTerminalJob(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	job := m.CreateJob()
	require.True(t, m.CancelJob(job.ID, ""))
	before, err := m.GetJob(job.ID)
	require.NoError(t, err)

	_, err = m.IncrementRetry(job.ID)
	assert.True(t, common.IsCode(err, common.CodeJobState))

	// The terminal record is untouched: no counter bump, no updated_at reset.
	after, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.RetryCount)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestGetJobMissing(t *testing.T) {
	m, _ := newTestJobManager(time.Hour)
	_, err := m.GetJob("nope")
	assert.True(t, common.IsCode(err, common.CodeJobNotFound))
}

func TestPurgeExpired(t *testing.T) {
	m, repo := newTestJobManager(time.Hour)

	old := time.Now().UTC().Add(-2 * time.Hour)
	repo.Insert(&model.Job{ID: "stale", Status: model.JobStatusCompleted, CreatedAt: old, UpdatedAt: old})
	fresh := m.CreateJob()

	removed := m.PurgeExpired(time.Hour)
	assert.Equal(t, 1, removed)

	_, err := m.GetJob("stale")
	assert.True(t, common.IsCode(err, common.CodeJobNotFound))
	_, err = m.GetJob(fresh.ID)
	assert.NoError(t, err)
}

func TestExpiredJobsPurgedOnAccess(t *testing.T) {
	m, repo := newTestJobManager(10 * time.Millisecond)

	old := time.Now().UTC().Add(-time.Minute)
	repo.Insert(&model.Job{ID: "stale", Status: model.JobStatusFailed, CreatedAt: old, UpdatedAt: old})

	// Both lookup paths purge lazily before answering.
	assert.Empty(t, m.ListJobs())
	_, err := m.GetJob("stale")
	assert.True(t, common.IsCode(err, common.CodeJobNotFound))
}
