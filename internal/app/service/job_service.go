package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fredserve/internal/common"
	"fredserve/internal/domain/model"
	"fredserve/internal/domain/repository"
)

// JobManager owns the lifecycle and state of asynchronous jobs.
//
// Success and failure signaling are asymmetric by contract: job bodies record
// their own success through CompleteJob, while failure may arrive either
// explicitly (a body calling FailJob) or implicitly (the background worker
// classifying a body error after retries are exhausted).
type JobManager struct {
	repo      repository.JobRepository
	retention time.Duration
	log       *logrus.Entry
}

func NewJobManager(repo repository.JobRepository, retention time.Duration) *JobManager {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &JobManager{
		repo:      repo,
		retention: retention,
		log:       logrus.WithField("component", "job_manager"),
	}
}

// CreateJob registers a new job in ACCEPTED state and returns a snapshot.
func (m *JobManager) CreateJob() *model.Job {
	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.NewString(),
		Status:    model.JobStatusAccepted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.repo.Insert(job)
	m.log.WithField("job_id", job.ID).Debug("job created")
	return job.Clone()
}

// StartJob transitions ACCEPTED -> PROCESSING.
func (m *JobManager) StartJob(id string) error {
	return m.update(id, func(job *model.Job) error {
		if job.Status != model.JobStatusAccepted {
			return common.NewAPIErrorf(common.CodeJobState, "job %s is %s, not accepted", id, job.Status)
		}
		job.Status = model.JobStatusProcessing
		return nil
	})
}

// UpdateProgress merges fields into the job's progress. Valid while the job
// is still in ACCEPTED or PROCESSING.
func (m *JobManager) UpdateProgress(id string, fields map[string]any) error {
	return m.update(id, func(job *model.Job) error {
		if job.Status.Terminal() {
			return common.NewAPIErrorf(common.CodeJobState, "job %s already terminal", id)
		}
		job.Progress.Merge(fields)
		return nil
	})
}

// CompleteJob records the success payload. A job already in a terminal state
// is left untouched, so a late completion can never resurrect a cancelled
// job.
func (m *JobManager) CompleteJob(id string, result any) error {
	return m.update(id, func(job *model.Job) error {
		if job.Status.Terminal() {
			return nil
		}
		job.Status = model.JobStatusCompleted
		job.Result = result
		job.Error = nil
		return nil
	})
}

// FailJob records a terminal failure. No-op on already terminal jobs.
func (m *JobManager) FailJob(id string, apiErr *common.APIError) error {
	return m.update(id, func(job *model.Job) error {
		if job.Status.Terminal() {
			return nil
		}
		job.Status = model.JobStatusFailed
		job.Error = apiErr
		job.Result = nil
		return nil
	})
}

// CancelJob moves a non-terminal job to CANCELLED and reports whether the
// cancellation took effect (false when the job is absent or already
// terminal).
func (m *JobManager) CancelJob(id, reason string) bool {
	cancelled := false
	err := m.update(id, func(job *model.Job) error {
		if job.Status.Terminal() {
			return nil
		}
		message := "job cancelled"
		if reason != "" {
			message = "job cancelled: " + reason
		}
		job.Status = model.JobStatusCancelled
		job.Error = common.NewAPIError(common.CodeJobCancelled, message)
		if reason != "" {
			job.Error.WithDetail("reason", reason)
		}
		job.Result = nil
		cancelled = true
		return nil
	})
	if err != nil {
		return false
	}
	if cancelled {
		m.log.WithField("job_id", id).Info("job cancelled")
	}
	return cancelled
}

// IncrementRetry bumps the worker-level retry counter and returns the new
// value. Terminal jobs are never mutated; retrying one is a state error.
func (m *JobManager) IncrementRetry(id string) (int, error) {
	count := 0
	err := m.update(id, func(job *model.Job) error {
		if job.Status.Terminal() {
			return common.NewAPIErrorf(common.CodeJobState, "job %s already terminal", id)
		}
		job.RetryCount++
		count = job.RetryCount
		return nil
	})
	return count, err
}

// GetJob returns a job snapshot, lazily purging expired jobs first.
func (m *JobManager) GetJob(id string) (*model.Job, error) {
	m.PurgeExpired(m.retention)
	job, ok := m.repo.Get(id)
	if !ok {
		return nil, common.NewAPIErrorf(common.CodeJobNotFound, "job '%s' was not found", id).
			WithDetail("job_id", id)
	}
	return job, nil
}

// ListJobs returns snapshots of all retained jobs, purging expired ones
// first.
func (m *JobManager) ListJobs() []*model.Job {
	m.PurgeExpired(m.retention)
	return m.repo.List()
}

// PurgeExpired removes jobs older than window: terminal jobs by the time of
// their last update, any job by age. Returns the number removed.
func (m *JobManager) PurgeExpired(window time.Duration) int {
	now := time.Now().UTC()
	removed := 0
	for _, job := range m.repo.List() {
		expired := now.Sub(job.CreatedAt) > window ||
			(job.Status.Terminal() && now.Sub(job.UpdatedAt) > window)
		if expired {
			m.repo.Delete(job.ID)
			removed++
		}
	}
	if removed > 0 {
		m.log.WithField("removed", removed).Debug("purged expired jobs")
	}
	return removed
}

// update wraps repository access so every successful mutation bumps
// updated_at exactly once.
func (m *JobManager) update(id string, fn func(*model.Job) error) error {
	err := m.repo.Update(id, func(job *model.Job) error {
		if err := fn(job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, repository.ErrJobMissing) {
		return common.NewAPIErrorf(common.CodeJobNotFound, "job '%s' was not found", id).
			WithDetail("job_id", id)
	}
	return err
}
