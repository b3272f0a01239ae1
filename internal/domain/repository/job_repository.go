package repository

import (
	"sync"

	"fredserve/internal/domain/model"
)

// JobRepository stores jobs for the lifetime of the process. Mutations on a
// given job id are serialized by the implementation so a progress write and a
// concurrent completion cannot interleave.
type JobRepository interface {
	Insert(job *model.Job)
	Get(id string) (*model.Job, bool)
	List() []*model.Job
	// Update runs fn against the stored job under the store lock. fn sees
	// the live record and may mutate it; an error from fn aborts nothing but
	// is passed through.
	Update(id string, fn func(*model.Job) error) error
	Delete(id string)
}

// ErrJobMissing distinguishes "job absent" from errors produced by an Update
// callback.
type notFoundError struct{}

func (notFoundError) Error() string { return "job not found in store" }

var ErrJobMissing error = notFoundError{}

// InMemoryJobRepository keeps jobs in a map guarded by one mutex. Job state
// is deliberately not durable across restarts.
type InMemoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{jobs: make(map[string]*model.Job)}
}

func (r *InMemoryJobRepository) Insert(job *model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

func (r *InMemoryJobRepository) Get(id string) (*model.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

func (r *InMemoryJobRepository) List() []*model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	return out
}

func (r *InMemoryJobRepository) Update(id string, fn func(*model.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobMissing
	}
	return fn(job)
}

func (r *InMemoryJobRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}
