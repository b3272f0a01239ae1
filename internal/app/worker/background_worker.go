package worker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fredserve/internal/app/service"
	"fredserve/internal/common"
	"fredserve/internal/domain/model"
)

// JobBody is the unit of work executed against a job. Bodies record their own
// success via JobManager.CompleteJob; the worker only records failures.
type JobBody = func(ctx context.Context) error

type task struct {
	jobID string
	body  JobBody
}

// BackgroundWorker consumes a queue of job bodies on a single loop goroutine.
// It applies worker-level retry with exponential backoff and skips jobs that
// were cancelled before being dequeued.
type BackgroundWorker struct {
	jobs          *service.JobManager
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64

	mu      sync.Mutex
	started bool
	queue   chan task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *logrus.Entry
}

func NewBackgroundWorker(jobs *service.JobManager, maxRetries int, initialDelay time.Duration, backoffFactor float64) *BackgroundWorker {
	if backoffFactor < 1 {
		backoffFactor = 1
	}
	return &BackgroundWorker{
		jobs:          jobs,
		maxRetries:    maxRetries,
		initialDelay:  initialDelay,
		backoffFactor: backoffFactor,
		queue:         make(chan task, 128),
		log:           logrus.WithField("component", "background_worker"),
	}
}

// Start launches the processing loop. Safe to call repeatedly; the first
// Submit starts the loop implicitly.
func (w *BackgroundWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.startLocked()
}

func (w *BackgroundWorker) startLocked() {
	if w.started {
		return
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.started = true
	w.wg.Add(1)
	go w.loop()
	w.log.Info("background worker started")
}

// Stop cancels the loop and waits for the in-flight job body to return.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.started = false
	w.mu.Unlock()

	w.wg.Wait()
	w.log.Info("background worker stopped")
}

// Submit enqueues body for execution against jobID, starting the loop if
// needed.
func (w *BackgroundWorker) Submit(jobID string, body JobBody) error {
	w.mu.Lock()
	w.startLocked()
	ctx := w.ctx
	w.mu.Unlock()

	select {
	case w.queue <- task{jobID: jobID, body: body}:
		return nil
	case <-ctx.Done():
		return common.NewAPIError(common.CodeJobError, "worker is shutting down")
	}
}

func (w *BackgroundWorker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.run(t)
		}
	}
}

func (w *BackgroundWorker) run(t task) {
	log := w.log.WithField("job_id", t.jobID)

	job, err := w.jobs.GetJob(t.jobID)
	if err != nil {
		log.Warn("job vanished before execution, skipping")
		return
	}
	// A cancellation recorded before dequeue means the body must never run.
	if job.Status == model.JobStatusCancelled {
		log.Info("job cancelled before execution, skipping")
		return
	}

	if err := w.jobs.StartJob(t.jobID); err != nil {
		log.WithError(err).Warn("could not transition job to processing, skipping")
		return
	}

	for {
		err := t.body(w.ctx)
		if err == nil {
			// Success is the body's to report via CompleteJob.
			return
		}

		job, getErr := w.jobs.GetJob(t.jobID)
		if getErr != nil {
			log.WithError(getErr).Warn("job vanished during execution")
			return
		}
		// A cancellation (or any terminal transition) recorded while the body
		// was in flight ends the job here; the body must not run again.
		if job.Status.Terminal() {
			log.WithField("status", string(job.Status)).Info("job reached a terminal state mid-flight, not retrying")
			return
		}
		if job.RetryCount >= w.maxRetries {
			apiErr := common.AsAPIError(err, common.CodeJobError)
			if failErr := w.jobs.FailJob(t.jobID, apiErr); failErr != nil {
				log.WithError(failErr).Error("failed to record job failure")
			}
			log.WithField("code", apiErr.Code).WithError(err).Warn("job failed after exhausting retries")
			return
		}

		retryCount, incErr := w.jobs.IncrementRetry(t.jobID)
		if incErr != nil {
			log.WithError(incErr).Warn("job vanished while scheduling retry")
			return
		}
		delay := time.Duration(float64(w.initialDelay) * math.Pow(w.backoffFactor, float64(retryCount)))
		log.WithFields(logrus.Fields{"retry": retryCount, "delay": delay.String()}).
			WithError(err).Info("job body failed, retrying")

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
