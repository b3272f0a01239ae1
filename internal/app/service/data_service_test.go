package service_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fredserve/internal/app/service"
	"fredserve/internal/app/worker"
	"fredserve/internal/common"
	"fredserve/internal/domain/model"
)

// stubFetcher returns a canned payload and counts invocations. The preview
// fetch arrives with limit=1.
type stubFetcher struct {
	count   int
	rows    int
	err     error
	calls   atomic.Int32
	limited atomic.Int32
}

func (s *stubFetcher) Observations(ctx context.Context, seriesID string, params map[string]string) (map[string]any, error) {
	s.calls.Add(1)
	if params["limit"] == "1" {
		s.limited.Add(1)
	}
	if s.err != nil {
		return nil, s.err
	}
	return observationsPayloadWithCount(s.count, s.rows), nil
}

func observationsPayloadWithCount(count, rows int) map[string]any {
	payload := service.ObservationsPayload(rows)
	payload["count"] = float64(count)
	return payload
}

type dataServiceFixture struct {
	svc    *service.DataService
	jobs   *service.JobManager
	worker *worker.BackgroundWorker
	root   string
}

func newDataServiceFixture(t *testing.T, fetcher *stubFetcher) *dataServiceFixture {
	t.Helper()
	router, jobs, root := service.NewTestRouter(t)
	w := worker.NewBackgroundWorker(jobs, 3, time.Millisecond, 2.0)
	t.Cleanup(w.Stop)
	return &dataServiceFixture{
		svc:    service.NewDataService(service.RouterConfig(router), fetcher, jobs, w, router),
		jobs:   jobs,
		worker: w,
		root:   root,
	}
}

func TestObservationsSmallResultIsSynchronous(t *testing.T) {
	fetcher := &stubFetcher{count: 5, rows: 5}
	f := newDataServiceFixture(t, fetcher)

	resp, err := f.svc.Observations(context.Background(), service.ObservationsRequest{SeriesID: "GNPCA"})
	require.NoError(t, err)

	assert.Equal(t, service.OutputModeScreen, resp["output_mode"])
	// One preview fetch plus one full fetch, no job created.
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Equal(t, int32(1), fetcher.limited.Load())
	assert.Empty(t, f.jobs.ListJobs())
}

func TestObservationsLargeResultIsAccepted(t *testing.T) {
	fetcher := &stubFetcher{count: 20000, rows: 50}
	f := newDataServiceFixture(t, fetcher)

	resp, err := f.svc.Observations(context.Background(), service.ObservationsRequest{SeriesID: "GNPCA"})
	require.NoError(t, err)

	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, service.OutputModeFile, resp["output_mode"])
	assert.Equal(t, "GNPCA", resp["series_id"])
	assert.Equal(t, 20000, resp["estimated_rows"])
	// 20000 rows -> 10 batches of 2000 -> 150 seconds, inside the clamp.
	assert.Equal(t, 150, resp["estimated_time_seconds"])

	jobID := resp["job_id"].(string)
	require.NotEmpty(t, jobID)

	var got *model.Job
	require.Eventually(t, func() bool {
		job, err := f.jobs.GetJob(jobID)
		if err != nil {
			return false
		}
		got = job
		return job.Status == model.JobStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	result, ok := got.Result.(map[string]any)
	require.True(t, ok)
	path := result["file_path"].(string)
	assert.True(t, strings.HasPrefix(path, f.root))
	assert.Contains(t, path, "series")

	total, ok := got.Progress.Value("estimated_total")
	require.True(t, ok)
	assert.Equal(t, int64(20000), total)
}

func TestObservationsCallerLimitCapsEstimate(t *testing.T) {
	fetcher := &stubFetcher{count: 20000, rows: 5}
	f := newDataServiceFixture(t, fetcher)

	// A caller limit below the job threshold keeps the request synchronous.
	resp, err := f.svc.Observations(context.Background(), service.ObservationsRequest{SeriesID: "GNPCA", Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, service.OutputModeScreen, resp["output_mode"])
	assert.Empty(t, f.jobs.ListJobs())
}

func TestObservationsPreviewFailurePropagates(t *testing.T) {
	fetcher := &stubFetcher{err: common.NewAPIError(common.CodeNotFound, "no entity matched series_id=NOSUCH")}
	f := newDataServiceFixture(t, fetcher)

	_, err := f.svc.Observations(context.Background(), service.ObservationsRequest{SeriesID: "NOSUCH"})
	assert.True(t, common.IsCode(err, common.CodeNotFound))
	assert.Empty(t, f.jobs.ListJobs())
}

func TestEstimateSecondsClamps(t *testing.T) {
	assert.Equal(t, 15, service.EstimateSeconds(2000))
	assert.Equal(t, 15, service.EstimateSeconds(1))
	assert.Equal(t, 150, service.EstimateSeconds(20000))
	assert.Equal(t, 900, service.EstimateSeconds(10_000_000))
}
