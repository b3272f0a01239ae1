package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"fredserve/internal/common"
	"fredserve/internal/output"
	"fredserve/internal/platform/config"
)

// ObservationsFetcher is the slice of the series endpoint the data service
// needs. *fred.SeriesAPI satisfies it.
type ObservationsFetcher interface {
	Observations(ctx context.Context, seriesID string, params map[string]string) (map[string]any, error)
}

// JobSubmitter is the slice of the background worker the data service needs.
type JobSubmitter interface {
	Submit(jobID string, body func(ctx context.Context) error) error
}

// OutputOptions carries the caller's disposition preferences through the
// tool surface.
type OutputOptions struct {
	Output   string `json:"output" validate:"omitempty,oneof=auto screen file"`
	Format   string `json:"format" validate:"omitempty,oneof=csv json"`
	Project  string `json:"project"`
	Filename string `json:"filename"`
}

// DataService orchestrates observation requests: small results are routed
// synchronously, large ones are accepted immediately and completed by a
// background job.
type DataService struct {
	cfg      *config.Config
	series   ObservationsFetcher
	jobs     *JobManager
	worker   JobSubmitter
	router   *OutputRouter
	log      *logrus.Entry
}

func NewDataService(cfg *config.Config, series ObservationsFetcher, jobs *JobManager, worker JobSubmitter, router *OutputRouter) *DataService {
	return &DataService{
		cfg:    cfg,
		series: series,
		jobs:   jobs,
		worker: worker,
		router: router,
		log:    logrus.WithField("component", "data_service"),
	}
}

type ObservationsRequest struct {
	SeriesID string
	Params   map[string]string
	Limit    int
	Options  OutputOptions
}

// Observations fetches time series data points. A cheap preview fetch
// estimates the total row count; requests above the job threshold return an
// accepted response with a job id instead of blocking the caller.
func (s *DataService) Observations(ctx context.Context, req ObservationsRequest) (map[string]any, error) {
	preview, err := s.series.Observations(ctx, req.SeriesID, withLimit(req.Params, "1"))
	if err != nil {
		return nil, err
	}

	total := payloadCount(preview)
	requested := total
	if req.Limit > 0 && req.Limit < total {
		requested = req.Limit
	}

	if requested > s.cfg.JobRowThreshold {
		return s.scheduleObservationsJob(req, requested)
	}

	payload, err := s.series.Observations(ctx, req.SeriesID, req.Params)
	if err != nil {
		return nil, err
	}
	return s.router.Handle(HandleRequest{
		Data:          payload,
		Operation:     "series_observations",
		Output:        req.Options.Output,
		Format:        req.Options.Format,
		Project:       req.Options.Project,
		Filename:      req.Options.Filename,
		EstimatedRows: len(output.ExtractRecords(payload)),
		Subdir:        "series",
	})
}

func (s *DataService) scheduleObservationsJob(req ObservationsRequest, estimatedRows int) (map[string]any, error) {
	project := req.Options.Project
	if project == "" {
		project = s.cfg.DefaultProject
	}
	format := req.Options.Format
	if format == "" {
		format = s.cfg.OutputFormat
	}

	job := s.jobs.CreateJob()
	_ = s.jobs.UpdateProgress(job.ID, map[string]any{
		"estimated_total": estimatedRows,
		"project":         project,
		"request": map[string]any{
			"operation": "series_observations",
			"series_id": req.SeriesID,
			"params":    req.Params,
		},
	})

	seriesID := req.SeriesID
	params := req.Params
	filename := req.Options.Filename
	jobID := job.ID

	body := func(ctx context.Context) error {
		payload, err := s.series.Observations(ctx, seriesID, params)
		if err != nil {
			return err
		}
		result, err := s.router.Handle(HandleRequest{
			Data:          payload,
			Operation:     "series_observations",
			Output:        OutputModeFile,
			Format:        format,
			Project:       project,
			Filename:      filename,
			EstimatedRows: len(output.ExtractRecords(payload)),
			Subdir:        "series",
			JobID:         jobID,
		})
		if err != nil {
			return err
		}
		return s.jobs.CompleteJob(jobID, result)
	}

	if err := s.worker.Submit(jobID, body); err != nil {
		s.jobs.FailJob(jobID, common.AsAPIError(err, common.CodeJobError))
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":         jobID,
		"series_id":      seriesID,
		"estimated_rows": estimatedRows,
	}).Info("large dataset scheduled for background processing")

	return map[string]any{
		"status":                 "accepted",
		"job_id":                 jobID,
		"message":                "Large dataset detected. Processing in background...",
		"estimated_rows":         estimatedRows,
		"estimated_time_seconds": estimateSeconds(estimatedRows),
		"output_mode":            OutputModeFile,
		"project":                project,
		"series_id":              seriesID,
		"operation":              "series_observations",
		"check_status":           "Poll the job status endpoint with this job_id",
	}, nil
}

// estimateSeconds is a coarse ETA: 15 seconds per 2000 rows, clamped to
// [10, 900].
func estimateSeconds(rows int) int {
	batches := rows / 2000
	if batches < 1 {
		batches = 1
	}
	estimate := batches * 15
	if estimate < 10 {
		return 10
	}
	if estimate > 900 {
		return 900
	}
	return estimate
}

func withLimit(params map[string]string, limit string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["limit"] = limit
	return out
}

// payloadCount reads the total count FRED reports on paginated responses,
// falling back to the record list length.
func payloadCount(payload map[string]any) int {
	if count, ok := payload["count"].(float64); ok {
		return int(count)
	}
	return len(output.ExtractRecords(payload))
}
