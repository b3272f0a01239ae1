package service

import (
	"fmt"
	"os"
	"time"

	"github.com/gosimple/slug"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"fredserve/internal/common"
	"fredserve/internal/output"
	"fredserve/internal/platform/config"
)

const (
	OutputModeAuto   = "auto"
	OutputModeScreen = "screen"
	OutputModeFile   = "file"

	FormatCSV  = "csv"
	FormatJSON = "json"
)

// HandleRequest describes one disposition decision: the payload, the caller's
// output preference, and where a file should land if one is written.
type HandleRequest struct {
	Data            any
	Operation       string
	Output          string
	Format          string
	Project         string
	Filename        string
	EstimatedRows   int
	EstimatedTokens int
	Subdir          string
	JobID           string
}

// OutputRouter decides, per response, whether data is returned inline or
// persisted to a file, and executes the chosen disposition.
type OutputRouter struct {
	cfg       *config.Config
	estimator *output.TokenEstimator
	flattener *output.Flattener
	resolver  *output.PathResolver
	writer    *output.FileWriter
	jobs      *JobManager
	log       *logrus.Entry
}

func NewOutputRouter(
	cfg *config.Config,
	estimator *output.TokenEstimator,
	flattener *output.Flattener,
	resolver *output.PathResolver,
	writer *output.FileWriter,
	jobs *JobManager,
) *OutputRouter {
	return &OutputRouter{
		cfg:       cfg,
		estimator: estimator,
		flattener: flattener,
		resolver:  resolver,
		writer:    writer,
		jobs:      jobs,
		log:       logrus.WithField("component", "output_router"),
	}
}

// Handle executes the disposition and returns the response payload handed
// back to the caller: inline data for screen mode, file metadata for file
// mode.
func (r *OutputRouter) Handle(req HandleRequest) (map[string]any, error) {
	if req.Output == "" {
		req.Output = OutputModeAuto
	}
	if req.Format == "" {
		req.Format = r.cfg.OutputFormat
	}

	records := output.ExtractRecords(req.Data)

	rows := req.EstimatedRows
	if rows == 0 {
		rows = len(records)
	}
	tokens := req.EstimatedTokens
	if tokens == 0 {
		if len(records) > 0 {
			tokens = r.estimator.EstimateRecords(records)
		} else {
			tokens = r.estimator.EstimateValue(req.Data)
		}
	}

	mode := req.Output
	if mode == OutputModeAuto {
		if rows > r.cfg.ScreenRowThreshold || r.estimator.ShouldSaveToFile(tokens, r.cfg.SafeTokenLimit) {
			mode = OutputModeFile
		} else {
			mode = OutputModeScreen
		}
	}

	if mode == OutputModeScreen {
		return map[string]any{
			"output_mode":      OutputModeScreen,
			"data":             req.Data,
			"estimated_tokens": tokens,
		}, nil
	}
	return r.writeFile(req, records, tokens)
}

func (r *OutputRouter) writeFile(req HandleRequest, records []map[string]any, tokens int) (map[string]any, error) {
	project := req.Project
	if project == "" {
		project = r.cfg.DefaultProject
	}
	format := req.Format
	// Non-tabular payloads cannot be rendered as CSV; fall back to a
	// structured document.
	if format == FormatCSV && len(records) == 0 {
		format = FormatJSON
	}

	filename := req.Filename
	if filename == "" {
		generated, err := defaultFilename(req.Operation, format)
		if err != nil {
			return nil, common.NewAPIErrorf(common.CodeJobError, "failed to generate filename: %v", err)
		}
		filename = generated
	}

	path, err := r.resolver.Resolve(project, filename, req.Subdir)
	if err != nil {
		return nil, err
	}

	rowsWritten := int64(len(records))
	switch format {
	case FormatCSV:
		fields, rows := r.flattener.Prepare(records)
		err = r.writer.WriteCSV(path, fields, rows, r.cfg.FileChunkSize, r.progressFunc(req.JobID))
	default:
		err = r.writer.WriteJSON(path, req.Data)
	}
	if err != nil {
		return nil, common.NewAPIErrorf(common.CodeWritePermissionDenied, "failed to write %s: %v", path, err)
	}

	size := int64(0)
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}

	r.log.WithFields(logrus.Fields{
		"operation": req.Operation,
		"path":      path,
		"rows":      rowsWritten,
		"bytes":     size,
	}).Info("payload written to file")

	return map[string]any{
		"output_mode":      OutputModeFile,
		"file_path":        path,
		"format":           format,
		"rows_written":     rowsWritten,
		"file_size_bytes":  size,
		"estimated_tokens": tokens,
	}, nil
}

// progressFunc forwards chunk progress into the owning job, if any.
func (r *OutputRouter) progressFunc(jobID string) output.ProgressFunc {
	if jobID == "" {
		return nil
	}
	return func(rowsWritten, bytesWritten int64) {
		err := r.jobs.UpdateProgress(jobID, map[string]any{
			"rows_written":     rowsWritten,
			"bytes_written":    bytesWritten,
			"last_progress_at": time.Now().UTC(),
		})
		if err != nil {
			r.log.WithField("job_id", jobID).WithError(err).Debug("progress update dropped")
		}
	}
}

// defaultFilename builds "<operation>_<timestamp>_<suffix>.<ext>". The nanoid
// suffix keeps two writes inside the same second from colliding.
func defaultFilename(operation, format string) (string, error) {
	stem := slug.Make(operation)
	if stem == "" {
		stem = "result"
	}
	suffix, err := gonanoid.New(6)
	if err != nil {
		return "", err
	}
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", stem, timestamp, suffix, format), nil
}
