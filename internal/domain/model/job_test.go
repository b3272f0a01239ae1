package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminal(t *testing.T) {
	assert.False(t, JobStatusAccepted.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}

func TestValidJobStatus(t *testing.T) {
	assert.True(t, ValidJobStatus("accepted"))
	assert.True(t, ValidJobStatus("cancelled"))
	assert.False(t, ValidJobStatus("running"))
	assert.False(t, ValidJobStatus(""))
}

func TestProgressMergeRoutesWellKnownKeys(t *testing.T) {
	now := time.Now().UTC()
	p := Progress{}
	p.Merge(map[string]any{
		"rows_written":     1000,
		"bytes_written":    int64(4096),
		"estimated_total":  float64(20000),
		"last_progress_at": now,
		"project":          "research",
	})

	require.NotNil(t, p.RowsWritten)
	assert.Equal(t, int64(1000), *p.RowsWritten)
	require.NotNil(t, p.BytesWritten)
	assert.Equal(t, int64(4096), *p.BytesWritten)
	require.NotNil(t, p.EstimatedTotal)
	assert.Equal(t, int64(20000), *p.EstimatedTotal)
	require.NotNil(t, p.LastProgressAt)
	assert.Equal(t, now, *p.LastProgressAt)
	assert.Equal(t, "research", p.Extra["project"])

	// Later merges overwrite the hot fields.
	p.Merge(map[string]any{"rows_written": 2000})
	assert.Equal(t, int64(2000), *p.RowsWritten)
}

func TestProgressValue(t *testing.T) {
	p := Progress{}
	_, ok := p.Value("rows_written")
	assert.False(t, ok)

	p.Merge(map[string]any{"rows_written": 5, "custom": "x"})
	v, ok := p.Value("rows_written")
	require.True(t, ok)
	assert.Equal(t, int64(5), v)
	v, ok = p.Value("custom")
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestProgressMarshalJSON(t *testing.T) {
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	p := Progress{}
	p.Merge(map[string]any{
		"rows_written":     42,
		"last_progress_at": at,
		"project":          "research",
	})

	encoded, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, float64(42), decoded["rows_written"])
	assert.Equal(t, "2026-08-23T12:00:00Z", decoded["last_progress_at"])
	assert.Equal(t, "research", decoded["project"])
}

func TestJobCloneIsIndependent(t *testing.T) {
	job := &Job{ID: "j1", Status: JobStatusProcessing}
	job.Progress.Merge(map[string]any{"rows_written": 1})

	clone := job.Clone()
	clone.Status = JobStatusCompleted
	clone.Progress.Merge(map[string]any{"rows_written": 99})

	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, int64(1), *job.Progress.RowsWritten)
	assert.Equal(t, int64(99), *clone.Progress.RowsWritten)
}
