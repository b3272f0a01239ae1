package model

import (
	"encoding/json"
	"time"

	"fredserve/internal/common"
)

type JobStatus string

const (
	JobStatusAccepted   JobStatus = "accepted"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is absorbing. Terminal jobs never
// transition again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ValidJobStatus reports whether s names a known status value.
func ValidJobStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusAccepted, JobStatusProcessing, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Progress tracks how far a job has come. The hot fields written by the
// chunked file writer are typed; anything else (request echo, project name)
// lands in the open Extra bag.
type Progress struct {
	RowsWritten    *int64
	BytesWritten   *int64
	EstimatedTotal *int64
	LastProgressAt *time.Time
	Extra          map[string]any
}

// Merge folds loosely-typed progress fields into the structure, routing
// well-known keys to their typed slots.
func (p *Progress) Merge(fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "rows_written":
			if n, ok := asInt64(value); ok {
				p.RowsWritten = &n
			}
		case "bytes_written":
			if n, ok := asInt64(value); ok {
				p.BytesWritten = &n
			}
		case "estimated_total":
			if n, ok := asInt64(value); ok {
				p.EstimatedTotal = &n
			}
		case "last_progress_at":
			if t, ok := value.(time.Time); ok {
				p.LastProgressAt = &t
			}
		default:
			if p.Extra == nil {
				p.Extra = map[string]any{}
			}
			p.Extra[key] = value
		}
	}
}

// Value looks up a progress field by its wire name.
func (p *Progress) Value(key string) (any, bool) {
	switch key {
	case "rows_written":
		if p.RowsWritten != nil {
			return *p.RowsWritten, true
		}
	case "bytes_written":
		if p.BytesWritten != nil {
			return *p.BytesWritten, true
		}
	case "estimated_total":
		if p.EstimatedTotal != nil {
			return *p.EstimatedTotal, true
		}
	case "last_progress_at":
		if p.LastProgressAt != nil {
			return *p.LastProgressAt, true
		}
	default:
		v, ok := p.Extra[key]
		return v, ok
	}
	return nil, false
}

func (p Progress) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.RowsWritten != nil {
		out["rows_written"] = *p.RowsWritten
	}
	if p.BytesWritten != nil {
		out["bytes_written"] = *p.BytesWritten
	}
	if p.EstimatedTotal != nil {
		out["estimated_total"] = *p.EstimatedTotal
	}
	if p.LastProgressAt != nil {
		out["last_progress_at"] = p.LastProgressAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(out)
}

func (p *Progress) clone() Progress {
	out := Progress{}
	if p.RowsWritten != nil {
		v := *p.RowsWritten
		out.RowsWritten = &v
	}
	if p.BytesWritten != nil {
		v := *p.BytesWritten
		out.BytesWritten = &v
	}
	if p.EstimatedTotal != nil {
		v := *p.EstimatedTotal
		out.EstimatedTotal = &v
	}
	if p.LastProgressAt != nil {
		v := *p.LastProgressAt
		out.LastProgressAt = &v
	}
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Job is an asynchronous unit of work tracked in memory. Result and Error
// are mutually exclusive; both stay unset until a terminal transition.
type Job struct {
	ID         string           `json:"job_id"`
	Status     JobStatus        `json:"status"`
	Progress   Progress         `json:"progress"`
	Result     any              `json:"result,omitempty"`
	Error      *common.APIError `json:"error,omitempty"`
	RetryCount int              `json:"retry_count"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Clone returns a copy safe to hand to callers while the original keeps
// mutating under the store lock.
func (j *Job) Clone() *Job {
	out := *j
	out.Progress = j.Progress.clone()
	if j.Error != nil {
		errCopy := *j.Error
		out.Error = &errCopy
	}
	return &out
}
