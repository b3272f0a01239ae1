package handler

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fredserve/internal/app/service"
	"fredserve/internal/common"
	"fredserve/internal/domain/model"
)

type JobHandler struct {
	jobs *service.JobManager
}

func NewJobHandler(jobs *service.JobManager) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{jobID}", h.get)
	r.Post("/{jobID}/cancel", h.cancel)
}

func (h *JobHandler) get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := h.jobs.GetJob(jobID)
	if err != nil {
		common.RespondWithError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, job)
}

func (h *JobHandler) list(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidJobStatus(status) {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeInvalidStatusFilter, "status '%s' is not supported", status).
			WithDetail("allowed", []string{"accepted", "processing", "completed", "failed", "cancelled"}))
		return
	}

	offset := parseNonNegative(r.URL.Query().Get("offset"), 0)
	limit := parseNonNegative(r.URL.Query().Get("limit"), -1)

	jobs := h.jobs.ListJobs()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt)
	})
	if status != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.Status == model.JobStatus(status) {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	total := len(jobs)
	if offset > total {
		offset = total
	}
	end := total
	if limit >= 0 && offset+limit < total {
		end = offset + limit
	}
	page := jobs[offset:end]

	common.RespondWithJSON(w, http.StatusOK, map[string]any{
		"count":  total,
		"offset": offset,
		"limit":  limit,
		"jobs":   page,
	})
}

func (h *JobHandler) cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		// An empty or absent body is fine; reason is optional.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	if !h.jobs.CancelJob(jobID, body.Reason) {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeJobNotFound, "job '%s' was not found or already finished", jobID).
			WithDetail("job_id", jobID))
		return
	}

	common.RespondWithJSON(w, http.StatusOK, map[string]any{
		"job_id": jobID,
		"status": string(model.JobStatusCancelled),
		"reason": body.Reason,
	})
}

func parseNonNegative(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
