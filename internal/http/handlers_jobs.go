// Package httpx provides HTTP handlers and utilities for the genrelay API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/stokehq/genrelay/internal/domain/model"
	"github.com/stokehq/genrelay/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc     *service.JobService
	Tracker *service.Tracker
}

// CreateJob accepts a generation request, submits it to the provider, and
// starts the tracking loop for the new job.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Submit(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	if h.Tracker != nil {
		h.Tracker.Track(job.ID)
	}

	WriteJSON(w, http.StatusCreated, job)
}

// GetJob returns the current state of a job.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Svc.GetByID(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}
