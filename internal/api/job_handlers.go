package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/racktables-migrator/internal/logging"
	"github.com/rflorenc/racktables-migrator/internal/models"
)

// StartRun starts an async migration run. Only one run may be active.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var f models.Filters
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	switch f.Subset {
	case "", models.SubsetAll, models.SubsetBasic, models.SubsetExtended:
	default:
		writeError(w, http.StatusBadRequest, "subset must be all, basic or extended")
		return
	}

	jobType := "migrate"
	if f.DryRun {
		jobType = "plan"
	}
	job := s.Jobs.Create(jobType, f)
	if job == nil {
		writeError(w, http.StatusConflict, "another run is active")
		return
	}

	runner, err := s.NewRunner(logging.ForJob(s.Log, job.AppendLog).WithField("job", job.ID))
	if err != nil {
		job.AppendLog("ERROR: " + err.Error())
		job.Fail(nil, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job.SetCancel(cancel)
	go func() {
		defer cancel()
		report, err := runner.Run(ctx, f)
		switch {
		case err == nil:
			job.Complete(report)
		case errors.Is(err, context.Canceled):
			job.Cancelled(report)
		default:
			job.AppendLog("ERROR: " + err.Error())
			job.Fail(report, err.Error())
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Jobs.List())
}

func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	job := s.Jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelRun asks a running job to stop. The run ends after the record in
// flight.
func (s *Server) CancelRun(w http.ResponseWriter, r *http.Request) {
	job := s.Jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if job.Done() {
		writeError(w, http.StatusConflict, "run is not running")
		return
	}
	job.Cancel()
	job.AppendLog("CANCELLED: migration stopped by user")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}
