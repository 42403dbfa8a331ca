package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	defaultJobLimit = 20
	maxJobLimit     = 200
)

type jobResponse struct {
	Message     string     `json:"message,omitempty"`
	Job         *store.Job `json:"job,omitempty"`
	EstimatedMs int64      `json:"estimated_ms,omitempty"`
}

// CreateJobHandler queues a summarization job and answers 202 with its id.
// Jobs go to the work queue when one is configured and run in process
// otherwise.
func CreateJobHandler(c echo.Context) error {
	data := new(summarizeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, jobResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil || (data.Text == "" && data.URL == "") {
		return c.JSON(http.StatusBadRequest, jobResponse{
			Message: "Invalid request body",
		})
	}

	id, err := gonanoid.New()
	if err != nil {
		logger.Error("Failed to generate job id", "err", err)
		return c.JSON(http.StatusInternalServerError, jobResponse{
			Message: "Internal server error",
		})
	}
	msg := data.message(id)
	method, opts, err := msg.Request()
	if err != nil {
		return c.JSON(http.StatusBadRequest, jobResponse{
			Message: err.Error(),
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	if app.Publisher == nil && app.Runner == nil {
		return c.JSON(http.StatusServiceUnavailable, jobResponse{
			Message: "Background jobs are not enabled",
		})
	}

	now := time.Now().UTC()
	job := store.Job{
		ID:        id,
		Source:    msg.Source(),
		Method:    method,
		Options:   opts,
		Status:    store.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := app.Store.CreateJob(ctx, job); err != nil {
		logger.Error("Failed to create job", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, jobResponse{
			Message: "Internal server error",
		})
	}

	if app.Publisher != nil {
		body, err := json.Marshal(msg)
		if err == nil {
			err = app.Publisher.Publish(ctx, app.Queue, body, nil)
		}
		if err != nil {
			logger.Error("Failed to publish job", "id", id, "err", err)
			reason := "failed to enqueue job"
			_ = app.Store.UpdateJob(ctx, id, store.JobUpdate{Status: store.JobFailed, Error: &reason})
			return c.JSON(http.StatusInternalServerError, jobResponse{
				Message: "Internal server error",
			})
		}
	} else {
		go func() {
			_, _ = app.Runner.Handle(context.WithoutCancel(ctx), msg)
		}()
	}

	var estimate time.Duration
	if data.Text != "" {
		estimate = app.Pipeline.Estimate(ctx, data.Text)
	}
	return c.JSON(http.StatusAccepted, jobResponse{
		Message:     "Job accepted",
		Job:         &job,
		EstimatedMs: estimate.Milliseconds(),
	})
}

// GetJobHandler returns one job with its result once finished.
func GetJobHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	job, err := app.Store.GetJob(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, jobResponse{
			Message: "Job not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load job", "id", c.Param("id"), "err", err)
		return c.JSON(http.StatusInternalServerError, jobResponse{
			Message: "Internal server error",
		})
	}
	return c.JSON(http.StatusOK, jobResponse{Job: &job})
}

// ListJobsHandler returns the newest jobs, ?limit= of them (default 20).
func ListJobsHandler(c echo.Context) error {
	type listJobsResponse struct {
		Message string      `json:"message,omitempty"`
		Jobs    []store.Job `json:"jobs"`
	}

	limit := defaultJobLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, listJobsResponse{
				Message: "Invalid limit",
				Jobs:    []store.Job{},
			})
		}
		limit = min(n, maxJobLimit)
	}

	app := c.(*middleware.AppContext).App
	jobs, err := app.Store.ListJobs(c.Request().Context(), limit)
	if err != nil {
		logger.Error("Failed to list jobs", "err", err)
		return c.JSON(http.StatusInternalServerError, listJobsResponse{
			Message: "Internal server error",
			Jobs:    []store.Job{},
		})
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	return c.JSON(http.StatusOK, listJobsResponse{Jobs: jobs})
}

// GetJobDownloadHandler returns a temporary link to the exported result.
func GetJobDownloadHandler(c echo.Context) error {
	type downloadResponse struct {
		Message string `json:"message,omitempty"`
		URL     string `json:"url,omitempty"`
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	if app.Downloader == nil {
		return c.JSON(http.StatusNotFound, downloadResponse{
			Message: "Exports are not enabled",
		})
	}

	job, err := app.Store.GetJob(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, downloadResponse{
			Message: "Job not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load job", "id", c.Param("id"), "err", err)
		return c.JSON(http.StatusInternalServerError, downloadResponse{
			Message: "Internal server error",
		})
	}
	if job.ExportKey == "" {
		return c.JSON(http.StatusNotFound, downloadResponse{
			Message: "Job has no export",
		})
	}

	link, err := app.Downloader.DownloadLink(ctx, job.ExportKey, app.PublicEndpoint)
	if err != nil {
		logger.Error("Failed to create download link", "id", job.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, downloadResponse{
			Message: "Internal server error",
		})
	}
	return c.JSON(http.StatusOK, downloadResponse{URL: link})
}
