// Package ingest runs queued CV imports in the background.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/apptrack/internal/extract"
	"github.com/kalambet/apptrack/internal/storage"
)

// JobCVExtract is the job type of a queued CV import.
const JobCVExtract = "cv_extract"

// Upload outcomes besides the profile.Outcome values.
const (
	// OutcomePending marks an upload whose import has not run yet.
	OutcomePending = "pending"
	// OutcomeFailed marks an upload whose import job ran out of attempts.
	OutcomeFailed = "failed"
)

// JobStore abstracts the job queue and upload operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) (bool, error)
	GetCVUpload(id string) (storage.CVUpload, error)
	SetCVUploadOutcome(id, outcome string) error
}

// Importer extracts a profile from CV text and merges it.
type Importer interface {
	Import(ctx context.Context, userID int64, cvText string) (extract.Result, error)
}

// Worker processes cv_extract jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	importer Importer
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, importer Importer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		importer: importer,
		poll:     pollInterval,
		logger:   slog.Default().With("component", "ingest"),
	}
}

type cvPayload struct {
	UploadID string `json:"upload_id"`
}

// Enqueuer adds jobs to the queue.
type Enqueuer interface {
	SaveCVUpload(u storage.CVUpload) error
	EnqueueJob(job storage.Job) error
}

// EnqueueCV stores the CV text of userID and queues its import. It returns
// the upload ID, which the caller can poll for the outcome.
func EnqueueCV(store Enqueuer, userID int64, filename, text string) (string, error) {
	upload := storage.CVUpload{
		ID:       uuid.New().String(),
		UserID:   userID,
		Filename: filename,
		Text:     text,
		Outcome:  OutcomePending,
	}
	if err := store.SaveCVUpload(upload); err != nil {
		return "", err
	}

	payload, err := json.Marshal(cvPayload{UploadID: upload.ID})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobCVExtract,
		PayloadJSON: string(payload),
	}
	if err := store.EnqueueJob(job); err != nil {
		return "", fmt.Errorf("enqueueing cv import: %w", err)
	}
	return upload.ID, nil
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single cv_extract job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobCVExtract})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	var payload cvPayload
	err = json.Unmarshal([]byte(job.PayloadJSON), &payload)
	if err != nil {
		err = fmt.Errorf("parsing payload: %w", err)
	} else {
		err = w.importUpload(ctx, payload.UploadID)
	}
	if err != nil {
		w.fail(job, payload.UploadID, err)
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// fail records a failed attempt. When no retry is left the upload is marked
// failed so pollers stop waiting.
func (w *Worker) fail(job *storage.Job, uploadID string, cause error) {
	log := w.logger.With("job_id", job.ID, "upload_id", uploadID)
	log.Warn("job failed", "attempt", job.Attempts+1, "error", cause)

	retry, err := w.store.FailJob(job.ID, cause.Error())
	if err != nil {
		log.Error("failed to mark job as failed", "error", err)
		return
	}
	if retry || uploadID == "" {
		return
	}
	if err := w.store.SetCVUploadOutcome(uploadID, OutcomeFailed); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error("recording failed outcome", "error", err)
	}
}

func (w *Worker) importUpload(ctx context.Context, uploadID string) error {
	upload, err := w.store.GetCVUpload(uploadID)
	if err != nil {
		return fmt.Errorf("loading cv upload %s: %w", uploadID, err)
	}

	res, err := w.importer.Import(ctx, upload.UserID, upload.Text)
	if err != nil {
		return fmt.Errorf("importing cv: %w", err)
	}

	if err := w.store.SetCVUploadOutcome(upload.ID, res.Outcome.String()); err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}

	w.logger.Info("cv imported",
		"upload_id", upload.ID,
		"user_id", upload.UserID,
		"outcome", res.Outcome,
		"sections", len(res.Patch.Sections()),
	)
	return nil
}
