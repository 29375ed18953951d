package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cwygoda/grabber/internal/adapter/processor"
	"github.com/cwygoda/grabber/internal/domain"
)

const pollBatch = 10

// Worker polls for pending jobs and processes them one at a time.
type Worker struct {
	svc          *domain.JobService
	registry     *processor.Registry
	pollInterval time.Duration
	maxRetries   int
	log          *zap.Logger
}

// New creates a new worker.
func New(svc *domain.JobService, registry *processor.Registry, pollInterval time.Duration, maxRetries int, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		svc:          svc,
		registry:     registry,
		pollInterval: pollInterval,
		maxRetries:   maxRetries,
		log:          log,
	}
}

// Run starts the worker loop until context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started", zap.Duration("poll_interval", w.pollInterval))
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker shutting down")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	jobs, err := w.svc.GetPending(ctx, pollBatch)
	if err != nil {
		w.log.Error("poll failed", zap.Error(err))
		return
	}

	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		w.processJob(ctx, &jobs[i])
	}
}

func (w *Worker) processJob(ctx context.Context, job *domain.Job) {
	log := w.log.With(zap.Int64("job_id", job.ID), zap.String("url", job.URL))

	proc := w.registry.Match(job.URL)
	if proc == nil {
		log.Warn("no processor for URL")
		w.svc.MarkFailed(ctx, job.ID, "no processor for URL")
		return
	}

	if err := w.svc.MarkProcessing(ctx, job.ID); err != nil {
		log.Warn("claim failed", zap.Error(err))
		return
	}

	// Refresh to pick up the attempt counter bumped by the claim.
	current, err := w.svc.Get(ctx, job.ID)
	if err != nil {
		log.Error("refresh failed", zap.Error(err))
		return
	}

	log.Info("processing", zap.String("processor", proc.Name()), zap.String("folder", current.Folder), zap.Int("attempt", current.Attempts))

	out, err := proc.Process(ctx, current)
	if err != nil {
		if current.CanRetry(w.maxRetries) {
			log.Warn("process failed, will retry", zap.Error(err))
			w.svc.MarkRetry(ctx, current.ID, err.Error())
		} else {
			log.Error("process failed, giving up", zap.Error(err))
			w.svc.MarkFailed(ctx, current.ID, err.Error())
		}
		return
	}

	log.Info("completed", zap.Int("saved", out.Saved), zap.Int("total", out.Total))
	w.svc.MarkComplete(ctx, current.ID, out)
}
