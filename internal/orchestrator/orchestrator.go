// Package orchestrator is the durable bounded-concurrency job queue
// (spec §4.10), grounded on app/queue/job_queue.py's JobOrchestrator.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/falconwiki/falcon/internal/pipeline"
	"github.com/falconwiki/falcon/internal/store"
)

// Orchestrator polls the store for claimable jobs and runs them
// through the wiki generation pipeline with bounded concurrency.
type Orchestrator struct {
	Store        *store.Store
	Pipeline     *pipeline.Pipeline
	MaxConcurrent int
	PollInterval time.Duration
	WorkerID     string
	Logger       *slog.Logger

	mu         sync.Mutex
	active     map[string]context.CancelFunc
	slots      chan struct{}
	cancelPoll context.CancelFunc
	wg         sync.WaitGroup
}

// New constructs an Orchestrator. WorkerID defaults to a random UUID
// if empty, identifying this process's claims in the jobs table.
func New(st *store.Store, pl *pipeline.Pipeline, maxConcurrent int, pollInterval time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Store: st, Pipeline: pl, MaxConcurrent: maxConcurrent, PollInterval: pollInterval,
		WorkerID: uuid.NewString(), Logger: logger,
		active: make(map[string]context.CancelFunc),
		slots:  make(chan struct{}, maxConcurrent),
	}
}

// Start resets orphaned running jobs to queued (crash recovery) and
// spawns the poll loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	n, err := o.Store.ResetOrphanedJobs(ctx)
	if err != nil {
		return fmt.Errorf("reset orphaned jobs: %w", err)
	}
	if n > 0 {
		o.Logger.Info("reset orphaned running jobs", "count", n)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	o.cancelPoll = cancel

	o.wg.Add(1)
	go o.pollLoop(pollCtx)

	o.Logger.Info("job orchestrator started", "max_concurrent", o.MaxConcurrent)
	return nil
}

// Stop halts polling and cancels every in-flight job, waiting for
// them to terminate before returning.
func (o *Orchestrator) Stop() {
	if o.cancelPoll != nil {
		o.cancelPoll()
	}

	o.mu.Lock()
	for _, cancel := range o.active {
		cancel()
	}
	o.mu.Unlock()

	o.wg.Wait()
	o.Logger.Info("job orchestrator stopped")
}

func (o *Orchestrator) pollLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case o.slots <- struct{}{}:
		}

		job, err := o.Store.ClaimNextJob(ctx, o.WorkerID)
		if err != nil {
			o.Logger.Error("poll loop error", "error", err)
			<-o.slots
		} else if job == nil {
			<-o.slots
		} else {
			o.wg.Add(1)
			jobCtx, cancel := context.WithCancel(context.Background())
			o.mu.Lock()
			o.active[job.ID] = cancel
			o.mu.Unlock()
			go o.runJob(jobCtx, cancel, job)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(o.PollInterval):
		}
	}
}

func (o *Orchestrator) runJob(ctx context.Context, cancel context.CancelFunc, job *store.Job) {
	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.active, job.ID)
		o.mu.Unlock()
		<-o.slots
		o.wg.Done()
	}()

	o.Logger.Info("starting job", "job_id", job.ID, "wiki_id", job.WikiID)

	err := o.Pipeline.Execute(ctx, job.WikiID)
	if err == nil {
		if err := o.Store.CompleteJob(ctx, job.ID); err != nil {
			o.Logger.Error("mark job completed failed", "job_id", job.ID, "error", err)
		}
		o.Logger.Info("job completed", "job_id", job.ID)
		return
	}

	o.Logger.Error("job failed", "job_id", job.ID, "error", err)
	if failErr := o.Store.FailJob(context.Background(), job.ID, err.Error(), job.Attempts, job.MaxAttempts); failErr != nil {
		o.Logger.Error("record job failure failed", "job_id", job.ID, "error", failErr)
	}
}
