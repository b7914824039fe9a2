package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/engine"
)

// =============================================================================
// Recorder
// =============================================================================

// Recorder writes the history of one pipeline run as it executes. It is an
// engine.Observer; persistence failures are logged and never stop the run.
type Recorder struct {
	store  Store
	logger *slog.Logger

	mu  sync.Mutex
	run *domain.Run
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder for run.
func NewRecorder(s Store, run *domain.Run, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  s,
		run:    run,
		logger: logger.With("component", "history", "run_id", run.ID),
	}
}

// Start stores the run and moves it to running.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.run.Transition(domain.RunStatusRunning); err != nil {
		return err
	}
	return r.store.CreateRun(ctx, r.run)
}

// StepStarted records a step about to execute.
func (r *Recorder) StepStarted(ctx context.Context, id engine.StepID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.run.StartStep(string(id))
	r.save(ctx, rec)
}

// StepFinished records the state a step ended in.
func (r *Recorder) StepFinished(ctx context.Context, id engine.StepID, state domain.DeploymentState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.run.FinishStep(string(id), state)
	if err != nil {
		r.logger.Error("failed to record step", "step", id, "error", err)
		return
	}
	r.save(ctx, rec)
}

// Finish stores the verdict of the run.
func (r *Recorder) Finish(ctx context.Context, result engine.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := ""
	if result.Err != nil {
		msg = result.Err.Error()
	}
	if err := r.run.Complete(result.Success, result.State, msg); err != nil {
		return err
	}
	return r.store.UpdateRun(context.WithoutCancel(ctx), r.run)
}

// Run returns a copy of the recorded run.
func (r *Recorder) Run() domain.Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := *r.run
	run.Steps = append([]domain.StepRecord(nil), r.run.Steps...)
	return run
}

func (r *Recorder) save(ctx context.Context, rec domain.StepRecord) {
	err := r.store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveStep(ctx, r.run.ID, rec); err != nil {
			return err
		}
		return tx.UpdateRun(ctx, r.run)
	})
	if err != nil {
		r.logger.Error("failed to record step", "step", rec.StepID, "error", err)
	}
}
