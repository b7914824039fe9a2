package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	ErrRunNameRequired      = errors.New("run name is required")
	ErrInvalidRunTransition = errors.New("invalid run status transition")
	ErrStepNotStarted       = errors.New("step was not started")
)

// =============================================================================
// Run Status
// =============================================================================

// RunStatus is the lifecycle status of one recorded pipeline run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal returns true if no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

var validRunTransitions = map[RunStatus][]RunStatus{
	RunStatusPending:   {RunStatusRunning, RunStatusFailed},
	RunStatusRunning:   {RunStatusSucceeded, RunStatusFailed},
	RunStatusSucceeded: {},
	RunStatusFailed:    {},
}

// ValidateRunTransition checks if a run status transition is valid.
func ValidateRunTransition(from, to RunStatus) error {
	allowed, exists := validRunTransitions[from]
	if !exists {
		return ErrInvalidRunTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidRunTransition
}

// =============================================================================
// Run
// =============================================================================

// StepRecord is the recorded outcome of one visited pipeline step.
type StepRecord struct {
	Seq        int             `json:"seq"`
	StepID     string          `json:"step_id"`
	State      DeploymentState `json:"state"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Run is the history record of one pipeline execution.
type Run struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ResourceGroup string          `json:"resource_group"`
	ClusterName   string          `json:"cluster_name"`
	Orchestrator  Orchestrator    `json:"orchestrator"`
	Status        RunStatus       `json:"status"`
	FinalState    DeploymentState `json:"final_state"`
	CurrentStep   string          `json:"current_step,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Steps         []StepRecord    `json:"steps,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// GenerateRunID generates a new run ID.
func GenerateRunID() string {
	return "run_" + uuid.New().String()[:8]
}

// NewRun creates a pending run record.
func NewRun(name, resourceGroup, clusterName string, orchestrator Orchestrator) (*Run, error) {
	if name == "" {
		return nil, ErrRunNameRequired
	}
	if !orchestrator.IsValid() {
		return nil, ErrUnsupportedOrchestrator
	}
	now := time.Now().UTC()
	return &Run{
		ID:            GenerateRunID(),
		Name:          name,
		ResourceGroup: resourceGroup,
		ClusterName:   clusterName,
		Orchestrator:  orchestrator,
		Status:        RunStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Transition attempts to move the run to a new status.
func (r *Run) Transition(to RunStatus) error {
	if err := ValidateRunTransition(r.Status, to); err != nil {
		return err
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	if to.IsTerminal() {
		now := r.UpdatedAt
		r.CompletedAt = &now
		r.CurrentStep = ""
	}
	return nil
}

// StartStep appends a record for a step that is about to execute.
func (r *Run) StartStep(stepID string) StepRecord {
	now := time.Now().UTC()
	rec := StepRecord{
		Seq:       len(r.Steps) + 1,
		StepID:    stepID,
		State:     StateRunning,
		StartedAt: now,
	}
	r.Steps = append(r.Steps, rec)
	r.CurrentStep = stepID
	r.UpdatedAt = now
	return rec
}

// FinishStep stores the state the most recent run of stepID ended in.
func (r *Run) FinishStep(stepID string, state DeploymentState) (StepRecord, error) {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if r.Steps[i].StepID != stepID {
			continue
		}
		now := time.Now().UTC()
		r.Steps[i].State = state
		r.Steps[i].FinishedAt = &now
		r.UpdatedAt = now
		return r.Steps[i], nil
	}
	return StepRecord{}, ErrStepNotStarted
}

// Complete marks the run finished with the executor's verdict.
func (r *Run) Complete(success bool, final DeploymentState, errorMessage string) error {
	to := RunStatusSucceeded
	if !success {
		to = RunStatusFailed
	}
	if err := r.Transition(to); err != nil {
		return err
	}
	r.FinalState = final
	r.ErrorMessage = errorMessage
	return nil
}
