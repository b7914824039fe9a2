package api

import "time"

// =============================================================================
// Response Types
// =============================================================================

// StepResponse is one visited step of a run.
type StepResponse struct {
	Seq        int        `json:"seq"`
	StepID     string     `json:"step_id"`
	State      string     `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunResponse is the response for run operations.
type RunResponse struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	ResourceGroup string         `json:"resource_group"`
	ClusterName   string         `json:"cluster_name"`
	Orchestrator  string         `json:"orchestrator"`
	Status        string         `json:"status"`
	FinalState    string         `json:"final_state"`
	CurrentStep   string         `json:"current_step,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Steps         []StepResponse `json:"steps,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// ListRunsResponse is the response for listing runs.
type ListRunsResponse struct {
	Runs   []RunResponse `json:"runs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
