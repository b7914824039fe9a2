package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Deployment State
// =============================================================================

var ErrUnknownState = errors.New("unknown deployment state")

// DeploymentState is the outcome a pipeline step leaves behind.
type DeploymentState int

const (
	StateUnknown DeploymentState = iota
	StateRunning
	StateSuccess
	StateUnSuccessful
	StateHasError
	StateDone
)

var stateNames = map[DeploymentState]string{
	StateUnknown:      "unknown",
	StateRunning:      "running",
	StateSuccess:      "success",
	StateUnSuccessful: "unsuccessful",
	StateHasError:     "has_error",
	StateDone:         "done",
}

func (s DeploymentState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseDeploymentState is the inverse of String.
func ParseDeploymentState(value string) (DeploymentState, error) {
	for state, name := range stateNames {
		if name == value {
			return state, nil
		}
	}
	return StateUnknown, fmt.Errorf("%w: %q", ErrUnknownState, value)
}

// IsFatal reports whether the state aborts the whole pipeline.
func (s DeploymentState) IsFatal() bool {
	return s == StateHasError
}

// EndsBranch reports whether the state follows the failure edge.
// Neither UnSuccessful nor Done is an error; they end the current branch.
func (s DeploymentState) EndsBranch() bool {
	return s == StateUnSuccessful || s == StateDone
}

func (s DeploymentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DeploymentState) UnmarshalText(text []byte) error {
	parsed, err := ParseDeploymentState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
