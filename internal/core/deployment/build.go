package deployment

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Build Gating
// =============================================================================

var (
	ErrInvalidRunOn       = errors.New("run_on must be success or success_or_unstable")
	ErrInvalidBuildResult = errors.New("build result must be success, unstable, failure, not_built or aborted")
)

// BuildResult is the outcome of the CI build preceding a deployment.
// The empty value means the build has not finished yet (pipeline jobs).
type BuildResult string

const (
	BuildSuccess  BuildResult = "success"
	BuildUnstable BuildResult = "unstable"
	BuildFailure  BuildResult = "failure"
	BuildNotBuilt BuildResult = "not_built"
	BuildAborted  BuildResult = "aborted"
)

// ParseBuildResult accepts a build result in any case.
func ParseBuildResult(value string) (BuildResult, error) {
	r := BuildResult(strings.ToLower(strings.TrimSpace(value)))
	switch r {
	case "", BuildSuccess, BuildUnstable, BuildFailure, BuildNotBuilt, BuildAborted:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBuildResult, value)
	}
}

// RunOn selects which build results allow a deployment.
type RunOn string

const (
	RunOnSuccess           RunOn = "success"
	RunOnSuccessOrUnstable RunOn = "success_or_unstable"
)

// ParseRunOn accepts a RunOn value in any case. Empty means success.
func ParseRunOn(value string) (RunOn, error) {
	switch RunOn(strings.ToLower(strings.TrimSpace(value))) {
	case "", RunOnSuccess:
		return RunOnSuccess, nil
	case RunOnSuccessOrUnstable:
		return RunOnSuccessOrUnstable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRunOn, value)
	}
}

// Allows reports whether a build with the given result may be deployed.
// An unfinished build (empty result) is always allowed.
func (r RunOn) Allows(result BuildResult) bool {
	if result == "" {
		return true
	}
	switch r {
	case RunOnSuccess:
		return result == BuildSuccess
	case RunOnSuccessOrUnstable:
		return result == BuildSuccess || result == BuildUnstable
	default:
		return false
	}
}
