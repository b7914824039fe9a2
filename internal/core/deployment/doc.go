// Package deployment provides pure functions for deploying workloads onto a
// cluster master over SSH.
//
// This package contains the functional core logic shared by the deployment
// steps. All functions are pure (no I/O, no side effects).
//
// # Functions
//
//   - Variables: Substitute $VAR, ${VAR} and ${VAR:-default} placeholders (SubstituteVariables)
//   - Naming: Generate remote file and compose project names (RemoteFileName, ProjectName)
//   - Commands: Build the shell commands run on the master (ComposeUpCommand, MarathonDeployCommand, ...)
//   - Build gating: Decide whether a CI build result allows deploying (RunOn.Allows)
//
// # Usage
//
// The imperative shell (internal/shell/steps) uses these pure functions to
// render commands, then runs them through an SSH session.
//
//	remote := deployment.RemoteFileName("yml", time.Now())
//	cmd := deployment.ComposeUpCommand(remote, project)
package deployment
