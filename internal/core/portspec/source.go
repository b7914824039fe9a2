// Package portspec turns declarative port configuration into service ports.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// Two declaration styles are understood:
//   - manifest: one structured document with an explicit port mapping list
//     (container.docker.portMappings of a Marathon app definition)
//   - compose: service definitions with short or long syntax port entries
//
// Parsing is fail-fast: the first malformed entry aborts the whole call with
// an error that wraps domain.ErrInvalidFormat and names the file and value.
package portspec

import (
	"errors"
	"fmt"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Sources and Formats
// =============================================================================

// Source is the raw content of one declaration file. Path is only used as a
// label in error messages.
type Source struct {
	Path    string
	Content []byte
}

// Format selects the declaration style of a set of sources.
type Format string

const (
	// FormatNone is used when the platform manages exposure itself.
	FormatNone     Format = "none"
	FormatManifest Format = "manifest"
	FormatCompose  Format = "compose"
)

var ErrUnknownFormat = errors.New("unknown port declaration format")

// FormatFor returns the declaration style deployment files use on the given
// orchestrator.
func FormatFor(o domain.Orchestrator) Format {
	switch o {
	case domain.OrchestratorDCOS:
		return FormatManifest
	case domain.OrchestratorSwarm:
		return FormatCompose
	default:
		return FormatNone
	}
}

// =============================================================================
// Errors
// =============================================================================

// FormatError describes a malformed declaration. It always unwraps to
// domain.ErrInvalidFormat.
type FormatError struct {
	Path    string // file the declaration came from
	Value   string // offending value or field path
	Message string
	Err     error
}

func (e *FormatError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	prefix := "invalid port declaration"
	if e.Path != "" {
		prefix = e.Path + ": " + prefix
	}
	if e.Value != "" {
		return fmt.Sprintf("%s %q: %s", prefix, e.Value, msg)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *FormatError) Unwrap() error {
	return domain.ErrInvalidFormat
}

// NewFormatError creates a new FormatError.
func NewFormatError(path, value, message string, err error) *FormatError {
	return &FormatError{Path: path, Value: value, Message: message, Err: err}
}

// =============================================================================
// Parse
// =============================================================================

// Parse reads every source in the given style and concatenates the ports in
// source and document order.
func Parse(format Format, sources []Source) ([]domain.ServicePort, error) {
	var parseOne func(Source) ([]domain.ServicePort, error)
	switch format {
	case FormatNone:
		return []domain.ServicePort{}, nil
	case FormatManifest:
		parseOne = ParseManifest
	case FormatCompose:
		parseOne = ParseCompose
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	ports := []domain.ServicePort{}
	for _, src := range sources {
		parsed, err := parseOne(src)
		if err != nil {
			return nil, err
		}
		ports = append(ports, parsed...)
	}
	return ports, nil
}
