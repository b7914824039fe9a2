// Package workspace reads deployment files from the build workspace and
// describes the clusters deployments can target.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/moby/patternmatcher"
	"github.com/spf13/afero"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
)

var (
	ErrNoPatterns = errors.New("no deployment file patterns configured")
	ErrNoFiles    = errors.New("no deployment files matched")
)

// Loader finds deployment files below a workspace root.
type Loader struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

// NewLoader creates a loader over fsys rooted at root.
func NewLoader(fsys afero.Fs, root string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		root = "."
	}
	return &Loader{
		fs:     fsys,
		root:   root,
		logger: logger.With("component", "workspace"),
	}
}

// Load reads every file matching patterns, in lexical path order. Patterns
// use the .dockerignore syntax: "**" crosses directories and a leading "!"
// excludes. Placeholders are replaced with variables when substitute is set.
func (l *Loader) Load(patterns []string, substitute bool, variables map[string]string) ([]portspec.Source, error) {
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid deployment file pattern: %w", err)
	}

	var sources []portspec.Source
	err = afero.Walk(l.fs, l.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		match, err := pm.MatchesOrParentMatches(rel)
		if err != nil || !match {
			return err
		}

		content, err := afero.ReadFile(l.fs, path)
		if err != nil {
			return err
		}
		if substitute {
			content = []byte(deployment.SubstituteVariables(string(content), variables))
		}
		sources = append(sources, portspec.Source{Path: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read workspace %s: %w", l.root, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoFiles, patterns)
	}

	l.logger.Debug("loaded deployment files", "count", len(sources), "substitute", substitute)
	return sources, nil
}
