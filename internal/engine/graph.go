package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Graph Errors
// =============================================================================

var (
	ErrEmptyGraph    = errors.New("pipeline has no steps")
	ErrDuplicateStep = errors.New("step is defined twice")
	ErrNilStep       = errors.New("step implementation is nil")
	ErrUnknownStep   = errors.New("unknown step")
	ErrCycle         = errors.New("pipeline contains a cycle")
)

// =============================================================================
// Graph
// =============================================================================

// Node is a step together with its outgoing edges. An empty edge means the
// run stops when the step ends in the matching state.
type Node struct {
	ID        StepID
	Step      Step
	OnSuccess StepID
	OnFailure StepID
}

// Graph is an immutable, validated, acyclic pipeline.
type Graph struct {
	nodes map[StepID]Node
	order []StepID
	start StepID
}

// Node returns the node with the given ID.
func (g *Graph) Node(id StepID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Start returns the default start step.
func (g *Graph) Start() StepID {
	return g.start
}

// IDs returns the step IDs in the order they were added.
func (g *Graph) IDs() []StepID {
	return append([]StepID(nil), g.order...)
}

// =============================================================================
// Builder
// =============================================================================

// EdgeOption sets an outgoing edge of a node.
type EdgeOption func(*Node)

// OnSuccess follows to next when the step ends in Success.
func OnSuccess(next StepID) EdgeOption {
	return func(n *Node) { n.OnSuccess = next }
}

// OnFailure follows to next when the step ends in UnSuccessful or Done.
func OnFailure(next StepID) EdgeOption {
	return func(n *Node) { n.OnFailure = next }
}

// Builder assembles a Graph. Errors are collected and reported by Build.
type Builder struct {
	nodes map[StepID]Node
	order []StepID
	start StepID
	errs  []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[StepID]Node)}
}

// Add defines a step and its edges. The first step added is the default
// start step.
func (b *Builder) Add(id StepID, step Step, edges ...EdgeOption) *Builder {
	if _, exists := b.nodes[id]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateStep, id))
		return b
	}
	if step == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrNilStep, id))
		return b
	}
	n := Node{ID: id, Step: step}
	for _, edge := range edges {
		edge(&n)
	}
	b.nodes[id] = n
	b.order = append(b.order, id)
	if b.start == "" {
		b.start = id
	}
	return b
}

// StartAt overrides the default start step.
func (b *Builder) StartAt(id StepID) *Builder {
	b.start = id
	return b
}

// Build validates the graph: every edge must point at a defined step and
// the graph must be acyclic.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if len(b.nodes) == 0 {
		return nil, ErrEmptyGraph
	}
	if _, ok := b.nodes[b.start]; !ok {
		return nil, fmt.Errorf("%w: start step %s", ErrUnknownStep, b.start)
	}
	for _, id := range b.order {
		n := b.nodes[id]
		for _, next := range []StepID{n.OnSuccess, n.OnFailure} {
			if next == "" {
				continue
			}
			if _, ok := b.nodes[next]; !ok {
				return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownStep, id, next)
			}
		}
	}
	if err := detectCycle(b.nodes, b.order); err != nil {
		return nil, err
	}

	nodes := make(map[StepID]Node, len(b.nodes))
	for id, n := range b.nodes {
		nodes[id] = n
	}
	return &Graph{nodes: nodes, order: append([]StepID(nil), b.order...), start: b.start}, nil
}

// detectCycle runs a depth-first search over both edge kinds and reports
// the first cycle found with its path.
func detectCycle(nodes map[StepID]Node, order []StepID) error {
	visited := make(map[StepID]bool)
	onStack := make(map[StepID]bool)
	var path []StepID

	var visit func(id StepID) error
	visit = func(id StepID) error {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		n := nodes[id]
		for _, next := range []StepID{n.OnSuccess, n.OnFailure} {
			if next == "" {
				continue
			}
			if onStack[next] {
				return fmt.Errorf("%w: %s", ErrCycle, formatCycle(path, next))
			}
			if !visited[next] {
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		onStack[id] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, id := range order {
		if !visited[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatCycle(path []StepID, back StepID) string {
	start := 0
	for i, id := range path {
		if id == back {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(path)-start+1)
	for _, id := range path[start:] {
		parts = append(parts, string(id))
	}
	parts = append(parts, string(back))
	return strings.Join(parts, " -> ")
}
