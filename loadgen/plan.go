package loadgen

import (
	"errors"
	"fmt"
)

// PhaseKind names what the workers of a phase do.
type PhaseKind string

const (
	// PhaseAddVertices runs VertexAdder workers.
	PhaseAddVertices PhaseKind = "add-vertices"
	// PhaseAddEdges runs EdgeAdder workers.
	PhaseAddEdges PhaseKind = "add-edges"
	// PhaseDeleteVertices runs VertexDeleter workers.
	PhaseDeleteVertices PhaseKind = "delete-vertices"
)

// PhaseSpec is one phase: Batches sequential batches with Iterations per worker each.
type PhaseSpec struct {
	Kind       PhaseKind `yaml:"kind"`
	Batches    int       `yaml:"batches"`
	Iterations int       `yaml:"iterations"`
}

// Plan describes a whole run: the setup phases run once, then the cycle phases run Cycles times.
type Plan struct {
	Workers      int         `yaml:"workers"`
	VertexLabels int         `yaml:"vertex_labels"`
	EdgeLabels   int         `yaml:"edge_labels"`
	FanOut       int         `yaml:"fan_out"`
	Setup        []PhaseSpec `yaml:"setup"`
	Cycles       int         `yaml:"cycles"`
	Cycle        []PhaseSpec `yaml:"cycle"`
}

// DefaultPlan returns the standard run:
//
//	setup:  100 × add-vertices (1000),  100 × add-edges (10000)
//	10 ×:    50 × delete-vertices (13000), 50 × add-vertices (1000), 50 × add-edges (10000)
//
// with 8 workers, 104 vertex and edge labels, and a fan-out of 100.
func DefaultPlan() Plan {
	return Plan{
		Workers:      8,
		VertexLabels: 104,
		EdgeLabels:   104,
		FanOut:       100,
		Setup: []PhaseSpec{
			{Kind: PhaseAddVertices, Batches: 100, Iterations: 1000},
			{Kind: PhaseAddEdges, Batches: 100, Iterations: 10000},
		},
		Cycles: 10,
		Cycle: []PhaseSpec{
			{Kind: PhaseDeleteVertices, Batches: 50, Iterations: 13000},
			{Kind: PhaseAddVertices, Batches: 50, Iterations: 1000},
			{Kind: PhaseAddEdges, Batches: 50, Iterations: 10000},
		},
	}
}

// Validate checks that the plan can be run. It does not check that enough ids will be registered
// for the delete phases, that is checked per batch.
func (p Plan) Validate() error {
	var errs []error

	if p.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", p.Workers))
	}

	if p.FanOut <= 0 {
		errs = append(errs, fmt.Errorf("fan_out must be positive, got %d", p.FanOut))
	}

	if p.Cycles < 0 {
		errs = append(errs, fmt.Errorf("cycles must not be negative, got %d", p.Cycles))
	}

	if p.Workers > 0 {
		if p.VertexLabels <= 0 || p.VertexLabels%p.Workers != 0 {
			errs = append(errs, fmt.Errorf("vertex_labels must be a positive multiple of %d workers, got %d", p.Workers, p.VertexLabels))
		}

		if p.EdgeLabels <= 0 || p.EdgeLabels%p.Workers != 0 {
			errs = append(errs, fmt.Errorf("edge_labels must be a positive multiple of %d workers, got %d", p.Workers, p.EdgeLabels))
		}
	}

	for i, phase := range p.Setup {
		errs = append(errs, phase.validate(fmt.Sprintf("setup[%d]", i))...)
	}

	for i, phase := range p.Cycle {
		errs = append(errs, phase.validate(fmt.Sprintf("cycle[%d]", i))...)
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidPlan}, errs...)...)
	}

	return nil
}

func (s PhaseSpec) validate(where string) []error {
	var errs []error

	switch s.Kind {
	case PhaseAddVertices, PhaseAddEdges, PhaseDeleteVertices:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown phase kind %q", where, s.Kind))
	}

	if s.Batches < 0 {
		errs = append(errs, fmt.Errorf("%s: batches must not be negative, got %d", where, s.Batches))
	}

	if s.Iterations < 0 {
		errs = append(errs, fmt.Errorf("%s: iterations must not be negative, got %d", where, s.Iterations))
	}

	return errs
}

// Batches returns the number of batches the plan runs.
func (p Plan) Batches() int {
	total := 0
	for _, phase := range p.Setup {
		total += phase.Batches
	}

	for _, phase := range p.Cycle {
		total += phase.Batches * p.Cycles
	}

	return total
}
