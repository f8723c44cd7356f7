// GraphDriver binds the named stage functions into the graph-driven loop
// described in spec.md §2/§5, grounded on the teacher's
// orchestration/workflow_engine.go (a named-step dispatch loop over a
// mutable execution record, with a hard step cap and an explicit paused
// status for human-in-the-loop resumption). Unlike the teacher's DAG
// engine, this graph has no static edge list: each stage names its own
// successor via State.NextStep, and the Supervisor is itself one of the
// named stages, matching the original LangGraph-style conditional routing
// (spec.md §2's graph diagram).
package orchestration

import (
	"context"
	"time"
)

// StageFunc is one node of the graph: given the current Turn State, it
// returns the overlay GraphDriver should merge before dispatching to
// State.NextStep.
type StageFunc func(ctx context.Context, s State) StageOverlay

// PauseReason names why the driver stopped before reaching a Terminal
// Presentation, so a caller can resume the turn once the missing input
// arrives (spec.md §5 "pause/resume for user_input_required").
type PauseReason string

const (
	PauseConfirmationRequired     PauseReason = "confirmation_required"
	PauseParameterGatheringRequired PauseReason = "parameter_gathering_required"
	PauseCompartmentSelection     PauseReason = "compartment_selection_required"
)

// RunOutcome is what GraphDriver.Run returns: either a finished State with a
// Terminal Presentation, or a paused State awaiting user input.
type RunOutcome struct {
	State   State
	Paused  bool
	Reason  PauseReason
}

// GraphDriver runs Turn State through named stages until a stage sets
// Terminal, the turn pauses for user input, or the recursion cap is hit.
type GraphDriver struct {
	stages map[string]StageFunc
}

// NewGraphDriver builds an empty GraphDriver; register stages with
// RegisterStage before calling Run.
func NewGraphDriver() *GraphDriver {
	return &GraphDriver{stages: make(map[string]StageFunc)}
}

// RegisterStage binds a name (the value stages set in StageOverlay.NextStep)
// to the function that implements it.
func (d *GraphDriver) RegisterStage(name string, fn StageFunc) {
	d.stages[name] = fn
}

// Run drives a turn to completion starting from "supervisor" (the entry
// point every turn starts at, per supervisor_node's "state.get('last_node')
// is None" branch) or from a caller-supplied resume point.
func (d *GraphDriver) Run(ctx context.Context, start State) (RunOutcome, error) {
	s := start
	for {
		if s.RecursionCount >= s.MaxRecursion {
			s.Terminal = maxRecursionPresentation()
			return RunOutcome{State: s}, nil
		}

		name := s.NextStep
		if name == "" {
			name = "supervisor"
		}
		stage, ok := d.stages[name]
		if !ok {
			return RunOutcome{State: s}, errUnknownStage(name)
		}

		stepStart := time.Now()
		overlay := stage(ctx, s)
		overlay.StageName = name
		overlay.StageTiming = time.Since(stepStart)
		s = Merge(s, overlay)
		s.RecursionCount++

		if reason, ok := pauseReason(s); ok {
			return RunOutcome{State: s, Paused: true, Reason: reason}, nil
		}
		if s.Terminal != nil {
			return RunOutcome{State: s}, nil
		}
	}
}

// pauseReason reports whether Turn State is waiting on a human response,
// matching the presentation-stage's confirmation/parameter-gathering/
// compartment-selection branches (spec.md §4.9).
func pauseReason(s State) (PauseReason, bool) {
	if s.Terminal == nil {
		return "", false
	}
	switch {
	case s.Terminal.ConfirmationRequired:
		return PauseConfirmationRequired, true
	case s.Terminal.ParameterGatheringRequired:
		return PauseParameterGatheringRequired, true
	case s.CompartmentSelectionRequired:
		return PauseCompartmentSelection, true
	default:
		return "", false
	}
}
