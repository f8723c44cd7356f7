// Package orchestration implements the Agent Orchestration Engine: the
// graph-driven Supervisor/Planner/CodeGen/Verifier/Executor/Presentation
// pipeline described in spec.md §§2-4, grounded on the teacher's
// orchestration package (workflow_engine.go's DAG-executor shape,
// error_analyzer.go's LLM-JSON parsing idiom, synthesizer.go's result
// summarization) and on original_source/nodes/*.py and core/state.py
// line-for-line for stage semantics.
package orchestration

import "time"

// ChatTurn is one (role, text) entry in a turn's chat history.
type ChatTurn struct {
	Role string
	Text string
}

// ExecutionStrategy names how a turn's result was produced (spec.md §3).
type ExecutionStrategy string

const (
	StrategyDirectFetch              ExecutionStrategy = "direct_fetch"
	StrategyMultiStep                ExecutionStrategy = "multi_step"
	StrategyRetrievalChain            ExecutionStrategy = "retrieval_chain"
	StrategyRetrievalFallbackToPlanner ExecutionStrategy = "retrieval_fallback_to_planner"
	StrategyLLMFallback               ExecutionStrategy = "llm_fallback"
)

// ResultItem is one entry of execution_result: a sum of Ok(attribute map) /
// Error(map), per Design Notes §9 ("model as a sum of Ok(map)/Error(map)").
type ResultItem map[string]interface{}

// IsError reports whether this result item represents a per-item failure
// (e.g. one bucket in a multi-step batch failing while others succeed,
// TESTABLE SCENARIO 6).
func (r ResultItem) IsError() bool {
	_, ok := r["error"]
	return ok
}

// State is the strongly-typed per-turn record (spec.md §3 Turn State),
// passed by value between stages; each stage returns a StageOverlay that
// Merge folds into it. Modeled as a Go struct rather than the original's
// TypedDict(total=False) — every optional field uses a pointer or zero value
// to preserve the "not yet set" vs "explicitly cleared" distinction where the
// spec's invariants depend on it.
type State struct {
	UserInput       string
	NormalizedQuery string
	SessionID       string
	UseRetrieval    bool
	ChatHistory     []ChatTurn

	Plan        *Plan
	PendingPlan *Plan

	MissingParameters       []string
	RequiresConfirmation    bool
	ConfirmationResponse    string

	ParameterSelectionResponse  string
	CompartmentSelectionRequired bool
	CompartmentData             []map[string]interface{}

	ExecutionResult []ResultItem
	ExecutionError  string
	PlanError       string

	LastNode       string
	NextStep       string
	RecursionCount int
	MaxRecursion   int
	VerifyRetries  int
	ExecutionRetries int
	PlannerRetries   int

	// VerifyFeedback carries the Verifier's critique string back to CodeGen
	// on retry (spec.md §4.7 "a critique string"); cleared once consumed.
	VerifyFeedback string

	ExecutionStrategy ExecutionStrategy
	Timings           map[string]time.Duration

	// SubTask, when set, asks the Planner to perform an auxiliary task (e.g.
	// "list_compartments") rather than plan the user's original request
	// (spec.md §4.9's "sub-task to list compartments").
	SubTask string

	// ActionCancelled / CancellationReason record a user's negative
	// confirmation response (spec.md §4.9 "presentation (cancelled)").
	ActionCancelled   bool
	CancellationReason string

	// Terminal is set once a stage has produced the turn's final
	// Presentation output; invariant: exactly one of {NextStep, Terminal} is
	// non-empty after any stage (spec.md §3).
	Terminal *Presentation
}

// NewState seeds a fresh per-turn State the way the Supervisor's entry point
// resets leftover fields (original supervisor_node: "Clear any leftover
// state to ensure fresh start").
func NewState(userInput, sessionID string, useRetrieval bool, history []ChatTurn, maxRecursion int) *State {
	return &State{
		UserInput:    userInput,
		SessionID:    sessionID,
		UseRetrieval: useRetrieval,
		ChatHistory:  history,
		MaxRecursion: maxRecursion,
		Timings:      make(map[string]time.Duration),
	}
}

// StageOverlay is the partial record a stage returns; Merge folds
// non-zero-value fields into the cumulative State. Using a struct of
// pointers/explicit "set" flags (rather than overlaying the full State
// directly) lets a stage leave a field untouched without needing to know its
// current value — the overlay only carries what that stage actually decided.
type StageOverlay struct {
	NormalizedQuery *string
	Plan            *Plan
	PlanCleared     bool
	PendingPlan     *Plan
	PendingPlanCleared bool

	MissingParameters       *[]string
	RequiresConfirmation    *bool
	ConfirmationResponse    *string

	ParameterSelectionResponse   *string
	CompartmentSelectionRequired *bool
	CompartmentData              *[]map[string]interface{}

	ExecutionResult *[]ResultItem
	ExecutionError  *string
	PlanError       *string
	PlanErrorCleared bool

	LastNode       string
	NextStep       string
	ExecutionStrategy ExecutionStrategy

	IncrementVerifyRetries    bool
	IncrementExecutionRetries bool
	IncrementPlannerRetries   bool

	VerifyFeedback        *string
	VerifyFeedbackCleared bool

	SubTask        *string
	ActionCancelled *bool
	CancellationReason *string

	StageTiming time.Duration
	StageName   string

	Terminal *Presentation
}

// Merge applies a StageOverlay onto a State, implementing the "later writes
// win" rule of spec.md §5 Ordering guarantees: Merge is always called in
// stage-emission order by the GraphDriver, so repeated calls naturally
// produce last-write-wins semantics.
func Merge(s State, o StageOverlay) State {
	if o.NormalizedQuery != nil {
		s.NormalizedQuery = *o.NormalizedQuery
	}
	if o.PlanCleared {
		s.Plan = nil
	} else if o.Plan != nil {
		s.Plan = o.Plan
	}
	if o.PendingPlanCleared {
		s.PendingPlan = nil
	} else if o.PendingPlan != nil {
		s.PendingPlan = o.PendingPlan
	}
	if o.MissingParameters != nil {
		s.MissingParameters = *o.MissingParameters
	}
	if o.RequiresConfirmation != nil {
		s.RequiresConfirmation = *o.RequiresConfirmation
	}
	if o.ConfirmationResponse != nil {
		s.ConfirmationResponse = *o.ConfirmationResponse
	}
	if o.ParameterSelectionResponse != nil {
		s.ParameterSelectionResponse = *o.ParameterSelectionResponse
	}
	if o.CompartmentSelectionRequired != nil {
		s.CompartmentSelectionRequired = *o.CompartmentSelectionRequired
	}
	if o.CompartmentData != nil {
		s.CompartmentData = *o.CompartmentData
	}
	if o.ExecutionResult != nil {
		s.ExecutionResult = *o.ExecutionResult
	}
	if o.ExecutionError != nil {
		s.ExecutionError = *o.ExecutionError
	}
	if o.PlanErrorCleared {
		s.PlanError = ""
	} else if o.PlanError != nil {
		s.PlanError = *o.PlanError
	}
	if o.LastNode != "" {
		s.LastNode = o.LastNode
	}
	s.NextStep = o.NextStep // always authoritative: every stage sets or clears it
	if o.ExecutionStrategy != "" {
		s.ExecutionStrategy = o.ExecutionStrategy
	}
	if o.IncrementVerifyRetries {
		s.VerifyRetries++
	}
	if o.IncrementExecutionRetries {
		s.ExecutionRetries++
	}
	if o.IncrementPlannerRetries {
		s.PlannerRetries++
	}
	if o.VerifyFeedbackCleared {
		s.VerifyFeedback = ""
	} else if o.VerifyFeedback != nil {
		s.VerifyFeedback = *o.VerifyFeedback
	}
	if o.SubTask != nil {
		s.SubTask = *o.SubTask
	}
	if o.ActionCancelled != nil {
		s.ActionCancelled = *o.ActionCancelled
	}
	if o.CancellationReason != nil {
		s.CancellationReason = *o.CancellationReason
	}
	if o.StageName != "" {
		if s.Timings == nil {
			s.Timings = make(map[string]time.Duration)
		}
		s.Timings[o.StageName] = o.StageTiming
	}
	if o.Terminal != nil {
		s.Terminal = o.Terminal
	}
	return s
}
