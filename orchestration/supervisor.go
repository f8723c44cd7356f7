// Supervisor is the turn's central router, ported from
// original_source/nodes/supervisor.py. Per the Open Question resolution
// recorded in this module's grounding ledger, the original's
// _llm_based_routing / _analyze_query_routing (an LLM call that returns a
// free-form routing decision) is replaced with the deterministic
// state-machine table the original's own comments describe it as
// approximating ("Respect the flow: normalizer → planner → supervisor →
// (presentation_node OR codegen)") — an LLM has no business deciding
// control flow it can get wrong in a way no test can pin down.
package orchestration

import "strings"

// Retryable error text patterns, carried unchanged from
// supervisor.py::_is_retryable_error.
var nonRetryablePatterns = []string{
	"permission denied",
	"not authorized",
	"authentication failed",
	"invalid credentials",
	"network error",
	"connection timeout",
	"service unavailable",
	"rate limit exceeded",
	"quota exceeded",
}

var retryablePatterns = []string{
	"attributeerror",
	"nameerror",
	"syntaxerror",
	"indentationerror",
	"typeerror",
	"valueerror",
	"keyerror",
	"has no attribute",
	"is not defined",
	"invalid syntax",
}

// IsRetryableError classifies an execution error message as retryable
// (code-related, worth another Executor attempt) or not (permission/network
// failures an Executor retry cannot fix). Unknown errors default to
// retryable, matching the original's conservative default.
func IsRetryableError(errMsg string) bool {
	if errMsg == "" {
		return false
	}
	lower := strings.ToLower(errMsg)
	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return true
}

// Route is the Supervisor's routing decision for one pass over Turn State.
type Route struct {
	NextStep                   string
	ParameterGatheringRequired bool
	MissingParameters          []string
	PendingPlan                *Plan
	Plan                       *Plan
	ClearPendingPlan           bool
	Terminal                   *Presentation
}

// affirmativeResponses classifies a user's free-text confirmation reply;
// any other non-empty reply cancels the pending plan. Ported from presentation_node.py's confirmation
// parsing (spec.md §4.9 "confirmation_response∈{yes,y,confirm,proceed}").
var affirmativeResponses = map[string]bool{
	"yes": true, "y": true, "confirm": true, "proceed": true,
}

// maxRecursionPresentation is the fixed message shown when a turn hits the
// recursion cap, ported from supervisor_node's recursion guard branch.
func maxRecursionPresentation() *Presentation {
	return &Presentation{
		Summary: "I've reached the maximum processing limit. Please try a simpler request or restart the conversation.",
		Format:  FormatChat,
	}
}

// Supervise computes the next routing step for a State, implementing the
// entry-point reset, planner-result routing, and deterministic fallback
// table described in spec.md §4.9. It does not assign to s's fields; callers
// apply the returned Route via a StageOverlay. A parameter-selection reply is
// merged into the pending Plan in place, which s shares by pointer.
func Supervise(s State) Route {
	if s.RecursionCount >= s.MaxRecursion {
		return Route{NextStep: "", Terminal: maxRecursionPresentation()}
	}

	if s.LastNode == "" {
		return Route{NextStep: "normalizer"}
	}

	if s.NextStep != "" && s.LastNode == "normalizer" {
		return Route{NextStep: s.NextStep}
	}

	if s.LastNode == "planner" {
		if s.PlanError != "" || s.Plan == nil {
			if s.PlannerRetries < 1 {
				return Route{NextStep: "planner"}
			}
			return Route{NextStep: "presentation_node"}
		}
		if len(s.MissingParameters) > 0 {
			return Route{
				NextStep:                   "presentation_node",
				ParameterGatheringRequired: true,
				MissingParameters:          s.MissingParameters,
				PendingPlan:                s.Plan,
			}
		}
		if s.RequiresConfirmation {
			return Route{NextStep: "presentation_node", PendingPlan: s.Plan}
		}
		return Route{NextStep: "codegen"}
	}

	if s.LastNode == "presentation" || s.LastNode == "presentation_node" {
		if s.ConfirmationResponse != "" {
			if affirmativeResponses[strings.ToLower(strings.TrimSpace(s.ConfirmationResponse))] {
				return Route{NextStep: "codegen", Plan: s.PendingPlan, ClearPendingPlan: true}
			}
			return Route{Terminal: RenderCancellation("")}
		}

		if s.ParameterSelectionResponse != "" {
			pending := s.PendingPlan
			if pending == nil {
				pending = s.Plan
			}
			values := ParseParameterResponse(s.ParameterSelectionResponse, s.MissingParameters, s.CompartmentData)
			pending.MergeParameters(values)
			missing := pending.AllMissingParameters()
			if len(missing) > 0 {
				return Route{
					NextStep:                   "presentation_node",
					ParameterGatheringRequired: true,
					MissingParameters:          missing,
					PendingPlan:                pending,
				}
			}
			if pending.RequiresConfirmation {
				return Route{NextStep: "presentation_node", PendingPlan: pending}
			}
			return Route{NextStep: "codegen", Plan: pending, ClearPendingPlan: true}
		}
	}

	if s.LastNode == "verifier" {
		if s.VerifyFeedback != "" {
			if s.VerifyRetries < 1 {
				return Route{NextStep: "codegen"}
			}
			return Route{NextStep: "presentation_node"}
		}
		return Route{NextStep: "executor"}
	}

	if s.LastNode == "executor" {
		if s.ExecutionError != "" {
			if IsRetryableError(s.ExecutionError) && s.ExecutionRetries < 1 {
				return Route{NextStep: "codegen"}
			}
			return Route{NextStep: "presentation_node"}
		}
		return Route{NextStep: "presentation_node"}
	}

	if s.ExecutionError != "" {
		if IsRetryableError(s.ExecutionError) && s.ExecutionRetries < 1 {
			return Route{NextStep: "codegen"}
		}
		return Route{NextStep: "presentation_node"}
	}

	if s.PlanError != "" {
		return Route{NextStep: "presentation_node"}
	}

	// No recognized signal to route on: fall back to re-normalizing the
	// turn rather than guessing, mirroring the original's final fallback.
	return Route{NextStep: "normalizer"}
}
