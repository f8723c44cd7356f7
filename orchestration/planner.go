// Planner turns an IntentAnalysis into a Plan, ported from
// original_source/nodes/planner.py. Three strategies are tried in order:
// a zero-LM template plan for DIRECT_FETCH queries (get_template_plan),
// an LM-authored multi-step plan for MULTI_STEP_REQUIRED queries, and an LM
// fallback plan for anything the quick analysis could not classify.
// _enforce_all_compartments and _apply_safety_flags run over every plan
// regardless of which strategy produced it, exactly as in the original.
package orchestration

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ayushchhipa1509/OCI-COPILOT/ai"
	"github.com/ayushchhipa1509/OCI-COPILOT/core"
)

// Planner produces a Plan for a normalized query, given the query's
// IntentAnalysis classification.
type Planner struct {
	gateway *ai.Gateway
	logger  core.Logger
}

// NewPlanner builds a Planner over a Gateway used for its LM strategies.
func NewPlanner(gateway *ai.Gateway, logger core.Logger) *Planner {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Planner{gateway: gateway, logger: logger}
}

// PlanResult is the overlay the Planner stage contributes to Turn State.
type PlanResult struct {
	Plan              *Plan
	PlanError         string
	ExecutionStrategy ExecutionStrategy
	NextStep          string
}

// Plan runs the three-strategy dispatch described above and returns the
// overlay the Supervisor merges into Turn State.
func (p *Planner) Plan(ctx context.Context, normalizedQuery string, analysis IntentAnalysis) PlanResult {
	switch analysis.ExecutionType {
	case ExecDirectFetch:
		return p.handleDirectFetch(ctx, normalizedQuery, analysis)
	case ExecMultiStepRequired:
		return p.handleMultiStep(ctx, normalizedQuery, analysis)
	default:
		return p.handleLLMFallback(ctx, normalizedQuery, analysis)
	}
}

// CompartmentListingSubTask builds the fixed plan used when Turn State's
// SubTask is "list_compartments", ported from
// planner.py::_handle_compartment_listing.
func CompartmentListingSubTask() PlanResult {
	plan := &Plan{
		Steps: []Step{{
			Action:     "list_compartments",
			Service:    "identity",
			Params:     map[string]interface{}{"compartment_id": "${oci_creds.tenancy}", "all_compartments": true},
			SafetyTier: SafetySafe,
		}},
		SafetyTier: SafetySafe,
	}
	return PlanResult{Plan: plan, ExecutionStrategy: StrategyDirectFetch, NextStep: "codegen"}
}

func (p *Planner) handleDirectFetch(ctx context.Context, normalizedQuery string, analysis IntentAnalysis) PlanResult {
	pattern, ok := directFetchPatterns[analysis.MatchedPattern]
	if !ok {
		return p.handleLLMFallback(ctx, normalizedQuery, analysis)
	}

	plan := &Plan{Steps: []Step{buildTemplateStep(pattern, analysis)}}
	EnforceAllCompartments(plan)
	ApplySafetyFlags(plan, analysis)
	return PlanResult{Plan: plan, ExecutionStrategy: StrategyDirectFetch, NextStep: "codegen"}
}

// buildTemplateStep converts a matched direct-fetch template into a Step,
// ported from planner.py::_convert_template_to_plan.
func buildTemplateStep(pattern directFetchPattern, analysis IntentAnalysis) Step {
	if analysis.Action == "create" {
		return Step{
			Action:     pattern.action,
			Service:    pattern.service,
			Params:     map[string]interface{}{},
			SafetyTier: SafetyDestructive,
		}
	}
	step := Step{
		Action:  pattern.action,
		Service: pattern.service,
		Params: map[string]interface{}{
			"compartment_id":   "${oci_creds.tenancy}",
			"all_compartments": true,
		},
		SafetyTier: SafetySafe,
	}
	if analysis.RequiresFiltering {
		step.FilterInCode = true
		for _, cond := range analysis.FilterConditions {
			step.Filters = append(step.Filters, parseFilterCondition(cond))
		}
	}
	return step
}

func parseFilterCondition(cond string) Filter {
	if idx := strings.Index(cond, "=="); idx >= 0 {
		return Filter{
			Field: strings.TrimSpace(cond[:idx]),
			Op:    "eq",
			Value: strings.TrimSpace(cond[idx+2:]),
		}
	}
	if idx := strings.Index(cond, "contains"); idx >= 0 {
		return Filter{
			Field: strings.TrimSpace(cond[:idx]),
			Op:    "contains",
			Value: strings.TrimSpace(cond[idx+len("contains"):]),
		}
	}
	return Filter{Field: "raw", Op: "eq", Value: cond}
}

const plannerSystemPromptTemplate = `You are a cloud operations planner. Given an intent analysis and a user query, respond with a single JSON object describing either a single step ({action, service, params, safety_tier}) or a multi-step plan ({steps: [...], safety_tier}).

Intent analysis:
%s

Query: %s`

func (p *Planner) handleMultiStep(ctx context.Context, normalizedQuery string, analysis IntentAnalysis) PlanResult {
	plan, err := p.generateLLMPlan(ctx, normalizedQuery, analysis)
	if err != nil {
		return PlanResult{PlanError: "Multi-step planning error: " + err.Error(), ExecutionStrategy: StrategyMultiStep}
	}
	EnforceAllCompartments(plan)
	ApplySafetyFlags(plan, analysis)
	return PlanResult{Plan: plan, ExecutionStrategy: StrategyMultiStep, NextStep: routeAfterSafetyFlags(plan)}
}

// routeAfterSafetyFlags hands a plan to the Supervisor instead of straight to
// CodeGen whenever it still needs user input before it may run: missing
// parameters, or ApplySafetyFlags having marked it as requiring confirmation.
func routeAfterSafetyFlags(plan *Plan) string {
	if len(plan.AllMissingParameters()) > 0 || plan.RequiresConfirmation {
		return "supervisor"
	}
	return "codegen"
}

func (p *Planner) handleLLMFallback(ctx context.Context, normalizedQuery string, analysis IntentAnalysis) PlanResult {
	if p.gateway == nil {
		return PlanResult{PlanError: "Planning failed: no LM gateway configured", ExecutionStrategy: StrategyLLMFallback}
	}
	plan, err := p.generateLLMPlan(ctx, normalizedQuery, analysis)
	if err != nil {
		return PlanResult{PlanError: err.Error(), ExecutionStrategy: StrategyLLMFallback}
	}
	EnforceAllCompartments(plan)
	ApplySafetyFlags(plan, analysis)
	return PlanResult{Plan: plan, ExecutionStrategy: StrategyLLMFallback, NextStep: routeAfterSafetyFlags(plan)}
}

func (p *Planner) generateLLMPlan(ctx context.Context, normalizedQuery string, analysis IntentAnalysis) (*Plan, error) {
	analysisJSON, _ := json.MarshalIndent(analysis, "", "  ")
	messages := []ai.Message{
		{Role: "system", Content: buildPlannerPrompt(string(analysisJSON), normalizedQuery)},
		{Role: "user", Content: "Generate plan for: " + normalizedQuery},
	}
	resp, err := p.gateway.Call(ctx, messages, "planner", false)
	if err != nil {
		return nil, err
	}
	if ai.IsErrorSentinel(resp) {
		return nil, errPlanGatewayFailed(resp)
	}
	return decodePlanJSON(resp)
}

func buildPlannerPrompt(analysisJSON, query string) string {
	return strings.Replace(strings.Replace(plannerSystemPromptTemplate, "%s", analysisJSON, 1), "%s", query, 1)
}

type planJSON struct {
	Action               string                   `json:"action"`
	Service              string                   `json:"service"`
	Params               map[string]interface{}   `json:"params"`
	SafetyTier           string                   `json:"safety_tier"`
	RequiresConfirmation bool                     `json:"requires_confirmation"`
	MissingParameters    []string                 `json:"missing_parameters"`
	FilterInCode         bool                     `json:"filter_in_code"`
	Steps                []planJSON               `json:"steps"`
}

func decodePlanJSON(response string) (*Plan, error) {
	trimmed := strings.TrimSpace(response)
	var raw planJSON
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		loc := reJSONObject.FindStringIndex(trimmed)
		if loc == nil {
			return nil, errNoPlanJSON
		}
		end := findJSONEndSimple(trimmed, loc[0])
		if end <= loc[0] {
			return nil, errNoPlanJSON
		}
		if err := json.Unmarshal([]byte(trimmed[loc[0]:end]), &raw); err != nil {
			return nil, err
		}
	}

	if len(raw.Steps) > 0 {
		steps := make([]Step, 0, len(raw.Steps))
		for _, s := range raw.Steps {
			steps = append(steps, Step{
				Action:               s.Action,
				Service:              s.Service,
				Params:               s.Params,
				SafetyTier:           SafetyTier(s.SafetyTier),
				RequiresConfirmation: s.RequiresConfirmation,
				MissingParameters:    s.MissingParameters,
				FilterInCode:         s.FilterInCode,
			})
		}
		return &Plan{Steps: steps, SafetyTier: SafetyTier(raw.SafetyTier)}, nil
	}

	return &Plan{
		Steps: []Step{{
			Action:               raw.Action,
			Service:              raw.Service,
			Params:               raw.Params,
			SafetyTier:           SafetyTier(raw.SafetyTier),
			RequiresConfirmation: raw.RequiresConfirmation,
			MissingParameters:    raw.MissingParameters,
			FilterInCode:         raw.FilterInCode,
		}},
		SafetyTier: SafetyTier(raw.SafetyTier),
	}, nil
}

// ApplySafetyFlags marks a plan destructive and computes its missing
// parameters, ported verbatim from planner.py::_apply_safety_flags: only
// create_*/deploy_* actions (or any multi-step plan) get a parameter check,
// and the hardcoded destructiveParamTable is trusted over the LM's own
// claims about what it filled in.
func ApplySafetyFlags(p *Plan, analysis IntentAnalysis) {
	if p == nil {
		return
	}
	isMultiStep := p.IsMultiStep()
	var action string
	if !isMultiStep && len(p.Steps) == 1 {
		action = p.Steps[0].Action
	}
	isDeployment := strings.HasPrefix(action, "create_") || strings.HasPrefix(action, "deploy_")

	if !analysis.IsMutating || !(isDeployment || isMultiStep) {
		p.SafetyTier = SafetySafe
		return
	}

	p.RequiresConfirmation = true
	p.SafetyTier = SafetyDestructive
	if !isMultiStep && len(p.Steps) == 1 {
		p.Steps[0].RequiresConfirmation = true
		p.Steps[0].SafetyTier = SafetyDestructive
	}

	var missing []string
	switch {
	case isMultiStep:
		if len(p.Steps) > 0 {
			if _, ok := p.Steps[0].Params["compartment_id"]; !ok {
				missing = []string{"compartment_id"}
			}
		} else {
			missing = []string{"compartment_id"}
		}
	default:
		if required, ok := RequiredParamsFor(action); ok {
			for _, param := range required {
				if _, present := p.Steps[0].Params[param]; !present {
					missing = append(missing, param)
				}
			}
		}
	}

	if len(missing) > 0 {
		if isMultiStep {
			for i := range p.Steps {
				p.Steps[i].MissingParameters = missing
			}
		} else {
			p.Steps[0].MissingParameters = missing
		}
	}
}
