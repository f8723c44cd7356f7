// Engine is the composition root wiring every stage onto a GraphDriver,
// grounded on the teacher's cmd/ wiring pattern of constructing one
// long-lived struct that owns every collaborator and exposes a single
// entry-point method (Run). Each stage method below adapts one already
// self-contained type (Normalizer, RAGStage, Planner, CodeGenerator,
// Verifier, Executor, Supervisor, Presenter helpers) into a
// GraphDriver StageFunc, translating its native result type into a
// StageOverlay.
package orchestration

import (
	"context"
	"strings"

	"github.com/ayushchhipa1509/OCI-COPILOT/ai"
	"github.com/ayushchhipa1509/OCI-COPILOT/cloudops"
	"github.com/ayushchhipa1509/OCI-COPILOT/core"
)

// Engine owns one turn's full collaborator set and the GraphDriver that
// threads State through them.
type Engine struct {
	driver *GraphDriver

	normalizer    *Normalizer
	rag           *RAGStage
	intentAnalyzer *IntentAnalyzer
	planner       *Planner
	codegen       *CodeGenerator
	verifier      *Verifier
	executor      *Executor
	errorHandler  *ErrorHandler
	chatGateway   *ai.Gateway

	cloudCfg *cloudops.Config
	logger   core.Logger
}

// EngineConfig collects the collaborators an Engine needs. RAG may be nil,
// in which case the normalizer never routes to the rag_retriever stage and
// executable queries go straight to the planner, matching spec.md §4.3's "no retrieval configured" degenerate
// case.
type EngineConfig struct {
	Normalizer     *Normalizer
	RAG            *RAGStage
	IntentAnalyzer *IntentAnalyzer
	Planner        *Planner
	CodeGen        *CodeGenerator
	Verifier       *Verifier
	Executor       *Executor
	ErrorHandler   *ErrorHandler
	ChatGateway    *ai.Gateway
	CloudConfig    *cloudops.Config
	Logger         core.Logger
}

// NewEngine builds an Engine and registers every stage on a fresh
// GraphDriver.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	e := &Engine{
		driver:         NewGraphDriver(),
		normalizer:     cfg.Normalizer,
		rag:            cfg.RAG,
		intentAnalyzer: cfg.IntentAnalyzer,
		planner:        cfg.Planner,
		codegen:        cfg.CodeGen,
		verifier:       cfg.Verifier,
		executor:       cfg.Executor,
		errorHandler:   cfg.ErrorHandler,
		chatGateway:    cfg.ChatGateway,
		cloudCfg:       cfg.CloudConfig,
		logger:         logger,
	}

	e.driver.RegisterStage("normalizer", e.runNormalizer)
	e.driver.RegisterStage("rag_retriever", e.runRAG)
	e.driver.RegisterStage("planner", e.runPlanner)
	e.driver.RegisterStage("codegen", e.runCodeGen)
	e.driver.RegisterStage("verifier", e.runVerifier)
	e.driver.RegisterStage("executor", e.runExecutor)
	e.driver.RegisterStage("supervisor", e.runSupervisor)
	e.driver.RegisterStage("presentation_node", e.runPresentation)
	return e
}

// Run drives one turn to completion (or to a pause awaiting user input).
func (e *Engine) Run(ctx context.Context, s State) (RunOutcome, error) {
	return e.driver.Run(ctx, s)
}

func (e *Engine) runNormalizer(ctx context.Context, s State) StageOverlay {
	useRag := s.UseRetrieval && e.rag != nil
	result := e.normalizer.Normalize(ctx, s.UserInput, useRag)
	overlay := StageOverlay{
		LastNode: "normalizer",
		NextStep: result.NextStep,
	}
	if result.NormalizedQuery != "" {
		nq := result.NormalizedQuery
		overlay.NormalizedQuery = &nq
	}
	if result.Intent == "general_chat" {
		strategy := StrategyLLMFallback
		overlay.ExecutionStrategy = strategy
	}
	return overlay
}

func (e *Engine) runRAG(ctx context.Context, s State) StageOverlay {
	return e.rag.Run(ctx, s)
}

func (e *Engine) runPlanner(ctx context.Context, s State) StageOverlay {
	if s.SubTask == "list_compartments" {
		result := CompartmentListingSubTask()
		return e.planResultToOverlay(result)
	}

	analysis := e.intentAnalyzer.Analyze(ctx, s.NormalizedQuery)
	result := e.planner.Plan(ctx, s.NormalizedQuery, analysis)
	return e.planResultToOverlay(result)
}

func (e *Engine) planResultToOverlay(result PlanResult) StageOverlay {
	overlay := StageOverlay{
		LastNode:          "planner",
		NextStep:          result.NextStep,
		ExecutionStrategy: result.ExecutionStrategy,
	}
	if result.PlanError != "" {
		perr := result.PlanError
		overlay.PlanError = &perr
	} else {
		overlay.PlanErrorCleared = true
	}
	if result.Plan != nil {
		overlay.Plan = result.Plan
		missing := result.Plan.AllMissingParameters()
		overlay.MissingParameters = &missing
		req := result.Plan.RequiresConfirmation
		overlay.RequiresConfirmation = &req
	}
	return overlay
}

func (e *Engine) runCodeGen(ctx context.Context, s State) StageOverlay {
	if s.Plan == nil {
		errMsg := errNoPlanToCompile.Error()
		return StageOverlay{LastNode: "codegen", NextStep: "supervisor", PlanError: &errMsg}
	}
	if err := e.codegen.Generate(s.Plan); err != nil {
		errMsg := err.Error()
		return StageOverlay{LastNode: "codegen", NextStep: "supervisor", PlanError: &errMsg}
	}
	feedbackCleared := true
	return StageOverlay{
		LastNode:              "codegen",
		NextStep:              "verifier",
		VerifyFeedbackCleared: feedbackCleared,
	}
}

func (e *Engine) runVerifier(ctx context.Context, s State) StageOverlay {
	result := e.verifier.Verify(s.Plan)
	if !result.OK {
		feedback := result.Feedback
		return StageOverlay{
			LastNode:                "verifier",
			NextStep:                "supervisor",
			VerifyFeedback:          &feedback,
			IncrementVerifyRetries:  true,
		}
	}
	return StageOverlay{LastNode: "verifier", NextStep: "supervisor", VerifyFeedbackCleared: true}
}

func (e *Engine) runExecutor(ctx context.Context, s State) StageOverlay {
	outcome := e.executor.Execute(ctx, e.cloudCfg, s.Plan)
	overlay := StageOverlay{LastNode: "executor", NextStep: "supervisor"}
	results := outcome.Results
	overlay.ExecutionResult = &results
	if outcome.Error != "" {
		errMsg := outcome.Error
		overlay.ExecutionError = &errMsg
		overlay.IncrementExecutionRetries = true
	} else {
		empty := ""
		overlay.ExecutionError = &empty
	}
	return overlay
}

func (e *Engine) runSupervisor(ctx context.Context, s State) StageOverlay {
	route := Supervise(s)
	overlay := StageOverlay{LastNode: "supervisor", NextStep: route.NextStep}

	if route.Terminal != nil {
		overlay.Terminal = route.Terminal
		overlay.NextStep = ""
		return overlay
	}
	if route.Plan != nil {
		overlay.Plan = route.Plan
	}
	if route.ClearPendingPlan {
		overlay.PendingPlanCleared = true
	} else if route.PendingPlan != nil {
		overlay.PendingPlan = route.PendingPlan
	}
	if route.ParameterGatheringRequired {
		overlay.MissingParameters = &route.MissingParameters
	} else {
		// A route that doesn't ask for more parameters resolves (or never
		// had) a gathering request; clear any stale list left over from an
		// earlier presentation_node round so runPresentation's
		// still-missing branch doesn't re-fire on a now-satisfied plan.
		none := []string{}
		overlay.MissingParameters = &none
	}
	if s.PlanError != "" && route.NextStep == "planner" {
		overlay.IncrementPlannerRetries = true
	}
	return overlay
}

func (e *Engine) runPresentation(ctx context.Context, s State) StageOverlay {
	switch {
	case s.MissingParameters != nil && len(s.MissingParameters) > 0 && s.PendingPlan != nil:
		return StageOverlay{LastNode: "presentation_node", Terminal: RenderParameterGathering(s.PendingPlan, s.MissingParameters)}
	case s.PendingPlan != nil && s.PendingPlan.RequiresConfirmation:
		return StageOverlay{LastNode: "presentation_node", Terminal: RenderSafetyConfirmation(s.PendingPlan)}
	case s.ActionCancelled:
		return StageOverlay{LastNode: "presentation_node", Terminal: RenderCancellation(s.CancellationReason)}
	case s.ExecutionStrategy == StrategyLLMFallback:
		return StageOverlay{LastNode: "presentation_node", Terminal: e.renderChat(ctx, s)}
	case s.ExecutionStrategy == StrategyRetrievalChain:
		return StageOverlay{LastNode: "presentation_node", Terminal: e.renderRetrievalSummary(ctx, s)}
	default:
		return StageOverlay{LastNode: "presentation_node", Terminal: e.renderResults(s)}
	}
}

// renderChat produces a conversational answer for a non-executable turn,
// matching normalizer_node's general_chat branch handing off to
// presentation_node for a direct LM reply rather than a planned operation.
// With no chat gateway configured it echoes the normalized query back.
func (e *Engine) renderChat(ctx context.Context, s State) *Presentation {
	if e.chatGateway == nil {
		return &Presentation{Summary: s.NormalizedQuery, Format: FormatChat}
	}
	messages := []ai.Message{
		{Role: "system", Content: "You are a helpful cloud-operations assistant. Answer the user's question conversationally."},
		{Role: "user", Content: s.NormalizedQuery},
	}
	resp, err := e.chatGateway.Call(ctx, messages, "presentation_node", false)
	if err != nil || ai.IsErrorSentinel(resp) {
		if e.errorHandler != nil {
			return &Presentation{Summary: e.errorHandler.Handle(ctx, s.UserInput, "presentation_node", s.LastNode, err), Format: FormatChat}
		}
		return &Presentation{Summary: s.NormalizedQuery, Format: FormatChat}
	}
	return &Presentation{Summary: resp, Format: FormatChat}
}

// renderRetrievalSummary produces a prose answer over a retrieval hit's
// documents, following the teacher's synthesizer.go pattern of handing
// already-structured data to the LM gateway for summarization rather than
// generating prose in Go. With no chat gateway configured, or on a gateway
// failure, it falls back to the plain tabulated findings.
func (e *Engine) renderRetrievalSummary(ctx context.Context, s State) *Presentation {
	data, columns := FormatExecutionResult(s.ExecutionResult)
	fallback := &Presentation{Summary: "Found relevant information.", Format: FormatTable, Data: data, Columns: columns}
	if e.chatGateway == nil {
		return fallback
	}
	messages := []ai.Message{
		{Role: "system", Content: "You are a helpful cloud-operations assistant. Summarize the retrieved information below to answer the user's question concisely."},
		{Role: "user", Content: "Question: " + s.NormalizedQuery + "\n\nRetrieved information:\n" + findingsForPrompt(s.ExecutionResult)},
	}
	resp, err := e.chatGateway.Call(ctx, messages, "presentation_node", false)
	if err != nil || ai.IsErrorSentinel(resp) {
		return fallback
	}
	return &Presentation{Summary: resp, Format: FormatTable, Data: data, Columns: columns}
}

func findingsForPrompt(items []ResultItem) string {
	var sb strings.Builder
	for _, item := range items {
		text, ok := item["findings"].(string)
		if !ok {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e *Engine) renderResults(s State) *Presentation {
	data, columns := FormatExecutionResult(s.ExecutionResult)
	summary := "Done."
	if s.ExecutionError != "" {
		summary = s.ExecutionError
	}
	return &Presentation{Summary: summary, Format: FormatTable, Data: data, Columns: columns}
}
