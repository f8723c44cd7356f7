// Normalizer corrects typos/standardizes the user's query and decides the
// executable-vs-chat / RAG-vs-planner routing, ported from
// original_source/nodes/normalizer.py. It is the turn's entry stage: every
// fresh turn's Supervise call routes here first.
package orchestration

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ayushchhipa1509/OCI-COPILOT/ai"
	"github.com/ayushchhipa1509/OCI-COPILOT/core"
)

// Normalizer runs the query-normalization LM pass.
type Normalizer struct {
	gateway *ai.Gateway
	logger  core.Logger
}

// NewNormalizer builds a Normalizer over a Gateway.
func NewNormalizer(gateway *ai.Gateway, logger core.Logger) *Normalizer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Normalizer{gateway: gateway, logger: logger}
}

const normalizerSystemPrompt = `You normalize cloud-operations queries: fix typos, standardize phrasing, and classify whether the query is executable (an API operation) or non-executable (chat/question). Respond with a single JSON object: {"normalized_query": "...", "is_executable": true/false, "intent": "..."}.`

type normalizerResponse struct {
	NormalizedQuery string `json:"normalized_query"`
	IsExecutable    bool   `json:"is_executable"`
	Intent          string `json:"intent"`
}

// NormalizerResult is the Normalizer stage's outcome.
type NormalizerResult struct {
	NormalizedQuery string
	NextStep        string
	Intent          string
}

// Normalize runs the normalization pass. On any LM or parse failure it falls
// back to routing the raw user input onward by the useRagChain toggle,
// exactly as normalizer_node's except branch does.
func (n *Normalizer) Normalize(ctx context.Context, userInput string, useRagChain bool) NormalizerResult {
	trimmed := strings.TrimSpace(userInput)
	if trimmed == "" {
		return NormalizerResult{NextStep: "presentation_node"}
	}

	if n.gateway == nil {
		return NormalizerResult{NormalizedQuery: trimmed, NextStep: executableRoute(useRagChain)}
	}

	messages := []ai.Message{
		{Role: "system", Content: normalizerSystemPrompt},
		{Role: "user", Content: trimmed},
	}
	resp, err := n.gateway.Call(ctx, messages, "normalizer", true)
	if err != nil || ai.IsErrorSentinel(resp) {
		n.logger.Warn("normalizer: llm call failed, using fallback routing", map[string]interface{}{"error": err})
		return NormalizerResult{NormalizedQuery: trimmed, NextStep: executableRoute(useRagChain)}
	}

	parsed, ok := parseNormalizerResponse(resp)
	if !ok {
		n.logger.Warn("normalizer: llm response had no JSON object, using fallback routing", nil)
		return NormalizerResult{NormalizedQuery: trimmed, NextStep: executableRoute(useRagChain)}
	}

	normalized := parsed.NormalizedQuery
	if normalized == "" {
		normalized = trimmed
	}
	if !parsed.IsExecutable {
		return NormalizerResult{NormalizedQuery: normalized, NextStep: "presentation_node", Intent: "general_chat"}
	}
	return NormalizerResult{NormalizedQuery: normalized, NextStep: executableRoute(useRagChain)}
}

func executableRoute(useRagChain bool) string {
	if useRagChain {
		return "rag_retriever"
	}
	return "planner"
}

func parseNormalizerResponse(resp string) (normalizerResponse, bool) {
	loc := reJSONObject.FindStringIndex(resp)
	if loc == nil {
		return normalizerResponse{}, false
	}
	end := findJSONEndSimple(resp, loc[0])
	if end <= loc[0] {
		return normalizerResponse{}, false
	}
	var out normalizerResponse
	if err := json.Unmarshal([]byte(resp[loc[0]:end]), &out); err != nil {
		return normalizerResponse{}, false
	}
	return out, true
}
