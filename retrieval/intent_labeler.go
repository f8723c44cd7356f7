// IntentLabeler resolution for the retrieval path's metadata-filter step,
// ported from original_source/nodes/rag_retriever.py's intent-matching pass:
// the LM is shown a closed set of phrase -> {service, operation} labels and
// asked to pick at most one; no match degrades to an unfiltered search.
package retrieval

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// LabelCaller is the minimal LM capability the labeler needs: one call,
// given a system+user prompt, returning text (or the gateway's error
// sentinel). Modeled narrowly here (rather than importing ai.Gateway) to
// keep retrieval's dependency surface to the capability interfaces spec.md
// §6.1 names, not a concrete orchestration/ai package.
type LabelCaller func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// IntentLabel is one closed-set entry a query may resolve to.
type IntentLabel struct {
	Phrase     string
	Service    string
	Operations []string
}

// LLMIntentLabeler asks an LM to choose at most one label from a fixed
// table, ported from rag_retriever.py's INTENT_PATTERNS closed set.
type LLMIntentLabeler struct {
	call   LabelCaller
	labels []IntentLabel
}

// NewLLMIntentLabeler builds a labeler over a fixed label table.
func NewLLMIntentLabeler(call LabelCaller, labels []IntentLabel) *LLMIntentLabeler {
	return &LLMIntentLabeler{call: call, labels: labels}
}

var errSentinelPattern = regexp.MustCompile(`^\[ERROR: `)

// RetrieveIntent implements IntentLabeler.
func (l *LLMIntentLabeler) RetrieveIntent(ctx context.Context, query string) (*Filter, error) {
	if l.call == nil || len(l.labels) == 0 {
		return nil, nil
	}

	system := "You classify a cloud-operations query against a closed set of labels. " +
		"Respond with a single JSON object {\"phrase\": \"<one of the listed phrases, or empty if none match>\"}."
	var b strings.Builder
	b.WriteString("Labels:\n")
	for _, lab := range l.labels {
		b.WriteString("- ")
		b.WriteString(lab.Phrase)
		b.WriteString("\n")
	}
	b.WriteString("\nQuery: ")
	b.WriteString(query)

	resp, err := l.call(ctx, system, b.String())
	if err != nil {
		return nil, err
	}
	if errSentinelPattern.MatchString(resp) {
		return nil, nil
	}

	phrase, ok := extractPhrase(resp)
	if !ok || phrase == "" {
		return nil, nil
	}

	for _, lab := range l.labels {
		if strings.EqualFold(lab.Phrase, phrase) {
			return &Filter{Service: lab.Service, Operations: lab.Operations}, nil
		}
	}
	return nil, nil
}

type phraseResponse struct {
	Phrase string `json:"phrase"`
}

func extractPhrase(resp string) (string, bool) {
	loc := regexp.MustCompile(`\{[\s\S]*\}`).FindStringIndex(resp)
	if loc == nil {
		return "", false
	}
	var out phraseResponse
	if err := json.Unmarshal([]byte(resp[loc[0]:loc[1]]), &out); err != nil {
		return "", false
	}
	return out.Phrase, true
}
