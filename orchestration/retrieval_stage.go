// RAGStage adapts retrieval.Retriever into a graph stage: a hit routes
// straight to Presentation with execution_strategy=retrieval_chain (spec.md
// §4.3); a miss routes to the Planner with
// execution_strategy=retrieval_fallback_to_planner, preserving
// normalized_query untouched, per rag_retriever_node's explicit
// "CRITICAL: Preserve the normalized query for planner" comment.
package orchestration

import (
	"context"

	"github.com/ayushchhipa1509/OCI-COPILOT/retrieval"
)

// RAGStage wraps a retrieval.Retriever as a GraphDriver StageFunc.
type RAGStage struct {
	retriever *retrieval.Retriever
}

// NewRAGStage builds a RAGStage over a retrieval.Retriever.
func NewRAGStage(r *retrieval.Retriever) *RAGStage {
	return &RAGStage{retriever: r}
}

// Run implements StageFunc, registered under the "rag_retriever" name.
func (g *RAGStage) Run(ctx context.Context, s State) StageOverlay {
	if g.retriever == nil {
		strategy := StrategyRetrievalFallbackToPlanner
		return StageOverlay{
			LastNode:          "rag_retriever",
			NextStep:          "planner",
			ExecutionStrategy: strategy,
		}
	}

	result := g.retriever.Retrieve(ctx, s.NormalizedQuery)
	if !result.Found {
		return StageOverlay{
			LastNode:          "rag_retriever",
			NextStep:          "planner",
			ExecutionStrategy: StrategyRetrievalFallbackToPlanner,
		}
	}

	items := make([]ResultItem, 0, len(result.Documents))
	for _, doc := range result.Documents {
		item := ResultItem{}
		for k, v := range doc.Metadata {
			item[k] = v
		}
		item["findings"] = doc.Text
		items = append(items, item)
	}

	return StageOverlay{
		LastNode:          "rag_retriever",
		NextStep:          "presentation_node",
		ExecutionStrategy: StrategyRetrievalChain,
		ExecutionResult:   &items,
	}
}
