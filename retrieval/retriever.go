// Package retrieval implements the RAG retrieval stage (spec.md §4.3),
// ported from original_source/nodes/rag_retriever.py. An Embedder turns the
// user's query into a vector; a VectorStore returns the nearest documents
// plus metadata; Retriever decides whether the hit set counts as "found"
// and, if not, falls back to the Planner while preserving the normalized
// query untouched, exactly as rag_retriever_node does. The Embedder/
// VectorStore boundary is a plain HTTP client pair, grounded on the
// teacher's ai/client.go request/response shape (bytes.Buffer request body,
// json.NewDecoder response parsing, a configurable *http.Client with a fixed
// timeout).
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ayushchhipa1509/OCI-COPILOT/core"
)

// Document is one retrieved chunk plus its source metadata.
type Document struct {
	Text     string
	Metadata map[string]interface{}
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Filter is an exact metadata filter constructed from a matched intent
// label: "service=X AND operation=Y", or a disjunction when a label maps to
// multiple operations (spec.md §4.3 step 2).
type Filter struct {
	Service    string
	Operations []string
}

// VectorStore returns the nearest documents to a query vector, optionally
// narrowed by a metadata Filter.
type VectorStore interface {
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Document, error)
}

// Result is the outcome of a retrieval attempt (spec.md §4.3).
type Result struct {
	Found             bool
	Documents         []Document
	ExecutionStrategy string
	NormalizedQuery   string
}

// IntentLabeler resolves a query to at most one {service, operation} label
// from a closed set (spec.md §4.3 RetrieveIntent), e.g. an LM asked to pick
// from a fixed phrase table. A nil label means no match: search proceeds
// unfiltered (graceful degradation to unfiltered semantic search, spec.md
// §4.3 "Failures in the intent LM degrade gracefully").
type IntentLabeler interface {
	RetrieveIntent(ctx context.Context, query string) (*Filter, error)
}

// Retriever runs the embed-then-query pipeline and applies the "meaningful
// data" check ported from rag_retriever_node's has_data computation.
type Retriever struct {
	labeler  IntentLabeler
	embedder Embedder
	store    VectorStore
	logger   core.Logger
	topK     int
}

// NewRetriever builds a Retriever over an Embedder/VectorStore pair. labeler
// may be nil, in which case every query runs an unfiltered semantic search
// (spec.md §4.3's degrade-gracefully path).
func NewRetriever(labeler IntentLabeler, embedder Embedder, store VectorStore, logger core.Logger, topK int) *Retriever {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{labeler: labeler, embedder: embedder, store: store, logger: logger, topK: topK}
}

// Retrieve resolves an intent label (if a labeler is configured), embeds the
// query, fetches the nearest documents under that filter, and decides
// whether they count as a hit. On a miss, ExecutionStrategy is
// "retrieval_fallback_to_planner" and NormalizedQuery is preserved
// unchanged for the Planner, per rag_retriever.py's explicit "CRITICAL:
// Preserve the normalized query for planner" comment. "found" is true iff
// any non-empty document survives (spec.md §9 Open Questions: the source
// uses only non-empty documents to distinguish a low-relevance hit from a
// miss, so this carries that same behavior rather than a distance
// threshold).
func (r *Retriever) Retrieve(ctx context.Context, normalizedQuery string) Result {
	var filter *Filter
	if r.labeler != nil {
		f, err := r.labeler.RetrieveIntent(ctx, normalizedQuery)
		if err != nil {
			r.logger.Warn("retrieval: intent labeling failed, searching unfiltered", map[string]interface{}{"error": err.Error()})
		} else {
			filter = f
		}
	}

	vector, err := r.embedder.Embed(ctx, normalizedQuery)
	if err != nil {
		r.logger.Warn("retrieval: embed failed, falling back to planner", map[string]interface{}{"error": err.Error()})
		return miss(normalizedQuery)
	}

	docs, err := r.store.Query(ctx, vector, r.topK, filter)
	if err != nil {
		r.logger.Warn("retrieval: vector store query failed, falling back to planner", map[string]interface{}{"error": err.Error()})
		return miss(normalizedQuery)
	}

	if !hasMeaningfulData(docs) {
		return miss(normalizedQuery)
	}

	return Result{
		Found:             true,
		Documents:         docs,
		ExecutionStrategy: "retrieval_chain",
	}
}

func miss(normalizedQuery string) Result {
	return Result{
		ExecutionStrategy: "retrieval_fallback_to_planner",
		NormalizedQuery:   normalizedQuery,
	}
}

// hasMeaningfulData reports whether any retrieved document has non-empty
// trimmed text, ported from rag_retriever_node's has_data check.
func hasMeaningfulData(docs []Document) bool {
	for _, d := range docs {
		if strings.TrimSpace(d.Text) != "" {
			return true
		}
	}
	return false
}

// HTTPEmbedder calls an external embedding service over HTTP, grounded on
// the teacher's ai/client.go request/response idiom.
type HTTPEmbedder struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     core.Logger
}

// NewHTTPEmbedder builds an HTTPEmbedder.
func NewHTTPEmbedder(baseURL, apiKey string, logger core.Logger) *HTTPEmbedder {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &HTTPEmbedder{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Input: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("retrieval: embed service returned %d: %s", resp.StatusCode, string(data))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("retrieval: decode embed response: %w", err)
	}
	return out.Embedding, nil
}

// HTTPVectorStore queries an external vector database over HTTP.
type HTTPVectorStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     core.Logger
}

// NewHTTPVectorStore builds an HTTPVectorStore.
func NewHTTPVectorStore(baseURL, apiKey string, logger core.Logger) *HTTPVectorStore {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &HTTPVectorStore{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type queryRequest struct {
	Vector  []float32              `json:"vector"`
	TopK    int                    `json:"top_k"`
	Filter  map[string]interface{} `json:"filter,omitempty"`
}

type queryResponseDoc struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

type queryResponse struct {
	Documents []queryResponseDoc `json:"documents"`
}

// filterToMap renders a Filter as the "service=X AND operation=Y" (or
// disjunction-of-operations) exact metadata filter spec.md §4.3 step 2
// describes, shaped as the request body a metadata-filtering vector store
// expects.
func filterToMap(f *Filter) map[string]interface{} {
	if f == nil {
		return nil
	}
	out := map[string]interface{}{"service": f.Service}
	switch len(f.Operations) {
	case 0:
		// service-only filter
	case 1:
		out["operation"] = f.Operations[0]
	default:
		out["operation_in"] = f.Operations
	}
	return out
}

// Query implements VectorStore.
func (v *HTTPVectorStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Document, error) {
	body, err := json.Marshal(queryRequest{Vector: vector, TopK: topK, Filter: filterToMap(filter)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/query", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector store request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("retrieval: vector store returned %d: %s", resp.StatusCode, string(data))
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("retrieval: decode vector store response: %w", err)
	}

	docs := make([]Document, 0, len(out.Documents))
	for _, d := range out.Documents {
		docs = append(docs, Document{Text: d.Text, Metadata: d.Metadata})
	}
	return docs, nil
}
