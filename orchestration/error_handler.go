// ErrorHandler produces a short, user-friendly message for a stage failure,
// ported from original_source/core/fast_error_handler.py. It keeps a
// bounded log of "successful" responses (those containing one of a fixed
// set of helpful-sounding words) for later inspection, matching the
// original's error_learning.json, capped at 50 entries.
package orchestration

import (
	"context"
	"strings"
	"sync"

	"github.com/ayushchhipa1509/OCI-COPILOT/ai"
	"github.com/ayushchhipa1509/OCI-COPILOT/core"
)

const maxLearnedPatterns = 50

var goodResponseIndicators = []string{
	"try", "instead", "suggest", "help", "alternative",
	"check", "verify", "retry", "again",
}

// LearnedPattern is one entry of the error handler's bounded success log.
type LearnedPattern struct {
	Error    string
	Response string
	Node     string
}

// ErrorHandler turns a stage error into a brief, friendly message via a
// tightly scoped LM call, falling back to a canned message if the gateway
// itself fails.
type ErrorHandler struct {
	gateway *ai.Gateway
	logger  core.Logger

	mu       sync.Mutex
	patterns []LearnedPattern
}

// NewErrorHandler builds an ErrorHandler over a Gateway.
func NewErrorHandler(gateway *ai.Gateway, logger core.Logger) *ErrorHandler {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &ErrorHandler{gateway: gateway, logger: logger}
}

const errorHandlerPromptTemplate = `You are a helpful assistant. A user encountered an error while trying to: "%s"

Error: %s
Node: %s
Previous step: %s

Provide a brief, helpful response (2-3 sentences max):
1. What went wrong in simple terms
2. What they can try instead
3. Whether they should retry

Be friendly and actionable. Don't mention technical details.`

const fallbackErrorMessage = "I encountered an issue while processing your request. Please try again or rephrase your request."

// Handle returns a user-facing message for a stage failure. It never
// returns an error: on any LM failure it returns the canned fallback.
func (h *ErrorHandler) Handle(ctx context.Context, userInput, nodeName, lastNode string, cause error) string {
	if h.gateway == nil {
		return fallbackErrorMessage
	}
	prompt := sprintfErrorPrompt(userInput, cause, nodeName, lastNode)
	resp, err := h.gateway.Call(ctx, []ai.Message{{Role: "user", Content: prompt}}, "fast_error_handler", true)
	if err != nil || ai.IsErrorSentinel(resp) {
		return fallbackErrorMessage
	}

	message := strings.TrimSpace(resp)
	if isGoodErrorResponse(message) {
		errText := ""
		if cause != nil {
			errText = cause.Error()
		}
		h.logSuccessfulPattern(errText, message, nodeName)
	}
	return message
}

func sprintfErrorPrompt(userInput string, cause error, nodeName, lastNode string) string {
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	return replacePromptFields(errorHandlerPromptTemplate, userInput, errText, nodeName, lastNode)
}

func replacePromptFields(template, userInput, errText, nodeName, lastNode string) string {
	out := strings.Replace(template, "%s", userInput, 1)
	out = strings.Replace(out, "%s", errText, 1)
	out = strings.Replace(out, "%s", nodeName, 1)
	out = strings.Replace(out, "%s", lastNode, 1)
	return out
}

func isGoodErrorResponse(response string) bool {
	lower := strings.ToLower(response)
	for _, indicator := range goodResponseIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func (h *ErrorHandler) logSuccessfulPattern(errText, response, node string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	truncate := func(s string, n int) string {
		if len(s) > n {
			return s[:n]
		}
		return s
	}
	h.patterns = append(h.patterns, LearnedPattern{
		Error:    truncate(errText, 100),
		Response: truncate(response, 200),
		Node:     node,
	})
	if len(h.patterns) > maxLearnedPatterns {
		h.patterns = h.patterns[len(h.patterns)-maxLearnedPatterns:]
	}
}

// LearningStats mirrors FastErrorHandler.get_learning_stats: total pattern
// count plus the most recent few.
type LearningStats struct {
	TotalPatterns  int
	RecentPatterns []LearnedPattern
}

// Stats returns a snapshot of the handler's learned-pattern log.
func (h *ErrorHandler) Stats() LearningStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	recentN := 5
	if recentN > len(h.patterns) {
		recentN = len(h.patterns)
	}
	recent := make([]LearnedPattern, recentN)
	copy(recent, h.patterns[len(h.patterns)-recentN:])
	return LearningStats{TotalPatterns: len(h.patterns), RecentPatterns: recent}
}
