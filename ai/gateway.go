package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayushchhipa1509/OCI-COPILOT/core"
	"github.com/ayushchhipa1509/OCI-COPILOT/resilience"
	"github.com/ayushchhipa1509/OCI-COPILOT/telemetry"
)

// Message is one turn of a chat-style prompt handed to the gateway.
type Message struct {
	Role    string // "system" | "user"
	Content string
}

// ErrorSentinelPrefix marks a Gateway.Call return value as a stage failure
// rather than a usable LM response, mirroring the original's "[ERROR: ...]"
// convention (confirmed via call_llm usage in planner.py/supervisor.py).
const ErrorSentinelPrefix = "[ERROR: "

// rateLimitSignatures are textual matches that trigger early provider
// rotation instead of exhausting retries against a provider that is
// already throttling us.
var rateLimitSignatures = []string{"resource_exhausted", "429", "quota", "rate limit"}

// namedClient pairs a registered AIClient with the label used in logs and
// timing records; the Gateway never leaks this label to callers.
type namedClient struct {
	name   string
	fast   core.AIClient
	strong core.AIClient
}

// Gateway routes stage calls to a fast or powerful tier model, rotating
// across an ordered provider chain on failure. Grounded on the teacher's
// ai/provider.go (AIConfig/AIOption) + ai/client.go (core.AIClient contract)
// and orchestration/error_analyzer.go's HTTP-status/text routing pattern for
// rate-limit detection.
type Gateway struct {
	providers []namedClient
	logger    core.Logger
	telemetry core.Telemetry

	retryConfig *resilience.RetryConfig

	mu       sync.Mutex
	timings  map[string]time.Duration
	breakers map[string]*resilience.CircuitBreaker
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger overrides the gateway's logger.
func WithGatewayLogger(logger core.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger }
}

// WithGatewayTelemetry overrides the gateway's telemetry sink.
func WithGatewayTelemetry(t core.Telemetry) GatewayOption {
	return func(g *Gateway) { g.telemetry = t }
}

// NewGateway builds a Gateway over an ordered provider list. Each entry
// supplies both a fast-tier and a powerful-tier client; a provider with only
// one tier may repeat itself for both.
func NewGateway(opts ...GatewayOption) *Gateway {
	g := &Gateway{
		logger:      &core.NoOpLogger{},
		timings:     make(map[string]time.Duration),
		breakers:    make(map[string]*resilience.CircuitBreaker),
		retryConfig: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithGatewayRetryConfig overrides the retry/backoff policy applied to each
// provider call before the circuit breaker gives up on it.
func WithGatewayRetryConfig(cfg *resilience.RetryConfig) GatewayOption {
	return func(g *Gateway) { g.retryConfig = cfg }
}

// AddProvider appends a provider to the rotation chain. Providers are tried
// in the order added.
func (g *Gateway) AddProvider(name string, fast, strong core.AIClient) {
	if strong == nil {
		strong = fast
	}
	if fast == nil {
		fast = strong
	}
	g.providers = append(g.providers, namedClient{name: name, fast: fast, strong: strong})

	cbConfig := resilience.DefaultConfig()
	cbConfig.Name = name
	cbConfig.Logger = g.logger
	g.mu.Lock()
	cb, err := resilience.NewCircuitBreaker(cbConfig)
	if err == nil {
		g.breakers[name] = cb
	}
	g.mu.Unlock()
}

// breakerFor returns the provider's circuit breaker, lazily creating one if
// AddProvider could not register one.
func (g *Gateway) breakerFor(name string) *resilience.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[name]; ok {
		return cb
	}
	cb, err := resilience.NewCircuitBreaker(resilience.DefaultConfig())
	if err != nil {
		return nil
	}
	g.breakers[name] = cb
	return cb
}

// Call routes a stage's messages through the provider chain, selecting the
// fast or powerful tier per useFast, and rotating to the next provider on
// failure or rate-limit signature. It returns an ErrorSentinelPrefix-ed
// string (never an error) only when every provider in the chain has failed;
// callers MUST treat that prefix as a stage failure.
func (g *Gateway) Call(ctx context.Context, messages []Message, stage string, useFast bool) (string, error) {
	if len(g.providers) == 0 {
		return sentinel("no AI providers configured"), nil
	}

	prompt, system := flattenMessages(messages)
	opts := &core.AIOptions{
		Temperature:  0.2,
		MaxTokens:    2048,
		SystemPrompt: system,
	}

	start := time.Now()
	var lastErr error
	for _, p := range g.providers {
		client := p.strong
		if useFast {
			client = p.fast
		}
		if client == nil {
			continue
		}

		cb := g.breakerFor(p.name)
		if cb != nil && !cb.CanExecute() {
			g.logger.Warn("ai gateway: circuit open, rotating", map[string]interface{}{
				"provider": p.name,
				"stage":    stage,
			})
			lastErr = core.ErrCircuitBreakerOpen
			continue
		}

		providerStart := time.Now()
		var resp *core.AIResponse
		callErr := func() error {
			if cb == nil {
				var err error
				resp, err = client.GenerateResponse(ctx, prompt, opts)
				return err
			}
			// A rate-limited attempt cancels the remaining retries so the
			// provider loop rotates to the next provider straight away.
			retryCtx, cancelRetries := context.WithCancel(ctx)
			defer cancelRetries()
			var rateLimitErr error
			err := resilience.RetryWithCircuitBreaker(retryCtx, g.retryConfig, cb, func() error {
				var err error
				resp, err = client.GenerateResponse(ctx, prompt, opts)
				if err != nil && isRateLimited(err) {
					rateLimitErr = err
					cancelRetries()
				}
				return err
			})
			if rateLimitErr != nil {
				return rateLimitErr
			}
			return err
		}()
		providerDurationMs := float64(time.Since(providerStart).Milliseconds())

		if callErr == nil {
			telemetry.RecordAIRequest(telemetry.ModuleAI, p.name, providerDurationMs, "success")
			g.recordTiming(stage, time.Since(start))
			return resp.Content, nil
		}

		telemetry.RecordAIRequest(telemetry.ModuleAI, p.name, providerDurationMs, "error")
		lastErr = callErr
		g.logger.Warn("ai gateway: provider failed, rotating", map[string]interface{}{
			"provider": p.name,
			"stage":    stage,
			"error":    callErr.Error(),
		})

		if isRateLimited(callErr) {
			continue // early rotation, no point retrying this provider
		}
	}

	g.recordTiming(stage, time.Since(start))
	if lastErr == nil {
		lastErr = core.ErrAllProvidersFailed
	}
	return sentinel(lastErr.Error()), nil
}

func (g *Gateway) recordTiming(stage string, d time.Duration) {
	g.mu.Lock()
	g.timings[stage] = d
	g.mu.Unlock()
	if g.telemetry != nil {
		g.telemetry.RecordMetric("ai.gateway.stage_duration_seconds", d.Seconds(), map[string]string{"stage": stage})
	}
}

// Timings returns a snapshot of the last recorded per-stage call duration.
// Turn State's `timings` map is filled separately by the GraphDriver.
func (g *Gateway) Timings() map[string]time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]time.Duration, len(g.timings))
	for k, v := range g.timings {
		out[k] = v
	}
	return out
}

func sentinel(reason string) string {
	return fmt.Sprintf("%s%s]", ErrorSentinelPrefix, reason)
}

// IsErrorSentinel reports whether an LM response is the gateway's
// all-providers-failed marker.
func IsErrorSentinel(response string) bool {
	return strings.HasPrefix(response, ErrorSentinelPrefix)
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

func flattenMessages(messages []Message) (prompt, system string) {
	var userParts, sysParts []string
	for _, m := range messages {
		switch m.Role {
		case "system":
			sysParts = append(sysParts, m.Content)
		default:
			userParts = append(userParts, m.Content)
		}
	}
	return strings.Join(userParts, "\n\n"), strings.Join(sysParts, "\n\n")
}
