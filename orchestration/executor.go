// Executor interprets a verified ActionProgram against a
// cloudops.ClientFactory, replacing the original's exec()-based
// executor.py. Grounded on the teacher's orchestration/executor.go for its
// bounded-concurrency idiom (a capacity-sized semaphore guarding concurrent
// step goroutines, here an errgroup.Group with SetLimit) and on
// executor.py's _sanitize_results for the per-item success/error map shape
// every ResultItem takes.
package orchestration

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayushchhipa1509/OCI-COPILOT/cloudops"
	"github.com/ayushchhipa1509/OCI-COPILOT/core"
	"github.com/ayushchhipa1509/OCI-COPILOT/telemetry"
)

// Executor runs a Plan's compiled ActionPrograms against a cloud client
// factory.
type Executor struct {
	factory        cloudops.ClientFactory
	toMap          cloudops.ToMapFunc
	logger         core.Logger
	maxConcurrency int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger overrides the executor's logger.
func WithExecutorLogger(logger core.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithToMap overrides how opaque cloudops.Records convert to AttributeMaps.
func WithToMap(fn cloudops.ToMapFunc) ExecutorOption {
	return func(e *Executor) { e.toMap = fn }
}

// WithMaxConcurrency bounds how many of a multi-step plan's steps run at
// once, mirroring the teacher's semaphore-guarded SmartExecutor.Execute.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// NewExecutor builds an Executor over a cloud client factory.
func NewExecutor(factory cloudops.ClientFactory, opts ...ExecutorOption) *Executor {
	e := &Executor{
		factory:        factory,
		toMap:          cloudops.DefaultToMap,
		logger:         &core.NoOpLogger{},
		maxConcurrency: 5,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutionOutcome is the overlay the Executor stage contributes to Turn
// State.
type ExecutionOutcome struct {
	Results []ResultItem
	Error   string
}

// Execute runs every step of a safe (non-destructive) plan, or the sole step
// of an already-confirmed destructive plan, against the configured client
// factory, and sanitizes each step's output into ResultItems. Steps in a
// multi-step plan with no data dependency between them run concurrently,
// bounded by maxConcurrency; a single-step plan always runs inline.
func (e *Executor) Execute(ctx context.Context, cfg *cloudops.Config, p *Plan) ExecutionOutcome {
	if p == nil || len(p.Steps) == 0 {
		return ExecutionOutcome{Error: "no plan to execute"}
	}

	if !p.IsMultiStep() {
		items, err := e.executeStep(ctx, cfg, p.Steps[0])
		if err != nil {
			return ExecutionOutcome{Error: err.Error()}
		}
		return ExecutionOutcome{Results: items}
	}

	return e.executeMultiStep(ctx, cfg, p.Steps)
}

func (e *Executor) executeMultiStep(ctx context.Context, cfg *cloudops.Config, steps []Step) ExecutionOutcome {
	results := make([][]ResultItem, len(steps))
	errs := make([]error, len(steps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for i, step := range steps {
		i, step := i, step
		g.Go(func() error {
			items, err := e.executeStep(gctx, cfg, step)
			results[i] = items
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var all []ResultItem
	var firstErr string
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			if firstErr == "" {
				firstErr = err.Error()
			}
			all = append(all, ResultItem{"error": err.Error(), "step": steps[i].Action})
			continue
		}
		all = append(all, results[i]...)
	}

	outcome := ExecutionOutcome{Results: all}
	// A batch-level error (the one the Supervisor reads to decide on a
	// CodeGen retry) only applies once every step has failed; an isolated
	// per-item failure already has its own ResultItem{"error": ...} entry and
	// must not abort or retry its siblings (TESTABLE SCENARIO 6: one failing
	// bucket in a batch create does not prevent the other two from reporting
	// success).
	if failed > 0 && failed == len(steps) {
		outcome.Error = firstErr
	}
	return outcome
}

func (e *Executor) executeStep(ctx context.Context, cfg *cloudops.Config, step Step) ([]ResultItem, error) {
	if step.Artifact == nil {
		return nil, fmt.Errorf("executor: step %q has no compiled action program", step.Action)
	}
	vars := make(map[string]interface{})
	if err := e.run(ctx, cfg, step.Artifact.Instructions, vars); err != nil {
		return nil, err
	}
	final, ok := vars[step.Artifact.ReturnVar]
	if !ok {
		return nil, nil
	}
	records, _ := final.([]cloudops.Record)
	return e.sanitize(records), nil
}

func (e *Executor) run(ctx context.Context, cfg *cloudops.Config, instructions []Instruction, vars map[string]interface{}) error {
	for _, ins := range instructions {
		switch ins.Kind {
		case OpListResources, OpCallOp:
			client, err := e.factory.Get(ctx, ins.Service, cfg)
			if err != nil {
				return fmt.Errorf("executor: get client for %q: %w", ins.Service, err)
			}
			toolName := ins.Service + "." + ins.Action
			start := time.Now()
			records, _, err := client.Call(ctx, ins.Action, resolveParams(ins.Params, vars))
			durationMs := float64(time.Since(start).Milliseconds())
			if err != nil {
				telemetry.RecordToolCallError(telemetry.ModuleOrchestration, toolName, "cloud_client")
				telemetry.RecordToolCall(telemetry.ModuleOrchestration, toolName, durationMs, "error")
				return fmt.Errorf("executor: %s.%s: %w", ins.Service, ins.Action, err)
			}
			telemetry.RecordToolCall(telemetry.ModuleOrchestration, toolName, durationMs, "success")
			vars[ins.ResultVar] = records

		case OpFilterOp:
			source, _ := vars[ins.SourceVar].([]cloudops.Record)
			vars[ins.ResultVar] = e.filterRecords(source, ins)

		case OpForEach:
			items, _ := vars[ins.OverVar].([]cloudops.Record)
			for _, item := range items {
				scoped := cloneVars(vars)
				scoped[ins.ItemVar] = item
				if err := e.run(ctx, cfg, ins.Body, scoped); err != nil {
					return err
				}
				for k, v := range scoped {
					vars[k] = v
				}
			}

		default:
			return fmt.Errorf("executor: unsupported instruction kind %q", ins.Kind)
		}
	}
	return nil
}

func cloneVars(vars map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// resolveParams substitutes "${var}" placeholders with the named variable's
// current runtime value, leaving any other value untouched.
func resolveParams(params map[string]interface{}, vars map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			if resolved, found := resolveTemplate(s, vars); found {
				out[k] = resolved
				continue
			}
		}
		out[k] = v
	}
	return out
}

func resolveTemplate(s string, vars map[string]interface{}) (interface{}, bool) {
	if len(s) > 3 && s[:2] == "${" && s[len(s)-1] == '}' {
		name := s[2 : len(s)-1]
		if v, ok := vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Executor) filterRecords(records []cloudops.Record, ins Instruction) []cloudops.Record {
	var out []cloudops.Record
	for _, r := range records {
		m := e.toMap(r)
		if matchesFilter(m, ins.Field, ins.Op, ins.Value) {
			out = append(out, r)
		}
	}
	return out
}

func matchesFilter(m cloudops.AttributeMap, field, op string, value interface{}) bool {
	actual, ok := m[field]
	if !ok {
		return false
	}
	switch op {
	case "contains":
		return fmt.Sprintf("%v", actual) != "" && contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", value))
	default: // "eq"
		return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", value)
	}
}

func contains(haystack, needle string) bool {
	return len(needle) == 0 || (len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// sanitize converts opaque cloudops.Records into ResultItems, ported from
// executor.py::_sanitize_results: a dict passes through unchanged, anything
// else goes through ToMap.
func (e *Executor) sanitize(records []cloudops.Record) []ResultItem {
	items := make([]ResultItem, 0, len(records))
	for _, r := range records {
		m := e.toMap(r)
		items = append(items, ResultItem(m))
	}
	return items
}
