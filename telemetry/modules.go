package telemetry

// This file pre-registers the metric instruments the orchestration engine
// actually emits (ai.Gateway's provider calls and orchestration.Executor's
// cloud tool calls), so the first real emission doesn't pay instrument
// creation cost.

func init() {
	DeclareMetrics("orchestration", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:    UnifiedToolCallDuration,
				Type:    "histogram",
				Help:    "Cloud tool call duration in milliseconds",
				Labels:  []string{"module", "tool_name", "status"},
				Unit:    "ms",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000},
			},
			{
				Name:   UnifiedToolCallTotal,
				Type:   "counter",
				Help:   "Total cloud tool calls",
				Labels: []string{"module", "tool_name", "status"},
			},
			{
				Name:   UnifiedToolCallErrors,
				Type:   "counter",
				Help:   "Cloud tool call errors by classification",
				Labels: []string{"module", "tool_name", "error_type"},
			},
		},
	})

	DeclareMetrics("ai", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:    UnifiedAIRequestDuration,
				Type:    "histogram",
				Help:    "LM provider request duration in milliseconds",
				Labels:  []string{"module", "provider", "status"},
				Unit:    "ms",
				Buckets: []float64{100, 500, 1000, 2000, 5000, 10000},
			},
			{
				Name:   UnifiedAIRequestTotal,
				Type:   "counter",
				Help:   "Total LM provider requests",
				Labels: []string{"module", "provider", "status"},
			},
		},
	})
}
