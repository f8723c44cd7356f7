package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestGraphDriverRunsToTerminal(t *testing.T) {
	d := NewGraphDriver()
	d.RegisterStage("supervisor", func(ctx context.Context, s State) StageOverlay {
		return StageOverlay{LastNode: "supervisor", NextStep: "finish"}
	})
	d.RegisterStage("finish", func(ctx context.Context, s State) StageOverlay {
		return StageOverlay{
			LastNode: "finish",
			NextStep: "",
			Terminal: &Presentation{Summary: "done", Format: FormatChat},
		}
	})

	start := *NewState("hello", "sess-1", false, nil, 20)
	outcome, err := d.Run(context.Background(), start)

	require.NoError(t, err)
	require.False(t, outcome.Paused)
	require.NotNil(t, outcome.State.Terminal)
	require.Equal(t, "done", outcome.State.Terminal.Summary)
}

func TestGraphDriverDefaultsToSupervisorEntry(t *testing.T) {
	d := NewGraphDriver()
	called := false
	d.RegisterStage("supervisor", func(ctx context.Context, s State) StageOverlay {
		called = true
		return StageOverlay{LastNode: "supervisor", Terminal: &Presentation{Summary: "ok", Format: FormatChat}}
	})

	start := *NewState("hi", "sess-2", false, nil, 20)
	_, err := d.Run(context.Background(), start)

	require.NoError(t, err)
	require.True(t, called)
}

func TestGraphDriverUnknownStageErrors(t *testing.T) {
	d := NewGraphDriver()
	d.RegisterStage("supervisor", func(ctx context.Context, s State) StageOverlay {
		return StageOverlay{LastNode: "supervisor", NextStep: "nonexistent"}
	})

	start := *NewState("hi", "sess-3", false, nil, 20)
	_, err := d.Run(context.Background(), start)

	require.Error(t, err)
}

func TestGraphDriverMaxRecursionTerminates(t *testing.T) {
	d := NewGraphDriver()
	d.RegisterStage("supervisor", func(ctx context.Context, s State) StageOverlay {
		return StageOverlay{LastNode: "supervisor", NextStep: "supervisor"}
	})

	start := *NewState("hi", "sess-4", false, nil, 3)
	outcome, err := d.Run(context.Background(), start)

	require.NoError(t, err)
	require.False(t, outcome.Paused)
	require.NotNil(t, outcome.State.Terminal)
	require.Contains(t, outcome.State.Terminal.Summary, "maximum processing limit")
}

func TestGraphDriverPausesOnConfirmationRequired(t *testing.T) {
	d := NewGraphDriver()
	d.RegisterStage("supervisor", func(ctx context.Context, s State) StageOverlay {
		return StageOverlay{
			LastNode: "supervisor",
			NextStep: "",
			Terminal: &Presentation{Summary: "confirm?", Format: FormatChat, ConfirmationRequired: true},
		}
	})

	start := *NewState("delete my bucket", "sess-5", false, nil, 20)
	outcome, err := d.Run(context.Background(), start)

	require.NoError(t, err)
	require.True(t, outcome.Paused)
	require.Equal(t, PauseConfirmationRequired, outcome.Reason)
}

func TestGraphDriverPausesOnParameterGatheringRequired(t *testing.T) {
	d := NewGraphDriver()
	d.RegisterStage("supervisor", func(ctx context.Context, s State) StageOverlay {
		return StageOverlay{
			LastNode: "supervisor",
			Terminal: &Presentation{Summary: "need params", Format: FormatChat, ParameterGatheringRequired: true},
		}
	})

	start := *NewState("create an instance", "sess-6", false, nil, 20)
	outcome, err := d.Run(context.Background(), start)

	require.NoError(t, err)
	require.True(t, outcome.Paused)
	require.Equal(t, PauseParameterGatheringRequired, outcome.Reason)
}

func TestGraphDriverPausesOnCompartmentSelectionRequired(t *testing.T) {
	d := NewGraphDriver()
	d.RegisterStage("supervisor", func(ctx context.Context, s State) StageOverlay {
		return StageOverlay{
			LastNode:                     "supervisor",
			CompartmentSelectionRequired: boolPtr(true),
			Terminal:                     &Presentation{Summary: "pick a compartment", Format: FormatChat},
		}
	})

	start := *NewState("create an instance", "sess-7", false, nil, 20)
	outcome, err := d.Run(context.Background(), start)

	require.NoError(t, err)
	require.True(t, outcome.Paused)
	require.Equal(t, PauseCompartmentSelection, outcome.Reason)
}

func TestGraphDriverRecordsStageTimings(t *testing.T) {
	d := NewGraphDriver()
	d.RegisterStage("supervisor", func(ctx context.Context, s State) StageOverlay {
		return StageOverlay{LastNode: "supervisor", Terminal: &Presentation{Summary: "ok", Format: FormatChat}}
	})

	start := *NewState("hi", "sess-8", false, nil, 20)
	outcome, err := d.Run(context.Background(), start)

	require.NoError(t, err)
	_, ok := outcome.State.Timings["supervisor"]
	require.True(t, ok)
}

func TestMergeLastWriteWinsAndClearSemantics(t *testing.T) {
	s := State{NormalizedQuery: "old", PlanError: "boom"}
	s = Merge(s, StageOverlay{NormalizedQuery: strPtr("new"), PlanErrorCleared: true})

	require.Equal(t, "new", s.NormalizedQuery)
	require.Empty(t, s.PlanError)
}

func TestMergeIncrementsRetryCounters(t *testing.T) {
	s := State{}
	s = Merge(s, StageOverlay{IncrementVerifyRetries: true})
	s = Merge(s, StageOverlay{IncrementVerifyRetries: true})
	require.Equal(t, 2, s.VerifyRetries)
}

func TestMergeNextStepAlwaysOverwritten(t *testing.T) {
	s := State{NextStep: "codegen"}
	s = Merge(s, StageOverlay{NextStep: ""})
	require.Empty(t, s.NextStep)
}
