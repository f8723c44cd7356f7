package orchestration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuperviseEntryRoutesToNormalizer(t *testing.T) {
	route := Supervise(State{})
	require.Equal(t, "normalizer", route.NextStep)
	require.Nil(t, route.Terminal)
}

func TestSuperviseMaxRecursionTerminates(t *testing.T) {
	route := Supervise(State{RecursionCount: 20, MaxRecursion: 20})
	require.Empty(t, route.NextStep)
	require.NotNil(t, route.Terminal)
}

func TestSuperviseFollowsNormalizerNextStep(t *testing.T) {
	route := Supervise(State{LastNode: "normalizer", NextStep: "rag_retriever"})
	require.Equal(t, "rag_retriever", route.NextStep)
}

func TestSuperviseRetriesPlannerOnceThenTerminates(t *testing.T) {
	route := Supervise(State{LastNode: "planner", PlanError: "could not resolve intent", PlannerRetries: 0})
	require.Equal(t, "planner", route.NextStep)

	route = Supervise(State{LastNode: "planner", PlanError: "could not resolve intent", PlannerRetries: 1})
	require.Equal(t, "presentation_node", route.NextStep)
}

func TestSupervisePlannerMissingParametersRoutesToPresentation(t *testing.T) {
	plan := &Plan{Steps: []Step{{Action: "create_instance", MissingParameters: []string{"shape"}}}}
	route := Supervise(State{LastNode: "planner", Plan: plan, MissingParameters: []string{"shape"}})

	require.Equal(t, "presentation_node", route.NextStep)
	require.True(t, route.ParameterGatheringRequired)
	require.Equal(t, []string{"shape"}, route.MissingParameters)
	require.Same(t, plan, route.PendingPlan)
}

func TestSupervisePlannerConfirmationRoutesToPresentation(t *testing.T) {
	plan := &Plan{Steps: []Step{{Action: "delete_bucket"}}, RequiresConfirmation: true}
	route := Supervise(State{LastNode: "planner", Plan: plan, RequiresConfirmation: true})

	require.Equal(t, "presentation_node", route.NextStep)
	require.Same(t, plan, route.PendingPlan)
}

func TestSupervisePlannerSafePlanRoutesToCodegen(t *testing.T) {
	plan := &Plan{Steps: []Step{{Action: "list_instances"}}}
	route := Supervise(State{LastNode: "planner", Plan: plan})
	require.Equal(t, "codegen", route.NextStep)
}

func TestSupervisePresentationConfirmationAffirmativeRoutesToCodegen(t *testing.T) {
	pending := &Plan{Steps: []Step{{Action: "delete_bucket"}}}
	route := Supervise(State{LastNode: "presentation_node", PendingPlan: pending, ConfirmationResponse: "Yes"})

	require.Equal(t, "codegen", route.NextStep)
	require.Same(t, pending, route.Plan)
	require.True(t, route.ClearPendingPlan)
}

func TestSupervisePresentationConfirmationNegativeCancels(t *testing.T) {
	pending := &Plan{Steps: []Step{{Action: "delete_bucket"}}}
	route := Supervise(State{LastNode: "presentation_node", PendingPlan: pending, ConfirmationResponse: "no"})

	require.Empty(t, route.NextStep)
	require.NotNil(t, route.Terminal)
}

func TestSupervisePresentationParameterSelectionStillMissing(t *testing.T) {
	pending := &Plan{Steps: []Step{{Action: "create_instance", MissingParameters: []string{"shape", "image_id"}}}}
	route := Supervise(State{
		LastNode:                   "presentation_node",
		PendingPlan:                pending,
		MissingParameters:          []string{"shape", "image_id"},
		ParameterSelectionResponse: "shape: VM.Standard2.1",
	})

	require.Equal(t, "presentation_node", route.NextStep)
	require.True(t, route.ParameterGatheringRequired)
	require.Equal(t, []string{"image_id"}, route.MissingParameters)
}

func TestSupervisePresentationParameterSelectionComplete(t *testing.T) {
	pending := &Plan{Steps: []Step{{Action: "create_instance", MissingParameters: []string{"shape"}}}}
	route := Supervise(State{
		LastNode:                   "presentation_node",
		PendingPlan:                pending,
		MissingParameters:          []string{"shape"},
		ParameterSelectionResponse: "shape: VM.Standard2.1",
	})

	require.Equal(t, "codegen", route.NextStep)
	require.True(t, route.ClearPendingPlan)
}

func TestSuperviseVerifierFeedbackRetriesCodegenThenTerminates(t *testing.T) {
	route := Supervise(State{LastNode: "verifier", VerifyFeedback: "bad field reference", VerifyRetries: 0})
	require.Equal(t, "codegen", route.NextStep)

	route = Supervise(State{LastNode: "verifier", VerifyFeedback: "bad field reference", VerifyRetries: 1})
	require.Equal(t, "presentation_node", route.NextStep)
}

func TestSuperviseVerifierSuccessRoutesToExecutor(t *testing.T) {
	route := Supervise(State{LastNode: "verifier"})
	require.Equal(t, "executor", route.NextStep)
}

func TestSuperviseExecutorRetryableErrorRetriesCodegen(t *testing.T) {
	route := Supervise(State{LastNode: "executor", ExecutionError: "NameError: x is not defined", ExecutionRetries: 0})
	require.Equal(t, "codegen", route.NextStep)
}

func TestSuperviseExecutorNonRetryableErrorTerminates(t *testing.T) {
	route := Supervise(State{LastNode: "executor", ExecutionError: "permission denied"})
	require.Equal(t, "presentation_node", route.NextStep)
}

func TestSuperviseExecutorSuccessRoutesToPresentation(t *testing.T) {
	route := Supervise(State{LastNode: "executor"})
	require.Equal(t, "presentation_node", route.NextStep)
}

func TestIsRetryableError(t *testing.T) {
	require.True(t, IsRetryableError("TypeError: unsupported operand"))
	require.False(t, IsRetryableError("authentication failed"))
	require.True(t, IsRetryableError("some unrecognized error"))
	require.False(t, IsRetryableError(""))
}
