package orchestration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectImportantColumnsPrioritizesAndCaps(t *testing.T) {
	cols := SelectImportantColumns([]string{
		"zebra", "state", "attribute_map", "id", "alpha", "display_name",
	})
	require.Equal(t, []string{"display_name", "id", "state", "alpha", "zebra"}, cols)
}

func TestSelectImportantColumnsCapsAtTen(t *testing.T) {
	cols := SelectImportantColumns([]string{
		"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10", "c11", "id",
	})
	require.Len(t, cols, 10)
	require.Equal(t, "id", cols[0])
}

func TestFormatExecutionResultSkipsErrorsAndDerivesColumns(t *testing.T) {
	items := []ResultItem{
		{"id": "i-1", "state": "RUNNING"},
		{"error": "boom"},
		{"id": "i-2", "state": "STOPPED"},
	}
	data, columns := FormatExecutionResult(items)

	require.Len(t, data, 2)
	require.Contains(t, columns, "id")
	require.Contains(t, columns, "state")
}

func TestRenderSafetyConfirmationSingleStep(t *testing.T) {
	plan := &Plan{Steps: []Step{{
		Action: "delete_bucket",
		Service: "storage",
		Params:  map[string]interface{}{"name": "my-bucket"},
	}}}
	p := RenderSafetyConfirmation(plan)

	require.True(t, p.ConfirmationRequired)
	require.Same(t, plan, p.PendingPlan)
	require.Contains(t, p.Summary, "DELETE BUCKET")
	require.Contains(t, p.Summary, "storage")
	require.Contains(t, p.Summary, "yes")
}

func TestRenderSafetyConfirmationReportsMissingParameters(t *testing.T) {
	plan := &Plan{Steps: []Step{{
		Action:            "create_instance",
		Service:           "compute",
		MissingParameters: []string{"shape", "image_id"},
	}}}
	p := RenderSafetyConfirmation(plan)

	require.Contains(t, p.Summary, "MISSING PARAMETERS DETECTED")
	require.Contains(t, p.Summary, "shape, image_id")
	require.NotContains(t, p.Summary, "Type \"yes\"")
}

func TestRenderCancellationDefaultsReason(t *testing.T) {
	p := RenderCancellation("")
	require.Contains(t, p.Summary, "Operation was cancelled")

	p2 := RenderCancellation("user declined")
	require.Contains(t, p2.Summary, "user declined")
}

func TestRenderParameterGatheringIncludesGuidanceForKnownParams(t *testing.T) {
	plan := &Plan{Steps: []Step{{Action: "create_instance", Service: "compute"}}}
	p := RenderParameterGathering(plan, []string{"shape", "compartment_id"})

	require.True(t, p.ParameterGatheringRequired)
	require.Equal(t, []string{"shape", "compartment_id"}, p.MissingParameters)
	require.Contains(t, p.Summary, "For Instance Shape")
	require.Contains(t, p.Summary, "For Compartment Selection")
	require.NotContains(t, p.Summary, "For Subnet Selection")
}

func TestRenderCompartmentSelectionEmptyList(t *testing.T) {
	plan := &Plan{Steps: []Step{{Action: "create_instance", Service: "compute"}}}
	p := RenderCompartmentSelection(plan, nil)

	require.Contains(t, p.Summary, "couldn't retrieve the list of compartments")
}

func TestRenderCompartmentSelectionNumbersChoices(t *testing.T) {
	plan := &Plan{Steps: []Step{{Action: "create_instance", Service: "compute"}}}
	compartments := []map[string]interface{}{
		{"id": "ocid1.compartment.oc1..a", "name": "prod"},
		{"id": "ocid1.compartment.oc1..b", "name": "dev"},
	}
	p := RenderCompartmentSelection(plan, compartments)

	require.Contains(t, p.Summary, "1. prod")
	require.Contains(t, p.Summary, "2. dev")
}

func TestParseParameterResponseNumericSelectsCompartment(t *testing.T) {
	compartments := []map[string]interface{}{
		{"id": "ocid1.compartment.oc1..a", "name": "prod"},
		{"id": "ocid1.compartment.oc1..b", "name": "dev"},
	}
	out := ParseParameterResponse("2", []string{"compartment_id"}, compartments)
	require.Equal(t, "ocid1.compartment.oc1..b", out["compartment_id"])
}

func TestParseParameterResponseKeyValueLines(t *testing.T) {
	out := ParseParameterResponse("shape: VM.Standard2.1\nimage_id: ocid1.image.oc1..x", []string{"shape", "image_id"}, nil)
	require.Equal(t, "VM.Standard2.1", out["shape"])
	require.Equal(t, "ocid1.image.oc1..x", out["image_id"])
}

func TestParseParameterResponseLoneOCIDFallsBackToCompartmentID(t *testing.T) {
	out := ParseParameterResponse("use ocid1.compartment.oc1..xyz please", []string{"compartment_id"}, nil)
	require.Equal(t, "ocid1.compartment.oc1..xyz", out["compartment_id"])
}

func TestParseParameterResponseIgnoresUnknownKeys(t *testing.T) {
	out := ParseParameterResponse("color: blue", []string{"shape"}, nil)
	require.Empty(t, out)
}

func TestPrimaryStepSingleStepPlan(t *testing.T) {
	plan := &Plan{Steps: []Step{{Action: "list_instances", Service: "compute"}}}
	step := primaryStep(plan)
	require.Equal(t, "list_instances", step.Action)
}

func TestPrimaryStepMultiStepPrefersDestructive(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Action: "list_instances", Service: "compute"},
		{Action: "delete_bucket", Service: "storage", SafetyTier: SafetyDestructive},
		{Action: "list_buckets", Service: "storage"},
	}}
	step := primaryStep(plan)
	require.Equal(t, "delete_bucket", step.Action)
}

func TestPrimaryStepMultiStepFallsBackToLast(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Action: "list_instances", Service: "compute"},
		{Action: "list_buckets", Service: "storage"},
	}}
	step := primaryStep(plan)
	require.Equal(t, "list_buckets", step.Action)
}

func TestPrimaryStepNilPlan(t *testing.T) {
	step := primaryStep(nil)
	require.Equal(t, "unknown action", step.Action)
}
