// Presenter formats a turn's terminal output for the user, grounded on
// original_source/nodes/presentation_node.py: the safety-confirmation,
// cancellation, parameter-gathering and compartment-selection message
// builders are ported close to verbatim, and select_important_columns's
// priority/unwanted-column tables are carried unchanged. LM-authored
// summaries are produced by running a Gateway call over the formatted data
// rather than the Python's call_llm_func, following the teacher's
// synthesizer.go pattern of delegating prose generation to the LM gateway
// and keeping Go responsible only for shaping the structured payload.
package orchestration

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PresentationFormat names how Presentation.Data should be rendered.
type PresentationFormat string

const (
	FormatChat  PresentationFormat = "chat"
	FormatTable PresentationFormat = "table"
)

// Presentation is the turn's final, user-facing payload (spec.md §3
// Presentation). Exactly one Terminal Presentation is produced per turn.
type Presentation struct {
	Summary string
	Format  PresentationFormat
	Data    []map[string]interface{}
	Columns []string

	ConfirmationRequired      bool
	PendingPlan               *Plan
	ParameterGatheringRequired bool
	MissingParameters          []string
}

// priorityColumns and unwantedColumns are carried verbatim from
// presentation_node.py::select_important_columns.
var priorityColumns = []string{
	"display_name", "name", "id", "lifecycle_state", "state", "shape", "size_in_gbs",
	"region", "availability_domain", "compartment_id", "time_created", "email", "protocol", "port",
	"public_ips", "has_public_ip", "public_ip",
}

var unwantedColumns = map[string]bool{
	"attribute_map": true,
	"swagger_types": true,
}

// SelectImportantColumns picks at most 10 display columns: priority columns
// (in the fixed order above) first, then any remaining columns alphabetized,
// excluding unwantedColumns. Ported verbatim from
// presentation_node.py::select_important_columns.
func SelectImportantColumns(allColumns []string) []string {
	filtered := make([]string, 0, len(allColumns))
	present := make(map[string]bool, len(allColumns))
	for _, c := range allColumns {
		if unwantedColumns[c] {
			continue
		}
		filtered = append(filtered, c)
		present[c] = true
	}

	var selected []string
	chosen := make(map[string]bool)
	for _, c := range priorityColumns {
		if present[c] {
			selected = append(selected, c)
			chosen[c] = true
		}
	}

	var remaining []string
	for _, c := range filtered {
		if !chosen[c] {
			remaining = append(remaining, c)
		}
	}
	sort.Strings(remaining)
	selected = append(selected, remaining...)

	if len(selected) > 10 {
		selected = selected[:10]
	}
	return selected
}

// FormatExecutionResult shapes a flat list of attribute maps into
// Presentation.Data/Columns, deriving the column set from the union of keys
// across all rows (mirrors format_execution_result_for_presentation's data
// normalization, minus OCI SDK specifics).
func FormatExecutionResult(items []ResultItem) (data []map[string]interface{}, columns []string) {
	colSet := make(map[string]bool)
	for _, item := range items {
		if item.IsError() {
			continue
		}
		row := make(map[string]interface{}, len(item))
		for k, v := range item {
			row[k] = v
			colSet[k] = true
		}
		data = append(data, row)
	}
	allColumns := make([]string, 0, len(colSet))
	for c := range colSet {
		allColumns = append(allColumns, c)
	}
	sort.Strings(allColumns)
	return data, SelectImportantColumns(allColumns)
}

// RenderSafetyConfirmation builds the confirmation prompt for a pending
// destructive plan's sole or primary step, ported from
// presentation_node.py::_handle_safety_confirmation.
func RenderSafetyConfirmation(pending *Plan) *Presentation {
	step := primaryStep(pending)
	var b strings.Builder
	fmt.Fprintf(&b, "\n⚠️ SAFETY CONFIRMATION REQUIRED ⚠️\n\n")
	fmt.Fprintf(&b, "I am about to perform a %s operation in the %s service.\n\n",
		strings.ToUpper(strings.ReplaceAll(step.Action, "_", " ")), step.Service)
	b.WriteString("Operation Details:\n")
	fmt.Fprintf(&b, "- Action: %s\n- Service: %s\n", step.Action, step.Service)
	if paramsJSON, err := json.MarshalIndent(step.Params, "", "  "); err == nil {
		fmt.Fprintf(&b, "- Parameters: %s\n", paramsJSON)
	}
	if len(step.MissingParameters) > 0 {
		fmt.Fprintf(&b, "\n⚠️ MISSING PARAMETERS DETECTED:\nThe following required parameters are missing: %s\n\nPlease provide the missing information before proceeding.\n",
			strings.Join(step.MissingParameters, ", "))
	} else {
		b.WriteString("\nAre you sure you want to proceed with this operation?\n\nType \"yes\" to confirm or \"no\" to cancel.\n")
	}
	return &Presentation{
		Summary:              b.String(),
		Format:                FormatChat,
		ConfirmationRequired:  true,
		PendingPlan:           pending,
	}
}

// RenderCancellation builds the cancellation message, ported from
// _handle_action_cancellation.
func RenderCancellation(reason string) *Presentation {
	if reason == "" {
		reason = "Operation was cancelled"
	}
	return &Presentation{
		Summary: fmt.Sprintf("\n❌ OPERATION CANCELLED\n\n%s\n\nNo changes have been made to your cloud environment.\n", reason),
		Format:  FormatChat,
	}
}

// RenderParameterGathering builds the missing-parameter prompt, ported from
// _handle_parameter_gathering, including the per-parameter guidance blocks
// for the known destructive-action parameter names.
func RenderParameterGathering(pending *Plan, missing []string) *Presentation {
	step := primaryStep(pending)
	var b strings.Builder
	fmt.Fprintf(&b, "\n🔧 PARAMETER GATHERING REQUIRED\n\nI need additional information to complete your %s operation in the %s service.\n\nMissing Parameters:\n%s\n\nPlease provide the missing information:\n",
		strings.ToUpper(strings.ReplaceAll(step.Action, "_", " ")), step.Service, strings.Join(missing, ", "))

	guidance := map[string]string{
		"compartment_id": "\nFor Compartment Selection:\nPlease provide the compartment OCID where you want to create the resource.\nYou can find compartment OCIDs by running: \"list compartments\"\n",
		"shape":          "\nFor Instance Shape:\nPlease provide the shape name (e.g., \"VM.Standard.E2.1.Micro\").\n",
		"image_id":       "\nFor Instance Image:\nPlease provide the image OCID.\n",
		"subnet_id":      "\nFor Subnet Selection:\nPlease provide the subnet OCID where you want to create the resource.\n",
	}
	for _, m := range missing {
		if g, ok := guidance[m]; ok {
			b.WriteString(g)
		}
	}
	return &Presentation{
		Summary:                    b.String(),
		Format:                      FormatChat,
		ParameterGatheringRequired:  true,
		MissingParameters:           missing,
		PendingPlan:                 pending,
	}
}

// RenderCompartmentSelection builds a numbered compartment picker from
// executed list_compartments results, ported from
// _handle_compartment_selection.
func RenderCompartmentSelection(pending *Plan, compartments []map[string]interface{}) *Presentation {
	step := primaryStep(pending)
	if len(compartments) == 0 {
		return &Presentation{
			Summary: fmt.Sprintf("\n🔧 COMPARTMENT SELECTION REQUIRED\n\nI need to know which compartment to use for your %s operation in the %s service.\n\nUnfortunately, I couldn't retrieve the list of compartments. Please provide the compartment OCID manually.\n",
				strings.ToUpper(strings.ReplaceAll(step.Action, "_", " ")), step.Service),
			Format:      FormatChat,
			PendingPlan: pending,
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n🔧 COMPARTMENT SELECTION REQUIRED\n\nPlease select a compartment by number:\n\n")
	for i, c := range compartments {
		name, _ := c["name"].(string)
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	return &Presentation{
		Summary:     b.String(),
		Format:      FormatChat,
		PendingPlan: pending,
	}
}

// ParseParameterResponse extracts parameter values from a user's free-text
// reply: a bare number selects a compartment by index, "key: value" lines
// are parsed directly, and when no such line matched, the first OCID in the
// reply is assigned to compartment_id if compartment_id is among the missing
// parameters. Ported from
// presentation_node.py::_parse_parameter_response, minus its LM-extraction
// fallback (callers that want LM extraction should try that before calling
// this as a last resort, matching the original's call ordering).
func ParseParameterResponse(userInput string, missing []string, compartments []map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	trimmed := strings.TrimSpace(userInput)

	if len(compartments) > 0 {
		if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(compartments) {
			out["compartment_id"] = compartments[n-1]["id"]
			return out
		}
	}

	missingSet := make(map[string]bool, len(missing))
	for _, m := range missing {
		missingSet[m] = true
	}
	for _, line := range strings.Split(userInput, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if missingSet[key] {
			out[key] = value
		}
	}

	if len(out) == 0 && missingSet["compartment_id"] {
		if ocid := findFirstOCID(userInput); ocid != "" {
			out["compartment_id"] = ocid
		}
	}
	return out
}

func findFirstOCID(s string) string {
	const prefix = "ocid1."
	idx := strings.Index(s, prefix)
	if idx < 0 {
		return ""
	}
	end := idx
	for end < len(s) {
		c := s[end]
		if c == ' ' || c == '\n' || c == '\t' || c == ',' {
			break
		}
		end++
	}
	return s[idx:end]
}

func primaryStep(p *Plan) Step {
	if p == nil {
		return Step{Action: "unknown action", Service: "unknown service"}
	}
	if !p.IsMultiStep() {
		if s := p.Single(); s != nil {
			return *s
		}
		return Step{Action: "unknown action", Service: "unknown service"}
	}
	for _, s := range p.Steps {
		if s.SafetyTier == SafetyDestructive || s.RequiresConfirmation {
			return s
		}
	}
	return p.Steps[len(p.Steps)-1]
}
