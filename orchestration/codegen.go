// CodeGen compiles a Plan's steps into ActionPrograms, replacing the
// original's codegen_node.py (which asked an LLM to author executable
// Python and then regex-patched the result). Per spec.md §9 REDESIGN FLAGS,
// a Go process must never eval/exec LM-authored source, so CodeGen here
// builds the ActionProgram directly from the already-structured Plan/Step
// fields instead of asking an LM to author code: the action, service and
// params are already known once Planning has run, so compilation is
// deterministic. The service-alias normalization table and the Object
// Storage namespace prelude are carried over from codegen_node.py's
// string-patching passes, translated into structural program construction.
package orchestration

import "strings"

// serviceAliases maps service names codegen_node.py's generated code was
// seen to emit against ALLOWED_CLIENTS's keys, carried from
// _normalize_service_names_in_code.
var serviceAliases = map[string]string{
	"core":            "compute",
	"block_storage":   "blockstorage",
	"virtual_network": "virtualnetwork",
	"object_storage":  "objectstorage",
	"load_balancer":   "loadbalancer",
}

// serviceFallbackMap supplies a service when the plan step left it
// "unknown", ported from codegen_node.py's service_map.
var serviceFallbackMap = map[string]string{
	"list_instances":       "compute",
	"get_instance":         "compute",
	"start_instance":       "compute",
	"stop_instance":        "compute",
	"terminate_instance":   "compute",
	"list_volumes":         "blockstorage",
	"list_buckets":         "objectstorage",
	"list_compartments":    "identity",
	"list_users":           "identity",
	"list_groups":          "identity",
	"list_vcns":            "virtualnetwork",
	"list_subnets":         "virtualnetwork",
	"list_alarms":          "monitoring",
	"list_databases":       "database",
	"list_load_balancers":  "loadbalancer",
}

var destructiveVerbs = []string{"delete", "terminate", "detach", "stop"}

// CodeGenerator compiles Plan steps into ActionProgram artifacts.
type CodeGenerator struct{}

// NewCodeGenerator builds a CodeGenerator. It needs no dependencies: every
// input it uses is already present on the Plan the Planner produced.
func NewCodeGenerator() *CodeGenerator { return &CodeGenerator{} }

// Generate compiles every step of a plan in place, setting each Step's
// Artifact and resolving its final SafetyTier/Service, ported from
// codegen_node's per-step dispatch (codegen_node / _handle_multi_step_codegen).
func (g *CodeGenerator) Generate(p *Plan) error {
	if p == nil {
		return errNoPlanToCompile
	}
	for i := range p.Steps {
		if err := g.compileStep(&p.Steps[i]); err != nil {
			return err
		}
	}
	return nil
}

func (g *CodeGenerator) compileStep(s *Step) error {
	s.Service = normalizeServiceName(s.Service, s.Action)
	if strings.HasPrefix(strings.ToLower(s.Action), "list_") {
		if s.Params == nil {
			s.Params = map[string]interface{}{}
		}
		if v, ok := s.Params["all_compartments"]; !ok || v != true {
			s.Params["all_compartments"] = true
		}
	}

	program := &ActionProgram{ReturnVar: "results"}

	if isObjectStorageBucketAction(s.Service, s.Action) && !hasNamespaceParam(s.Params) {
		program.Instructions = append(program.Instructions, Instruction{
			Kind:      OpCallOp,
			Service:   "objectstorage",
			Action:    "get_namespace",
			Params:    map[string]interface{}{},
			ResultVar: "namespace",
		})
	}

	mainVar := "results"
	program.Instructions = append(program.Instructions, Instruction{
		Kind:      OpListResources,
		Service:   s.Service,
		Action:    s.Action,
		Params:    s.Params,
		ResultVar: mainVar,
	})

	if s.FilterInCode && len(s.Filters) > 0 {
		filteredVar := "filtered"
		for _, f := range s.Filters {
			program.Instructions = append(program.Instructions, Instruction{
				Kind:      OpFilterOp,
				SourceVar: mainVar,
				Field:     f.Field,
				Op:        f.Op,
				Value:     f.Value,
				ResultVar: filteredVar,
			})
			mainVar = filteredVar
		}
		program.ReturnVar = mainVar
	}

	if err := program.Validate(); err != nil {
		return err
	}
	s.Artifact = program

	if s.SafetyTier == "" {
		s.SafetyTier = SafetySafe
		lowerAction := strings.ToLower(s.Action)
		for _, verb := range destructiveVerbs {
			if strings.Contains(lowerAction, verb) {
				s.SafetyTier = SafetyDestructive
				break
			}
		}
	}
	return nil
}

func normalizeServiceName(service, action string) string {
	if alias, ok := serviceAliases[service]; ok {
		return alias
	}
	if service == "" || service == "unknown" {
		if mapped, ok := serviceFallbackMap[action]; ok {
			return mapped
		}
		return "unknown"
	}
	return service
}

func isObjectStorageBucketAction(service, action string) bool {
	return service == "objectstorage" || strings.Contains(strings.ToLower(action), "bucket")
}

func hasNamespaceParam(params map[string]interface{}) bool {
	_, ok := params["namespace_name"]
	return ok
}
