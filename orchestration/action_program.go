// ActionProgram replaces the original's runtime exec()-based codegen with a
// structured, interpretable instruction set, per spec.md §9 REDESIGN FLAGS:
// "a Go process should never eval/exec LM-authored source. Replace codegen's
// generated Python with a small typed command set the Executor interprets."
// CodeGen now emits an ActionProgram instead of a source string; Verifier
// checks it structurally; Executor interprets it against a
// cloudops.ClientFactory. No step here ever reaches a Go compiler or
// interpreter at runtime.
package orchestration

// OpKind is the tag of an ActionProgram instruction.
type OpKind string

const (
	OpListResources OpKind = "list_resources"
	OpForEach       OpKind = "for_each"
	OpFilterOp      OpKind = "filter"
	OpCallOp        OpKind = "call"
)

// Instruction is one step of an ActionProgram. Only the fields relevant to
// Kind are populated; this mirrors the original generated code's shape
// (single API call, optional client-side filter, optional per-item fan-out)
// without any free-form code.
type Instruction struct {
	Kind OpKind

	// ListResources / Call
	Service   string
	Action    string
	Params    map[string]interface{}
	ResultVar string // name bound to this instruction's output, for later steps to reference

	// ForEach
	OverVar  string        // ResultVar of a prior instruction to iterate
	ItemVar  string        // name bound to the current item inside Body
	Body     []Instruction

	// Filter
	SourceVar string
	Field     string
	Op        string // "eq" or "contains"; any other value is matched as "eq"
	Value     interface{}
}

// ActionProgram is CodeGen's output: an ordered instruction list plus the
// name of the variable whose final value is the step's result, replacing the
// original's single executable code string.
type ActionProgram struct {
	Instructions []Instruction
	ReturnVar    string
}

// ReferencedVars returns every ResultVar/OverVar/ItemVar/SourceVar name the
// program defines or reads, used by the Verifier to check for dangling
// references before execution (spec.md §4.7 "Verifier ... structural checks
// on the artifact").
func (p *ActionProgram) ReferencedVars() (defined, referenced []string) {
	var walk func(ins []Instruction)
	walk = func(ins []Instruction) {
		for _, i := range ins {
			switch i.Kind {
			case OpListResources, OpCallOp:
				if i.ResultVar != "" {
					defined = append(defined, i.ResultVar)
				}
			case OpForEach:
				if i.OverVar != "" {
					referenced = append(referenced, i.OverVar)
				}
				if i.ItemVar != "" {
					defined = append(defined, i.ItemVar)
				}
				walk(i.Body)
			case OpFilterOp:
				if i.SourceVar != "" {
					referenced = append(referenced, i.SourceVar)
				}
				if i.ResultVar != "" {
					defined = append(defined, i.ResultVar)
				}
			}
		}
	}
	walk(p.Instructions)
	return defined, referenced
}

// Validate performs the structural checks the Verifier runs before handing
// an ActionProgram to the Executor: every referenced variable must have been
// defined by an earlier instruction, and ReturnVar must be defined somewhere
// in the program.
func (p *ActionProgram) Validate() error {
	defined := make(map[string]bool)
	var walk func(ins []Instruction) error
	walk = func(ins []Instruction) error {
		for _, i := range ins {
			switch i.Kind {
			case OpListResources, OpCallOp:
				if i.Service == "" || i.Action == "" {
					return errMissingServiceAction
				}
				if i.ResultVar != "" {
					defined[i.ResultVar] = true
				}
			case OpForEach:
				if !defined[i.OverVar] {
					return errUndefinedVar(i.OverVar)
				}
				defined[i.ItemVar] = true
				if err := walk(i.Body); err != nil {
					return err
				}
			case OpFilterOp:
				if !defined[i.SourceVar] {
					return errUndefinedVar(i.SourceVar)
				}
				if i.ResultVar != "" {
					defined[i.ResultVar] = true
				}
			default:
				return errUnknownOpKind(i.Kind)
			}
		}
		return nil
	}
	if err := walk(p.Instructions); err != nil {
		return err
	}
	if p.ReturnVar != "" && !defined[p.ReturnVar] {
		return errUndefinedVar(p.ReturnVar)
	}
	return nil
}
