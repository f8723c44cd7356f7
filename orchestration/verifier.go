// Verifier runs structural checks on a CodeGen artifact before the Executor
// ever touches it: every ActionProgram must validate (no dangling variable
// references, every call naming a service+action), and every service name
// must be in the ClientFactory's allow-list. This replaces the original's
// syntax-check-on-generated-Python pass (static AST/compile check) with
// checks appropriate to a typed instruction list, per spec.md §9 REDESIGN
// FLAGS. A single verifier retry is permitted (spec.md §4.9 retry budgets);
// the Supervisor is responsible for enforcing that cap, not the Verifier.
package orchestration

import "fmt"

// VerificationResult is the Verifier stage's outcome.
type VerificationResult struct {
	OK       bool
	Feedback string
}

// Verifier checks a Plan's compiled ActionPrograms before execution.
type Verifier struct {
	allowedServices map[string]bool
}

// NewVerifier builds a Verifier over the cloud client factory's
// allow-listed service names.
func NewVerifier(allowedServices []string) *Verifier {
	set := make(map[string]bool, len(allowedServices))
	for _, s := range allowedServices {
		set[s] = true
	}
	return &Verifier{allowedServices: set}
}

// Verify checks every step's Artifact. It returns OK=false with a
// human-readable Feedback string (handed to CodeGen as correction context
// on retry) the first time a step fails any check.
func (v *Verifier) Verify(p *Plan) VerificationResult {
	if p == nil {
		return VerificationResult{OK: false, Feedback: "no plan to verify"}
	}
	for _, step := range p.Steps {
		if step.Artifact == nil {
			return VerificationResult{OK: false, Feedback: fmt.Sprintf("step %q has no generated action program", step.Action)}
		}
		if err := step.Artifact.Validate(); err != nil {
			return VerificationResult{OK: false, Feedback: err.Error()}
		}
		if len(v.allowedServices) > 0 {
			if msg, ok := v.checkServiceAllowed(step.Artifact); !ok {
				return VerificationResult{OK: false, Feedback: msg}
			}
		}
	}
	return VerificationResult{OK: true}
}

func (v *Verifier) checkServiceAllowed(p *ActionProgram) (string, bool) {
	var walk func(ins []Instruction) (string, bool)
	walk = func(ins []Instruction) (string, bool) {
		for _, i := range ins {
			switch i.Kind {
			case OpListResources, OpCallOp:
				if !v.allowedServices[i.Service] {
					return fmt.Sprintf("service %q is not in the allowed client list", i.Service), false
				}
			case OpForEach:
				if msg, ok := walk(i.Body); !ok {
					return msg, false
				}
			}
		}
		return "", true
	}
	return walk(p.Instructions)
}
