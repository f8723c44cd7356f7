package orchestration

import "fmt"

var errMissingServiceAction = fmt.Errorf("orchestration: instruction missing service/action")

func errUndefinedVar(name string) error {
	return fmt.Errorf("orchestration: reference to undefined variable %q", name)
}

func errUnknownOpKind(kind OpKind) error {
	return fmt.Errorf("orchestration: unknown instruction kind %q", kind)
}

var errNoPlanJSON = fmt.Errorf("orchestration: LM response did not contain valid plan JSON")

func errPlanGatewayFailed(sentinel string) error {
	return fmt.Errorf("orchestration: planner LM call failed: %s", sentinel)
}

var errNoPlanToCompile = fmt.Errorf("orchestration: codegen called with a nil plan")

func errUnknownStage(name string) error {
	return fmt.Errorf("orchestration: no stage registered for %q", name)
}
