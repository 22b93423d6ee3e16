package flows

import (
	"context"
	"fmt"

	"github.com/mohitkumar/txflow/flow"
	"github.com/mohitkumar/txflow/model"
)

type argSpec struct {
	name     string
	typ      model.ArgType
	optional bool
	// def makes the argument read $.vars.<name>, filled from the input or def.
	def any
}

func arg(name string, typ model.ArgType) argSpec {
	return argSpec{name: name, typ: typ}
}

func optionalArg(name string, typ model.ArgType) argSpec {
	return argSpec{name: name, typ: typ, optional: true}
}

func defaultArg(name string, typ model.ArgType, def any) argSpec {
	return argSpec{name: name, typ: typ, def: def}
}

// ledgerStep builds a step submitting kind with arguments taken from the flow input.
func ledgerStep(name string, kind model.OperationKind, params map[string]string, specs ...argSpec) flow.Step {
	args := make([]model.Argument, 0, len(specs))
	defaults := make(map[string]any)
	for _, spec := range specs {
		value := fmt.Sprintf("{$.%s.%s}", flow.DATA_INPUT, spec.name)
		if spec.def != nil {
			value = fmt.Sprintf("{$.%s.%s}", flow.DATA_VARS, spec.name)
			defaults[spec.name] = spec.def
		}
		args = append(args, model.Argument{Name: spec.name, Type: spec.typ, Optional: spec.optional, Value: value})
	}
	step := flow.Step{
		Name:    name,
		Kind:    kind,
		Request: model.OperationRequest{ProgramID: string(kind), Arguments: args},
		Params:  params,
	}
	if len(defaults) > 0 {
		step.Prepare = func(ctx context.Context, data map[string]any) (map[string]any, error) {
			in := input(data)
			vars := make(map[string]any, len(defaults))
			for k, def := range defaults {
				if v, ok := in[k]; ok && v != nil {
					vars[k] = v
				} else {
					vars[k] = def
				}
			}
			return vars, nil
		}
	}
	return step
}

func input(data map[string]any) map[string]any {
	in, _ := data[flow.DATA_INPUT].(map[string]any)
	if in == nil {
		return map[string]any{}
	}
	return in
}

func inputString(data map[string]any, key string) string {
	if v, ok := input(data)[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func addressParams(extra ...string) map[string]string {
	params := map[string]string{"address": "{$.input.address}"}
	for _, name := range extra {
		params[name] = fmt.Sprintf("{$.input.%s}", name)
	}
	return params
}
