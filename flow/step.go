package flow

import (
	"context"
	"fmt"

	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/util"
)

// Step is one unit of a flow. A step either submits a ledger operation described
// by Request, or runs Exec locally (a pseudo step, e.g. an upload) which has no phases.
type Step struct {
	Name string
	Kind model.OperationKind
	// Request arguments may reference flow data with "{$.path}" tokens.
	Request model.OperationRequest
	// Params feed cache invalidation, e.g. {"address": "{$.input.address}"}.
	Params map[string]string
	// Manual steps wait for Continue before they are submitted.
	Manual bool
	// Prepare runs before the request is resolved. Its result is merged into $.vars.
	Prepare func(ctx context.Context, data map[string]any) (map[string]any, error)
	// Exec makes the step a pseudo step.
	Exec func(ctx context.Context, data map[string]any) (map[string]any, error)
	// Output extracts extra step output from a successful outcome, stored under $.steps.<name>.
	Output func(outcome model.Outcome) map[string]any
}

func (s Step) IsPseudo() bool {
	return s.Exec != nil
}

// Definition is the fixed, ordered list of steps of a flow.
type Definition struct {
	Name  string
	Steps []Step
	// OnComplete runs once when the last step succeeds.
	OnComplete func(snapshot model.FlowSnapshot)
}

func (d Definition) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("flow %s has no steps", d.Name)
	}
	seen := make(map[string]bool)
	for i, s := range d.Steps {
		if s.Name == "" {
			return fmt.Errorf("flow %s step %d has no name", d.Name, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("flow %s has duplicate step %s", d.Name, s.Name)
		}
		seen[s.Name] = true
		if !s.IsPseudo() && s.Request.ProgramID == "" {
			return fmt.Errorf("flow %s step %s has neither a request nor an exec func", d.Name, s.Name)
		}
	}
	return nil
}

// resolveRequest fills the step's request template from flow data. Optional
// arguments whose reference can not be resolved are sent as nil.
func (s Step) resolveRequest(data map[string]any) (model.OperationRequest, error) {
	req := model.OperationRequest{
		ProgramID:     s.Request.ProgramID,
		ResourceLimit: s.Request.ResourceLimit,
		Arguments:     make([]model.Argument, 0, len(s.Request.Arguments)),
	}
	for _, arg := range s.Request.Arguments {
		v, err := util.ResolveValue(data, arg.Value)
		if err != nil {
			if !arg.Optional {
				return req, fmt.Errorf("argument %s: %w", arg.Name, err)
			}
			v = nil
		}
		arg.Value = v
		req.Arguments = append(req.Arguments, arg)
	}
	return req, nil
}

func (s Step) output(handle model.OperationHandle, outcome model.Outcome) map[string]any {
	events := make([]any, 0, len(outcome.Events))
	for _, e := range outcome.Events {
		events = append(events, map[string]any{"type": e.Type, "payload": copyValue(e.Payload)})
	}
	out := map[string]any{
		"handle": handle.String(),
		"events": events,
	}
	if s.Output != nil {
		for k, v := range s.Output(outcome) {
			out[k] = v
		}
	}
	return out
}
