package model

import (
	"fmt"
)

// SubmissionError is returned when a request is rejected before it reaches the network,
// e.g. the signer declined or an argument failed type validation. It is never retried.
type SubmissionError struct {
	ProgramID string
	Reason    string
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission of %s rejected: %s: %v", e.ProgramID, e.Reason, e.Err)
	}
	return fmt.Sprintf("submission of %s rejected: %s", e.ProgramID, e.Reason)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NetworkError is a transient failure while querying operation status.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFoundError means the ledger does not know the handle.
type NotFoundError struct {
	Handle OperationHandle
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("operation %s not found", e.Handle)
}

// FlowStateError is returned when a flow transition is requested from a state that does not allow it.
type FlowStateError struct {
	Op     string
	Status FlowStatus
}

func (e *FlowStateError) Error() string {
	return fmt.Sprintf("can not %s flow in state %s", e.Op, e.Status)
}
