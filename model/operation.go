package model

import (
	"time"
)

type ArgType string

const (
	ARG_STRING      ArgType = "String"
	ARG_UINT8       ArgType = "UInt8"
	ARG_UINT64      ArgType = "UInt64"
	ARG_ADDRESS     ArgType = "Address"
	ARG_FIX64       ArgType = "Fix64"
	ARG_UFIX64      ArgType = "UFix64"
	ARG_BOOL        ArgType = "Bool"
	ARG_STRING_MAP  ArgType = "{String: String}"
	ARG_UINT64_LIST ArgType = "[UInt64?]"
)

var knownArgTypes = map[ArgType]bool{
	ARG_STRING:      true,
	ARG_UINT8:       true,
	ARG_UINT64:      true,
	ARG_ADDRESS:     true,
	ARG_FIX64:       true,
	ARG_UFIX64:      true,
	ARG_BOOL:        true,
	ARG_STRING_MAP:  true,
	ARG_UINT64_LIST: true,
}

func (t ArgType) Known() bool {
	return knownArgTypes[t]
}

// Argument is one positional, typed argument of a ledger program call.
// Value may hold a "{$.path}" token that is resolved against flow data before submission.
type Argument struct {
	Name     string  `json:"name"`
	Type     ArgType `json:"type"`
	Optional bool    `json:"optional,omitempty"`
	Value    any     `json:"value"`
}

// OperationRequest describes a single write attempt. It is never mutated after creation.
type OperationRequest struct {
	ProgramID     string     `json:"programId"`
	Arguments     []Argument `json:"arguments"`
	ResourceLimit uint64     `json:"resourceLimit,omitempty"`
}

// OperationHandle identifies an operation accepted by the ledger.
type OperationHandle string

func (h OperationHandle) String() string {
	return string(h)
}

func (h OperationHandle) IsZero() bool {
	return h == ""
}

// OperationRecord is the journal entry for a submitted operation.
type OperationRecord struct {
	Handle      OperationHandle   `json:"handle"`
	Kind        OperationKind     `json:"kind"`
	ProgramID   string            `json:"programId"`
	FlowId      string            `json:"flowId,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	SubmittedAt time.Time         `json:"submittedAt"`
	Abandoned   bool              `json:"abandoned"`
	LastPhase   Phase             `json:"lastPhase"`
	Outcome     *Outcome          `json:"outcome,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}
