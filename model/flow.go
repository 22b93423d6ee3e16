package model

import (
	"fmt"
)

type FlowStatus string

const (
	FLOW_IDLE          FlowStatus = "IDLE"
	FLOW_RUNNING       FlowStatus = "RUNNING"
	FLOW_AWAITING_USER FlowStatus = "AWAITING_USER"
	FLOW_COMPLETED     FlowStatus = "COMPLETED"
	FLOW_FAILED        FlowStatus = "FAILED"
	FLOW_EXPIRED       FlowStatus = "EXPIRED"
)

func (s FlowStatus) IsTerminal() bool {
	return s == FLOW_COMPLETED || s == FLOW_FAILED || s == FLOW_EXPIRED
}

// FlowSnapshot is an immutable view of a flow's state at one point in time.
type FlowSnapshot struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Status       FlowStatus      `json:"status"`
	CurrentStep  int             `json:"currentStep"`
	StepName     string          `json:"stepName,omitempty"`
	StepCount    int             `json:"stepCount"`
	ActiveHandle OperationHandle `json:"activeHandle,omitempty"`
	LastPhase    Phase           `json:"lastPhase"`
	LastOutcome  *Outcome        `json:"lastOutcome,omitempty"`
	Error        string          `json:"error,omitempty"`
	Output       map[string]any  `json:"output,omitempty"`
	Generation   int             `json:"generation"`
}

func (s FlowSnapshot) String() string {
	return fmt.Sprintf("%s[%s] %s step %d/%d", s.Name, s.ID, s.Status, s.CurrentStep, s.StepCount)
}
