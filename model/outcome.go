package model

import (
	"fmt"
)

type OutcomeKind int

const (
	OUTCOME_SUCCESS OutcomeKind = iota + 1
	OUTCOME_FAILURE
	OUTCOME_EXPIRED
)

func (k OutcomeKind) String() string {
	switch k {
	case OUTCOME_SUCCESS:
		return "SUCCESS"
	case OUTCOME_FAILURE:
		return "FAILURE"
	case OUTCOME_EXPIRED:
		return "EXPIRED"
	}
	return fmt.Sprintf("OUTCOME(%d)", int(k))
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OutcomeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "SUCCESS":
		*k = OUTCOME_SUCCESS
	case "FAILURE":
		*k = OUTCOME_FAILURE
	case "EXPIRED":
		*k = OUTCOME_EXPIRED
	default:
		return fmt.Errorf("unknown outcome %q", string(text))
	}
	return nil
}

// Outcome is the terminal classification of an operation.
type Outcome struct {
	Kind        OutcomeKind `json:"kind"`
	UserMessage string      `json:"userMessage,omitempty"`
	Events      []Event     `json:"events,omitempty"`
}

func (o Outcome) IsSuccess() bool {
	return o.Kind == OUTCOME_SUCCESS
}

func Success(events []Event) Outcome {
	return Outcome{Kind: OUTCOME_SUCCESS, Events: events}
}

func Failure(message string) Outcome {
	return Outcome{Kind: OUTCOME_FAILURE, UserMessage: message}
}

func Expired() Outcome {
	return Outcome{Kind: OUTCOME_EXPIRED}
}
