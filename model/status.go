package model

import (
	"fmt"
	"strings"
)

// Phase is a point in an operation's confirmation lifecycle.
type Phase int

const (
	PHASE_UNKNOWN Phase = iota
	PHASE_PENDING
	PHASE_INCLUDED
	PHASE_FINALIZED
	PHASE_SEALED
	PHASE_EXPIRED
)

var phaseNames = map[Phase]string{
	PHASE_UNKNOWN:   "UNKNOWN",
	PHASE_PENDING:   "PENDING",
	PHASE_INCLUDED:  "INCLUDED",
	PHASE_FINALIZED: "FINALIZED",
	PHASE_SEALED:    "SEALED",
	PHASE_EXPIRED:   "EXPIRED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE(%d)", int(p))
}

func (p Phase) IsTerminal() bool {
	return p == PHASE_SEALED || p == PHASE_EXPIRED
}

// Rank orders phases for monotonicity checks. Sealed and Expired share the top rank.
func (p Phase) Rank() int {
	if p == PHASE_EXPIRED {
		return int(PHASE_SEALED)
	}
	return int(p)
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	name := strings.ToUpper(string(text))
	for phase, n := range phaseNames {
		if n == name {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(text))
}

// Event is a raw event record emitted by a ledger program.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// OperationStatus is the latest known snapshot of an operation as reported by the ledger.
type OperationStatus struct {
	Phase         Phase   `json:"phase"`
	ExecutionCode int     `json:"executionCode"`
	RawErrorTrace string  `json:"rawErrorTrace,omitempty"`
	Events        []Event `json:"events,omitempty"`
}

// EventsOfType returns the events whose type equals eventType or ends with "."+eventType,
// so both "ItemRevealed" and fully qualified "A.0x01.AccessoryPack.ItemRevealed" match.
func EventsOfType(events []Event, eventType string) []Event {
	var res []Event
	for _, e := range events {
		if e.Type == eventType || strings.HasSuffix(e.Type, "."+eventType) {
			res = append(res, e)
		}
	}
	return res
}
