package flows

import (
	"github.com/mohitkumar/txflow/flow"
	"github.com/mohitkumar/txflow/model"
)

const revealedEvent = "ItemRevealed"

// GachaDefinition buys a pack and waits for the user before revealing it.
// After the purchase the flow sits in AwaitingUser, ready to open.
//
// Input: address.
func GachaDefinition() flow.Definition {
	buy := ledgerStep("buy", model.KIND_BUY_PACK, addressParams())
	reveal := ledgerStep("reveal", model.KIND_REVEAL_PACK, addressParams())
	reveal.Manual = true
	reveal.Output = func(outcome model.Outcome) map[string]any {
		revealed := model.EventsOfType(outcome.Events, revealedEvent)
		if len(revealed) == 0 {
			return nil
		}
		return map[string]any{
			"item":      revealed[0].Payload,
			"itemEvent": revealed[0].Type,
		}
	}
	return flow.Definition{
		Name:  FLOW_GACHA,
		Steps: []flow.Step{buy, reveal},
	}
}

type GachaResult struct {
	Handle    string         `json:"handle"`
	EventType string         `json:"eventType"`
	Item      map[string]any `json:"item"`
}

// RevealResult extracts the revealed item from a completed gacha flow.
func RevealResult(snapshot model.FlowSnapshot) (*GachaResult, bool) {
	if snapshot.Status != model.FLOW_COMPLETED {
		return nil, false
	}
	steps, _ := snapshot.Output[flow.DATA_STEPS].(map[string]any)
	reveal, _ := steps["reveal"].(map[string]any)
	item, ok := reveal["item"].(map[string]any)
	if !ok {
		return nil, false
	}
	handle, _ := reveal["handle"].(string)
	eventType, _ := reveal["itemEvent"].(string)
	return &GachaResult{Handle: handle, EventType: eventType, Item: item}, true
}
