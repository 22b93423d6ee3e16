package flows

import (
	"github.com/mohitkumar/txflow/flow"
	"github.com/mohitkumar/txflow/model"
)

type singleStep struct {
	kind   model.OperationKind
	params map[string]string
	args   []argSpec
}

// singleSteps are the flows made of one ledger operation, keyed by flow name.
// Input keys are the program argument names plus "address", the acting account.
var singleSteps = map[string]singleStep{
	FLOW_REGISTER_EVENT: {
		kind:   model.KIND_REGISTER_EVENT,
		params: addressParams("eventId"),
		args:   []argSpec{arg("eventId", model.ARG_UINT64)},
	},
	FLOW_CHECK_IN: {
		kind:   model.KIND_CHECK_IN,
		params: addressParams("eventId"),
		args: []argSpec{
			arg("brandAddress", model.ARG_ADDRESS),
			arg("eventId", model.ARG_UINT64),
			arg("address", model.ARG_ADDRESS),
		},
	},
	FLOW_CREATE_EVENT: {
		kind:   model.KIND_CREATE_EVENT,
		params: addressParams(),
		args: []argSpec{
			arg("eventName", model.ARG_STRING),
			defaultArg("description", model.ARG_STRING, ""),
			arg("thumbnailURL", model.ARG_STRING),
			optionalArg("eventPassImg", model.ARG_STRING),
			defaultArg("eventType", model.ARG_UINT8, 0),
			arg("location", model.ARG_STRING),
			arg("lat", model.ARG_FIX64),
			arg("long", model.ARG_FIX64),
			arg("startDate", model.ARG_UFIX64),
			arg("endDate", model.ARG_UFIX64),
			arg("quota", model.ARG_UINT64),
		},
	},
	FLOW_BUY_LISTING: {
		kind:   model.KIND_BUY_LISTING,
		params: addressParams(),
		args: []argSpec{
			arg("listingResourceID", model.ARG_UINT64),
			arg("storefrontAddress", model.ARG_ADDRESS),
			optionalArg("commissionRecipient", model.ARG_ADDRESS),
			arg("nftTypeIdentifier", model.ARG_STRING),
		},
	},
	FLOW_SELL_ITEM: {
		kind:   model.KIND_SELL_ITEM,
		params: addressParams(),
		args: []argSpec{
			arg("saleItemID", model.ARG_UINT64),
			arg("saleItemPrice", model.ARG_UFIX64),
		},
	},
	FLOW_CANCEL_LISTING: {
		kind:   model.KIND_CANCEL_LISTING,
		params: addressParams(),
		args:   []argSpec{arg("listingResourceID", model.ARG_UINT64)},
	},
	FLOW_UPDATE_PROFILE: {
		kind:   model.KIND_UPDATE_PROFILE,
		params: addressParams(),
		args: []argSpec{
			optionalArg("nickname", model.ARG_STRING),
			optionalArg("bio", model.ARG_STRING),
			defaultArg("socials", model.ARG_STRING_MAP, map[string]any{}),
			optionalArg("pfp", model.ARG_STRING),
			optionalArg("shortDescription", model.ARG_STRING),
			optionalArg("bgImage", model.ARG_STRING),
			defaultArg("highlightedEventPassIds", model.ARG_UINT64_LIST, []any{}),
			optionalArg("momentID", model.ARG_UINT64),
		},
	},
	FLOW_UPDATE_EVENT_STATUS: {
		kind:   model.KIND_UPDATE_EVENT_STATUS,
		params: addressParams("eventId"),
		args: []argSpec{
			arg("brandAddress", model.ARG_ADDRESS),
			arg("eventId", model.ARG_UINT64),
		},
	},
	FLOW_SETUP_ACCOUNT: {
		kind:   model.KIND_SETUP_ACCOUNT,
		params: addressParams(),
	},
	FLOW_EQUIP_ACCESSORY: {
		kind:   model.KIND_EQUIP_ACCESSORY,
		params: addressParams(),
		args: []argSpec{
			arg("nftAccessoryId", model.ARG_UINT64),
			arg("nftMomentId", model.ARG_UINT64),
		},
	},
	FLOW_UNEQUIP_ACCESSORY: {
		kind:   model.KIND_UNEQUIP_ACCESSORY,
		params: addressParams(),
		args:   []argSpec{arg("nftMomentId", model.ARG_UINT64)},
	},
}

// SingleStepDefinition returns the one step flow called name.
func SingleStepDefinition(name string) (flow.Definition, bool) {
	s, ok := singleSteps[name]
	if !ok {
		return flow.Definition{}, false
	}
	return flow.Definition{
		Name:  name,
		Steps: []flow.Step{ledgerStep(string(s.kind), s.kind, s.params, s.args...)},
	}, true
}
