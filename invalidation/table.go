package invalidation

import (
	"github.com/mohitkumar/txflow/model"
)

// DefaultTable lists the cache keys made stale by a successful operation of each kind.
// Placeholders are filled from the operation params.
var DefaultTable = map[model.OperationKind][]string{
	model.KIND_REGISTER_EVENT:      {"event-detail:{eventId}", "events-list", "user-events:{address}"},
	model.KIND_CHECK_IN:            {"event-detail:{eventId}", "events-list", "user-profile:{address}", "event-passes:{address}"},
	model.KIND_CREATE_EVENT:        {"events-list", "partner:{address}"},
	model.KIND_MINT_MOMENT:         {"moments:{address}", "event-passes:{address}", "user-profile:{address}", "moments-feed"},
	model.KIND_MINT_MOMENT_FREE:    {"moments:{address}", "user-profile:{address}", "moments-feed"},
	model.KIND_BUY_LISTING:         {"listings", "accessories:{address}", "moments:{address}"},
	model.KIND_SELL_ITEM:           {"listings", "accessories:{address}", "moments:{address}"},
	model.KIND_CANCEL_LISTING:      {"listings", "accessories:{address}", "moments:{address}"},
	model.KIND_BUY_PACK:            {"gacha-receipt:{address}", "balance:{address}"},
	model.KIND_REVEAL_PACK:         {"inventory:{address}", "accessories:{address}", "gacha-receipt:{address}"},
	model.KIND_UPDATE_PROFILE:      {"user-profile:{address}"},
	model.KIND_SETUP_ACCOUNT:       {"account:{address}", "user-profile:{address}"},
	model.KIND_EQUIP_ACCESSORY:     {"moments:{address}", "accessories:{address}"},
	model.KIND_UNEQUIP_ACCESSORY:   {"moments:{address}", "accessories:{address}"},
	model.KIND_UPDATE_EVENT_STATUS: {"event-detail:{eventId}", "events-list", "user-events:*"},
	model.KIND_UPLOAD_ASSET:        nil,
}
