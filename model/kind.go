package model

// OperationKind names a category of write operation. Tracker timeouts and cache
// invalidation rules are keyed by kind.
type OperationKind string

const (
	KIND_UPLOAD_ASSET        OperationKind = "upload-asset"
	KIND_REGISTER_EVENT      OperationKind = "register-event"
	KIND_CHECK_IN            OperationKind = "check-in"
	KIND_CREATE_EVENT        OperationKind = "create-event"
	KIND_MINT_MOMENT         OperationKind = "mint-moment"
	KIND_MINT_MOMENT_FREE    OperationKind = "mint-moment-free"
	KIND_BUY_LISTING         OperationKind = "buy-listing"
	KIND_SELL_ITEM           OperationKind = "sell-item"
	KIND_CANCEL_LISTING      OperationKind = "cancel-listing"
	KIND_BUY_PACK            OperationKind = "buy-pack"
	KIND_REVEAL_PACK         OperationKind = "reveal-pack"
	KIND_UPDATE_PROFILE      OperationKind = "update-profile"
	KIND_SETUP_ACCOUNT       OperationKind = "setup-account"
	KIND_EQUIP_ACCESSORY     OperationKind = "equip-accessory"
	KIND_UNEQUIP_ACCESSORY   OperationKind = "unequip-accessory"
	KIND_UPDATE_EVENT_STATUS OperationKind = "update-event-status"
)
