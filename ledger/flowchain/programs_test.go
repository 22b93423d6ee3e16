package flowchain

import (
	"strings"
	"testing"

	"github.com/mohitkumar/txflow/model"
	"github.com/stretchr/testify/require"
)

var allKinds = []model.OperationKind{
	model.KIND_REGISTER_EVENT, model.KIND_CHECK_IN, model.KIND_CREATE_EVENT, model.KIND_MINT_MOMENT,
	model.KIND_MINT_MOMENT_FREE, model.KIND_BUY_LISTING, model.KIND_SELL_ITEM, model.KIND_CANCEL_LISTING,
	model.KIND_BUY_PACK, model.KIND_REVEAL_PACK, model.KIND_UPDATE_PROFILE, model.KIND_SETUP_ACCOUNT,
	model.KIND_EQUIP_ACCESSORY, model.KIND_UNEQUIP_ACCESSORY, model.KIND_UPDATE_EVENT_STATUS,
}

func testContracts() map[string]string {
	names := []string{
		"AccessoryPack", "NonFungibleToken", "FungibleToken", "FlowToken", "FungibleTokenMetadataViews",
		"NFTAccessory", "MetadataViews", "EventManager", "NFTStorefrontV2", "NFTMoment", "UserProfile", "EventPass",
	}
	contracts := make(map[string]string)
	for _, n := range names {
		contracts[n] = "0x01cf0e2f2f715450"
	}
	return contracts
}

func TestEveryLedgerKindHasAProgram(t *testing.T) {
	programs := NewPrograms(testContracts())
	for _, kind := range allKinds {
		require.True(t, programs.Known(string(kind)), kind)
		script, err := programs.Script(string(kind))
		require.NoError(t, err, kind)
		require.NotContains(t, string(script), `import "`, kind)
	}
	require.False(t, programs.Known(string(model.KIND_UPLOAD_ASSET)))
}

func TestImportRewrite(t *testing.T) {
	programs := NewPrograms(map[string]string{"EventManager": "01CF0E2F2F715450"})
	script, err := programs.Script(string(model.KIND_REGISTER_EVENT))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(script), "import EventManager from 0x01cf0e2f2f715450\n"))
}

func TestImportRewriteMissingContract(t *testing.T) {
	programs := NewPrograms(map[string]string{})
	_, err := programs.Script(string(model.KIND_BUY_PACK))
	require.Error(t, err)
	require.Contains(t, err.Error(), "AccessoryPack")
}

func TestUnknownProgram(t *testing.T) {
	_, err := NewPrograms(nil).Script("does-not-exist")
	require.EqualError(t, err, "unknown program does-not-exist")
}

func TestQueryScript(t *testing.T) {
	programs := NewPrograms(map[string]string{"AccessoryPack": "0x01"})
	script, err := programs.Query("has-receipt")
	require.NoError(t, err)
	require.Contains(t, string(script), "import AccessoryPack from 0x01")

	_, err = programs.Query("missing")
	require.Error(t, err)
}
