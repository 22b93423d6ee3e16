package flows

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/txflow/cache"
	"github.com/mohitkumar/txflow/config"
	"github.com/mohitkumar/txflow/flow"
	"github.com/mohitkumar/txflow/invalidation"
	"github.com/mohitkumar/txflow/ledger/simulated"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence/memory"
	"github.com/mohitkumar/txflow/restapi"
	"github.com/mohitkumar/txflow/submitter"
	"github.com/mohitkumar/txflow/tracker"
	"github.com/stretchr/testify/require"
)

const user = "0x179b6b1cb6755e31"

type countingInvalidator struct {
	mu     sync.Mutex
	counts map[string]int
	inner  cache.Invalidator
}

func (c *countingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	c.counts[pattern]++
	c.mu.Unlock()
	return c.inner.Invalidate(ctx, pattern)
}

func (c *countingInvalidator) count(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[pattern]
}

type env struct {
	ledger *simulated.Ledger
	store  *cache.LocalStore
	inv    *countingInvalidator
	svc    flow.Services
}

func newEnv() *env {
	l := simulated.New()
	journal := memory.NewJournal()
	store := cache.NewLocalStore(time.Minute)
	inv := &countingInvalidator{counts: map[string]int{}, inner: store}
	return &env{
		ledger: l,
		store:  store,
		inv:    inv,
		svc: flow.Services{
			Submitter: submitter.New(l, journal, config.RateLimitConfig{}),
			Tracker: tracker.New(l, config.TrackerConfig{
				PollInterval:   2 * time.Millisecond,
				Timeout:        10 * time.Second,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     5 * time.Millisecond,
			}),
			Outcomes: invalidation.NewContract(inv, nil),
			Journal:  journal,
		},
	}
}

func waitFor(t *testing.T, o *flow.Orchestrator) model.FlowSnapshot {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := o.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func TestGachaEndToEnd(t *testing.T) {
	e := newEnv()
	e.ledger.Program(string(model.KIND_REVEAL_PACK), simulated.SuccessScript(
		model.Event{Type: "A.01cf0e2f2f715450.NFTAccessory.Deposit", Payload: map[string]any{"id": uint64(42)}},
		model.Event{Type: "A.01cf0e2f2f715450.AccessoryPack.ItemRevealed", Payload: map[string]any{"itemId": uint64(42), "rarity": "rare"}},
	))
	ctx := context.Background()
	require.NoError(t, e.store.Set(ctx, "inventory:"+user, []byte("stale"), 0))

	var completed int
	var mu sync.Mutex
	catalog := NewCatalog(e.svc, nil, WithOnComplete(func(model.FlowSnapshot) {
		mu.Lock()
		completed++
		mu.Unlock()
	}))
	o, err := catalog.Build("g1", FLOW_GACHA, map[string]any{"address": user})
	require.NoError(t, err)

	require.NoError(t, o.Start(ctx))
	snap := waitFor(t, o)
	require.Equal(t, model.FLOW_AWAITING_USER, snap.Status)
	require.Equal(t, "reveal", snap.StepName)
	require.Equal(t, 1, e.inv.count("gacha-receipt:"+user))
	require.Equal(t, 0, e.inv.count("inventory:"+user))
	_, ok := RevealResult(snap)
	require.False(t, ok)

	require.NoError(t, o.Continue(ctx))
	snap = waitFor(t, o)
	require.Equal(t, model.FLOW_COMPLETED, snap.Status)

	result, ok := RevealResult(snap)
	require.True(t, ok)
	require.Equal(t, uint64(42), result.Item["itemId"])
	require.Equal(t, "rare", result.Item["rarity"])
	require.Equal(t, "A.01cf0e2f2f715450.AccessoryPack.ItemRevealed", result.EventType)
	require.Equal(t, e.ledger.Handles()[1].String(), result.Handle)

	require.Equal(t, 1, e.inv.count("inventory:"+user))
	require.Equal(t, 2, e.inv.count("gacha-receipt:"+user))
	_, cached, err := e.store.Get(ctx, "inventory:"+user)
	require.NoError(t, err)
	require.False(t, cached)
	mu.Lock()
	require.Equal(t, 1, completed)
	mu.Unlock()
}

func TestMintFlow(t *testing.T) {
	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("thumbnail")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		uploaded, _ = io.ReadAll(file)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(restapi.UploadResult{URL: "https://cdn.test/" + header.Filename})
	}))
	defer srv.Close()

	for scenario, tc := range map[string]struct {
		input   map[string]any
		status  model.FlowStatus
		mints   int
		message string
	}{
		"uploaded url is minted": {
			input: map[string]any{
				"address":     user,
				"eventPassId": float64(9),
				"name":        "Encore",
				"thumbnail":   base64.StdEncoding.EncodeToString([]byte("png")),
				"filename":    "encore.png",
			},
			status: model.FLOW_COMPLETED,
			mints:  1,
		},
		"missing thumbnail fails before minting": {
			input:   map[string]any{"address": user, "eventPassId": float64(9), "name": "Encore"},
			status:  model.FLOW_FAILED,
			message: "thumbnail is required",
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			e := newEnv()
			client := restapi.New(config.BackendConfig{BaseUrl: srv.URL, Timeout: 5 * time.Second}, e.store, nil)
			o, err := NewCatalog(e.svc, client).Build("m1", FLOW_MINT, tc.input)
			require.NoError(t, err)
			require.NoError(t, o.Start(context.Background()))
			snap := waitFor(t, o)
			require.Equal(t, tc.status, snap.Status)
			require.Equal(t, tc.message, snap.Error)

			reqs := e.ledger.Requests()
			require.Len(t, reqs, tc.mints)
			if tc.mints == 0 {
				return
			}
			require.Equal(t, []byte("png"), uploaded)
			args := map[string]any{}
			for _, a := range reqs[0].Arguments {
				args[a.Name] = a.Value
			}
			require.Equal(t, "https://cdn.test/encore.png", args["thumbnail"])
			require.Equal(t, user, args["address"])
			require.Equal(t, float64(9), args["eventPassId"])
			require.Equal(t, "", args["description"])
			require.Equal(t, 0, args["tier"])
			require.Equal(t, 1, e.inv.count("moments:"+user))
			require.Equal(t, 1, e.inv.count("event-passes:"+user))
		})
	}
}

func TestFreeMintPicksCardOnce(t *testing.T) {
	e := newEnv()
	e.ledger.Program(string(model.KIND_MINT_MOMENT_FREE),
		simulated.FailureScript("error: pre-condition failed: Already minted for free\n"),
		simulated.SuccessScript(),
	)
	cards := []Card{
		{ID: 10, Name: "A", Description: "a", Thumbnail: "ipfs://a"},
		{ID: 11, Name: "B", Description: "b", Thumbnail: "ipfs://b"},
		{ID: 12, Name: "C", Description: "c", Thumbnail: "ipfs://c"},
	}
	catalog := NewCatalog(e.svc, nil, WithCards(cards), WithRand(rand.New(rand.NewSource(7))))
	o, err := catalog.Build("fm1", FLOW_FREE_MINT, map[string]any{"address": user, "name": "Mine"})
	require.NoError(t, err)

	require.NoError(t, o.Start(context.Background()))
	snap := waitFor(t, o)
	require.Equal(t, model.FLOW_FAILED, snap.Status)
	require.Equal(t, "Already minted for free", snap.Error)

	require.NoError(t, o.Retry(context.Background()))
	snap = waitFor(t, o)
	require.Equal(t, model.FLOW_COMPLETED, snap.Status)

	reqs := e.ledger.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, reqs[0].Arguments, reqs[1].Arguments)
	args := map[string]any{}
	for _, a := range reqs[0].Arguments {
		args[a.Name] = a.Value
	}
	require.Equal(t, "Mine", args["name"])
	id, ok := args["cardId"].(uint64)
	require.True(t, ok)
	var card Card
	for _, c := range cards {
		if c.ID == id {
			card = c
		}
	}
	require.NotZero(t, card.ID)
	require.Equal(t, card.Description, args["description"])
	require.Equal(t, card.Thumbnail, args["thumbnail"])
}

func TestSingleStepFlows(t *testing.T) {
	for scenario, tc := range map[string]struct {
		name    string
		input   map[string]any
		check   func(t *testing.T, args map[string]any)
		pattern string
	}{
		"update profile fills required collections": {
			name:  FLOW_UPDATE_PROFILE,
			input: map[string]any{"address": user, "nickname": "ana"},
			check: func(t *testing.T, args map[string]any) {
				require.Equal(t, "ana", args["nickname"])
				require.Nil(t, args["bio"])
				require.Equal(t, map[string]any{}, args["socials"])
				require.Equal(t, []any{}, args["highlightedEventPassIds"])
				require.Nil(t, args["momentID"])
			},
			pattern: "user-profile:" + user,
		},
		"check in resolves event params": {
			name:  FLOW_CHECK_IN,
			input: map[string]any{"address": user, "brandAddress": "0x01", "eventId": float64(12)},
			check: func(t *testing.T, args map[string]any) {
				require.Equal(t, float64(12), args["eventId"])
				require.Equal(t, user, args["address"])
			},
			pattern: "event-detail:12",
		},
		"event status update widens user events": {
			name:  FLOW_UPDATE_EVENT_STATUS,
			input: map[string]any{"brandAddress": "0x01", "eventId": float64(12)},
			check: func(t *testing.T, args map[string]any) {
				require.Equal(t, "0x01", args["brandAddress"])
				require.Equal(t, float64(12), args["eventId"])
			},
			pattern: "user-events:*",
		},
		"setup account has no arguments": {
			name:  FLOW_SETUP_ACCOUNT,
			input: map[string]any{"address": user},
			check: func(t *testing.T, args map[string]any) {
				require.Empty(t, args)
			},
			pattern: "account:" + user,
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			e := newEnv()
			o, err := NewCatalog(e.svc, nil).Build("s1", tc.name, tc.input)
			require.NoError(t, err)
			require.NoError(t, o.Start(context.Background()))
			snap := waitFor(t, o)
			require.Equal(t, model.FLOW_COMPLETED, snap.Status)

			reqs := e.ledger.Requests()
			require.Len(t, reqs, 1)
			require.Equal(t, tc.name, reqs[0].ProgramID)
			args := map[string]any{}
			for _, a := range reqs[0].Arguments {
				args[a.Name] = a.Value
			}
			tc.check(t, args)
			require.Equal(t, 1, e.inv.count(tc.pattern))
		})
	}
}

func TestMissingRequiredInputFails(t *testing.T) {
	e := newEnv()
	o, err := NewCatalog(e.svc, nil).Build("s2", FLOW_SELL_ITEM, map[string]any{"address": user, "saleItemID": float64(3)})
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background()))
	snap := waitFor(t, o)
	require.Equal(t, model.FLOW_FAILED, snap.Status)
	require.Contains(t, snap.Error, "saleItemPrice")
	require.Empty(t, e.ledger.Requests())
}

func TestCatalog(t *testing.T) {
	catalog := NewCatalog(flow.Services{}, nil)
	names := catalog.Names()
	require.Len(t, names, 14)
	for _, name := range names {
		def, err := catalog.Definition(name)
		require.NoError(t, err, name)
		require.NoError(t, def.Validate(), name)
	}
	_, err := catalog.Build("x", "teleport", nil)
	require.ErrorIs(t, err, ErrUnknownFlow)
}
