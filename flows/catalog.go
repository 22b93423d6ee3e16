// Package flows holds the application's business flows built on flow.Orchestrator.
package flows

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/txflow/flow"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/util"
)

const (
	FLOW_MINT                = "mint"
	FLOW_FREE_MINT           = "free-mint"
	FLOW_GACHA               = "gacha"
	FLOW_REGISTER_EVENT      = "register-event"
	FLOW_CHECK_IN            = "check-in"
	FLOW_CREATE_EVENT        = "create-event"
	FLOW_BUY_LISTING         = "buy-listing"
	FLOW_SELL_ITEM           = "sell-item"
	FLOW_CANCEL_LISTING      = "cancel-listing"
	FLOW_UPDATE_PROFILE      = "update-profile"
	FLOW_SETUP_ACCOUNT       = "setup-account"
	FLOW_EQUIP_ACCESSORY     = "equip-accessory"
	FLOW_UNEQUIP_ACCESSORY   = "unequip-accessory"
	FLOW_UPDATE_EVENT_STATUS = "update-event-status"
)

var ErrUnknownFlow = errors.New("unknown flow")

type CatalogOption func(*Catalog)

func WithCards(cards []Card) CatalogOption {
	return func(c *Catalog) {
		c.cards = cards
	}
}

func WithRand(rnd *rand.Rand) CatalogOption {
	return func(c *Catalog) {
		c.rnd = rnd
	}
}

// WithOnComplete registers a callback run once by every flow the catalog builds, when it completes.
func WithOnComplete(fn func(model.FlowSnapshot)) CatalogOption {
	return func(c *Catalog) {
		c.onComplete = fn
	}
}

// Catalog builds named flows wired to the shared services.
type Catalog struct {
	svc        flow.Services
	uploader   Uploader
	cards      []Card
	onComplete func(model.FlowSnapshot)

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCatalog(svc flow.Services, uploader Uploader, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		svc:      svc,
		uploader: uploader,
		cards:    DefaultCards,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) Names() []string {
	names := []string{FLOW_MINT, FLOW_FREE_MINT, FLOW_GACHA}
	for name := range singleSteps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Definition(name string) (flow.Definition, error) {
	var def flow.Definition
	switch name {
	case FLOW_MINT:
		def = MintDefinition(c.uploader)
	case FLOW_FREE_MINT:
		def = FreeMintDefinition(c.pickCard, c.cards)
	case FLOW_GACHA:
		def = GachaDefinition()
	default:
		single, ok := SingleStepDefinition(name)
		if !ok {
			return def, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
		}
		def = single
	}
	def.OnComplete = c.onComplete
	return def, nil
}

// Build creates an idle orchestrator for the flow called name.
func (c *Catalog) Build(id string, name string, input map[string]any) (*flow.Orchestrator, error) {
	def, err := c.Definition(name)
	if err != nil {
		return nil, err
	}
	return flow.New(id, def, input, c.svc)
}

func (c *Catalog) pickCard(cards []Card) (Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return util.PickRandom(c.rnd, cards)
}
