package engine

import (
	"sync"

	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

// UpdateKind tags which slice of displayed state a snapshot update replaced.
type UpdateKind string

const (
	UpdateInstrument UpdateKind = "instrument"
	UpdateDepth      UpdateKind = "depth"
	UpdateSpread     UpdateKind = "spread"
	UpdateOwnOrders  UpdateKind = "own_orders"
)

// Update is the discrete change event published to rendering-layer
// subscribers after a snapshot slice was replaced.
type Update struct {
	Instrument ledger.TokenID `json:"instrument"`
	Kind       UpdateKind     `json:"kind"`
}

// MarketView holds the displayed market state for the currently selected
// instrument: aggregated depth per side, the spread pair, and the user's own
// orders. Each refresh replaces its whole slice atomically; consumers never
// observe a half-applied refresh. Writes go through the RefreshScheduler
// only, which enforces the stale-instrument guard.
type MarketView struct {
	mu         sync.RWMutex
	instrument ledger.TokenID
	asks       []PriceLevel
	bids       []PriceLevel
	spread     ledger.Spread
	ownAsks    []ledger.Order
	ownBids    []ledger.Order

	subMu sync.Mutex
	subs  []chan Update
}

func NewMarketView() *MarketView { return &MarketView{} }

// Reset switches the view to a new instrument and clears every slice of
// state scoped to the previous one.
func (v *MarketView) Reset(instrument ledger.TokenID) {
	v.mu.Lock()
	v.instrument = instrument
	v.asks, v.bids = nil, nil
	v.spread = ledger.Spread{}
	v.ownAsks, v.ownBids = nil, nil
	v.mu.Unlock()
	v.publish(Update{Instrument: instrument, Kind: UpdateInstrument})
}

// Instrument returns the instrument the view currently displays.
func (v *MarketView) Instrument() ledger.TokenID {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.instrument
}

func (v *MarketView) setDepth(side ledger.Side, levels []PriceLevel) {
	v.mu.Lock()
	if side == ledger.Ask {
		v.asks = levels
	} else {
		v.bids = levels
	}
	instrument := v.instrument
	v.mu.Unlock()
	v.publish(Update{Instrument: instrument, Kind: UpdateDepth})
}

func (v *MarketView) setSpread(s ledger.Spread) {
	v.mu.Lock()
	v.spread = s
	instrument := v.instrument
	v.mu.Unlock()
	v.publish(Update{Instrument: instrument, Kind: UpdateSpread})
}

func (v *MarketView) setOwnOrders(side ledger.Side, orders []ledger.Order) {
	v.mu.Lock()
	if side == ledger.Ask {
		v.ownAsks = orders
	} else {
		v.ownBids = orders
	}
	instrument := v.instrument
	v.mu.Unlock()
	v.publish(Update{Instrument: instrument, Kind: UpdateOwnOrders})
}

// Depth returns the current ladder for one side.
func (v *MarketView) Depth(side ledger.Side) []PriceLevel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if side == ledger.Ask {
		return v.asks
	}
	return v.bids
}

// Spread returns the current top-of-book pair.
func (v *MarketView) Spread() ledger.Spread {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.spread
}

// OwnOrders returns the user's resting orders, asks first.
func (v *MarketView) OwnOrders() []ledger.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]ledger.Order, 0, len(v.ownAsks)+len(v.ownBids))
	out = append(out, v.ownAsks...)
	out = append(out, v.ownBids...)
	return out
}

// Subscribe returns a channel receiving an Update whenever a slice of
// displayed state is replaced. Slow subscribers miss updates rather than
// blocking refreshes; they can always re-read the full snapshot.
func (v *MarketView) Subscribe() <-chan Update {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	ch := make(chan Update, 64)
	v.subs = append(v.subs, ch)
	return ch
}

func (v *MarketView) publish(u Update) {
	v.subMu.Lock()
	subs := make([]chan Update, len(v.subs))
	copy(subs, v.subs)
	v.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}
