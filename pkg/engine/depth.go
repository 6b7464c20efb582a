package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

// PriceLevel is one rung of the depth ladder: the total resting quantity at
// one price on one side. Derived from raw orders on every refresh, never
// stored.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity uint64          `json:"quantity"`
	Side     ledger.Side     `json:"side"`
}

// ErrMixedSides is returned when the input mixes ask and bid orders; the
// aggregator works on one side of the book at a time.
var ErrMixedSides = fmt.Errorf("depth: orders from both sides in one input")

// AggregateDepth collapses raw orders from one side into price levels sorted
// by descending price. Quantities at equal price are summed; the total
// quantity over all levels always equals the total over the input orders.
// Prices compare by value, not representation (2.5 and 2.50 share a level).
// The function is pure: no shared state, safe to call from anywhere.
func AggregateDepth(orders []ledger.Order) ([]PriceLevel, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	side := orders[0].Side
	type entry struct {
		price decimal.Decimal
		qty   uint64
		seq   int // arrival order, makes ordering fully deterministic
	}
	entries := make([]entry, len(orders))
	for i, o := range orders {
		if o.Side != side {
			return nil, ErrMixedSides
		}
		entries[i] = entry{price: o.Price, qty: o.Qty, seq: i}
	}

	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].price.Cmp(entries[j].price); c != 0 {
			return c > 0
		}
		return entries[i].seq < entries[j].seq
	})

	var levels []PriceLevel
	for _, e := range entries {
		if n := len(levels); n > 0 && levels[n-1].Price.Equal(e.price) {
			levels[n-1].Quantity += e.qty
			continue
		}
		levels = append(levels, PriceLevel{Price: e.price, Quantity: e.qty, Side: side})
	}
	return levels, nil
}
