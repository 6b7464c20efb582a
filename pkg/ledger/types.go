package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TokenID identifies a token listed on the exchange contract (e.g. "XDHO", "ACME").
type TokenID = string

// AccountID is a named ledger account (e.g. "alice.testnet").
type AccountID = string

// Side is the side of the book an order rests on.
type Side string

const (
	Ask Side = "Ask" // sell
	Bid Side = "Bid" // buy
)

// Valid reports whether s is one of the two wire values the contract accepts.
func (s Side) Valid() bool { return s == Ask || s == Bid }

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Ask {
		return Bid
	}
	return Ask
}

// Order is a resting order as returned by the contract's view methods.
// Identity is (ID, Side) within one trading pair. Orders are never patched
// in place by the client; each refresh replaces the whole snapshot.
type Order struct {
	ID         uint64          `json:"order_id"`
	OrderAsset string          `json:"order_asset"`
	PriceAsset string          `json:"price_asset"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Qty        uint64          `json:"qty"`
	Creator    AccountID       `json:"order_creator"`
}

// TokenMetadata is the optional display metadata attached to a listed token.
type TokenMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Token is one listed token with its total supply and owner.
type Token struct {
	ID     TokenID         `json:"token_id"`
	Supply decimal.Decimal `json:"supply"`
	Owner  AccountID       `json:"owner_id"`
	Meta   *TokenMetadata  `json:"meta,omitempty"`
}

// Spread is the contract's current top of book for one instrument.
type Spread struct {
	BestBid decimal.Decimal `json:"best_bid"`
	BestAsk decimal.Decimal `json:"best_ask"`
}

func (s Spread) String() string {
	return fmt.Sprintf("bid=%s ask=%s", s.BestBid, s.BestAsk)
}
