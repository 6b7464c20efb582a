package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client is the remote exchange contract as seen by this repo: view methods
// read book and balance state, change methods mutate it. Every change method
// returns the contract's per-sub-operation result list; the transport error is
// distinct from per-item failures (the call can succeed while items fail).
//
// The contract itself is an opaque remote ledger; matching and settlement
// semantics live there, not here.
type Client interface {
	// Views.
	GetTokens(ctx context.Context) ([]Token, error)
	GetAskOrders(ctx context.Context, instrument TokenID) ([]Order, error)
	GetBidOrders(ctx context.Context, instrument TokenID) ([]Order, error)
	GetOwnOrders(ctx context.Context, account AccountID, instrument TokenID, side Side) ([]Order, error)
	GetSpread(ctx context.Context, instrument TokenID) (Spread, error)
	GetTokenBalance(ctx context.Context, account AccountID, token TokenID) (decimal.Decimal, error)
	GetTokenBalances(ctx context.Context, account AccountID, tokens []TokenID) (map[TokenID]decimal.Decimal, error)

	// Changes.
	PlaceLimitOrder(ctx context.Context, instrument TokenID, side Side, price decimal.Decimal, qty uint64) ([]MutationResult, error)
	PlaceMarketOrder(ctx context.Context, instrument TokenID, side Side, qty uint64) ([]MutationResult, error)
	CancelOrder(ctx context.Context, instrument TokenID, side Side, orderID uint64) ([]MutationResult, error)
}
