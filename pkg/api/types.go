package api

import (
	"github.com/shopspring/decimal"

	"github.com/xdex-labs/xdex-go/pkg/engine"
	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

// Response types for the REST endpoints the rendering layer consumes.

// StateSnapshot is the full displayed state in one response.
type StateSnapshot struct {
	Instrument ledger.TokenID      `json:"instrument"`
	Asks       []engine.PriceLevel `json:"asks"`
	Bids       []engine.PriceLevel `json:"bids"`
	Spread     ledger.Spread       `json:"spread"`
	OwnOrders  []ledger.Order      `json:"own_orders"`
	Account    engine.AccountState `json:"account"`
	Phase      string              `json:"phase"`
}

// DepthSnapshot is both ladders for the selected instrument.
type DepthSnapshot struct {
	Instrument ledger.TokenID      `json:"instrument"`
	Asks       []engine.PriceLevel `json:"asks"`
	Bids       []engine.PriceLevel `json:"bids"`
}

// SelectInstrumentRequest switches the displayed instrument.
type SelectInstrumentRequest struct {
	TokenID ledger.TokenID `json:"token_id"`
}

// PlaceOrderRequest submits a limit or market order.
type PlaceOrderRequest struct {
	Type     string          `json:"type"` // "limit" or "market"
	Side     ledger.Side     `json:"side"`
	Price    decimal.Decimal `json:"price,omitempty"` // ignored for market orders
	Quantity uint64          `json:"quantity"`
}

// CancelOrderRequest cancels one resting order.
type CancelOrderRequest struct {
	OrderID uint64      `json:"order_id"`
	Side    ledger.Side `json:"side"`
}

// SubmitResponse acknowledges an accepted mutation. Outcomes arrive as
// notifications over the WebSocket stream.
type SubmitResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WebSocket messages.

// WSSubscribeRequest subscribes/unsubscribes the connection to channels:
// "market" (snapshot updates) and "notifications".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSMarketUpdate is pushed on the "market" channel whenever a slice of
// displayed state is replaced.
type WSMarketUpdate struct {
	Type   string        `json:"type"` // "update"
	Update engine.Update `json:"update"`
}

// WSNotification is pushed on the "notifications" channel.
type WSNotification struct {
	Type         string              `json:"type"` // "notification"
	Notification engine.Notification `json:"notification"`
}
