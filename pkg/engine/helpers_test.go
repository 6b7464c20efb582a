package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

var errTransport = errors.New("connection refused")

// fakeWallet satisfies NativeBalanceSource and AccountIDSource.
type fakeWallet struct {
	account string
	raw     string
	rawErr  error
}

func (w *fakeWallet) AccountID() string { return w.account }
func (w *fakeWallet) NativeBalanceRaw(ctx context.Context) (string, error) {
	return w.raw, w.rawErr
}

// fakeClient is an in-memory ledger.Client. Per-method hooks override the
// defaults; calls counts invocations per method name.
type fakeClient struct {
	mu    sync.Mutex
	calls map[string]int

	asks     map[ledger.TokenID][]ledger.Order
	bids     map[ledger.TokenID][]ledger.Order
	own      map[string][]ledger.Order // instrument + "/" + side
	spreads  map[ledger.TokenID]ledger.Spread
	balances map[ledger.TokenID]decimal.Decimal

	askErr      error
	balanceErr  error
	balancesErr error

	onPlaceLimit  func() ([]ledger.MutationResult, error)
	onPlaceMarket func() ([]ledger.MutationResult, error)
	onCancel      func() ([]ledger.MutationResult, error)
	onGetAsks     func(instrument ledger.TokenID) ([]ledger.Order, error)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls:    map[string]int{},
		asks:     map[ledger.TokenID][]ledger.Order{},
		bids:     map[ledger.TokenID][]ledger.Order{},
		own:      map[string][]ledger.Order{},
		spreads:  map[ledger.TokenID]ledger.Spread{},
		balances: map[ledger.TokenID]decimal.Decimal{},
	}
}

func (c *fakeClient) count(method string) {
	c.mu.Lock()
	c.calls[method]++
	c.mu.Unlock()
}

func (c *fakeClient) callCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *fakeClient) GetTokens(ctx context.Context) ([]ledger.Token, error) {
	c.count("GetTokens")
	return nil, nil
}

func (c *fakeClient) GetAskOrders(ctx context.Context, instrument ledger.TokenID) ([]ledger.Order, error) {
	c.count("GetAskOrders")
	if c.onGetAsks != nil {
		return c.onGetAsks(instrument)
	}
	if c.askErr != nil {
		return nil, c.askErr
	}
	return c.asks[instrument], nil
}

func (c *fakeClient) GetBidOrders(ctx context.Context, instrument ledger.TokenID) ([]ledger.Order, error) {
	c.count("GetBidOrders")
	return c.bids[instrument], nil
}

func (c *fakeClient) GetOwnOrders(ctx context.Context, account ledger.AccountID, instrument ledger.TokenID, side ledger.Side) ([]ledger.Order, error) {
	c.count("GetOwnOrders")
	return c.own[instrument+"/"+string(side)], nil
}

func (c *fakeClient) GetSpread(ctx context.Context, instrument ledger.TokenID) (ledger.Spread, error) {
	c.count("GetSpread")
	return c.spreads[instrument], nil
}

func (c *fakeClient) GetTokenBalance(ctx context.Context, account ledger.AccountID, token ledger.TokenID) (decimal.Decimal, error) {
	c.count("GetTokenBalance")
	if c.balanceErr != nil {
		return decimal.Zero, c.balanceErr
	}
	return c.balances[token], nil
}

func (c *fakeClient) GetTokenBalances(ctx context.Context, account ledger.AccountID, tokens []ledger.TokenID) (map[ledger.TokenID]decimal.Decimal, error) {
	c.count("GetTokenBalances")
	if c.balancesErr != nil {
		return nil, c.balancesErr
	}
	out := map[ledger.TokenID]decimal.Decimal{}
	for _, t := range tokens {
		if b, ok := c.balances[t]; ok {
			out[t] = b
		}
	}
	return out, nil
}

func (c *fakeClient) PlaceLimitOrder(ctx context.Context, instrument ledger.TokenID, side ledger.Side, price decimal.Decimal, qty uint64) ([]ledger.MutationResult, error) {
	c.count("PlaceLimitOrder")
	if c.onPlaceLimit != nil {
		return c.onPlaceLimit()
	}
	return []ledger.MutationResult{ledger.OkResult(ledger.Success{Kind: ledger.Accepted, OrderID: 1})}, nil
}

func (c *fakeClient) PlaceMarketOrder(ctx context.Context, instrument ledger.TokenID, side ledger.Side, qty uint64) ([]ledger.MutationResult, error) {
	c.count("PlaceMarketOrder")
	if c.onPlaceMarket != nil {
		return c.onPlaceMarket()
	}
	return []ledger.MutationResult{ledger.OkResult(ledger.Success{Kind: ledger.Filled, OrderID: 1})}, nil
}

func (c *fakeClient) CancelOrder(ctx context.Context, instrument ledger.TokenID, side ledger.Side, orderID uint64) ([]ledger.MutationResult, error) {
	c.count("CancelOrder")
	if c.onCancel != nil {
		return c.onCancel()
	}
	return []ledger.MutationResult{ledger.OkResult(ledger.Success{Kind: ledger.Cancelled, OrderID: orderID})}, nil
}

var _ ledger.Client = (*fakeClient)(nil)

// newTestEngine wires a full engine around the fake client with "ACME"
// selected and refreshes settled.
func newTestEngine(client *fakeClient, wallet *fakeWallet) (*MarketView, *RefreshScheduler, *AccountStateStore, *OrderLifecycleController, *MemoryNotifier) {
	view := NewMarketView()
	scheduler := NewRefreshScheduler(client, wallet, view, testLogger())
	notifier := &MemoryNotifier{}
	accounts := NewAccountStateStore(client, wallet, "XDHO", NativeConversion{DropDigits: 22, DisplayExp: 2}, testLogger())
	controller := NewOrderLifecycleController(client, accounts, scheduler, notifier, testLogger())

	scheduler.SelectInstrument(context.Background(), "ACME")
	scheduler.Wait()
	return view, scheduler, accounts, controller, notifier
}
