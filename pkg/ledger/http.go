package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Signer produces the signature the gateway verifies before forwarding a
// change call to the contract. The wallet package provides the implementation.
type Signer interface {
	AccountID() AccountID
	PublicKey() []byte
	Sign(payload []byte) ([]byte, error)
}

// HTTPClient talks to an exchange gateway node over its /api/v1 surface.
// View calls are plain GETs; change calls POST an ed25519-signed envelope.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	signer  Signer
	log     *zap.SugaredLogger

	// callTimeout bounds a single gateway round trip. Zero means no bound:
	// an unsettled call stays pending until the transport gives up.
	callTimeout time.Duration
}

// NewHTTPClient creates a gateway client. signer may be nil for a read-only
// client; change calls then fail before touching the network.
func NewHTTPClient(baseURL string, signer Signer, callTimeout time.Duration, log *zap.SugaredLogger) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		http:        &http.Client{},
		signer:      signer,
		log:         log,
		callTimeout: callTimeout,
	}
}

func (c *HTTPClient) GetTokens(ctx context.Context) ([]Token, error) {
	var out []Token
	if err := c.getJSON(ctx, "/api/v1/tokens", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetAskOrders(ctx context.Context, instrument TokenID) ([]Order, error) {
	return c.getSideOrders(ctx, instrument, Ask)
}

func (c *HTTPClient) GetBidOrders(ctx context.Context, instrument TokenID) ([]Order, error) {
	return c.getSideOrders(ctx, instrument, Bid)
}

func (c *HTTPClient) getSideOrders(ctx context.Context, instrument TokenID, side Side) ([]Order, error) {
	var out []Order
	q := url.Values{"side": {string(side)}}
	path := "/api/v1/markets/" + url.PathEscape(instrument) + "/orders"
	if err := c.getJSON(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetOwnOrders(ctx context.Context, account AccountID, instrument TokenID, side Side) ([]Order, error) {
	var out []Order
	q := url.Values{"instrument": {instrument}, "side": {string(side)}}
	path := "/api/v1/accounts/" + url.PathEscape(account) + "/orders"
	if err := c.getJSON(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSpread decodes the contract's two-element [bestBid, bestAsk] pair.
func (c *HTTPClient) GetSpread(ctx context.Context, instrument TokenID) (Spread, error) {
	var pair []decimal.Decimal
	path := "/api/v1/markets/" + url.PathEscape(instrument) + "/spread"
	if err := c.getJSON(ctx, path, nil, &pair); err != nil {
		return Spread{}, err
	}
	if len(pair) != 2 {
		return Spread{}, fmt.Errorf("spread for %s: expected [bid, ask], got %d elements", instrument, len(pair))
	}
	return Spread{BestBid: pair[0], BestAsk: pair[1]}, nil
}

func (c *HTTPClient) GetTokenBalance(ctx context.Context, account AccountID, token TokenID) (decimal.Decimal, error) {
	var out decimal.Decimal
	path := "/api/v1/accounts/" + url.PathEscape(account) + "/balances/" + url.PathEscape(token)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out, nil
}

// GetTokenBalances fetches balances for a set of tokens in one call.
// The contract returns a list of [token_id, balance] pairs.
func (c *HTTPClient) GetTokenBalances(ctx context.Context, account AccountID, tokens []TokenID) (map[TokenID]decimal.Decimal, error) {
	var pairs [][2]json.RawMessage
	q := url.Values{}
	for _, t := range tokens {
		q.Add("token", t)
	}
	path := "/api/v1/accounts/" + url.PathEscape(account) + "/balances"
	if err := c.getJSON(ctx, path, q, &pairs); err != nil {
		return nil, err
	}

	out := make(map[TokenID]decimal.Decimal, len(pairs))
	for _, p := range pairs {
		var id TokenID
		var bal decimal.Decimal
		if err := json.Unmarshal(p[0], &id); err != nil {
			return nil, fmt.Errorf("decode balance pair token: %w", err)
		}
		if err := json.Unmarshal(p[1], &bal); err != nil {
			return nil, fmt.Errorf("decode balance for %s: %w", id, err)
		}
		out[id] = bal
	}
	return out, nil
}

func (c *HTTPClient) PlaceLimitOrder(ctx context.Context, instrument TokenID, side Side, price decimal.Decimal, qty uint64) ([]MutationResult, error) {
	args := map[string]interface{}{
		"token_id": instrument,
		"side":     side,
		"price":    price,
		"quantity": qty,
	}
	return c.postChange(ctx, "/api/v1/orders", "new_limit_order", args)
}

func (c *HTTPClient) PlaceMarketOrder(ctx context.Context, instrument TokenID, side Side, qty uint64) ([]MutationResult, error) {
	args := map[string]interface{}{
		"token_id": instrument,
		"side":     side,
		"quantity": qty,
	}
	return c.postChange(ctx, "/api/v1/orders", "new_market_order", args)
}

func (c *HTTPClient) CancelOrder(ctx context.Context, instrument TokenID, side Side, orderID uint64) ([]MutationResult, error) {
	args := map[string]interface{}{
		"token_id": instrument,
		"side":     side,
		"id":       orderID,
	}
	return c.postChange(ctx, "/api/v1/orders/cancel", "cancel_limit_order", args)
}

// signedEnvelope is the body of every change call. The signature covers the
// canonical JSON encoding of the payload field.
type signedEnvelope struct {
	AccountID AccountID       `json:"account_id"`
	Payload   json.RawMessage `json:"payload"`
	PublicKey string          `json:"public_key"`
	Signature string          `json:"signature"`
}

type changePayload struct {
	Method string                 `json:"method"`
	Args   map[string]interface{} `json:"args"`
	Ts     int64                  `json:"ts"`
}

func (c *HTTPClient) postChange(ctx context.Context, path, method string, args map[string]interface{}) ([]MutationResult, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("%s: client has no signer (read-only)", method)
	}

	payload, err := json.Marshal(changePayload{Method: method, Args: args, Ts: time.Now().UnixNano()})
	if err != nil {
		return nil, fmt.Errorf("%s: encode payload: %w", method, err)
	}
	sig, err := c.signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: sign: %w", method, err)
	}

	env := signedEnvelope{
		AccountID: c.signer.AccountID(),
		Payload:   payload,
		PublicKey: hex.EncodeToString(c.signer.PublicKey()),
		Signature: hex.EncodeToString(sig),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%s: encode envelope: %w", method, err)
	}

	var results []MutationResult
	if err := c.doJSON(ctx, http.MethodPost, path, nil, bytes.NewReader(body), &results); err != nil {
		return nil, err
	}
	c.log.Debugw("change_call_done", "method", method, "results", len(results))
	return results, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

type gatewayError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, query url.Values, body io.Reader, out interface{}) error {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ge gatewayError
		if decErr := json.NewDecoder(resp.Body).Decode(&ge); decErr == nil && ge.Error != "" {
			return fmt.Errorf("gateway %s: %s (%s)", path, ge.Error, ge.Message)
		}
		return fmt.Errorf("gateway %s: status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway %s: decode response: %w", path, err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
