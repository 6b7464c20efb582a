package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubSigner struct {
	account AccountID
	pub     []byte
	signed  [][]byte
}

func (s *stubSigner) AccountID() AccountID { return s.account }
func (s *stubSigner) PublicKey() []byte    { return s.pub }
func (s *stubSigner) Sign(payload []byte) ([]byte, error) {
	s.signed = append(s.signed, payload)
	return []byte("sig-over-" + string(payload[:4])), nil
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *stubSigner) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	signer := &stubSigner{account: "alice.testnet", pub: []byte{0xab, 0xcd}}
	return NewHTTPClient(srv.URL, signer, time.Second, zap.NewNop().Sugar()), signer
}

func TestGetSpread_DecodesPair(t *testing.T) {
	client, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/markets/ACME/spread" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`["9.5", "10.25"]`))
	})

	spread, err := client.GetSpread(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("GetSpread() error: %v", err)
	}
	if !spread.BestBid.Equal(decimal.RequireFromString("9.5")) || !spread.BestAsk.Equal(decimal.RequireFromString("10.25")) {
		t.Errorf("spread = %+v", spread)
	}
}

func TestGetSpread_RejectsShortPair(t *testing.T) {
	client, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["9.5"]`))
	})
	if _, err := client.GetSpread(context.Background(), "ACME"); err == nil {
		t.Fatal("expected error for 1-element spread")
	}
}

func TestGetTokenBalances_DecodesPairList(t *testing.T) {
	client, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query()["token"]; len(got) != 2 {
			t.Errorf("token query = %v, want 2 entries", got)
		}
		w.Write([]byte(`[["ACME", "12.5"], ["XDHO", 300]]`))
	})

	balances, err := client.GetTokenBalances(context.Background(), "alice.testnet", []TokenID{"ACME", "XDHO"})
	if err != nil {
		t.Fatalf("GetTokenBalances() error: %v", err)
	}
	if !balances["ACME"].Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("ACME balance = %s", balances["ACME"])
	}
	if !balances["XDHO"].Equal(decimal.NewFromInt(300)) {
		t.Errorf("XDHO balance = %s", balances["XDHO"])
	}
}

func TestGetAskOrders_QueriesSide(t *testing.T) {
	client, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("side"); got != "Ask" {
			t.Errorf("side = %q, want Ask", got)
		}
		w.Write([]byte(`[{"order_id":1,"order_asset":"ACME","price_asset":"XDHO","side":"Ask","price":"10","qty":5,"order_creator":"bob"}]`))
	})

	orders, err := client.GetAskOrders(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("GetAskOrders() error: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != 1 || orders[0].Qty != 5 {
		t.Errorf("orders = %+v", orders)
	}
}

func TestPlaceLimitOrder_PostsSignedEnvelope(t *testing.T) {
	var env signedEnvelope
	client, signer := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/orders" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		w.Write([]byte(`[{"Ok":{"Accepted":{"id":1}}}]`))
	})

	results, err := client.PlaceLimitOrder(context.Background(), "ACME", Bid, decimal.RequireFromString("10.5"), 5)
	if err != nil {
		t.Fatalf("PlaceLimitOrder() error: %v", err)
	}
	if len(results) != 1 || !results[0].IsOk() {
		t.Fatalf("results = %+v", results)
	}

	if env.AccountID != "alice.testnet" {
		t.Errorf("account = %q", env.AccountID)
	}
	if env.PublicKey != hex.EncodeToString(signer.pub) {
		t.Errorf("public key = %q", env.PublicKey)
	}
	if len(signer.signed) != 1 {
		t.Fatalf("signer invoked %d times", len(signer.signed))
	}
	// The signature covers the exact payload bytes carried in the envelope.
	if string(env.Payload) != string(signer.signed[0]) {
		t.Error("envelope payload differs from signed bytes")
	}

	var payload changePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Method != "new_limit_order" {
		t.Errorf("method = %q", payload.Method)
	}
	if payload.Args["token_id"] != "ACME" || payload.Args["side"] != "Bid" {
		t.Errorf("args = %v", payload.Args)
	}
}

func TestCancelOrder_DecodesErrItems(t *testing.T) {
	client, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"Err":{"OrderNotFound":42}}]`))
	})

	results, err := client.CancelOrder(context.Background(), "ACME", Bid, 42)
	if err != nil {
		t.Fatalf("CancelOrder() error: %v", err)
	}
	f, ok := results[0].Err()
	if !ok || f.Kind != OrderNotFound || f.OrderID != 42 {
		t.Errorf("failure = %+v", f)
	}
}

func TestChangeCall_RequiresSigner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("read-only client reached the network")
	}))
	t.Cleanup(srv.Close)
	client := NewHTTPClient(srv.URL, nil, 0, zap.NewNop().Sugar())

	if _, err := client.PlaceMarketOrder(context.Background(), "ACME", Ask, 1); err == nil {
		t.Fatal("expected error from signerless change call")
	}
}

func TestGatewayErrorBody_SurfacesMessage(t *testing.T) {
	client, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid side","message":"side must be Ask or Bid"}`))
	})

	_, err := client.GetAskOrders(context.Background(), "ACME")
	if err == nil {
		t.Fatal("expected gateway error")
	}
	if !strings.Contains(err.Error(), "invalid side") {
		t.Errorf("error %q does not carry the gateway message", err)
	}
}

func TestGatewayNonJSONError_FallsBackToStatus(t *testing.T) {
	client, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := client.GetTokens(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error %q does not carry the status", err)
	}
}
