package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

func TestPlaceLimitOrder_LocalValidation(t *testing.T) {
	client := newFakeClient()
	_, _, _, controller, notifier := newTestEngine(client, &fakeWallet{account: "alice"})

	tests := []struct {
		name  string
		side  ledger.Side
		price decimal.Decimal
		qty   uint64
	}{
		{"zero quantity", ledger.Bid, decimal.NewFromInt(10), 0},
		{"zero price", ledger.Bid, decimal.Zero, 5},
		{"negative price", ledger.Ask, decimal.NewFromInt(-1), 5},
		{"bad side", ledger.Side("Sideways"), decimal.NewFromInt(10), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := controller.PlaceLimitOrder(context.Background(), tt.side, tt.price, tt.qty)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	// Pre-flight rejections never reach the ledger.
	if n := client.callCount("PlaceLimitOrder"); n != 0 {
		t.Errorf("ledger called %d times for invalid input", n)
	}
	if n := len(notifier.BySeverity(SeverityError)); n != len(tests) {
		t.Errorf("error notifications = %d, want %d", n, len(tests))
	}
}

func TestPlaceLimitOrder_MixedResultsReportEachErrOnce(t *testing.T) {
	client := newFakeClient()
	client.onPlaceLimit = func() ([]ledger.MutationResult, error) {
		return []ledger.MutationResult{
			ledger.OkResult(ledger.Success{Kind: ledger.Filled, OrderID: 1, Qty: 3, Price: decimal.NewFromInt(10)}),
			ledger.ErrResult(ledger.Failure{Kind: ledger.NoMatch, OrderID: 2}),
			ledger.OkResult(ledger.Success{Kind: ledger.Accepted, OrderID: 3}),
		}, nil
	}
	_, _, _, controller, notifier := newTestEngine(client, &fakeWallet{account: "alice"})
	baselineAsks := client.callCount("GetAskOrders")

	if err := controller.PlaceLimitOrder(context.Background(), ledger.Bid, decimal.NewFromInt(10), 5); err != nil {
		t.Fatalf("PlaceLimitOrder() error: %v", err)
	}
	controller.Wait()

	// Exactly one failure notification for the single Err item.
	if got := notifier.BySeverity(SeverityError); len(got) != 1 {
		t.Fatalf("error notifications = %v, want exactly 1", got)
	}

	// Exactly one refresh round despite the mixed outcome.
	if n := client.callCount("GetAskOrders") - baselineAsks; n != 1 {
		t.Errorf("depth(ask) refreshed %d times, want 1", n)
	}
	if n := client.callCount("GetSpread"); n != 2 { // initial select + post-mutation
		t.Errorf("GetSpread called %d times, want 2", n)
	}
	if n := client.callCount("GetTokenBalance"); n != 2 { // platform + traded token
		t.Errorf("GetTokenBalance called %d times, want 2", n)
	}
}

func TestPlaceLimitOrder_RejectsConcurrentSubmission(t *testing.T) {
	client := newFakeClient()
	entered := make(chan struct{})
	release := make(chan struct{})
	client.onPlaceLimit = func() ([]ledger.MutationResult, error) {
		close(entered)
		<-release
		return []ledger.MutationResult{ledger.OkResult(ledger.Success{Kind: ledger.Accepted, OrderID: 1})}, nil
	}
	_, _, _, controller, _ := newTestEngine(client, &fakeWallet{account: "alice"})

	done := make(chan error, 1)
	go func() {
		done <- controller.PlaceLimitOrder(context.Background(), ledger.Bid, decimal.NewFromInt(10), 5)
	}()
	<-entered

	if got := controller.Phase(); got != PhaseSubmitting {
		t.Fatalf("phase = %v, want Submitting", got)
	}
	if err := controller.PlaceLimitOrder(context.Background(), ledger.Bid, decimal.NewFromInt(11), 1); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	controller.Wait()

	if n := client.callCount("PlaceLimitOrder"); n != 1 {
		t.Errorf("duplicate submission reached the ledger: %d calls", n)
	}
	if got := controller.Phase(); got != PhaseIdle {
		t.Errorf("phase = %v, want Idle after completion", got)
	}
}

func TestPlaceLimitOrder_TransportFailureSkipsRefresh(t *testing.T) {
	client := newFakeClient()
	client.onPlaceLimit = func() ([]ledger.MutationResult, error) {
		return nil, errTransport
	}
	_, _, _, controller, notifier := newTestEngine(client, &fakeWallet{account: "alice"})
	baselineAsks := client.callCount("GetAskOrders")

	err := controller.PlaceLimitOrder(context.Background(), ledger.Bid, decimal.NewFromInt(10), 5)
	var lce *LedgerCallError
	if !errors.As(err, &lce) {
		t.Fatalf("expected LedgerCallError, got %v", err)
	}
	controller.Wait()

	// Nothing is known to have changed: no refresh, one error report.
	if n := client.callCount("GetAskOrders") - baselineAsks; n != 0 {
		t.Errorf("depth refreshed %d times after transport failure, want 0", n)
	}
	if got := notifier.BySeverity(SeverityError); len(got) != 1 {
		t.Errorf("error notifications = %v, want exactly 1", got)
	}
	if got := controller.Phase(); got != PhaseIdle {
		t.Errorf("phase = %v, want Idle", got)
	}
}

func TestPlaceMarketOrder_RefreshesOwnOrdersDefensively(t *testing.T) {
	client := newFakeClient()
	_, _, _, controller, _ := newTestEngine(client, &fakeWallet{account: "alice"})
	baseline := client.callCount("GetOwnOrders")

	if err := controller.PlaceMarketOrder(context.Background(), ledger.Ask, 3); err != nil {
		t.Fatalf("PlaceMarketOrder() error: %v", err)
	}
	controller.Wait()

	// A market order can still leave a residual resting order.
	if n := client.callCount("GetOwnOrders") - baseline; n != 2 {
		t.Errorf("own orders refreshed %d times (both sides), want 2", n)
	}
}

func TestCancelOrder_MessagesNameTheOrder(t *testing.T) {
	client := newFakeClient()
	client.onCancel = func() ([]ledger.MutationResult, error) {
		return []ledger.MutationResult{
			ledger.ErrResult(ledger.Failure{Kind: ledger.OrderNotFound, OrderID: 42}),
		}, nil
	}
	_, _, _, controller, notifier := newTestEngine(client, &fakeWallet{account: "alice"})
	baseline := client.callCount("GetOwnOrders")

	if err := controller.CancelOrder(context.Background(), 42, ledger.Bid); err != nil {
		t.Fatalf("CancelOrder() error: %v", err)
	}
	controller.Wait()

	errs := notifier.BySeverity(SeverityError)
	if len(errs) != 1 {
		t.Fatalf("error notifications = %v, want exactly 1", errs)
	}
	if !strings.Contains(errs[0], "42") {
		t.Errorf("failure message %q does not name order 42", errs[0])
	}

	// The order may in fact have been filled; own orders must re-sync.
	if n := client.callCount("GetOwnOrders") - baseline; n != 2 {
		t.Errorf("own orders refreshed %d times, want 2", n)
	}
}

func TestCancelOrder_SuccessNotification(t *testing.T) {
	client := newFakeClient()
	_, _, _, controller, notifier := newTestEngine(client, &fakeWallet{account: "alice"})

	if err := controller.CancelOrder(context.Background(), 7, ledger.Ask); err != nil {
		t.Fatalf("CancelOrder() error: %v", err)
	}
	controller.Wait()

	ok := notifier.BySeverity(SeveritySuccess)
	if len(ok) != 1 || !strings.Contains(ok[0], "7") {
		t.Errorf("success notifications = %v, want one naming order 7", ok)
	}
}

func TestNoInstrumentSelectedRejectsSubmission(t *testing.T) {
	client := newFakeClient()
	view := NewMarketView()
	scheduler := NewRefreshScheduler(client, &fakeWallet{account: "alice"}, view, testLogger())
	notifier := &MemoryNotifier{}
	accounts := NewAccountStateStore(client, &fakeWallet{account: "alice"}, "XDHO", NativeConversion{}, testLogger())
	controller := NewOrderLifecycleController(client, accounts, scheduler, notifier, testLogger())

	err := controller.PlaceLimitOrder(context.Background(), ledger.Bid, decimal.NewFromInt(10), 5)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError with no instrument, got %v", err)
	}
}
