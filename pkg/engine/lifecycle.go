package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

// Phase is the controller's submission state. The rendering layer reads it
// to disable order entry while a submission is in flight.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
)

func (p Phase) String() string {
	if p == PhaseSubmitting {
		return "Submitting"
	}
	return "Idle"
}

// ErrSubmissionInFlight rejects a second submission while one is pending.
var ErrSubmissionInFlight = fmt.Errorf("order submission already in flight")

// ValidationError is a local pre-flight rejection; the ledger is never
// contacted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// LedgerCallError means the remote call itself failed (network, gateway
// rejection, contract panic). Nothing is known to have changed, so no
// refresh follows it.
type LedgerCallError struct {
	Op  string
	Err error
}

func (e *LedgerCallError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *LedgerCallError) Unwrap() error { return e.Err }

// OrderLifecycleController submits order mutations and owns everything
// around them: the single-submission guard, per-sub-operation result
// interpretation, user notifications, and the refresh fan-out that follows a
// mutation. It never writes balances or depth itself; it only triggers the
// owning refreshers.
type OrderLifecycleController struct {
	client    ledger.Client
	accounts  *AccountStateStore
	scheduler *RefreshScheduler
	notifier  Notifier
	log       *zap.SugaredLogger

	phase     atomic.Int32
	refreshWG sync.WaitGroup
}

func NewOrderLifecycleController(client ledger.Client, accounts *AccountStateStore, scheduler *RefreshScheduler, notifier Notifier, log *zap.SugaredLogger) *OrderLifecycleController {
	return &OrderLifecycleController{
		client:    client,
		accounts:  accounts,
		scheduler: scheduler,
		notifier:  notifier,
		log:       log,
	}
}

// Phase returns the current submission phase.
func (c *OrderLifecycleController) Phase() Phase {
	return Phase(c.phase.Load())
}

// Wait blocks until all refreshes initiated by past mutations have settled.
// Tests and shutdown use it; the UI path never does.
func (c *OrderLifecycleController) Wait() {
	c.refreshWG.Wait()
	c.scheduler.Wait()
}

// PlaceLimitOrder validates locally, submits a limit order for the selected
// instrument and interprets the per-sub-operation results. Whatever the mix
// of Ok and Err items, one round of refreshes follows: a partial fill still
// changed state.
func (c *OrderLifecycleController) PlaceLimitOrder(ctx context.Context, side ledger.Side, price decimal.Decimal, qty uint64) error {
	instrument := c.scheduler.Instrument()
	if err := c.validate(instrument, side, qty); err != nil {
		return err
	}
	if !price.IsPositive() {
		return c.rejectLocal("price must be positive")
	}

	if !c.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseSubmitting)) {
		return ErrSubmissionInFlight
	}
	defer c.phase.Store(int32(PhaseIdle))

	results, err := c.client.PlaceLimitOrder(ctx, instrument, side, price, qty)
	if err != nil {
		lce := &LedgerCallError{Op: "limit order", Err: err}
		c.notifier.ShowError(lce.Error())
		c.log.Warnw("limit_order_call_failed", "instrument", instrument, "side", side, "err", err)
		return lce
	}

	c.reportOrderResults("limit order", results)
	c.startPostMutationRefresh(ctx, instrument)
	return nil
}

// PlaceMarketOrder is PlaceLimitOrder without the price. A fully executed
// market order leaves no resting order behind, but the own-orders refresh
// still runs: the ledger may rest a residual under its own rules.
func (c *OrderLifecycleController) PlaceMarketOrder(ctx context.Context, side ledger.Side, qty uint64) error {
	instrument := c.scheduler.Instrument()
	if err := c.validate(instrument, side, qty); err != nil {
		return err
	}

	if !c.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseSubmitting)) {
		return ErrSubmissionInFlight
	}
	defer c.phase.Store(int32(PhaseIdle))

	results, err := c.client.PlaceMarketOrder(ctx, instrument, side, qty)
	if err != nil {
		lce := &LedgerCallError{Op: "market order", Err: err}
		c.notifier.ShowError(lce.Error())
		c.log.Warnw("market_order_call_failed", "instrument", instrument, "side", side, "err", err)
		return lce
	}

	c.reportOrderResults("market order", results)
	c.startPostMutationRefresh(ctx, instrument)
	return nil
}

// CancelOrder cancels one resting order. Every result item is keyed to the
// one order id being cancelled, so each maps to a concrete per-order message
// rather than a generic one. The refresh still runs on failure items: an
// "order not found" usually means it was filled and must leave the display.
func (c *OrderLifecycleController) CancelOrder(ctx context.Context, orderID uint64, side ledger.Side) error {
	instrument := c.scheduler.Instrument()
	if instrument == "" {
		return c.rejectLocal("no instrument selected")
	}
	if !side.Valid() {
		return c.rejectLocal(fmt.Sprintf("unknown side %q", side))
	}

	if !c.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseSubmitting)) {
		return ErrSubmissionInFlight
	}
	defer c.phase.Store(int32(PhaseIdle))

	results, err := c.client.CancelOrder(ctx, instrument, side, orderID)
	if err != nil {
		lce := &LedgerCallError{Op: fmt.Sprintf("cancel order %d", orderID), Err: err}
		c.notifier.ShowError(lce.Error())
		c.log.Warnw("cancel_call_failed", "instrument", instrument, "order_id", orderID, "err", err)
		return lce
	}

	for _, item := range results {
		if f, ok := item.Err(); ok {
			c.notifier.ShowError(fmt.Sprintf("order %d not cancelled: %s", orderID, f.Error()))
			continue
		}
		c.notifier.ShowSuccess(fmt.Sprintf("order %d cancelled", orderID))
	}

	c.startPostMutationRefresh(ctx, instrument)
	return nil
}

func (c *OrderLifecycleController) validate(instrument ledger.TokenID, side ledger.Side, qty uint64) error {
	if instrument == "" {
		return c.rejectLocal("no instrument selected")
	}
	if !side.Valid() {
		return c.rejectLocal(fmt.Sprintf("unknown side %q", side))
	}
	if qty == 0 {
		return c.rejectLocal("quantity must be positive")
	}
	return nil
}

func (c *OrderLifecycleController) rejectLocal(reason string) error {
	err := &ValidationError{Reason: reason}
	c.notifier.ShowError(err.Error())
	return err
}

// reportOrderResults surfaces every sub-operation outcome of a place call.
// Success of the outer call does not imply success of every item.
func (c *OrderLifecycleController) reportOrderResults(action string, results []ledger.MutationResult) {
	for _, item := range results {
		if f, ok := item.Err(); ok {
			c.notifier.ShowError(fmt.Sprintf("%s failed: %s", action, f.Error()))
			continue
		}
		s, _ := item.Ok()
		switch s.Kind {
		case ledger.Accepted:
			c.notifier.ShowSuccess(fmt.Sprintf("%s accepted: order %d", action, s.OrderID))
		case ledger.Filled:
			c.notifier.ShowSuccess(fmt.Sprintf("%s filled: order %d, %d @ %s", action, s.OrderID, s.Qty, s.Price))
		case ledger.PartiallyFilled:
			c.notifier.ShowInfo(fmt.Sprintf("%s partially filled: order %d, %d @ %s", action, s.OrderID, s.Qty, s.Price))
		case ledger.Amended:
			c.notifier.ShowInfo(fmt.Sprintf("%s amended: order %d", action, s.OrderID))
		case ledger.Cancelled:
			c.notifier.ShowInfo(fmt.Sprintf("order %d cancelled", s.OrderID))
		}
	}
}

// startPostMutationRefresh initiates the refresh set that must follow any
// mutation: own orders, both depth sides, spread, and the platform plus
// traded token balances. The submission phase stays Submitting until every
// refresh has been started, not until they complete; the UI re-enables as
// soon as initiation is done.
func (c *OrderLifecycleController) startPostMutationRefresh(ctx context.Context, instrument ledger.TokenID) {
	c.scheduler.RefreshAll(ctx)

	c.refreshWG.Add(2)
	go func() {
		defer c.refreshWG.Done()
		if err := c.accounts.RefreshPlatformTokenBalance(ctx); err != nil {
			c.log.Warnw("platform_balance_refresh_failed", "err", err)
		}
	}()
	go func() {
		defer c.refreshWG.Done()
		if err := c.accounts.RefreshTokenBalance(ctx, instrument); err != nil {
			c.log.Warnw("token_balance_refresh_failed", "token", instrument, "err", err)
		}
	}()
}
