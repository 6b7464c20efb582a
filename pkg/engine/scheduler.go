package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

// AccountIDSource yields the signed-in account, or "" when there is none.
type AccountIDSource interface {
	AccountID() string
}

// RefreshScheduler re-runs the market queries when the selected instrument
// changes and after every order mutation. There is no cancellation of
// in-flight gateway calls; instead every fetch carries the epoch it was
// issued under, and a result whose epoch is no longer current is discarded
// on arrival. That guard is the one correctness property everything else
// leans on: a response for a non-current instrument never reaches the view.
type RefreshScheduler struct {
	client  ledger.Client
	account AccountIDSource
	view    *MarketView
	log     *zap.SugaredLogger

	mu         sync.Mutex
	epoch      uint64
	instrument ledger.TokenID

	inflight sync.WaitGroup
}

func NewRefreshScheduler(client ledger.Client, account AccountIDSource, view *MarketView, log *zap.SugaredLogger) *RefreshScheduler {
	return &RefreshScheduler{
		client:  client,
		account: account,
		view:    view,
		log:     log,
	}
}

// Instrument returns the currently selected instrument.
func (s *RefreshScheduler) Instrument() ledger.TokenID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrument
}

// SelectInstrument switches to a new instrument: prior state is cleared,
// the epoch is advanced so in-flight fetches for the old instrument become
// stale, and a full refresh for the new instrument is started. The view reset
// happens inside the epoch critical section; concurrent selections can never
// leave the view labeled with one instrument while the epoch belongs to
// another.
func (s *RefreshScheduler) SelectInstrument(ctx context.Context, instrument ledger.TokenID) {
	s.mu.Lock()
	s.epoch++
	s.instrument = instrument
	epoch := s.epoch
	s.view.Reset(instrument)
	s.mu.Unlock()

	s.log.Infow("instrument_selected", "instrument", instrument)
	s.start(ctx, epoch, instrument)
}

// RefreshAll re-runs own orders, both depth sides and the spread for the
// currently selected instrument. Used after order mutations. Fetches run
// concurrently; this returns once they are started.
func (s *RefreshScheduler) RefreshAll(ctx context.Context) {
	s.mu.Lock()
	epoch, instrument := s.epoch, s.instrument
	s.mu.Unlock()
	if instrument == "" {
		return
	}
	s.start(ctx, epoch, instrument)
}

// Wait blocks until every started fetch has settled. Test and shutdown hook.
func (s *RefreshScheduler) Wait() { s.inflight.Wait() }

func (s *RefreshScheduler) start(ctx context.Context, epoch uint64, instrument ledger.TokenID) {
	s.spawn(func() { s.refreshDepth(ctx, epoch, instrument, ledger.Ask) })
	s.spawn(func() { s.refreshDepth(ctx, epoch, instrument, ledger.Bid) })
	s.spawn(func() { s.refreshSpread(ctx, epoch, instrument) })
	if s.account.AccountID() != "" {
		s.spawn(func() { s.refreshOwnOrders(ctx, epoch, instrument, ledger.Ask) })
		s.spawn(func() { s.refreshOwnOrders(ctx, epoch, instrument, ledger.Bid) })
	}
}

func (s *RefreshScheduler) spawn(fn func()) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn()
	}()
}

// commit applies fn only if the fetch's epoch is still the current one.
// Returns false for discarded stale results.
func (s *RefreshScheduler) commit(epoch uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	fn()
	return true
}

func (s *RefreshScheduler) refreshDepth(ctx context.Context, epoch uint64, instrument ledger.TokenID, side ledger.Side) {
	var orders []ledger.Order
	var err error
	if side == ledger.Ask {
		orders, err = s.client.GetAskOrders(ctx, instrument)
	} else {
		orders, err = s.client.GetBidOrders(ctx, instrument)
	}
	if err != nil {
		// Last-known-good snapshot stays in place.
		s.log.Warnw("depth_refresh_failed", "instrument", instrument, "side", side, "err", err)
		return
	}
	levels, err := AggregateDepth(orders)
	if err != nil {
		s.log.Errorw("depth_aggregate_failed", "instrument", instrument, "side", side, "err", err)
		return
	}
	if !s.commit(epoch, func() { s.view.setDepth(side, levels) }) {
		s.log.Debugw("stale_depth_discarded", "instrument", instrument, "side", side)
	}
}

func (s *RefreshScheduler) refreshSpread(ctx context.Context, epoch uint64, instrument ledger.TokenID) {
	spread, err := s.client.GetSpread(ctx, instrument)
	if err != nil {
		s.log.Warnw("spread_refresh_failed", "instrument", instrument, "err", err)
		return
	}
	if !s.commit(epoch, func() { s.view.setSpread(spread) }) {
		s.log.Debugw("stale_spread_discarded", "instrument", instrument)
	}
}

func (s *RefreshScheduler) refreshOwnOrders(ctx context.Context, epoch uint64, instrument ledger.TokenID, side ledger.Side) {
	account := s.account.AccountID()
	if account == "" {
		return
	}
	orders, err := s.client.GetOwnOrders(ctx, account, instrument, side)
	if err != nil {
		s.log.Warnw("own_orders_refresh_failed", "instrument", instrument, "side", side, "err", err)
		return
	}
	if !s.commit(epoch, func() { s.view.setOwnOrders(side, orders) }) {
		s.log.Debugw("stale_own_orders_discarded", "instrument", instrument, "side", side)
	}
}
