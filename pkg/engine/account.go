package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

// ErrNoAccount is returned by balance refreshes when no account is signed in.
var ErrNoAccount = fmt.Errorf("account: no account connected")

// NativeBalanceSource is the wallet as the account store sees it: an account
// identity plus the chain-level balance query in the native currency's
// smallest unit.
type NativeBalanceSource interface {
	AccountID() string
	NativeBalanceRaw(ctx context.Context) (string, error)
}

// NativeConversion turns a raw smallest-unit amount into a display balance:
// drop DropDigits trailing magnitude digits, then shift the result right by
// DisplayExp decimal places. Both knobs depend on the chain's native currency
// and live in config rather than here.
type NativeConversion struct {
	DropDigits int
	DisplayExp int32
}

// Convert applies the conversion to a raw decimal-string amount.
func (c NativeConversion) Convert(raw string) (decimal.Decimal, error) {
	if len(raw) <= c.DropDigits {
		return decimal.Zero, nil
	}
	truncated := raw[:len(raw)-c.DropDigits]
	d, err := decimal.NewFromString(truncated)
	if err != nil {
		return decimal.Zero, fmt.Errorf("native amount %q: %w", raw, err)
	}
	return d.Shift(-c.DisplayExp), nil
}

// AccountState is the displayed snapshot of what the connected account holds.
type AccountState struct {
	AccountID            ledger.AccountID                   `json:"account_id"`
	NativeBalance        decimal.Decimal                    `json:"native_balance"`
	PlatformTokenBalance decimal.Decimal                    `json:"platform_token_balance"`
	OtherTokenBalances   map[ledger.TokenID]decimal.Decimal `json:"other_token_balances"`
}

// AccountStateStore is the single writer for AccountState. Balances change
// only through the refresh methods below; the order lifecycle never writes
// them directly, it only triggers refreshes. A failed refresh keeps the prior
// value and reports the error so the caller can log it.
type AccountStateStore struct {
	client        ledger.Client
	wallet        NativeBalanceSource
	platformToken ledger.TokenID
	conv          NativeConversion
	log           *zap.SugaredLogger

	mu    sync.Mutex
	state AccountState
}

func NewAccountStateStore(client ledger.Client, wallet NativeBalanceSource, platformToken ledger.TokenID, conv NativeConversion, log *zap.SugaredLogger) *AccountStateStore {
	return &AccountStateStore{
		client:        client,
		wallet:        wallet,
		platformToken: platformToken,
		conv:          conv,
		log:           log,
		state: AccountState{
			AccountID:          wallet.AccountID(),
			OtherTokenBalances: map[ledger.TokenID]decimal.Decimal{},
		},
	}
}

// Snapshot returns a copy of the current account state.
func (s *AccountStateStore) Snapshot() AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.OtherTokenBalances = make(map[ledger.TokenID]decimal.Decimal, len(s.state.OtherTokenBalances))
	for k, v := range s.state.OtherTokenBalances {
		out.OtherTokenBalances[k] = v
	}
	return out
}

// RefreshNativeBalance re-reads the wallet's chain balance and stores the
// display value. On failure the prior balance stays; the error is still
// returned because balance display is best-effort but the failure must be
// observable.
func (s *AccountStateStore) RefreshNativeBalance(ctx context.Context) error {
	if s.wallet.AccountID() == "" {
		return ErrNoAccount
	}
	raw, err := s.wallet.NativeBalanceRaw(ctx)
	if err != nil {
		return fmt.Errorf("refresh native balance: %w", err)
	}
	display, err := s.conv.Convert(raw)
	if err != nil {
		return fmt.Errorf("refresh native balance: %w", err)
	}
	s.mu.Lock()
	s.state.AccountID = s.wallet.AccountID()
	s.state.NativeBalance = display
	s.mu.Unlock()
	s.log.Debugw("native_balance_refreshed", "balance", display)
	return nil
}

// RefreshPlatformTokenBalance re-reads the account's platform-token balance.
func (s *AccountStateStore) RefreshPlatformTokenBalance(ctx context.Context) error {
	account := s.wallet.AccountID()
	if account == "" {
		return ErrNoAccount
	}
	bal, err := s.client.GetTokenBalance(ctx, account, s.platformToken)
	if err != nil {
		return fmt.Errorf("refresh %s balance: %w", s.platformToken, err)
	}
	s.mu.Lock()
	s.state.PlatformTokenBalance = bal
	s.mu.Unlock()
	s.log.Debugw("platform_balance_refreshed", "token", s.platformToken, "balance", bal)
	return nil
}

// RefreshTokenBalance re-reads one token's balance in the per-token map.
func (s *AccountStateStore) RefreshTokenBalance(ctx context.Context, token ledger.TokenID) error {
	account := s.wallet.AccountID()
	if account == "" {
		return ErrNoAccount
	}
	if token == s.platformToken {
		return s.RefreshPlatformTokenBalance(ctx)
	}
	bal, err := s.client.GetTokenBalance(ctx, account, token)
	if err != nil {
		return fmt.Errorf("refresh %s balance: %w", token, err)
	}
	s.mu.Lock()
	s.state.OtherTokenBalances[token] = bal
	s.mu.Unlock()
	return nil
}

// RefreshAllTokenBalances batch-reads balances for the given tokens and
// replaces the whole per-token map. The replacement is all-or-nothing: on
// failure the prior map is untouched, a partial merge never happens.
func (s *AccountStateStore) RefreshAllTokenBalances(ctx context.Context, tokens []ledger.TokenID) error {
	account := s.wallet.AccountID()
	if account == "" {
		return ErrNoAccount
	}
	balances, err := s.client.GetTokenBalances(ctx, account, tokens)
	if err != nil {
		return fmt.Errorf("refresh token balances: %w", err)
	}
	if balances == nil {
		balances = map[ledger.TokenID]decimal.Decimal{}
	}
	s.mu.Lock()
	s.state.OtherTokenBalances = balances
	s.mu.Unlock()
	s.log.Debugw("token_balances_refreshed", "tokens", len(balances))
	return nil
}
