package wallet

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/cloudflare/circl/sign/ed25519"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

// ErrSignedOut is returned by operations that need a key when none is loaded.
var ErrSignedOut = fmt.Errorf("wallet: no account signed in")

// SignInConfig names the contract the function-call key is scoped to.
type SignInConfig struct {
	ContractID  string
	MethodNames []string
}

// Wallet owns the user's account identity and signing key. It answers the
// native-balance query against the gateway's account-state endpoint and signs
// change-call payloads with the account's ed25519 key.
type Wallet struct {
	mu      sync.Mutex
	network string
	account string
	nodeURL string
	ks      *KeyStore
	http    *http.Client
	log     *zap.SugaredLogger

	priv ed25519.PrivateKey // nil while signed out
}

func New(network, account, nodeURL string, ks *KeyStore, log *zap.SugaredLogger) *Wallet {
	return &Wallet{
		network: network,
		account: account,
		nodeURL: nodeURL,
		ks:      ks,
		http:    &http.Client{},
		log:     log,
	}
}

// AccountID returns the connected account, or "" when nobody signed in yet.
func (w *Wallet) AccountID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.priv == nil {
		return ""
	}
	return w.account
}

// RequestSignIn loads the stored function-call key for the account, creating
// and persisting a fresh one on first sign-in.
func (w *Wallet) RequestSignIn(cfg SignInConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	priv, ok, err := w.ks.Get(w.network, w.account)
	if err != nil {
		return err
	}
	if !ok {
		_, priv, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := w.ks.Put(w.network, w.account, priv); err != nil {
			return err
		}
		w.log.Infow("wallet_key_created", "account", w.account, "contract", cfg.ContractID)
	}
	w.priv = priv
	w.log.Infow("wallet_signed_in", "account", w.account, "contract", cfg.ContractID)
	return nil
}

// SignOut drops the in-memory key and removes it from the key store.
func (w *Wallet) SignOut() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.priv = nil
	if err := w.ks.Delete(w.network, w.account); err != nil {
		return err
	}
	w.log.Infow("wallet_signed_out", "account", w.account)
	return nil
}

// PublicKey returns the signing public key, or nil while signed out.
func (w *Wallet) PublicKey() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.priv == nil {
		return nil
	}
	return w.priv.Public().(ed25519.PublicKey)
}

// Sign signs the sha3-256 digest of payload with the account key.
func (w *Wallet) Sign(payload []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.priv == nil {
		return nil, ErrSignedOut
	}
	digest := sha3.Sum256(payload)
	return ed25519.Sign(w.priv, digest[:]), nil
}

// NativeBalanceRaw queries the gateway for the account's chain-level state
// and returns the raw balance in the native currency's smallest unit, as a
// decimal string. Conversion to a display balance is the caller's concern.
func (w *Wallet) NativeBalanceRaw(ctx context.Context) (string, error) {
	account := w.AccountID()
	if account == "" {
		return "", ErrSignedOut
	}

	u := w.nodeURL + "/api/v1/accounts/" + url.PathEscape(account) + "/state"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("account state: %w", err)
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("account state: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("account state: status %s", resp.Status)
	}

	var state struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return "", fmt.Errorf("account state: decode: %w", err)
	}
	return state.Amount, nil
}
