package wallet

import (
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/cockroachdb/pebble"
)

// KeyStore persists function-call keys per (network, account) in a local
// pebble database. It fills the role the browser-local key store plays for a
// web wallet: keys survive restarts, sign-out deletes them.
type KeyStore struct {
	db *pebble.DB
}

func OpenKeyStore(path string) (*KeyStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	return &KeyStore{db: db}, nil
}

func (ks *KeyStore) Close() error { return ks.db.Close() }

// keys: k:<network>:<account>
func keyFor(network, account string) []byte {
	return []byte("k:" + network + ":" + account)
}

// Put stores a private key for the account, replacing any previous one.
func (ks *KeyStore) Put(network, account string, priv ed25519.PrivateKey) error {
	if err := ks.db.Set(keyFor(network, account), priv, pebble.Sync); err != nil {
		return fmt.Errorf("store key for %s: %w", account, err)
	}
	return nil
}

// Get loads the account's private key. The second return is false when no key
// is stored (signed out or never signed in).
func (ks *KeyStore) Get(network, account string) (ed25519.PrivateKey, bool, error) {
	val, closer, err := ks.db.Get(keyFor(network, account))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load key for %s: %w", account, err)
	}
	defer closer.Close()

	priv := make(ed25519.PrivateKey, len(val))
	copy(priv, val)
	if len(priv) != ed25519.PrivateKeySize {
		return nil, false, fmt.Errorf("stored key for %s has size %d, want %d", account, len(priv), ed25519.PrivateKeySize)
	}
	return priv, true, nil
}

// Delete removes the account's key. Deleting a missing key is not an error.
func (ks *KeyStore) Delete(network, account string) error {
	if err := ks.db.Delete(keyFor(network, account), pebble.Sync); err != nil {
		return fmt.Errorf("delete key for %s: %w", account, err)
	}
	return nil
}
