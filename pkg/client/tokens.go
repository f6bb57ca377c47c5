package client

import (
	"errors"

	"github.com/99designs/keyring"

	"github.com/benchvault/benchvault/internal/apperrors"
)

// Keyring slots used by the API client.
const (
	keyringService = "benchvault"
	slotAccess     = "access_token"
	slotRefresh    = "refresh_token"
	slotBaseURL    = "base_url"
)

// tokenStore persists login state in the platform keyring so a client
// survives process restarts without re-authenticating.
type tokenStore struct {
	ring keyring.Keyring
}

func openTokenStore() (*tokenStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
	})
	if err != nil {
		return nil, apperrors.Storage("open keyring failed", err)
	}
	return &tokenStore{ring: ring}, nil
}

// Get returns the stored value, or "" when the slot is empty.
func (t *tokenStore) Get(slot string) (string, error) {
	item, err := t.ring.Get(slot)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", apperrors.Storage("read keyring failed", err)
	}
	return string(item.Data), nil
}

// Set stores a value under a slot.
func (t *tokenStore) Set(slot, value string) error {
	err := t.ring.Set(keyring.Item{Key: slot, Data: []byte(value)})
	if err != nil {
		return apperrors.Storage("write keyring failed", err)
	}
	return nil
}

// Clear removes a slot; a missing slot is not an error.
func (t *tokenStore) Clear(slot string) error {
	err := t.ring.Remove(slot)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return apperrors.Storage("clear keyring failed", err)
	}
	return nil
}
