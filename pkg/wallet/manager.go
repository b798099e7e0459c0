package wallet

import (
	"fmt"

	"github.com/promptcash/paybot/pkg/payments"
)

// Manager creates wallets for new users and hands decrypted signing keys
// to the payment executor. Wallet fields are immutable once created.
type Manager struct {
	masterKey []byte
	seed      []byte
}

// NewManager creates a wallet manager from the configured key secret.
// The same secret is used as the AES master key source and the HKDF seed.
func NewManager(keySecret string) *Manager {
	master := MasterKeyFromSecret(keySecret)
	return &Manager{masterKey: master, seed: master}
}

// CreateWallet derives the wallet for a platform user and returns its
// address together with the encrypted private key for storage.
func (m *Manager) CreateWallet(platformID int64) (address, encryptedKey string, err error) {
	kp, err := DeriveKeyPair(platformID, m.seed)
	if err != nil {
		return "", "", fmt.Errorf("derive wallet: %w", err)
	}

	encryptedKey, err = EncryptPrivateKey(kp.PrivateKey, m.masterKey)
	if err != nil {
		return "", "", fmt.Errorf("encrypt wallet key: %w", err)
	}

	return kp.Address, encryptedKey, nil
}

// SigningKey decrypts a user's stored private key.
func (m *Manager) SigningKey(usr *payments.User) ([]byte, error) {
	if usr.EncryptedKey == "" {
		return nil, fmt.Errorf("user %d has no stored wallet key", usr.PlatformID)
	}
	key, err := DecryptPrivateKey(usr.EncryptedKey, m.masterKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet key: %w", err)
	}
	return key, nil
}
