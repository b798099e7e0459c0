// Package wallet provides custodial key generation and encryption for user wallets.
// Keys are secp256k1 (Ethereum-compatible) and are stored AES-256-GCM encrypted.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

// KeyPair is a signing keypair together with its derived wallet address.
type KeyPair struct {
	Address    string
	PublicKey  []byte // 33-byte compressed secp256k1 public key
	PrivateKey []byte // 32-byte secp256k1 private key
}

// GenerateKeyPair generates a fresh secp256k1 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 keypair: %w", err)
	}

	return &KeyPair{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}

// DeriveKeyPair deterministically derives a keypair for a platform user from
// the server seed, using HKDF with SHA-256. The same user always derives the
// same wallet, so a lost encrypted key can be regenerated.
func DeriveKeyPair(platformID int64, serverSeed []byte) (*KeyPair, error) {
	if len(serverSeed) < 32 {
		return nil, fmt.Errorf("server seed must be at least 32 bytes")
	}

	info := []byte("paybot-wallet-" + strconv.FormatInt(platformID, 10))
	hkdfReader := hkdf.New(sha256.New, serverSeed, nil, info)

	privateKeyBytes := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, privateKeyBytes); err != nil {
		return nil, fmt.Errorf("failed to derive key seed: %w", err)
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create private key: %w", err)
	}

	return &KeyPair{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: privateKeyBytes,
	}, nil
}

// EncryptPrivateKey encrypts the private key using AES-256-GCM with the
// provided master key. The random nonce is stored alongside the ciphertext:
// the result is base64(nonce || ciphertext || tag).
func EncryptPrivateKey(privateKey []byte, masterKey []byte) (string, error) {
	if len(masterKey) != 32 {
		return "", fmt.Errorf("master key must be 32 bytes (AES-256)")
	}
	if len(privateKey) != 32 {
		return "", fmt.Errorf("private key must be 32 bytes (secp256k1)")
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, privateKey, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey.
func DecryptPrivateKey(encrypted string, masterKey []byte) ([]byte, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes (AES-256)")
	}

	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted key: %w", err)
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted key too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	privateKey, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	return privateKey, nil
}

// MasterKeyFromSecret stretches an arbitrary-length secret into a 32-byte
// AES-256 master key.
func MasterKeyFromSecret(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}
