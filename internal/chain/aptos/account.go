package aptos

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Account holds the ed25519 key pair used to sign transactions. The account
// address is derived from the public key under the single-signature scheme.
type Account struct {
	priv    ed25519.PrivateKey
	address string
}

// singleSigScheme is the authentication-key scheme byte for ed25519 accounts.
const singleSigScheme = 0x00

// NewAccountFromHex builds an account from a hex private key. Both a 32-byte
// seed and a 64-byte expanded key are accepted, with or without 0x prefix.
func NewAccountFromHex(key string) (*Account, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "0x")
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	default:
		return nil, errors.New("private key must be 32 or 64 bytes")
	}

	return &Account{priv: priv, address: deriveAddress(priv.Public().(ed25519.PublicKey))}, nil
}

// deriveAddress computes sha3-256(pubkey || scheme) as the account address.
func deriveAddress(pub ed25519.PublicKey) string {
	hasher := sha3.New256()
	hasher.Write(pub)
	hasher.Write([]byte{singleSigScheme})
	return "0x" + hex.EncodeToString(hasher.Sum(nil))
}

// Address returns the 0x-prefixed account address.
func (a *Account) Address() string {
	return a.address
}

// PublicKeyHex returns the 0x-prefixed public key.
func (a *Account) PublicKeyHex() string {
	return "0x" + hex.EncodeToString(a.priv.Public().(ed25519.PublicKey))
}

// SignMessage signs a 0x-prefixed hex signing message and returns the
// 0x-prefixed hex signature.
func (a *Account) SignMessage(messageHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(messageHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("decode signing message: %w", err)
	}
	sig := ed25519.Sign(a.priv, raw)
	return "0x" + hex.EncodeToString(sig), nil
}
