// Package sign wraps the Ed25519 signature scheme used to bind a
// Grapevine username to a public key and to authorize guarded requests.
package sign

import (
	"crypto/ed25519"
	"crypto/rand"
)

const (
	PrivateKeySize = 64
	PublicKeySize  = 32
	SignatureSize  = 64
)

type PrivateKey ed25519.PrivateKey
type PublicKey ed25519.PublicKey

// GenerateKey creates a new signing key from crypto/rand.
func GenerateKey() (PrivateKey, error) {
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	return PrivateKey(sk), err
}

// NewPrivateKey rebuilds a signing key from its 32-byte seed.
func NewPrivateKey(seed []byte) PrivateKey {
	return PrivateKey(ed25519.NewKeyFromSeed(seed))
}

func (key PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(key), message)
}

func (key PrivateKey) Public() (PublicKey, bool) {
	pk, ok := ed25519.PrivateKey(key).Public().(ed25519.PublicKey)
	return PublicKey(pk), ok
}

func (pk PublicKey) Verify(message, sig []byte) bool {
	if len(pk) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk), message, sig)
}
