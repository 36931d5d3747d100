// Package agree implements the key-agreement half of the relationship
// secret distribution protocol: a sender encrypts an auth secret to a
// recipient under a fresh ephemeral X25519 key, and only the recipient's
// private key can rederive the symmetric key and open the ciphertext.
// The server stores (ephemeral key, ciphertext) pairs but can decrypt
// neither.
package agree

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	KeySize   = 32
	NonceSize = chacha20poly1305.NonceSize
)

// hkdfInfo domain-separates the AEAD key from other uses of the
// shared secret.
var hkdfInfo = []byte("grapevine-auth-secret-v1")

var (
	ErrBadKeySize    = errors.New("[agree] X25519 keys must be 32 bytes")
	ErrBadCiphertext = errors.New("[agree] Ciphertext too short or corrupted")
)

// GenerateKey creates an X25519 key pair.
func GenerateKey() (priv, pub []byte, err error) {
	priv = make([]byte, KeySize)
	if _, err = rand.Read(priv); err != nil {
		return nil, nil, err
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// NewPrivateKey derives a clamped X25519 private key from 32 seed bytes.
func NewPrivateKey(seed []byte) []byte {
	priv := sha256.Sum256(seed)
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	return priv[:]
}

// Public returns the X25519 public key for priv.
func Public(priv []byte) ([]byte, error) {
	if len(priv) != KeySize {
		return nil, ErrBadKeySize
	}
	return curve25519.X25519(priv, curve25519.Basepoint)
}

// SharedKey runs the Diffie-Hellman exchange between priv and peer and
// derives the symmetric encryption key via HKDF-SHA256.
func SharedKey(priv, peer []byte) ([]byte, error) {
	if len(priv) != KeySize || len(peer) != KeySize {
		return nil, ErrBadKeySize
	}
	shared, err := curve25519.X25519(priv, peer)
	if err != nil {
		return nil, err
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, hkdfInfo), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts secret to the recipient's agreement key under a fresh
// ephemeral key pair. It returns the ephemeral public key the recipient
// needs for SharedKey and the nonce-prefixed ciphertext.
func Seal(recipientPub, secret []byte) (ephemeralPub, ciphertext []byte, err error) {
	ephPriv, ephPub, err := GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	key, err := SharedKey(ephPriv, recipientPub)
	if err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	ciphertext = aead.Seal(nonce, nonce, secret, nil)
	return ephPub, ciphertext, nil
}

// Open decrypts a ciphertext produced by Seal using the recipient's
// private agreement key and the sender's ephemeral public key.
func Open(priv, ephemeralPub, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrBadCiphertext
	}
	key, err := SharedKey(priv, ephemeralPub)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce, box := ciphertext[:NonceSize], ciphertext[NonceSize:]
	secret, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return nil, ErrBadCiphertext
	}
	return secret, nil
}
