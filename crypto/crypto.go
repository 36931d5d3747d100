package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/sha3"
)

const (
	HashSizeByte = 32
	HashID       = "SHAKE128"

	// ScalarSize is the size in bytes of the canonical little-endian
	// field-element encoding used for usernames and auth secrets.
	ScalarSize = 32
)

// Digest hashes all passed byte slices.
// The hash can be used as HMAC.
func Digest(ms ...[]byte) []byte {
	h := sha3.NewShake128()
	for _, m := range ms {
		h.Write(m)
	}
	ret := make([]byte, HashSizeByte)
	h.Read(ret)
	return ret
}

// UsernameScalar returns the canonical field-element encoding of an
// ASCII username: the raw bytes placed at the front of a 32-byte
// little-endian buffer. Usernames are at most 30 characters, so the
// encoding always fits below the field modulus.
func UsernameScalar(username string) [ScalarSize]byte {
	var fr [ScalarSize]byte
	copy(fr[:], username)
	return fr
}

// RandomScalar draws a uniformly random auth secret. The top two bits
// are cleared so the value is a valid 255-bit field element.
func RandomScalar() ([ScalarSize]byte, error) {
	var s [ScalarSize]byte
	if _, err := rand.Read(s[:]); err != nil {
		return s, err
	}
	s[ScalarSize-1] &= 0x3f
	return s, nil
}

// MakeRand generates a random slice of byte and hashes it.
func MakeRand() ([]byte, error) {
	r := make([]byte, HashSizeByte)
	if _, err := rand.Read(r); err != nil {
		return nil, err
	}
	// Do not directly reveal bytes from rand.Read on the wire
	return Digest(r), nil
}
