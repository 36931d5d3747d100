package crypto

import (
	"errors"

	"github.com/barryWhiteHat/Grapevine/crypto/sign"
)

// PublicKeySize is the length of a registered Grapevine public key:
// an Ed25519 verification key followed by an X25519 agreement key.
// The server treats the value as opaque except for slicing out the
// verification half; the agreement half is only ever used client side.
const PublicKeySize = 64

var ErrBadKeyLength = errors.New("[grapevine] Public key must be 64 bytes")

// SignKey returns the Ed25519 half of a registered public key.
func SignKey(publicKey []byte) (sign.PublicKey, error) {
	if len(publicKey) != PublicKeySize {
		return nil, ErrBadKeyLength
	}
	return sign.PublicKey(publicKey[:sign.PublicKeySize]), nil
}

// AgreeKey returns the X25519 half of a registered public key.
func AgreeKey(publicKey []byte) ([]byte, error) {
	if len(publicKey) != PublicKeySize {
		return nil, ErrBadKeyLength
	}
	return publicKey[sign.PublicKeySize:], nil
}
