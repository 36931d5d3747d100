// Package client implements the client side of the Grapevine
// protocol: key material and credential management, request encoding,
// and a connection to a server.
package client

import (
	"github.com/barryWhiteHat/Grapevine/crypto"
	"github.com/barryWhiteHat/Grapevine/crypto/agree"
	"github.com/barryWhiteHat/Grapevine/crypto/sign"
	"github.com/barryWhiteHat/Grapevine/protocol"
	"github.com/barryWhiteHat/Grapevine/utils"
)

// An Account holds a user's key material and tracks the replay
// counter locally, so consecutive requests can be issued without
// querying the server for the nonce each time.
type Account struct {
	Username string
	// PublicKey is the compound key registered with the server: the
	// signing key followed by the agreement key.
	PublicKey []byte
	// Nonce is the next counter value to present. It advances with
	// every minted credential; Recover resynchronizes it from the
	// server after a mismatch.
	Nonce uint64

	signKey    sign.PrivateKey
	agreeKey   []byte
	authSecret [crypto.ScalarSize]byte
}

// NewAccount generates fresh key material and a random auth secret
// for username.
func NewAccount(username string) (*Account, error) {
	signKey, err := sign.GenerateKey()
	if err != nil {
		return nil, err
	}
	agreeKey, _, err := agree.GenerateKey()
	if err != nil {
		return nil, err
	}
	authSecret, err := crypto.RandomScalar()
	if err != nil {
		return nil, err
	}
	return newAccount(username, signKey, agreeKey, authSecret)
}

// NewAccountFromSeed derives the account deterministically, for
// restoring an account from a stored seed.
func NewAccountFromSeed(username string, seed []byte) (*Account, error) {
	signSeed := crypto.Digest([]byte("sign"), seed)
	agreeSeed := crypto.Digest([]byte("agree"), seed)
	var authSecret [crypto.ScalarSize]byte
	copy(authSecret[:], crypto.Digest([]byte("auth"), seed))
	authSecret[crypto.ScalarSize-1] &= 0x3f
	return newAccount(username, sign.NewPrivateKey(signSeed), agree.NewPrivateKey(agreeSeed), authSecret)
}

func newAccount(username string, signKey sign.PrivateKey, agreeKey []byte,
	authSecret [crypto.ScalarSize]byte) (*Account, error) {
	signPub, ok := signKey.Public()
	if !ok {
		return nil, crypto.ErrBadKeyLength
	}
	agreePub, err := agree.Public(agreeKey)
	if err != nil {
		return nil, err
	}
	return &Account{
		Username:   username,
		PublicKey:  append(append([]byte{}, signPub...), agreePub...),
		signKey:    signKey,
		agreeKey:   agreeKey,
		authSecret: authSecret,
	}, nil
}

// AuthSecret returns the account's chain secret. It never leaves the
// client unencrypted.
func (a *Account) AuthSecret() []byte {
	return a.authSecret[:]
}

// SignUsername signs the canonical encoding of the account's
// username, the proof of key possession presented at registration and
// nonce queries.
func (a *Account) SignUsername() []byte {
	fr := crypto.UsernameScalar(a.Username)
	return a.signKey.Sign(fr[:])
}

// RegistrationRequest builds the account's registration message.
func (a *Account) RegistrationRequest() *protocol.RegistrationRequest {
	return &protocol.RegistrationRequest{
		Username:  a.Username,
		PublicKey: a.PublicKey,
		Signature: a.SignUsername(),
	}
}

// NextCredential mints the credential for the next request and
// advances the local counter.
func (a *Account) NextCredential() string {
	credential := protocol.FormatCredential(a.Username, a.Nonce)
	a.Nonce++
	return credential
}

// NextSignedCredential mints the next credential along with the
// signature binding it, for the operations behind the signed guard.
func (a *Account) NextSignedCredential() (string, []byte) {
	credential := protocol.FormatCredential(a.Username, a.Nonce)
	signature := a.signKey.Sign(protocol.CredentialMessage(a.Username, a.Nonce))
	a.Nonce++
	return credential, signature
}

// SyncNonce resets the local counter, typically to the value the
// server reported in a NonceResponse or a mismatch error.
func (a *Account) SyncNonce(nonce uint64) {
	a.Nonce = nonce
}

// SealAuthSecret encrypts the account's auth secret to the agreement
// half of the recipient's compound public key, producing the payload
// of an add-relationship request.
func (a *Account) SealAuthSecret(recipientPublicKey []byte) (ephemeralKey, ciphertext []byte, err error) {
	peer, err := crypto.AgreeKey(recipientPublicKey)
	if err != nil {
		return nil, nil, err
	}
	return agree.Seal(peer, a.authSecret[:])
}

// OpenAuthSecret decrypts an auth secret another user sealed to this
// account, as carried in a relationship edge or a proving bundle.
func (a *Account) OpenAuthSecret(ephemeralKey, ciphertext []byte) ([]byte, error) {
	return agree.Open(a.agreeKey, ephemeralKey, ciphertext)
}

// SaveSeed writes seed to path for later restoration with
// NewAccountFromSeed. It refuses to overwrite an existing file.
func SaveSeed(path string, seed []byte) error {
	return utils.WriteFile(path, seed, 0600)
}
