// Test helpers shared by the protocol and server tests. Accounts are
// derived deterministically from the username so failures reproduce.

package protocol

import (
	"github.com/barryWhiteHat/Grapevine/crypto"
	"github.com/barryWhiteHat/Grapevine/crypto/agree"
	"github.com/barryWhiteHat/Grapevine/crypto/sign"
	"github.com/barryWhiteHat/Grapevine/fold"
	"github.com/barryWhiteHat/Grapevine/storage/kv/memkv"
)

// NewTestGrapevine returns a Grapevine over an in-memory store with
// the dev folding codec, plus the matching prover for fabricating
// proofs.
func NewTestGrapevine() (*Grapevine, *fold.DevProver) {
	var params fold.Params
	return NewGrapevine(memkv.New(), fold.NewDevVerifier(params)), fold.NewDevProver(params)
}

// A TestAccount holds a keypair and mirrors the server-side nonce so
// tests can mint valid credentials in sequence.
type TestAccount struct {
	Username  string
	PublicKey []byte
	Nonce     uint64

	signKey  sign.PrivateKey
	agreeKey []byte
	agreePub []byte
}

// NewTestAccount derives an account from the username.
func NewTestAccount(username string) *TestAccount {
	seed := crypto.Digest([]byte("test-account"), []byte(username))
	signKey := sign.NewPrivateKey(seed)
	signPub, _ := signKey.Public()
	agreeKey := agree.NewPrivateKey(crypto.Digest(seed))
	agreePub, err := agree.Public(agreeKey)
	if err != nil {
		panic(err)
	}
	return &TestAccount{
		Username:  username,
		PublicKey: append(append([]byte{}, signPub...), agreePub...),
		signKey:   signKey,
		agreeKey:  agreeKey,
		agreePub:  agreePub,
	}
}

// RegistrationRequest builds the account's registration message.
func (a *TestAccount) RegistrationRequest() *RegistrationRequest {
	scalar := crypto.UsernameScalar(a.Username)
	return &RegistrationRequest{
		Username:  a.Username,
		PublicKey: a.PublicKey,
		Signature: a.signKey.Sign(scalar[:]),
	}
}

// NonceRequest builds a signed nonce query.
func (a *TestAccount) NonceRequest() *GetNonceRequest {
	scalar := crypto.UsernameScalar(a.Username)
	return &GetNonceRequest{
		Username:  a.Username,
		Signature: a.signKey.Sign(scalar[:]),
	}
}

// Credential mints the account's next credential and advances the
// local counter, mirroring the server-side consumption.
func (a *TestAccount) Credential() string {
	credential := FormatCredential(a.Username, a.Nonce)
	a.Nonce++
	return credential
}

// SignedCredential mints the next credential along with the signature
// over the credential message, advancing the local counter.
func (a *TestAccount) SignedCredential() (string, []byte) {
	credential := FormatCredential(a.Username, a.Nonce)
	signature := a.signKey.Sign(CredentialMessage(a.Username, a.Nonce))
	a.Nonce++
	return credential, signature
}

// SealSecretTo encrypts secret to the recipient's agreement key,
// returning the relationship edge payload.
func (a *TestAccount) SealSecretTo(recipientPublicKey, secret []byte) (ephemeralKey, ciphertext []byte, err error) {
	peer, err := crypto.AgreeKey(recipientPublicKey)
	if err != nil {
		return nil, nil, err
	}
	return agree.Seal(peer, secret)
}

// OpenSecret decrypts an auth secret sealed to this account.
func (a *TestAccount) OpenSecret(ephemeralKey, ciphertext []byte) ([]byte, error) {
	return agree.Open(a.agreeKey, ephemeralKey, ciphertext)
}

// AuthSecret returns a deterministic per-account chain secret.
func (a *TestAccount) AuthSecret() []byte {
	return crypto.Digest([]byte("auth-secret"), []byte(a.Username))
}

// TestOutputs fabricates the public outputs of a proof on the given
// phrase for this account's auth secret.
func (a *TestAccount) TestOutputs(phrase string) *fold.PublicOutputs {
	var outputs fold.PublicOutputs
	copy(outputs[1][:], crypto.Digest([]byte(phrase)))
	copy(outputs[2][:], crypto.Digest(a.AuthSecret(), crypto.Digest([]byte(phrase))))
	return &outputs
}
