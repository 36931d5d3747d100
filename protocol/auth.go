// This module implements the anti-replay authentication guard. A
// credential is the string "username-nonce"; authenticating succeeds
// only when the supplied nonce equals the identity's stored counter
// exactly, and on success the counter advances by one atomically, so a
// credential can never be replayed. The signed variant additionally
// requires a signature binding the username and the supplied nonce,
// which stops a credential observed on one endpoint from being
// redirected to another.

package protocol

import (
	"strconv"
	"strings"

	"github.com/barryWhiteHat/Grapevine/crypto"
	"github.com/barryWhiteHat/Grapevine/utils"
)

// CredentialDelimiter separates username and nonce in a credential.
// Usernames may themselves contain dashes, so parsing splits on the
// last one.
const CredentialDelimiter = "-"

// An AuthenticatedIdentity is the capability token produced by a
// successful authentication. Handlers requiring authentication take it
// as a parameter; it cannot be constructed outside this package.
type AuthenticatedIdentity struct {
	identity *Identity
}

// Identity returns the authenticated identity record as of the moment
// the guard passed (its Nonce already reflects the advance).
func (a *AuthenticatedIdentity) Identity() *Identity { return a.identity }

// FormatCredential renders the credential string a client must present
// for the given username and nonce.
func FormatCredential(username string, nonce uint64) string {
	return username + CredentialDelimiter + strconv.FormatUint(nonce, 10)
}

// ParseCredential splits a credential into its username and nonce.
func ParseCredential(credential string) (string, uint64, error) {
	i := strings.LastIndex(credential, CredentialDelimiter)
	if i < 0 {
		return "", 0, ErrMalformedCredential
	}
	username := credential[:i]
	nonce, err := strconv.ParseUint(credential[i+1:], 10, 64)
	if err != nil {
		return "", 0, ErrMalformedCredential
	}
	return username, nonce, nil
}

// CredentialMessage is the byte string signed for the signed guard
// variant: the canonical username encoding followed by the nonce in
// little-endian order.
func CredentialMessage(username string, nonce uint64) []byte {
	fr := crypto.UsernameScalar(username)
	return append(fr[:], utils.ULongToBytes(nonce)...)
}

// Authenticate validates a credential against the stored nonce and, on
// success, advances the counter by one. Exactly one of any set of
// concurrent requests presenting the same nonce succeeds; the others
// observe a NonceMismatch carrying the counter they should use next.
func (r *Registry) Authenticate(credential string) (*AuthenticatedIdentity, error) {
	return r.authenticate(credential, nil)
}

// AuthenticateSigned is the stronger guard: in addition to the nonce
// check, signature must verify over CredentialMessage(username, nonce)
// under the identity's registered key. The signature is checked before
// the nonce is consumed, so a forged request does not advance the
// counter.
func (r *Registry) AuthenticateSigned(credential string, signature []byte) (*AuthenticatedIdentity, error) {
	if signature == nil {
		return nil, ErrInvalidSignature
	}
	return r.authenticate(credential, signature)
}

func (r *Registry) authenticate(credential string, signature []byte) (*AuthenticatedIdentity, error) {
	username, supplied, err := ParseCredential(credential)
	if err != nil {
		return nil, err
	}
	// Unlocked read to learn the identity id; all checks repeat
	// against a fresh read under the lock.
	identity, err := r.Lookup(username)
	if err != nil {
		return nil, err
	}

	r.locks.lock(identity.ID)
	defer r.locks.unlock(identity.ID)

	identity, err = getIdentityByID(r.db, identity.ID)
	if err != nil {
		return nil, ErrInternalServer
	}
	if signature != nil {
		signKey, err := crypto.SignKey(identity.PublicKey)
		if err != nil {
			return nil, ErrInternalServer
		}
		if !signKey.Verify(CredentialMessage(username, supplied), signature) {
			return nil, ErrInvalidSignature
		}
	}
	if supplied != identity.Nonce {
		return nil, &NonceMismatch{Expected: identity.Nonce, Received: supplied}
	}

	identity.Nonce++
	b := r.db.NewBatch()
	if err := putRecord(b, identityKey(identity.ID), identity); err != nil {
		return nil, ErrInternalServer
	}
	if err := r.db.Write(b); err != nil {
		return nil, ErrInternalServer
	}
	return &AuthenticatedIdentity{identity: identity}, nil
}
