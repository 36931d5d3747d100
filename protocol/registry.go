// This module implements the identity registry of the Grapevine
// trust-chain protocol: signature-verified registration of unique
// username-to-key bindings, nonce disclosure, and public lookups.
// Every mutation of an identity record anywhere in the protocol goes
// through the registry's per-identity critical section, which makes
// the nonce compare-and-increment of the authentication guard atomic.

package protocol

import (
	"sync"

	"github.com/barryWhiteHat/Grapevine/crypto"
	"github.com/barryWhiteHat/Grapevine/storage/kv"
)

// MaxUsernameChars is the maximum username length.
const MaxUsernameChars = 30

// A Registry owns the identity records of the service.
type Registry struct {
	db kv.DB

	// registerMu serializes uniqueness check and insert during
	// registration.
	registerMu sync.Mutex

	locks lockMap
}

// NewRegistry creates a Registry over the given store.
func NewRegistry(db kv.DB) *Registry {
	return &Registry{db: db, locks: newLockMap()}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// verifyUsernameSignature checks signature over the canonical
// field-element encoding of username under the signing half of
// publicKey.
func verifyUsernameSignature(username string, publicKey, signature []byte) error {
	signKey, err := crypto.SignKey(publicKey)
	if err != nil {
		return ErrMalformedMessage
	}
	fr := crypto.UsernameScalar(username)
	if !signKey.Verify(fr[:], signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Register creates a new identity for the given username and public
// key. The signature must be a valid signature over the canonical
// encoding of the username by the key being registered; it proves the
// registrant controls the key. The username and the public key must
// each be globally unique. On success the identity starts with nonce 0
// and empty relationship and proof lists.
func (r *Registry) Register(username string, publicKey, signature []byte) (*Identity, error) {
	if len(username) > MaxUsernameChars {
		return nil, ErrUsernameTooLong
	}
	if !isASCII(username) {
		return nil, ErrUsernameNotAscii
	}
	if len(username) == 0 {
		return nil, ErrMalformedMessage
	}
	if err := verifyUsernameSignature(username, publicKey, signature); err != nil {
		return nil, err
	}

	r.registerMu.Lock()
	defer r.registerMu.Unlock()

	_, nameErr := r.db.Get(nameIndexKey(username))
	_, keyErr := r.db.Get(keyIndexKey(publicKey))
	nameTaken := nameErr == nil
	keyTaken := keyErr == nil
	if nameErr != nil && !notFound(r.db, nameErr) {
		return nil, ErrInternalServer
	}
	if keyErr != nil && !notFound(r.db, keyErr) {
		return nil, ErrInternalServer
	}
	switch {
	case nameTaken && keyTaken:
		return nil, ErrIdentityExists
	case nameTaken:
		return nil, ErrUsernameExists
	case keyTaken:
		return nil, ErrPubkeyExists
	}

	identity := &Identity{
		ID:            newRecordID(),
		Username:      username,
		PublicKey:     publicKey,
		Nonce:         0,
		Relationships: []string{},
		DegreeProofs:  []string{},
	}
	b := r.db.NewBatch()
	if err := putRecord(b, identityKey(identity.ID), identity); err != nil {
		return nil, ErrInternalServer
	}
	b.Put(nameIndexKey(username), []byte(identity.ID))
	b.Put(keyIndexKey(publicKey), []byte(identity.ID))
	if err := r.db.Write(b); err != nil {
		return nil, ErrInternalServer
	}
	return identity, nil
}

// Nonce discloses the current replay counter and public key of the
// identity. Disclosure is itself authorized by a signature over the
// canonical username encoding, the same scheme used at registration.
func (r *Registry) Nonce(username string, signature []byte) (uint64, []byte, error) {
	identity, err := r.Lookup(username)
	if err != nil {
		return 0, nil, err
	}
	if err := verifyUsernameSignature(username, identity.PublicKey, signature); err != nil {
		return 0, nil, err
	}
	return identity.Nonce, identity.PublicKey, nil
}

// Lookup returns the identity registered under username.
func (r *Registry) Lookup(username string) (*Identity, error) {
	identity, err := getIdentityByName(r.db, username)
	if notFound(r.db, err) {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, ErrInternalServer
	}
	return identity, nil
}

// PublicKey returns the public key registered under username.
func (r *Registry) PublicKey(username string) ([]byte, error) {
	identity, err := r.Lookup(username)
	if err != nil {
		return nil, err
	}
	return identity.PublicKey, nil
}

// lockIdentity enters the identity's critical section. Every mutation
// of an identity record, whichever component performs it, runs inside
// this section; the returned function leaves it.
func (r *Registry) lockIdentity(id string) func() {
	r.locks.lock(id)
	return func() { r.locks.unlock(id) }
}

// lockPair enters both identities' critical sections, acquired in id
// order to avoid deadlock.
func (r *Registry) lockPair(idA, idB string) func() {
	first, second := idA, idB
	if idB < idA {
		first, second = idB, idA
	}
	r.locks.lock(first)
	r.locks.lock(second)
	return func() {
		r.locks.unlock(second)
		r.locks.unlock(first)
	}
}

// applyLocked re-reads the identity with the given id, applies fn and
// stages the updated record on b. The caller must hold the identity's
// critical section until the batch is written.
func (r *Registry) applyLocked(b kv.Batch, id string, fn func(*Identity)) error {
	identity, err := getIdentityByID(r.db, id)
	if err != nil {
		return ErrInternalServer
	}
	fn(identity)
	if err := putRecord(b, identityKey(identity.ID), identity); err != nil {
		return ErrInternalServer
	}
	return nil
}
