// This module implements the degree-proof DAG. A degree-1 proof roots
// a phrase chain; every higher degree proof references a verified
// predecessor owned by a user who granted the extender a relationship
// edge. The store keeps at most one live proof per (user, phrase)
// pair: admitting a replacement retires the old proof, unlinking it
// from its predecessor while leaving the record in place so its
// children's back-references keep resolving.

package protocol

import (
	"bytes"
	"encoding/hex"

	"github.com/barryWhiteHat/Grapevine/fold"
	"github.com/barryWhiteHat/Grapevine/storage/kv"
)

// A ProofChain stores degree proofs and answers graph queries over
// them.
type ProofChain struct {
	db       kv.DB
	registry *Registry
	verifier fold.Verifier

	// locks serializes admissions per phrase hash. Every record an
	// admission rewrites (the predecessor's proceeding list, the
	// replaced proof, its predecessor) belongs to the same phrase, so
	// one mutex per phrase covers the whole read-modify-write.
	locks lockMap
}

// NewProofChain creates a chain store sharing the registry's store.
func NewProofChain(db kv.DB, registry *Registry, verifier fold.Verifier) *ProofChain {
	return &ProofChain{db: db, registry: registry, verifier: verifier, locks: newLockMap()}
}

func phraseLockKey(phraseHash []byte) string {
	return hex.EncodeToString(phraseHash)
}

// CreateOrigin admits a degree-1 proof: the phrase originator's own
// proof, built from their secret alone. The proof must verify for two
// folding steps; its public outputs supply the phrase hash and auth
// hash. A previous live proof by the same user on the same phrase is
// retired and replaced.
func (c *ProofChain) CreateOrigin(user *AuthenticatedIdentity, proofBytes []byte) (*DegreeProof, error) {
	outputs, err := c.verifier.Verify(proofBytes, fold.StepsPerDegree)
	if err != nil {
		return nil, ErrProofInvalid
	}
	phraseHash := outputs.PhraseHash()
	authHash := outputs.AuthHash()

	proof := &DegreeProof{
		ID:         newRecordID(),
		PhraseHash: phraseHash[:],
		AuthHash:   authHash[:],
		UserID:     user.Identity().ID,
		Degree:     1,
		Proof:      proofBytes,
		Proceeding: []string{},
	}
	return c.admit(proof)
}

// Extend admits a proof of the given degree (> 1) built from the
// preceding proof. The preceding proof must be live, of degree-1 lower
// and on the same phrase, and its owner must hold a relationship edge
// to the extender. The proof must verify for 2×degree folding steps. A
// previous live proof by the extender on the phrase is retired and
// replaced.
func (c *ProofChain) Extend(user *AuthenticatedIdentity, degree int,
	proofBytes []byte, precedingID string) (*DegreeProof, error) {
	if degree < 2 {
		return nil, ErrMalformedMessage
	}
	preceding, err := getProof(c.db, precedingID)
	if notFound(c.db, err) {
		return nil, ErrPrecedingNotFound
	}
	if err != nil {
		return nil, ErrInternalServer
	}
	if preceding.Retired || preceding.Degree != degree-1 {
		return nil, ErrPrecedingNotFound
	}
	if _, err := getEdgeBetween(c.db, preceding.UserID, user.Identity().ID); err != nil {
		if notFound(c.db, err) {
			return nil, ErrRelationshipNotFound
		}
		return nil, ErrInternalServer
	}

	// Verification is CPU bound; it runs before any lock is taken.
	outputs, err := c.verifier.Verify(proofBytes, fold.StepsPerDegree*degree)
	if err != nil {
		return nil, ErrProofInvalid
	}
	phraseHash := outputs.PhraseHash()
	authHash := outputs.AuthHash()
	if !bytes.Equal(phraseHash[:], preceding.PhraseHash) {
		return nil, ErrProofInvalid
	}

	proof := &DegreeProof{
		ID:         newRecordID(),
		PhraseHash: phraseHash[:],
		AuthHash:   authHash[:],
		UserID:     user.Identity().ID,
		Degree:     degree,
		Proof:      proofBytes,
		Preceding:  precedingID,
		Proceeding: []string{},
	}
	return c.admit(proof)
}

// admit links the verified proof into the DAG under the phrase
// critical section and commits every mutation in one batch: the new
// record, the live index, the predecessor's proceeding list, the
// retirement of any replaced proof, and the owner's back-reference
// list.
func (c *ProofChain) admit(proof *DegreeProof) (*DegreeProof, error) {
	key := phraseLockKey(proof.PhraseHash)
	c.locks.lock(key)
	defer c.locks.unlock(key)

	// The pre-lock check of the predecessor raced against other
	// admissions on this phrase. Re-read it inside the critical
	// section so the proceeding-list append lands on the current
	// record and a concurrently retired predecessor is caught.
	var preceding *DegreeProof
	if proof.Preceding != "" {
		var err error
		preceding, err = getProof(c.db, proof.Preceding)
		if notFound(c.db, err) {
			return nil, ErrPrecedingNotFound
		}
		if err != nil {
			return nil, ErrInternalServer
		}
		if preceding.Retired || preceding.Degree != proof.Degree-1 {
			return nil, ErrPrecedingNotFound
		}
	}

	b := c.db.NewBatch()

	replacedID, err := liveProofID(c.db, proof.UserID, proof.PhraseHash)
	if err != nil {
		return nil, ErrInternalServer
	}
	if replacedID != "" {
		if err := c.retire(b, replacedID, preceding); err != nil {
			return nil, err
		}
	}

	if preceding != nil {
		preceding.Proceeding = append(preceding.Proceeding, proof.ID)
		if err := putRecord(b, proofKey(preceding.ID), preceding); err != nil {
			return nil, ErrInternalServer
		}
	}
	if err := putRecord(b, proofKey(proof.ID), proof); err != nil {
		return nil, ErrInternalServer
	}
	b.Put(liveIndexKey(proof.UserID, proof.PhraseHash), []byte(proof.ID))

	unlock := c.registry.lockIdentity(proof.UserID)
	defer unlock()
	err = c.registry.applyLocked(b, proof.UserID, func(identity *Identity) {
		identity.DegreeProofs = append(identity.DegreeProofs, proof.ID)
	})
	if err != nil {
		return nil, err
	}
	if err := c.db.Write(b); err != nil {
		return nil, ErrInternalServer
	}
	return proof, nil
}

// retire stages the replacement bookkeeping for the proof being
// superseded: mark it retired and remove it from its predecessor's
// proceeding list. When the old proof hangs off the same predecessor
// the new one extends, the shared in-memory record is edited so both
// changes land in one write.
func (c *ProofChain) retire(b kv.Batch, oldID string, newPreceding *DegreeProof) error {
	old, err := getProof(c.db, oldID)
	if err != nil {
		return ErrInternalServer
	}
	old.Retired = true
	if err := putRecord(b, proofKey(old.ID), old); err != nil {
		return ErrInternalServer
	}
	if old.Preceding == "" {
		return nil
	}
	pred := newPreceding
	if pred == nil || pred.ID != old.Preceding {
		pred, err = getProof(c.db, old.Preceding)
		if err != nil {
			return ErrInternalServer
		}
	}
	pred.Proceeding = removeString(pred.Proceeding, old.ID)
	if pred != newPreceding {
		if err := putRecord(b, proofKey(pred.ID), pred); err != nil {
			return ErrInternalServer
		}
	}
	return nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// AvailableProofs returns the chain-growth frontier of the user: every
// live proof owned by someone holding a relationship edge to the user,
// on a phrase the user has not already proven. These are the
// candidates the user may extend from.
func (c *ProofChain) AvailableProofs(username string) ([]string, error) {
	identity, err := c.registry.Lookup(username)
	if err != nil {
		return nil, err
	}
	available := []string{}
	err = forEachEdgeTo(c.db, identity.ID, func(senderID string) error {
		return forEachLiveProof(c.db, senderID, func(proofID, phraseHex string) error {
			_, err := c.db.Get([]byte(liveIndexPrefix + identity.ID + "/" + phraseHex))
			if err == nil {
				// The user already holds a live proof on this phrase.
				return nil
			}
			if !notFound(c.db, err) {
				return ErrInternalServer
			}
			available = append(available, proofID)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return available, nil
}

// ProofBundle collects everything the requesting user needs to build
// the next-degree proof from the given predecessor: the compressed
// proof to fold from, its owner's username, and the encrypted auth
// secret from the owner's relationship edge to the requester.
func (c *ProofChain) ProofBundle(username, proofID string) (*ProvingBundle, error) {
	identity, err := c.registry.Lookup(username)
	if err != nil {
		return nil, err
	}
	proof, err := getProof(c.db, proofID)
	if notFound(c.db, err) {
		return nil, ErrProofNotFound
	}
	if err != nil {
		return nil, ErrInternalServer
	}
	if proof.Retired {
		return nil, ErrProofNotFound
	}
	edge, err := getEdgeBetween(c.db, proof.UserID, identity.ID)
	if notFound(c.db, err) {
		return nil, ErrRelationshipNotFound
	}
	if err != nil {
		return nil, ErrInternalServer
	}
	owner, err := getIdentityByID(c.db, proof.UserID)
	if err != nil {
		return nil, ErrInternalServer
	}
	return &ProvingBundle{
		Degree:       proof.Degree,
		Proof:        proof.Proof,
		Username:     owner.Username,
		EphemeralKey: edge.EphemeralKey,
		Ciphertext:   edge.Ciphertext,
	}, nil
}

// Degrees summarizes every live proof owned by the user across
// phrases.
func (c *ProofChain) Degrees(user *AuthenticatedIdentity) ([]DegreeData, error) {
	data := []DegreeData{}
	err := forEachLiveProof(c.db, user.Identity().ID, func(proofID, phraseHex string) error {
		proof, err := getProof(c.db, proofID)
		if err != nil {
			return ErrInternalServer
		}
		data = append(data, DegreeData{
			ProofID:    proof.ID,
			Degree:     proof.Degree,
			PhraseHash: proof.PhraseHash,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
