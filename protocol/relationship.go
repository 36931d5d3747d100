// This module implements the relationship ledger: unidirectional trust
// edges carrying an encrypted auth secret. The sender encrypts the
// secret to the recipient under an ephemeral key before the request
// ever reaches the server, so the ledger stores and serves the
// (ephemeral key, ciphertext) pair without ever seeing the plaintext.

package protocol

import (
	"github.com/barryWhiteHat/Grapevine/crypto/agree"
	"github.com/barryWhiteHat/Grapevine/storage/kv"
)

// A RelationshipLedger stores trust edges between identities.
type RelationshipLedger struct {
	db       kv.DB
	registry *Registry
}

// NewRelationshipLedger creates a ledger sharing the registry's store.
func NewRelationshipLedger(db kv.DB, registry *Registry) *RelationshipLedger {
	return &RelationshipLedger{db: db, registry: registry}
}

// Add records the sender's consent for recipientName to extend proof
// chains through them. The edge id is appended to both identities'
// relationship lists. A second edge between the same ordered pair is
// rejected; trust in the opposite direction is a separate edge.
func (l *RelationshipLedger) Add(sender *AuthenticatedIdentity, recipientName string,
	ephemeralKey, ciphertext []byte) (*RelationshipEdge, error) {
	if sender.Identity().Username == recipientName {
		return nil, ErrSenderIsRecipient
	}
	if len(ephemeralKey) != agree.KeySize || len(ciphertext) == 0 {
		return nil, ErrMalformedMessage
	}
	recipient, err := l.registry.Lookup(recipientName)
	if err != nil {
		return nil, err
	}
	senderID := sender.Identity().ID

	// The duplicate check and the insert run inside both identities'
	// critical sections so concurrent adds of the same pair cannot
	// both pass.
	unlock := l.registry.lockPair(senderID, recipient.ID)
	defer unlock()

	_, err = l.db.Get(pairIndexKey(senderID, recipient.ID))
	if err == nil {
		return nil, ErrRelationshipExists
	}
	if !notFound(l.db, err) {
		return nil, ErrInternalServer
	}

	edge := &RelationshipEdge{
		ID:           newRecordID(),
		Sender:       senderID,
		Recipient:    recipient.ID,
		EphemeralKey: ephemeralKey,
		Ciphertext:   ciphertext,
	}
	b := l.db.NewBatch()
	if err := putRecord(b, edgeKey(edge.ID), edge); err != nil {
		return nil, ErrInternalServer
	}
	b.Put(pairIndexKey(senderID, recipient.ID), []byte(edge.ID))
	b.Put(edgeToKey(recipient.ID, edge.ID), []byte(senderID))

	appendEdge := func(identity *Identity) {
		identity.Relationships = append(identity.Relationships, edge.ID)
	}
	if err := l.registry.applyLocked(b, senderID, appendEdge); err != nil {
		return nil, err
	}
	if err := l.registry.applyLocked(b, recipient.ID, appendEdge); err != nil {
		return nil, err
	}
	if err := l.db.Write(b); err != nil {
		return nil, ErrInternalServer
	}
	return edge, nil
}

// SecretFor returns the key-agreement material of the edge: the
// ephemeral public key and the ciphertext the recipient decrypts
// locally. Only the edge's recipient may fetch it.
func (l *RelationshipLedger) SecretFor(recipient *AuthenticatedIdentity, edgeID string) ([]byte, []byte, error) {
	edge, err := getEdge(l.db, edgeID)
	if notFound(l.db, err) {
		return nil, nil, ErrRelationshipNotFound
	}
	if err != nil {
		return nil, nil, ErrInternalServer
	}
	if edge.Recipient != recipient.Identity().ID {
		return nil, nil, ErrRelationshipNotFound
	}
	return edge.EphemeralKey, edge.Ciphertext, nil
}
