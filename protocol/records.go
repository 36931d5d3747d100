// Defines the persisted record types of the trust-chain protocol and
// their key layout in the underlying key-value store. Records are
// stored as JSON values under short type prefixes; secondary index
// keys map usernames, public keys, relationship pairs and live proofs
// back to record ids.

package protocol

import (
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/barryWhiteHat/Grapevine/storage/kv"
)

// An Identity binds a username to a public key. Nonce is the replay
// counter consumed by the authentication guard; Relationships and
// DegreeProofs are back-references kept for query convenience, the
// ledger and the chain store remain the source of truth.
type Identity struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	PublicKey     []byte   `json:"pubkey"`
	Nonce         uint64   `json:"nonce"`
	Relationships []string `json:"relationships"`
	DegreeProofs  []string `json:"degree_proofs"`
}

// A RelationshipEdge records the sender's consent for the recipient to
// extend proof chains through them. Ciphertext holds the sender's auth
// secret encrypted so that only the recipient's private key, combined
// with EphemeralKey, can recover it. Edges are immutable once created.
type RelationshipEdge struct {
	ID           string `json:"id"`
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	EphemeralKey []byte `json:"ephemeral_key"`
	Ciphertext   []byte `json:"ciphertext"`
}

// A DegreeProof is one node of the proof DAG. Preceding is empty for a
// degree-1 (origin) proof. A retired proof has been replaced by a newer
// proof of the same (user, phrase) pair; it stays in the store so its
// children's Preceding references keep resolving, but it is excluded
// from every live query.
type DegreeProof struct {
	ID         string   `json:"id"`
	PhraseHash []byte   `json:"phrase_hash"`
	AuthHash   []byte   `json:"auth_hash"`
	UserID     string   `json:"user"`
	Degree     int      `json:"degree"`
	Proof      []byte   `json:"proof"`
	Preceding  string   `json:"preceding,omitempty"`
	Proceeding []string `json:"proceeding"`
	Retired    bool     `json:"retired,omitempty"`
}

// Key layout. All ids are uuid strings; phrase hashes are hex encoded
// inside keys.
const (
	identityPrefix  = "i/"
	nameIndexPrefix = "in/"
	keyIndexPrefix  = "ik/"
	edgePrefix      = "r/"
	pairIndexPrefix = "rp/"
	edgeToPrefix    = "rt/"
	proofPrefix     = "p/"
	liveIndexPrefix = "pl/"
)

func newRecordID() string { return uuid.NewString() }

func identityKey(id string) []byte        { return []byte(identityPrefix + id) }
func nameIndexKey(username string) []byte { return []byte(nameIndexPrefix + username) }
func keyIndexKey(publicKey []byte) []byte {
	return []byte(keyIndexPrefix + hex.EncodeToString(publicKey))
}

func edgeKey(id string) []byte { return []byte(edgePrefix + id) }
func pairIndexKey(senderID, recipientID string) []byte {
	return []byte(pairIndexPrefix + senderID + "/" + recipientID)
}
func edgeToKey(recipientID, edgeID string) []byte {
	return []byte(edgeToPrefix + recipientID + "/" + edgeID)
}

func proofKey(id string) []byte { return []byte(proofPrefix + id) }
func liveIndexKey(userID string, phraseHash []byte) []byte {
	return []byte(liveIndexPrefix + userID + "/" + hex.EncodeToString(phraseHash))
}

func notFound(db kv.DB, err error) bool {
	return errors.Is(err, db.ErrNotFound())
}

func getRecord(db kv.DB, key []byte, out interface{}) error {
	buf, err := db.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

func putRecord(b kv.Batch, key []byte, rec interface{}) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b.Put(key, buf)
	return nil
}

func getIdentityByID(db kv.DB, id string) (*Identity, error) {
	identity := new(Identity)
	if err := getRecord(db, identityKey(id), identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func getIdentityByName(db kv.DB, username string) (*Identity, error) {
	id, err := db.Get(nameIndexKey(username))
	if err != nil {
		return nil, err
	}
	return getIdentityByID(db, string(id))
}

func getEdge(db kv.DB, id string) (*RelationshipEdge, error) {
	edge := new(RelationshipEdge)
	if err := getRecord(db, edgeKey(id), edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// getEdgeBetween resolves the pair index sender->recipient to the edge
// record itself.
func getEdgeBetween(db kv.DB, senderID, recipientID string) (*RelationshipEdge, error) {
	id, err := db.Get(pairIndexKey(senderID, recipientID))
	if err != nil {
		return nil, err
	}
	return getEdge(db, string(id))
}

func getProof(db kv.DB, id string) (*DegreeProof, error) {
	proof := new(DegreeProof)
	if err := getRecord(db, proofKey(id), proof); err != nil {
		return nil, err
	}
	return proof, nil
}

// liveProofID returns the id of the live proof for (userID, phraseHash),
// or "" if the user holds none.
func liveProofID(db kv.DB, userID string, phraseHash []byte) (string, error) {
	id, err := db.Get(liveIndexKey(userID, phraseHash))
	if notFound(db, err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// forEachEdgeTo walks every relationship edge whose recipient is
// recipientID and passes the sender id to fn. Iteration stops on the
// first error.
func forEachEdgeTo(db kv.DB, recipientID string, fn func(senderID string) error) error {
	prefix := []byte(edgeToPrefix + recipientID + "/")
	it := db.NewIterator(kv.BytesPrefix(prefix))
	defer it.Release()
	for it.Next() {
		if err := fn(string(it.Value())); err != nil {
			return err
		}
	}
	return it.Error()
}

// forEachLiveProof walks the live proof index of userID, passing each
// proof id and the hex-encoded phrase hash from the index key.
func forEachLiveProof(db kv.DB, userID string, fn func(proofID, phraseHex string) error) error {
	prefix := []byte(liveIndexPrefix + userID + "/")
	it := db.NewIterator(kv.BytesPrefix(prefix))
	defer it.Release()
	for it.Next() {
		phraseHex := string(it.Key()[len(prefix):])
		if err := fn(string(it.Value()), phraseHex); err != nil {
			return err
		}
	}
	return it.Error()
}
