// Grapevine ties the registry, the relationship ledger and the proof
// chain together into the operation set a server exposes. Each method
// applies the operation's authentication guard before touching state:
// proof admissions and the probe consume the caller's nonce, the
// relationship and degree operations verify a signature over the
// credential, and lookups are public.

package protocol

import (
	"github.com/barryWhiteHat/Grapevine/fold"
	"github.com/barryWhiteHat/Grapevine/storage/kv"
)

type Grapevine struct {
	registry *Registry
	ledger   *RelationshipLedger
	chain    *ProofChain
}

func NewGrapevine(db kv.DB, verifier fold.Verifier) *Grapevine {
	registry := NewRegistry(db)
	return &Grapevine{
		registry: registry,
		ledger:   NewRelationshipLedger(db, registry),
		chain:    NewProofChain(db, registry, verifier),
	}
}

// Register creates the identity binding req.Username to req.PublicKey.
func (g *Grapevine) Register(req *RegistrationRequest) error {
	_, err := g.registry.Register(req.Username, req.PublicKey, req.Signature)
	return err
}

// Nonce returns the caller's replay counter without consuming it. The
// request signature keeps the counter private to the key holder.
func (g *Grapevine) Nonce(req *GetNonceRequest) (*NonceResponse, error) {
	nonce, publicKey, err := g.registry.Nonce(req.Username, req.Signature)
	if err != nil {
		return nil, err
	}
	return &NonceResponse{Nonce: nonce, PublicKey: publicKey}, nil
}

// PublicKey looks up the registered key of a username.
func (g *Grapevine) PublicKey(username string) ([]byte, error) {
	return g.registry.PublicKey(username)
}

// LookupIdentity returns the full identity record of a username.
func (g *Grapevine) LookupIdentity(username string) (*Identity, error) {
	return g.registry.Lookup(username)
}

// AddRelationship creates the authenticated caller's edge to
// req.To, carrying the encrypted auth secret.
func (g *Grapevine) AddRelationship(credential string, signature []byte, req *AddRelationshipRequest) error {
	sender, err := g.registry.AuthenticateSigned(credential, signature)
	if err != nil {
		return err
	}
	_, err = g.ledger.Add(sender, req.To, req.EphemeralKey, req.Ciphertext)
	return err
}

// CreateOrigin admits the authenticated caller's degree-1 proof,
// consuming one nonce.
func (g *Grapevine) CreateOrigin(credential string, req *CreateOriginRequest) (*DegreeProof, error) {
	user, err := g.registry.Authenticate(credential)
	if err != nil {
		return nil, err
	}
	return g.chain.CreateOrigin(user, req.Proof)
}

// ExtendProof admits the authenticated caller's higher-degree proof,
// consuming one nonce.
func (g *Grapevine) ExtendProof(credential string, req *ExtendProofRequest) (*DegreeProof, error) {
	user, err := g.registry.Authenticate(credential)
	if err != nil {
		return nil, err
	}
	return g.chain.Extend(user, req.Degree, req.Proof, req.Previous)
}

// AvailableProofs returns the ids of the proofs the user may extend.
func (g *Grapevine) AvailableProofs(username string) ([]string, error) {
	return g.chain.AvailableProofs(username)
}

// ProofBundle returns the proving material of one available proof.
func (g *Grapevine) ProofBundle(req *ProofBundleRequest) (*ProvingBundle, error) {
	return g.chain.ProofBundle(req.Username, req.ProofID)
}

// Degrees summarizes the authenticated caller's live proofs.
func (g *Grapevine) Degrees(credential string, signature []byte) ([]DegreeData, error) {
	user, err := g.registry.AuthenticateSigned(credential, signature)
	if err != nil {
		return nil, err
	}
	return g.chain.Degrees(user)
}

// AuthProbe consumes one nonce and does nothing else. It exists so
// clients and tests can exercise the replay guard in isolation.
func (g *Grapevine) AuthProbe(credential string) error {
	_, err := g.registry.Authenticate(credential)
	return err
}
