package protocol

import "encoding/json"

// The types of requests a client can send to a Grapevine server.
const (
	RegistrationType = iota
	GetNonceType
	GetPubkeyType
	LookupIdentityType
	AddRelationshipType
	CreateOriginType
	ExtendProofType
	AvailableProofsType
	ProofBundleType
	DegreesType
	AuthProbeType
	HealthType
)

// A Request is a message a client sends to the server. Type sets the
// interpretation of the Request payload. Authorization carries the
// "<username>-<nonce>" credential for guarded operations; Signature is
// the caller's signature over the credential message for operations
// authenticated without consuming the nonce.
type Request struct {
	Type          int
	Authorization string          `json:",omitempty"`
	Signature     []byte          `json:",omitempty"`
	Request       json.RawMessage `json:",omitempty"`
}

// A Response is the server's reply. Error is ReqSuccess on success;
// Result carries the type-specific payload, if any.
type Response struct {
	Error  ErrorCode
	Result interface{} `json:",omitempty"`
}

// NewErrorResponse returns a Response carrying only an error code.
func NewErrorResponse(e ErrorCode) *Response {
	return &Response{Error: e}
}

// A RegistrationRequest binds Username to the 64-byte compound
// PublicKey. Signature is by the key's signing half over the username
// scalar; it proves possession of the key.
type RegistrationRequest struct {
	Username  string `json:"username"`
	PublicKey []byte `json:"pubkey"`
	Signature []byte `json:"signature"`
}

// A GetNonceRequest asks for the caller's current nonce. Signature is
// over the username scalar, so only the key holder learns the counter.
type GetNonceRequest struct {
	Username  string `json:"username"`
	Signature []byte `json:"signature"`
}

// A NonceResponse returns the stored replay counter and the public key
// it is bound to.
type NonceResponse struct {
	Nonce     uint64 `json:"nonce"`
	PublicKey []byte `json:"pubkey"`
}

// A LookupRequest resolves a username. The same payload serves pubkey
// lookups and full identity lookups.
type LookupRequest struct {
	Username string `json:"username"`
}

// An AddRelationshipRequest creates the caller's edge to the named
// recipient. EphemeralKey and Ciphertext carry the caller's auth
// secret, encrypted to the recipient's agreement key.
type AddRelationshipRequest struct {
	To           string `json:"to"`
	EphemeralKey []byte `json:"ephemeral_key"`
	Ciphertext   []byte `json:"ciphertext"`
}

// A CreateOriginRequest submits the caller's degree-1 proof of a new
// phrase.
type CreateOriginRequest struct {
	Proof []byte `json:"proof"`
}

// An ExtendProofRequest submits a proof of the given degree built from
// the live proof Previous.
type ExtendProofRequest struct {
	Proof    []byte `json:"proof"`
	Previous string `json:"previous"`
	Degree   int    `json:"degree"`
}

// A ProofBundleRequest asks for the proving material of one proof
// available to Username.
type ProofBundleRequest struct {
	Username string `json:"username"`
	ProofID  string `json:"proof"`
}

// A ProvingBundle is everything needed to extend a proof by one
// degree: the predecessor proof and its owner, plus the encrypted auth
// secret from the owner's relationship edge to the requester.
type ProvingBundle struct {
	Degree       int    `json:"degree"`
	Proof        []byte `json:"proof"`
	Username     string `json:"username"`
	EphemeralKey []byte `json:"ephemeral_key"`
	Ciphertext   []byte `json:"ciphertext"`
}

// DegreeData summarizes one live proof of the caller.
type DegreeData struct {
	ProofID    string `json:"proof"`
	Degree     int    `json:"degree"`
	PhraseHash []byte `json:"phrase_hash"`
}
