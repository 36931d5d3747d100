// Defines methods/functions to encode/decode messages between client
// and server. Currently this module supports JSON marshal/unmarshal
// only.

package client

import (
	"encoding/json"

	"github.com/barryWhiteHat/Grapevine/protocol"
)

// MarshalRequest returns a JSON encoding of a request envelope for
// the given type, guard material and payload.
func MarshalRequest(reqType int, authorization string, signature []byte,
	payload interface{}) ([]byte, error) {
	req := &protocol.Request{
		Type:          reqType,
		Authorization: authorization,
		Signature:     signature,
	}
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req.Request = buf
	}
	return json.Marshal(req)
}

// UnmarshalResponse decodes the given message into a
// protocol.Response according to the request type t it answers. The
// Result field is decoded into the concrete type of that operation.
func UnmarshalResponse(t int, msg []byte) *protocol.Response {
	type rawResponse struct {
		Error  protocol.ErrorCode
		Result json.RawMessage
	}
	var raw rawResponse
	if err := json.Unmarshal(msg, &raw); err != nil {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
	}
	if raw.Result == nil {
		return protocol.NewErrorResponse(raw.Error)
	}
	if raw.Error == protocol.ErrNonceMismatch {
		mismatch := new(protocol.NonceMismatch)
		if err := json.Unmarshal(raw.Result, mismatch); err != nil {
			return protocol.NewErrorResponse(raw.Error)
		}
		return &protocol.Response{Error: raw.Error, Result: mismatch}
	}

	var result interface{}
	switch t {
	case protocol.GetNonceType:
		result = new(protocol.NonceResponse)
	case protocol.GetPubkeyType:
		result = new([]byte)
	case protocol.LookupIdentityType:
		result = new(protocol.Identity)
	case protocol.CreateOriginType, protocol.ExtendProofType:
		result = new(protocol.DegreeProof)
	case protocol.AvailableProofsType:
		result = new([]string)
	case protocol.ProofBundleType:
		result = new(protocol.ProvingBundle)
	case protocol.DegreesType:
		result = new([]protocol.DegreeData)
	default:
		return protocol.NewErrorResponse(raw.Error)
	}
	if err := json.Unmarshal(raw.Result, result); err != nil {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
	}
	return &protocol.Response{Error: raw.Error, Result: result}
}
