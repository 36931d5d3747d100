package server

import (
	"encoding/json"

	"github.com/barryWhiteHat/Grapevine/protocol"
)

func decodePayload(req *protocol.Request, out interface{}) error {
	if req.Request == nil {
		return protocol.ErrMalformedMessage
	}
	if err := json.Unmarshal(req.Request, out); err != nil {
		return protocol.ErrMalformedMessage
	}
	return nil
}

func errorResponse(err error) *protocol.Response {
	// A nonce mismatch is disclosed with the expected counter so a
	// legitimate client can resynchronize without another round trip.
	if mismatch, ok := err.(*protocol.NonceMismatch); ok {
		return &protocol.Response{Error: protocol.ErrNonceMismatch, Result: mismatch}
	}
	return protocol.NewErrorResponse(protocol.CodeOf(err))
}

func resultResponse(result interface{}, err error) *protocol.Response {
	if err != nil {
		return errorResponse(err)
	}
	return &protocol.Response{Error: protocol.ReqSuccess, Result: result}
}

// handleRequest dispatches a decoded envelope to the protocol
// operation matching its type.
func (server *GrapevineServer) handleRequest(req *protocol.Request) *protocol.Response {
	switch req.Type {
	case protocol.RegistrationType:
		reg := new(protocol.RegistrationRequest)
		if err := decodePayload(req, reg); err != nil {
			return malformedClientMsg(err)
		}
		return errorResponse(server.grapevine.Register(reg))

	case protocol.GetNonceType:
		inner := new(protocol.GetNonceRequest)
		if err := decodePayload(req, inner); err != nil {
			return malformedClientMsg(err)
		}
		resp, err := server.grapevine.Nonce(inner)
		return resultResponse(resp, err)

	case protocol.GetPubkeyType:
		inner := new(protocol.LookupRequest)
		if err := decodePayload(req, inner); err != nil {
			return malformedClientMsg(err)
		}
		key, err := server.grapevine.PublicKey(inner.Username)
		return resultResponse(key, err)

	case protocol.LookupIdentityType:
		inner := new(protocol.LookupRequest)
		if err := decodePayload(req, inner); err != nil {
			return malformedClientMsg(err)
		}
		identity, err := server.grapevine.LookupIdentity(inner.Username)
		return resultResponse(identity, err)

	case protocol.AddRelationshipType:
		inner := new(protocol.AddRelationshipRequest)
		if err := decodePayload(req, inner); err != nil {
			return malformedClientMsg(err)
		}
		return errorResponse(server.grapevine.AddRelationship(req.Authorization, req.Signature, inner))

	case protocol.CreateOriginType:
		inner := new(protocol.CreateOriginRequest)
		if err := decodePayload(req, inner); err != nil {
			return malformedClientMsg(err)
		}
		proof, err := server.grapevine.CreateOrigin(req.Authorization, inner)
		return resultResponse(proof, err)

	case protocol.ExtendProofType:
		inner := new(protocol.ExtendProofRequest)
		if err := decodePayload(req, inner); err != nil {
			return malformedClientMsg(err)
		}
		proof, err := server.grapevine.ExtendProof(req.Authorization, inner)
		return resultResponse(proof, err)

	case protocol.AvailableProofsType:
		inner := new(protocol.LookupRequest)
		if err := decodePayload(req, inner); err != nil {
			return malformedClientMsg(err)
		}
		available, err := server.grapevine.AvailableProofs(inner.Username)
		return resultResponse(available, err)

	case protocol.ProofBundleType:
		inner := new(protocol.ProofBundleRequest)
		if err := decodePayload(req, inner); err != nil {
			return malformedClientMsg(err)
		}
		bundle, err := server.grapevine.ProofBundle(inner)
		return resultResponse(bundle, err)

	case protocol.DegreesType:
		degrees, err := server.grapevine.Degrees(req.Authorization, req.Signature)
		return resultResponse(degrees, err)

	case protocol.AuthProbeType:
		return errorResponse(server.grapevine.AuthProbe(req.Authorization))

	case protocol.HealthType:
		return protocol.NewErrorResponse(protocol.ReqSuccess)

	default:
		server.logger.Warn("Unknown message type", "request type", req.Type)
		return malformedClientMsg(nil)
	}
}
