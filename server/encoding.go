// Defines methods/functions to encode/decode messages between client
// and server. Currently this module supports JSON marshal/unmarshal
// only.

package server

import (
	"encoding/json"

	"github.com/barryWhiteHat/Grapevine/protocol"
)

// UnmarshalRequest parses a JSON-encoded request msg into the
// corresponding protocol.Request. The inner payload stays raw; the
// handler decodes it once the request type is known.
func UnmarshalRequest(msg []byte) (*protocol.Request, error) {
	req := new(protocol.Request)
	if err := json.Unmarshal(msg, req); err != nil {
		return nil, err
	}
	return req, nil
}

// MarshalResponse returns a JSON encoding of the server's response.
func MarshalResponse(response *protocol.Response) ([]byte, error) {
	return json.Marshal(response)
}

func malformedClientMsg(err error) *protocol.Response {
	// check if we're just propagating a message
	if err == nil {
		err = protocol.ErrMalformedMessage
	}
	return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
}
