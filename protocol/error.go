// Defines constants representing the classes
// of errors that the server may return to a client.

package protocol

import "fmt"

type ErrorCode int

const (
	ReqSuccess ErrorCode = 10 + iota
	ErrInternalServer
	ErrMalformedMessage
	ErrMalformedCredential
	ErrIdentityNotFound
	ErrNonceMismatch
	ErrInvalidSignature
	ErrUsernameTooLong
	ErrUsernameNotAscii
	ErrUsernameExists
	ErrPubkeyExists
	ErrIdentityExists
	ErrSenderIsRecipient
	ErrRelationshipExists
	ErrRelationshipNotFound
	ErrProofNotFound
	ErrPrecedingNotFound
	ErrProofInvalid
)

var errorMessages = map[ErrorCode]string{
	ErrInternalServer:       "[grapevine] Internal server error",
	ErrMalformedMessage:     "[grapevine] Malformed client request",
	ErrMalformedCredential:  "[grapevine] Malformed authorization credential",
	ErrIdentityNotFound:     "[grapevine] Identity is not registered",
	ErrNonceMismatch:        "[grapevine] Incorrect nonce provided",
	ErrInvalidSignature:     "[grapevine] Signature by pubkey does not match given message",
	ErrUsernameTooLong:      "[grapevine] Username exceeds limit of 30 characters",
	ErrUsernameNotAscii:     "[grapevine] Username must only contain ascii characters",
	ErrUsernameExists:       "[grapevine] Username is already registered",
	ErrPubkeyExists:         "[grapevine] Public key is already registered",
	ErrIdentityExists:       "[grapevine] Username and public key are already registered",
	ErrSenderIsRecipient:    "[grapevine] Relationship sender is the recipient",
	ErrRelationshipExists:   "[grapevine] Relationship already exists",
	ErrRelationshipNotFound: "[grapevine] Relationship does not exist",
	ErrProofNotFound:        "[grapevine] Degree proof does not exist",
	ErrPrecedingNotFound:    "[grapevine] Preceding degree proof does not exist",
	ErrProofInvalid:         "[grapevine] Proof verification failed",
}

// Error implements the error interface, so an ErrorCode doubles as the
// error value for failures that carry no extra data.
func (e ErrorCode) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return errorMessages[ErrInternalServer]
}

// A NonceMismatch reports a failed nonce comparison. Expected is the
// counter currently stored by the server; a legitimate client uses it
// to resynchronize.
type NonceMismatch struct {
	Expected uint64
	Received uint64
}

func (e *NonceMismatch) Error() string {
	return fmt.Sprintf("[grapevine] Incorrect nonce provided. Expected %d and received %d",
		e.Expected, e.Received)
}

// CodeOf maps an error returned by any core operation to the ErrorCode
// reported on the wire.
func CodeOf(err error) ErrorCode {
	switch e := err.(type) {
	case nil:
		return ReqSuccess
	case ErrorCode:
		return e
	case *NonceMismatch:
		return ErrNonceMismatch
	default:
		return ErrInternalServer
	}
}
