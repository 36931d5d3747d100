package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/barryWhiteHat/Grapevine/crypto"
)

func registerTestAccount(t *testing.T, g *Grapevine, username string) *TestAccount {
	t.Helper()
	account := NewTestAccount(username)
	if err := g.Register(account.RegistrationRequest()); err != nil {
		t.Fatalf("register %v: %v", username, err)
	}
	return account
}

func TestRegisterAndLookup(t *testing.T) {
	g, _ := NewTestGrapevine()
	alice := registerTestAccount(t, g, "alice")

	identity, err := g.LookupIdentity("alice")
	if err != nil {
		t.Fatal(err)
	}
	if identity.Username != "alice" {
		t.Errorf("got username %v", identity.Username)
	}
	if !bytes.Equal(identity.PublicKey, alice.PublicKey) {
		t.Error("stored public key differs from the registered one")
	}
	if identity.Nonce != 0 {
		t.Errorf("fresh identity has nonce %v", identity.Nonce)
	}

	key, err := g.PublicKey("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key, alice.PublicKey) {
		t.Error("PublicKey returned wrong key")
	}
}

func TestRegisterConflicts(t *testing.T) {
	g, _ := NewTestGrapevine()
	alice := registerTestAccount(t, g, "alice")

	// Same username and key.
	if err := g.Register(alice.RegistrationRequest()); err != ErrIdentityExists {
		t.Errorf("same identity: got %v, want %v", err, ErrIdentityExists)
	}

	// Same username, different key.
	impostor := NewTestAccount("impostor")
	req := impostor.RegistrationRequest()
	req.Username = "alice"
	scalar := crypto.UsernameScalar("alice")
	req.Signature = impostor.signKey.Sign(scalar[:])
	if err := g.Register(req); err != ErrUsernameExists {
		t.Errorf("taken username: got %v, want %v", err, ErrUsernameExists)
	}

	// Different username, same key.
	req = alice.RegistrationRequest()
	req.Username = "alice2"
	scalar = crypto.UsernameScalar("alice2")
	req.Signature = alice.signKey.Sign(scalar[:])
	if err := g.Register(req); err != ErrPubkeyExists {
		t.Errorf("taken pubkey: got %v, want %v", err, ErrPubkeyExists)
	}
}

func TestRegisterRejectsBadUsernames(t *testing.T) {
	g, _ := NewTestGrapevine()

	long := NewTestAccount(strings.Repeat("a", MaxUsernameChars+1))
	if err := g.Register(long.RegistrationRequest()); err != ErrUsernameTooLong {
		t.Errorf("long username: got %v, want %v", err, ErrUsernameTooLong)
	}

	// Exactly at the limit is fine.
	limit := NewTestAccount(strings.Repeat("a", MaxUsernameChars))
	if err := g.Register(limit.RegistrationRequest()); err != nil {
		t.Errorf("username at limit rejected: %v", err)
	}

	utf8name := NewTestAccount("héloïse")
	if err := g.Register(utf8name.RegistrationRequest()); err != ErrUsernameNotAscii {
		t.Errorf("non-ascii username: got %v, want %v", err, ErrUsernameNotAscii)
	}

	empty := NewTestAccount("")
	if err := g.Register(empty.RegistrationRequest()); err != ErrMalformedMessage {
		t.Errorf("empty username: got %v, want %v", err, ErrMalformedMessage)
	}
}

func TestRegisterRejectsBadSignature(t *testing.T) {
	g, _ := NewTestGrapevine()
	alice := NewTestAccount("alice")
	mallory := NewTestAccount("mallory")

	req := alice.RegistrationRequest()
	scalar := crypto.UsernameScalar("alice")
	req.Signature = mallory.signKey.Sign(scalar[:])
	if err := g.Register(req); err != ErrInvalidSignature {
		t.Errorf("foreign signature: got %v, want %v", err, ErrInvalidSignature)
	}

	req = alice.RegistrationRequest()
	req.PublicKey = req.PublicKey[:16]
	if err := g.Register(req); err != ErrMalformedMessage {
		t.Errorf("short key: got %v, want %v", err, ErrMalformedMessage)
	}
}

func TestNonceDisclosure(t *testing.T) {
	g, _ := NewTestGrapevine()
	alice := registerTestAccount(t, g, "alice")

	resp, err := g.Nonce(alice.NonceRequest())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Nonce != 0 {
		t.Errorf("got nonce %v, want 0", resp.Nonce)
	}
	if !bytes.Equal(resp.PublicKey, alice.PublicKey) {
		t.Error("nonce response carries wrong key")
	}

	if err := g.AuthProbe(alice.Credential()); err != nil {
		t.Fatal(err)
	}
	resp, err = g.Nonce(alice.NonceRequest())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Nonce != 1 {
		t.Errorf("got nonce %v after one use, want 1", resp.Nonce)
	}

	// Only the key holder learns the counter.
	mallory := NewTestAccount("mallory")
	req := alice.NonceRequest()
	scalar := crypto.UsernameScalar("alice")
	req.Signature = mallory.signKey.Sign(scalar[:])
	if _, err := g.Nonce(req); err != ErrInvalidSignature {
		t.Errorf("foreign nonce query: got %v, want %v", err, ErrInvalidSignature)
	}
}

func TestLookupUnknownUser(t *testing.T) {
	g, _ := NewTestGrapevine()
	if _, err := g.LookupIdentity("nobody"); err != ErrIdentityNotFound {
		t.Errorf("got %v, want %v", err, ErrIdentityNotFound)
	}
	if _, err := g.PublicKey("nobody"); err != ErrIdentityNotFound {
		t.Errorf("got %v, want %v", err, ErrIdentityNotFound)
	}
}
