package client

import (
	"bytes"
	"testing"

	"github.com/barryWhiteHat/Grapevine/crypto"
)

func TestAccountCredentialSequence(t *testing.T) {
	account, err := NewAccountFromSeed("alice", []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	if got := account.NextCredential(); got != "alice-0" {
		t.Errorf("got %q, want alice-0", got)
	}
	if got := account.NextCredential(); got != "alice-1" {
		t.Errorf("got %q, want alice-1", got)
	}
	credential, signature := account.NextSignedCredential()
	if credential != "alice-2" {
		t.Errorf("got %q, want alice-2", credential)
	}
	if len(signature) == 0 {
		t.Error("signed credential carries no signature")
	}
	account.SyncNonce(7)
	if got := account.NextCredential(); got != "alice-7" {
		t.Errorf("after sync got %q, want alice-7", got)
	}
}

func TestAccountFromSeedDeterministic(t *testing.T) {
	a, err := NewAccountFromSeed("alice", []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewAccountFromSeed("alice", []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.PublicKey, b.PublicKey) {
		t.Error("same seed produced different keys")
	}
	if !bytes.Equal(a.AuthSecret(), b.AuthSecret()) {
		t.Error("same seed produced different auth secrets")
	}
	c, err := NewAccountFromSeed("alice", []byte("other"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.PublicKey, c.PublicKey) {
		t.Error("different seeds produced the same keys")
	}
}

func TestAccountCompoundKeyLayout(t *testing.T) {
	account, err := NewAccount("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(account.PublicKey) != crypto.PublicKeySize {
		t.Fatalf("compound key is %v bytes", len(account.PublicKey))
	}
	if _, err := crypto.SignKey(account.PublicKey); err != nil {
		t.Error(err)
	}
	if _, err := crypto.AgreeKey(account.PublicKey); err != nil {
		t.Error(err)
	}
}

func TestAccountSealOpenAuthSecret(t *testing.T) {
	alice, err := NewAccount("alice")
	if err != nil {
		t.Fatal(err)
	}
	bob, err := NewAccount("bob")
	if err != nil {
		t.Fatal(err)
	}

	ephemeralKey, ciphertext, err := alice.SealAuthSecret(bob.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	secret, err := bob.OpenAuthSecret(ephemeralKey, ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secret, alice.AuthSecret()) {
		t.Error("recovered secret differs")
	}

	// Someone else's key cannot open it.
	carol, err := NewAccount("carol")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := carol.OpenAuthSecret(ephemeralKey, ciphertext); err == nil {
		t.Error("foreign key opened the secret")
	}
}
