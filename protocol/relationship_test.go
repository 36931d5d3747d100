package protocol

import (
	"bytes"
	"testing"
)

// addTestEdge creates a sender -> recipient trust edge carrying the
// sender's sealed auth secret, consuming one of the sender's nonces.
func addTestEdge(t *testing.T, g *Grapevine, sender, recipient *TestAccount) *RelationshipEdge {
	t.Helper()
	ephemeralKey, ciphertext, err := sender.SealSecretTo(recipient.PublicKey, sender.AuthSecret())
	if err != nil {
		t.Fatal(err)
	}
	user, err := g.registry.Authenticate(sender.Credential())
	if err != nil {
		t.Fatal(err)
	}
	edge, err := g.ledger.Add(user, recipient.Username, ephemeralKey, ciphertext)
	if err != nil {
		t.Fatalf("add edge %v -> %v: %v", sender.Username, recipient.Username, err)
	}
	return edge
}

func TestAddRelationship(t *testing.T) {
	g, _ := NewTestGrapevine()
	alice := registerTestAccount(t, g, "alice")
	bob := registerTestAccount(t, g, "bob")

	edge := addTestEdge(t, g, alice, bob)

	// Both identities reference the edge.
	for _, username := range []string{"alice", "bob"} {
		identity, err := g.LookupIdentity(username)
		if err != nil {
			t.Fatal(err)
		}
		if len(identity.Relationships) != 1 || identity.Relationships[0] != edge.ID {
			t.Errorf("%v references %v, want [%v]", username, identity.Relationships, edge.ID)
		}
	}

	// Bob recovers alice's auth secret from the stored edge.
	recipient, err := g.registry.Authenticate(bob.Credential())
	if err != nil {
		t.Fatal(err)
	}
	ephemeralKey, ciphertext, err := g.ledger.SecretFor(recipient, edge.ID)
	if err != nil {
		t.Fatal(err)
	}
	secret, err := bob.OpenSecret(ephemeralKey, ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secret, alice.AuthSecret()) {
		t.Error("recovered secret differs from the sealed one")
	}
}

func TestAddRelationshipRejections(t *testing.T) {
	g, _ := NewTestGrapevine()
	alice := registerTestAccount(t, g, "alice")
	bob := registerTestAccount(t, g, "bob")

	ephemeralKey, ciphertext, err := alice.SealSecretTo(bob.PublicKey, alice.AuthSecret())
	if err != nil {
		t.Fatal(err)
	}

	auth := func() *AuthenticatedIdentity {
		user, err := g.registry.Authenticate(alice.Credential())
		if err != nil {
			t.Fatal(err)
		}
		return user
	}

	if _, err := g.ledger.Add(auth(), "alice", ephemeralKey, ciphertext); err != ErrSenderIsRecipient {
		t.Errorf("self edge: got %v, want %v", err, ErrSenderIsRecipient)
	}
	if _, err := g.ledger.Add(auth(), "nobody", ephemeralKey, ciphertext); err != ErrIdentityNotFound {
		t.Errorf("unknown recipient: got %v, want %v", err, ErrIdentityNotFound)
	}
	if _, err := g.ledger.Add(auth(), "bob", ephemeralKey[:8], ciphertext); err != ErrMalformedMessage {
		t.Errorf("short ephemeral key: got %v, want %v", err, ErrMalformedMessage)
	}
	if _, err := g.ledger.Add(auth(), "bob", ephemeralKey, nil); err != ErrMalformedMessage {
		t.Errorf("empty ciphertext: got %v, want %v", err, ErrMalformedMessage)
	}

	if _, err := g.ledger.Add(auth(), "bob", ephemeralKey, ciphertext); err != nil {
		t.Fatal(err)
	}
	// A second alice -> bob edge is rejected; bob -> alice is distinct.
	if _, err := g.ledger.Add(auth(), "bob", ephemeralKey, ciphertext); err != ErrRelationshipExists {
		t.Errorf("duplicate edge: got %v, want %v", err, ErrRelationshipExists)
	}
	addTestEdge(t, g, bob, alice)
}

func TestSecretForWrongRecipient(t *testing.T) {
	g, _ := NewTestGrapevine()
	alice := registerTestAccount(t, g, "alice")
	bob := registerTestAccount(t, g, "bob")
	carol := registerTestAccount(t, g, "carol")

	edge := addTestEdge(t, g, alice, bob)

	eve, err := g.registry.Authenticate(carol.Credential())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := g.ledger.SecretFor(eve, edge.ID); err != ErrRelationshipNotFound {
		t.Errorf("foreign fetch: got %v, want %v", err, ErrRelationshipNotFound)
	}
	if _, _, err := g.ledger.SecretFor(eve, "no-such-edge"); err != ErrRelationshipNotFound {
		t.Errorf("unknown edge: got %v, want %v", err, ErrRelationshipNotFound)
	}
}
