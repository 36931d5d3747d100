package server

import (
	"encoding/json"
	"path"
	"testing"

	"github.com/barryWhiteHat/Grapevine/fold"
	"github.com/barryWhiteHat/Grapevine/logger"
	"github.com/barryWhiteHat/Grapevine/protocol"
	"github.com/barryWhiteHat/Grapevine/server/testutil"
	"github.com/barryWhiteHat/Grapevine/storage/kv/memkv"
)

func newTestServer(t *testing.T) (*GrapevineServer, *fold.DevProver) {
	t.Helper()
	var params fold.Params
	db := memkv.New()
	grapevine := protocol.NewGrapevine(db, fold.NewDevVerifier(params))
	return newServer(grapevine, db, logger.New(nil)), fold.NewDevProver(params)
}

func makeRequest(t *testing.T, reqType int, payload interface{}) *protocol.Request {
	t.Helper()
	req := &protocol.Request{Type: reqType}
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		req.Request = buf
	}
	return req
}

func TestUnmarshalMalformedRequest(t *testing.T) {
	if _, err := UnmarshalRequest([]byte("not json")); err == nil {
		t.Fatal("malformed envelope accepted")
	}
}

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t)
	res := server.handleRequest(&protocol.Request{Type: protocol.HealthType})
	if res.Error != protocol.ReqSuccess {
		t.Errorf("got %v", res.Error)
	}
}

func TestHandleUnknownType(t *testing.T) {
	server, _ := newTestServer(t)
	res := server.handleRequest(&protocol.Request{Type: 999})
	if res.Error != protocol.ErrMalformedMessage {
		t.Errorf("got %v, want %v", res.Error, protocol.ErrMalformedMessage)
	}
}

func TestHandleMissingPayload(t *testing.T) {
	server, _ := newTestServer(t)
	res := server.handleRequest(&protocol.Request{Type: protocol.RegistrationType})
	if res.Error != protocol.ErrMalformedMessage {
		t.Errorf("got %v, want %v", res.Error, protocol.ErrMalformedMessage)
	}
}

func TestHandleRegistrationAndNonce(t *testing.T) {
	server, _ := newTestServer(t)
	alice := protocol.NewTestAccount("alice")

	res := server.handleRequest(makeRequest(t, protocol.RegistrationType, alice.RegistrationRequest()))
	if res.Error != protocol.ReqSuccess {
		t.Fatalf("registration failed: %v", res.Error)
	}
	res = server.handleRequest(makeRequest(t, protocol.RegistrationType, alice.RegistrationRequest()))
	if res.Error != protocol.ErrIdentityExists {
		t.Errorf("re-registration: got %v, want %v", res.Error, protocol.ErrIdentityExists)
	}

	res = server.handleRequest(makeRequest(t, protocol.GetNonceType, alice.NonceRequest()))
	if res.Error != protocol.ReqSuccess {
		t.Fatalf("nonce query failed: %v", res.Error)
	}
	nonceResp, ok := res.Result.(*protocol.NonceResponse)
	if !ok {
		t.Fatalf("nonce result has type %T", res.Result)
	}
	if nonceResp.Nonce != 0 {
		t.Errorf("got nonce %v, want 0", nonceResp.Nonce)
	}
}

func TestHandleAuthProbe(t *testing.T) {
	server, _ := newTestServer(t)
	alice := protocol.NewTestAccount("alice")
	server.handleRequest(makeRequest(t, protocol.RegistrationType, alice.RegistrationRequest()))

	credential := alice.Credential()
	res := server.handleRequest(&protocol.Request{
		Type:          protocol.AuthProbeType,
		Authorization: credential,
	})
	if res.Error != protocol.ReqSuccess {
		t.Fatalf("probe failed: %v", res.Error)
	}
	// Replay.
	res = server.handleRequest(&protocol.Request{
		Type:          protocol.AuthProbeType,
		Authorization: credential,
	})
	if res.Error != protocol.ErrNonceMismatch {
		t.Errorf("replayed probe: got %v, want %v", res.Error, protocol.ErrNonceMismatch)
	}
	mismatch, ok := res.Result.(*protocol.NonceMismatch)
	if !ok {
		t.Fatalf("replayed probe result is %T, want the mismatch counters", res.Result)
	}
	if mismatch.Expected != 1 || mismatch.Received != 0 {
		t.Errorf("mismatch discloses expected=%v received=%v, want 1 and 0",
			mismatch.Expected, mismatch.Received)
	}
}

func TestHandleProofLifecycle(t *testing.T) {
	server, prover := newTestServer(t)
	alice := protocol.NewTestAccount("alice")
	bob := protocol.NewTestAccount("bob")
	for _, account := range []*protocol.TestAccount{alice, bob} {
		if res := server.handleRequest(makeRequest(t, protocol.RegistrationType, account.RegistrationRequest())); res.Error != protocol.ReqSuccess {
			t.Fatalf("register %v: %v", account.Username, res.Error)
		}
	}

	// alice -> bob relationship.
	ephemeralKey, ciphertext, err := alice.SealSecretTo(bob.PublicKey, alice.AuthSecret())
	if err != nil {
		t.Fatal(err)
	}
	credential, signature := alice.SignedCredential()
	req := makeRequest(t, protocol.AddRelationshipType, &protocol.AddRelationshipRequest{
		To: "bob", EphemeralKey: ephemeralKey, Ciphertext: ciphertext,
	})
	req.Authorization = credential
	req.Signature = signature
	if res := server.handleRequest(req); res.Error != protocol.ReqSuccess {
		t.Fatalf("add relationship: %v", res.Error)
	}

	// alice roots a chain.
	const phrase = "over the wire"
	proofBytes, err := prover.Prove(alice.TestOutputs(phrase), fold.StepsPerDegree)
	if err != nil {
		t.Fatal(err)
	}
	req = makeRequest(t, protocol.CreateOriginType, &protocol.CreateOriginRequest{Proof: proofBytes})
	req.Authorization = alice.Credential()
	res := server.handleRequest(req)
	if res.Error != protocol.ReqSuccess {
		t.Fatalf("create origin: %v", res.Error)
	}
	origin := res.Result.(*protocol.DegreeProof)

	// bob sees it and extends through it.
	res = server.handleRequest(makeRequest(t, protocol.AvailableProofsType, &protocol.LookupRequest{Username: "bob"}))
	if res.Error != protocol.ReqSuccess {
		t.Fatalf("available proofs: %v", res.Error)
	}
	available := res.Result.([]string)
	if len(available) != 1 || available[0] != origin.ID {
		t.Fatalf("frontier is %v, want [%v]", available, origin.ID)
	}

	res = server.handleRequest(makeRequest(t, protocol.ProofBundleType, &protocol.ProofBundleRequest{
		Username: "bob", ProofID: origin.ID,
	}))
	if res.Error != protocol.ReqSuccess {
		t.Fatalf("proof bundle: %v", res.Error)
	}
	bundle := res.Result.(*protocol.ProvingBundle)
	if _, err := bob.OpenSecret(bundle.EphemeralKey, bundle.Ciphertext); err != nil {
		t.Fatal(err)
	}

	extended, err := prover.Prove(bob.TestOutputs(phrase), fold.StepsPerDegree*2)
	if err != nil {
		t.Fatal(err)
	}
	req = makeRequest(t, protocol.ExtendProofType, &protocol.ExtendProofRequest{
		Proof: extended, Previous: origin.ID, Degree: 2,
	})
	req.Authorization = bob.Credential()
	if res := server.handleRequest(req); res.Error != protocol.ReqSuccess {
		t.Fatalf("extend proof: %v", res.Error)
	}

	credential, signature = bob.SignedCredential()
	req = &protocol.Request{Type: protocol.DegreesType, Authorization: credential, Signature: signature}
	res = server.handleRequest(req)
	if res.Error != protocol.ReqSuccess {
		t.Fatalf("degrees: %v", res.Error)
	}
	degrees := res.Result.([]protocol.DegreeData)
	if len(degrees) != 1 || degrees[0].Degree != 2 {
		t.Errorf("degrees are %v, want one degree-2 entry", degrees)
	}
}

func TestServerTCPRoundtrip(t *testing.T) {
	dir, teardown := testutil.CreateTLSCertForTest(t)
	defer teardown()

	server, _ := newTestServer(t)
	addrs := []*Address{{
		Address:     "tcp://" + testutil.PublicConnection,
		TLSCertPath: path.Join(dir, "server.pem"),
		TLSKeyPath:  path.Join(dir, "server.key"),
	}}
	if err := server.Run(addrs); err != nil {
		t.Fatal(err)
	}
	defer server.Shutdown()

	msg, err := json.Marshal(&protocol.Request{Type: protocol.HealthType})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := testutil.NewTCPClient(msg, testutil.PublicConnection)
	if err != nil {
		t.Fatal(err)
	}
	var res protocol.Response
	if err := json.Unmarshal(reply, &res); err != nil {
		t.Fatal(err)
	}
	if res.Error != protocol.ReqSuccess {
		t.Errorf("got %v over the wire", res.Error)
	}

	reply, err = testutil.NewTCPClient([]byte("not json"), testutil.PublicConnection)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(reply, &res); err != nil {
		t.Fatal(err)
	}
	if res.Error != protocol.ErrMalformedMessage {
		t.Errorf("malformed envelope: got %v, want %v", res.Error, protocol.ErrMalformedMessage)
	}
}
