package crypto

import (
	"bytes"
	"testing"
)

func TestDigest(t *testing.T) {
	d := Digest([]byte("test message"))
	if len(d) != HashSizeByte {
		t.Fatal("Computation of Hash failed.")
	}
	if bytes.Equal(d, make([]byte, HashSizeByte)) {
		t.Fatal("Hash is all zeros.")
	}
	if bytes.Equal(d, Digest([]byte("other message"))) {
		t.Fatal("Distinct messages should not collide.")
	}
}

func TestUsernameScalar(t *testing.T) {
	fr := UsernameScalar("alice")
	if !bytes.Equal(fr[:5], []byte("alice")) {
		t.Fatal("username bytes should sit at the front of the scalar")
	}
	if !bytes.Equal(fr[5:], make([]byte, ScalarSize-5)) {
		t.Fatal("scalar padding should be zero")
	}
	if UsernameScalar("alice") != UsernameScalar("alice") {
		t.Fatal("encoding must be deterministic")
	}
	if UsernameScalar("alice") == UsernameScalar("bob") {
		t.Fatal("distinct usernames must encode differently")
	}
}

func TestRandomScalar(t *testing.T) {
	s, err := RandomScalar()
	if err != nil {
		t.Fatal(err)
	}
	if s[ScalarSize-1]&0xc0 != 0 {
		t.Fatal("top two bits must be cleared")
	}
	s2, err := RandomScalar()
	if err != nil {
		t.Fatal(err)
	}
	if s == s2 {
		t.Fatal("two random scalars should not collide")
	}
}

func TestMakeRand(t *testing.T) {
	r, err := MakeRand()
	if err != nil {
		t.Fatal(err)
	}
	// check if hashed the random output:
	if len(r) != HashSizeByte {
		t.Fatal("Looks like Digest wasn't called correctly.")
	}
}
