// Package fold defines the contract the Grapevine core needs from the
// external folding-proof engine: verifying a compressed proof for a
// declared step count and surfacing its public output vector. The
// arithmetic of the folding construction itself lives outside this
// repository; package fold also ships a deterministic development
// engine so the server, client and tests can run end to end without it.
package fold

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"

	"github.com/barryWhiteHat/Grapevine/crypto"
	"github.com/barryWhiteHat/Grapevine/utils"
)

const (
	// NumOutputs is the fixed length of a proof's public output vector.
	NumOutputs = 3

	// StepsPerDegree is the number of folding steps each degree of
	// separation contributes: a proof of degree N verifies against
	// step count 2N.
	StepsPerDegree = 2

	// MaxProofSize bounds a compressed proof upload.
	MaxProofSize = 2 << 20
)

// OutputSize is the byte length of one public output field element.
const OutputSize = crypto.ScalarSize

// PublicOutputs is the output vector of a verified folding proof.
// Slot 0 holds the IVC step counter, slot 1 the phrase hash and
// slot 2 the auth hash.
type PublicOutputs [NumOutputs][OutputSize]byte

// PhraseHash returns the chain-constant phrase identifier.
func (o *PublicOutputs) PhraseHash() [OutputSize]byte { return o[1] }

// AuthHash returns the running accumulator over the consumed auth
// secrets.
func (o *PublicOutputs) AuthHash() [OutputSize]byte { return o[2] }

// A Verifier checks a compressed folding proof against a declared step
// count and returns its public outputs. Implementations must reject a
// proof whose internal step counter disagrees with stepCount. Any
// failure is reported as ErrProofInvalid; no sub-classification is
// surfaced.
type Verifier interface {
	Verify(proof []byte, stepCount int) (*PublicOutputs, error)
}

// ErrProofInvalid is returned for every verification failure.
var ErrProofInvalid = errors.New("[fold] Proof verification failed")

// Params is the shared parameter key of the development engine. A
// DevProver and DevVerifier built from the same Params agree on which
// proofs are valid.
type Params [32]byte

// devProof is the development engine's stand-in for a compressed
// folding proof.
type devProof struct {
	Outputs [NumOutputs][]byte `json:"outputs"`
	Steps   int                `json:"steps"`
	Tag     []byte             `json:"tag"`
}

func devTag(params Params, outputs *PublicOutputs, steps int) []byte {
	return crypto.Digest(params[:], outputs[0][:], outputs[1][:], outputs[2][:],
		utils.ULongToBytes(uint64(steps)))
}

// DevProver produces proofs that a DevVerifier sharing its Params
// accepts. It exists for development and tests only.
type DevProver struct {
	params Params
}

func NewDevProver(params Params) *DevProver {
	return &DevProver{params: params}
}

// Prove emits a gzip-framed proof declaring the given outputs and step
// count, matching the compressed wire shape real proofs arrive in.
func (p *DevProver) Prove(outputs *PublicOutputs, stepCount int) ([]byte, error) {
	body, err := json.Marshal(&devProof{
		Outputs: [NumOutputs][]byte{outputs[0][:], outputs[1][:], outputs[2][:]},
		Steps:   stepCount,
		Tag:     devTag(p.params, outputs, stepCount),
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DevVerifier verifies proofs produced by a DevProver with the same
// Params.
type DevVerifier struct {
	params Params
}

var _ Verifier = (*DevVerifier)(nil)

func NewDevVerifier(params Params) *DevVerifier {
	return &DevVerifier{params: params}
}

func (v *DevVerifier) Verify(proof []byte, stepCount int) (*PublicOutputs, error) {
	if len(proof) == 0 || len(proof) > MaxProofSize {
		return nil, ErrProofInvalid
	}
	zr, err := gzip.NewReader(bytes.NewReader(proof))
	if err != nil {
		return nil, ErrProofInvalid
	}
	body, err := io.ReadAll(io.LimitReader(zr, MaxProofSize))
	if err != nil {
		return nil, ErrProofInvalid
	}
	var dp devProof
	if err := json.Unmarshal(body, &dp); err != nil {
		return nil, ErrProofInvalid
	}
	if dp.Steps != stepCount {
		return nil, ErrProofInvalid
	}
	var outputs PublicOutputs
	for i := range dp.Outputs {
		if len(dp.Outputs[i]) != OutputSize {
			return nil, ErrProofInvalid
		}
		copy(outputs[i][:], dp.Outputs[i])
	}
	if !bytes.Equal(dp.Tag, devTag(v.params, &outputs, dp.Steps)) {
		return nil, ErrProofInvalid
	}
	return &outputs, nil
}
