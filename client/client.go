package client

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/barryWhiteHat/Grapevine/protocol"
	"github.com/barryWhiteHat/Grapevine/utils"
)

// Config contains what the client needs to reach a server: its
// address as a scheme://address url, and for TLS endpoints either the
// server's certificate or a flag to skip verification during local
// development.
type Config struct {
	Address            string `toml:"address"`
	ServerCertPath     string `toml:"server_cert,omitempty"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify,omitempty"`
}

// Load reads the toml-encoded configuration at file.
func (conf *Config) Load(file string) error {
	if _, err := toml.DecodeFile(file, conf); err != nil {
		return fmt.Errorf("Failed to load config: %v", err)
	}
	if conf.ServerCertPath != "" {
		conf.ServerCertPath = utils.ResolvePath(conf.ServerCertPath, file)
	}
	return nil
}

// Save writes the configuration in toml encoding to file.
func (conf *Config) Save(file string) error {
	var confBuf bytes.Buffer
	e := toml.NewEncoder(&confBuf)
	if err := e.Encode(conf); err != nil {
		return err
	}
	return utils.WriteFile(file, confBuf.Bytes(), 0644)
}

// A Client sends requests to one Grapevine server. Each request uses
// its own connection.
type Client struct {
	addr      *url.URL
	tlsConfig *tls.Config
}

// New creates a client from the configuration.
func New(conf *Config) (*Client, error) {
	u, err := url.Parse(conf.Address)
	if err != nil {
		return nil, err
	}
	client := &Client{addr: u}
	if u.Scheme == "tcp" {
		tlsConfig := &tls.Config{InsecureSkipVerify: conf.InsecureSkipVerify}
		if conf.ServerCertPath != "" {
			pem, err := os.ReadFile(conf.ServerCertPath)
			if err != nil {
				return nil, err
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("Cannot parse server certificate %s", conf.ServerCertPath)
			}
			tlsConfig.RootCAs = pool
		}
		client.tlsConfig = tlsConfig
	}
	return client, nil
}

// roundTrip sends one encoded request and reads the complete reply.
func (c *Client) roundTrip(msg []byte) ([]byte, error) {
	var conn net.Conn
	var err error
	switch c.addr.Scheme {
	case "tcp":
		conn, err = tls.Dial("tcp", c.addr.Host, c.tlsConfig)
	case "unix":
		conn, err = net.Dial("unix", c.addr.Path)
	default:
		return nil, fmt.Errorf("Unknown network type %q", c.addr.Scheme)
	}
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}

// call runs one request: marshal, round trip, unmarshal. A non-success
// response surfaces as the matching protocol error.
func (c *Client) call(reqType int, authorization string, signature []byte,
	payload interface{}) (interface{}, error) {
	msg, err := MarshalRequest(reqType, authorization, signature, payload)
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(msg)
	if err != nil {
		return nil, err
	}
	response := UnmarshalResponse(reqType, reply)
	if response.Error != protocol.ReqSuccess {
		if mismatch, ok := response.Result.(*protocol.NonceMismatch); ok {
			return nil, mismatch
		}
		return nil, response.Error
	}
	return response.Result, nil
}

// Register creates the account's identity on the server.
func (c *Client) Register(account *Account) error {
	_, err := c.call(protocol.RegistrationType, "", nil, account.RegistrationRequest())
	return err
}

// Nonce fetches the account's current replay counter and stores it in
// the account.
func (c *Client) Nonce(account *Account) (uint64, error) {
	result, err := c.call(protocol.GetNonceType, "", nil, &protocol.GetNonceRequest{
		Username:  account.Username,
		Signature: account.SignUsername(),
	})
	if err != nil {
		return 0, err
	}
	resp := result.(*protocol.NonceResponse)
	account.SyncNonce(resp.Nonce)
	return resp.Nonce, nil
}

// PublicKey looks up the compound public key of a username.
func (c *Client) PublicKey(username string) ([]byte, error) {
	result, err := c.call(protocol.GetPubkeyType, "", nil, &protocol.LookupRequest{Username: username})
	if err != nil {
		return nil, err
	}
	return *result.(*[]byte), nil
}

// LookupIdentity fetches the identity record of a username.
func (c *Client) LookupIdentity(username string) (*protocol.Identity, error) {
	result, err := c.call(protocol.LookupIdentityType, "", nil, &protocol.LookupRequest{Username: username})
	if err != nil {
		return nil, err
	}
	return result.(*protocol.Identity), nil
}

// AddRelationship grants to the named user the right to extend proof
// chains through this account, shipping the account's auth secret
// sealed to the recipient's key.
func (c *Client) AddRelationship(account *Account, to string) error {
	recipientKey, err := c.PublicKey(to)
	if err != nil {
		return err
	}
	ephemeralKey, ciphertext, err := account.SealAuthSecret(recipientKey)
	if err != nil {
		return err
	}
	credential, signature := account.NextSignedCredential()
	_, err = c.call(protocol.AddRelationshipType, credential, signature,
		&protocol.AddRelationshipRequest{
			To:           to,
			EphemeralKey: ephemeralKey,
			Ciphertext:   ciphertext,
		})
	return err
}

// CreateOrigin submits the account's degree-1 proof of a new phrase.
func (c *Client) CreateOrigin(account *Account, proof []byte) (*protocol.DegreeProof, error) {
	result, err := c.call(protocol.CreateOriginType, account.NextCredential(), nil,
		&protocol.CreateOriginRequest{Proof: proof})
	if err != nil {
		return nil, err
	}
	return result.(*protocol.DegreeProof), nil
}

// ExtendProof submits the account's proof of the given degree built
// from the live proof previous.
func (c *Client) ExtendProof(account *Account, degree int, proof []byte, previous string) (*protocol.DegreeProof, error) {
	result, err := c.call(protocol.ExtendProofType, account.NextCredential(), nil,
		&protocol.ExtendProofRequest{Proof: proof, Previous: previous, Degree: degree})
	if err != nil {
		return nil, err
	}
	return result.(*protocol.DegreeProof), nil
}

// AvailableProofs lists the proofs the account may extend.
func (c *Client) AvailableProofs(account *Account) ([]string, error) {
	result, err := c.call(protocol.AvailableProofsType, "", nil,
		&protocol.LookupRequest{Username: account.Username})
	if err != nil {
		return nil, err
	}
	return *result.(*[]string), nil
}

// ProofBundle fetches the proving material for one available proof.
func (c *Client) ProofBundle(account *Account, proofID string) (*protocol.ProvingBundle, error) {
	result, err := c.call(protocol.ProofBundleType, "", nil,
		&protocol.ProofBundleRequest{Username: account.Username, ProofID: proofID})
	if err != nil {
		return nil, err
	}
	return result.(*protocol.ProvingBundle), nil
}

// Degrees summarizes the account's live proofs.
func (c *Client) Degrees(account *Account) ([]protocol.DegreeData, error) {
	credential, signature := account.NextSignedCredential()
	result, err := c.call(protocol.DegreesType, credential, signature, nil)
	if err != nil {
		return nil, err
	}
	return *result.(*[]protocol.DegreeData), nil
}

// Health checks that the server is up.
func (c *Client) Health() error {
	_, err := c.call(protocol.HealthType, "", nil, nil)
	return err
}
