// Package testutil provides helpers for tests that need a running
// Grapevine server: self-signed TLS material and minimal one-shot
// clients.
package testutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"path"
	"testing"
	"time"
)

const (
	TestDir          = "grapevineServerTest"
	PublicConnection = "127.0.0.1:7040"
	LocalConnection  = "/tmp/grapevinetest.sock"
)

// CreateTLSCert writes a self-signed localhost certificate and key
// (server.pem, server.key) into dir.
func CreateTLSCert(dir string) error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(1 * time.Hour)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Grapevine"},
		},
		NotBefore: notBefore,
		NotAfter:  notAfter,

		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	template.Subject.CommonName = "localhost"
	template.IPAddresses = append(template.IPAddresses, net.ParseIP("127.0.0.1"))

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}

	certOut, err := os.Create(path.Join(dir, "server.pem"))
	if err != nil {
		return err
	}
	pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	certOut.Close()

	keyOut, err := os.OpenFile(path.Join(dir, "server.key"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	b, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: b})
	keyOut.Close()
	return nil
}

// CreateTLSCertForTest creates the TLS material in a temporary
// directory and returns the directory along with its cleanup func.
func CreateTLSCertForTest(t *testing.T) (string, func()) {
	dir, err := os.MkdirTemp("", TestDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := CreateTLSCert(dir); err != nil {
		t.Fatal(err)
	}
	return dir, func() {
		os.RemoveAll(dir)
	}
}

// NewTCPClient sends msg over one TLS connection to addr and returns
// the server's reply.
func NewTCPClient(msg []byte, addr string) ([]byte, error) {
	conf := &tls.Config{InsecureSkipVerify: true}

	conn, err := tls.Dial("tcp", addr, conf)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}
	if err := conn.CloseWrite(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewUnixClient sends msg over a Unix socket connection and returns
// the server's reply.
func NewUnixClient(msg []byte, socket string) ([]byte, error) {
	unixaddr := &net.UnixAddr{Name: socket, Net: "unix"}

	conn, err := net.DialUnix("unix", nil, unixaddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}
	conn.CloseWrite()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}
