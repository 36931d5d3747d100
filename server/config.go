package server

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/barryWhiteHat/Grapevine/fold"
	"github.com/barryWhiteHat/Grapevine/logger"
	"github.com/barryWhiteHat/Grapevine/utils"
)

// An Address describes one listening endpoint of the server. It
// supports TCP connections ("tcp") and Unix socket connections
// ("unix"). TCP connections must use TLS, so a TCP address is required
// to specify a certificate and the corresponding private key.
type Address struct {
	// Address is formatted as a url: scheme://address.
	Address     string `toml:"address"`
	TLSCertPath string `toml:"cert,omitempty"`
	TLSKeyPath  string `toml:"key,omitempty"`
}

// Config holds the server's startup settings: the proof store
// location, the folding parameters, the listening endpoints and the
// logger setup.
type Config struct {
	DatabasePath string         `toml:"database"`
	ParamsPath   string         `toml:"fold_params"`
	Addresses    []*Address     `toml:"addresses"`
	Logger       *logger.Config `toml:"logger"`

	path string
}

// NewConfig initializes a configuration with the given values.
func NewConfig(dbPath, paramsPath string, addrs []*Address, loggerConf *logger.Config) *Config {
	return &Config{
		DatabasePath: dbPath,
		ParamsPath:   paramsPath,
		Addresses:    addrs,
		Logger:       loggerConf,
	}
}

// Load reads the toml-encoded configuration at file. Relative paths
// inside the configuration are resolved against the file's directory.
func (conf *Config) Load(file string) error {
	if _, err := toml.DecodeFile(file, conf); err != nil {
		return fmt.Errorf("Failed to load config: %v", err)
	}
	conf.path = file
	conf.DatabasePath = utils.ResolvePath(conf.DatabasePath, file)
	conf.ParamsPath = utils.ResolvePath(conf.ParamsPath, file)
	for _, addr := range conf.Addresses {
		if addr.TLSCertPath != "" {
			addr.TLSCertPath = utils.ResolvePath(addr.TLSCertPath, file)
		}
		if addr.TLSKeyPath != "" {
			addr.TLSKeyPath = utils.ResolvePath(addr.TLSKeyPath, file)
		}
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

// loadParams reads the folding parameters the verifier is pinned to.
func loadParams(path string) (fold.Params, error) {
	var params fold.Params
	buf, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("Cannot read fold params: %v", err)
	}
	if len(buf) != len(params) {
		return params, fmt.Errorf("Fold params must be %d bytes (got %d)", len(params), len(buf))
	}
	copy(params[:], buf)
	return params, nil
}

func (addr *Address) resolveAndListen() (net.Listener, error) {
	u, err := url.Parse(addr.Address)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "tcp":
		// force to use TLS
		cer, err := tls.LoadX509KeyPair(addr.TLSCertPath, addr.TLSKeyPath)
		if err != nil {
			return nil, err
		}
		tlsConfig := &tls.Config{Certificates: []tls.Certificate{cer}}
		return tls.Listen(u.Scheme, u.Host, tlsConfig)
	case "unix":
		unixaddr, err := net.ResolveUnixAddr(u.Scheme, u.Path)
		if err != nil {
			return nil, err
		}
		return net.ListenUnix(u.Scheme, unixaddr)
	default:
		return nil, fmt.Errorf("Unknown network type %q", u.Scheme)
	}
}
