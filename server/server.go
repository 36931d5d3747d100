// Package server wraps a protocol.Grapevine with a network layer: it
// listens on the configured endpoints, decodes request envelopes,
// dispatches them to the protocol operations and encodes the
// responses. TCP endpoints are always TLS.
package server

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/barryWhiteHat/Grapevine/fold"
	"github.com/barryWhiteHat/Grapevine/logger"
	"github.com/barryWhiteHat/Grapevine/protocol"
	"github.com/barryWhiteHat/Grapevine/storage/kv"
	"github.com/barryWhiteHat/Grapevine/storage/kv/leveldbkv"
)

// maxRequestBytes bounds a single request envelope. Proof uploads
// dominate; the bound leaves room for the JSON and base64 overhead on
// a maximum-size proof.
const maxRequestBytes = 2*fold.MaxProofSize + 64<<10

const connTimeout = 5 * time.Second

// A GrapevineServer accepts client connections and serves the
// trust-chain operations over them.
type GrapevineServer struct {
	grapevine *protocol.Grapevine
	logger    *logger.Logger
	db        kv.DB

	stop          chan struct{}
	waitStop      sync.WaitGroup
	waitCloseConn sync.WaitGroup
}

// New sets up a server from the given configuration: it opens the
// store, pins the folding verifier to the configured parameters and
// prepares the listeners. Run starts them.
func New(conf *Config) (*GrapevineServer, error) {
	db, err := leveldbkv.OpenDB(conf.DatabasePath)
	if err != nil {
		return nil, err
	}
	params, err := loadParams(conf.ParamsPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	return newServer(protocol.NewGrapevine(db, fold.NewDevVerifier(params)),
		db, logger.New(conf.Logger)), nil
}

func newServer(grapevine *protocol.Grapevine, db kv.DB, log *logger.Logger) *GrapevineServer {
	return &GrapevineServer{
		grapevine: grapevine,
		logger:    log,
		db:        db,
		stop:      make(chan struct{}),
	}
}

// Run starts listening on every configured address. It returns once
// all listeners are set up; the server runs until Shutdown.
func (server *GrapevineServer) Run(addrs []*Address) error {
	for _, addr := range addrs {
		ln, err := addr.resolveAndListen()
		if err != nil {
			return err
		}
		server.waitStop.Add(1)
		go func(addr *Address, ln net.Listener) {
			server.logger.Info("Listening", "address", addr.Address)
			server.acceptRequests(ln)
			server.waitStop.Done()
		}(addr, ln)
	}
	return nil
}

// Shutdown closes all of the server's connections and the store.
func (server *GrapevineServer) Shutdown() error {
	close(server.stop)
	server.waitStop.Wait()
	return server.db.Close()
}

func (server *GrapevineServer) acceptRequests(ln net.Listener) {
	defer ln.Close()
	go func() {
		<-server.stop
		if l, ok := ln.(interface {
			SetDeadline(time.Time) error
		}); ok {
			l.SetDeadline(time.Now())
		}
	}()

	for {
		select {
		case <-server.stop:
			server.waitCloseConn.Wait()
			return
		default:
		}
		conn, err := ln.Accept()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			server.logger.Error(err.Error())
			continue
		}
		server.waitCloseConn.Add(1)
		go func() {
			server.acceptClient(conn)
			server.waitCloseConn.Done()
		}()
	}
}

// acceptClient serves a single request: it reads the envelope until
// the client half-closes, handles it and writes the response back.
func (server *GrapevineServer) acceptClient(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, maxRequestBytes); err != nil && err != io.EOF {
		server.logger.Error(err.Error(),
			"address", conn.RemoteAddr().String())
		return
	}

	var response *protocol.Response
	req, err := UnmarshalRequest(buf.Bytes())
	if err != nil {
		response = malformedClientMsg(err)
	} else {
		response = server.handleRequest(req)
		if response.Error != protocol.ReqSuccess {
			server.logger.Warn(response.Error.Error(),
				"request type", req.Type,
				"address", conn.RemoteAddr().String())
		}
	}

	res, e := MarshalResponse(response)
	if e != nil {
		panic(e)
	}
	if _, err := conn.Write(res); err != nil {
		server.logger.Error(err.Error(),
			"address", conn.RemoteAddr().String())
	}
}
