package natsserver

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Options for starting the nats server
type Options struct {
	Port       int
	HTTPPort   int
	Auth       string
	TLSCert    string
	TLSKey     string
	TLSTimeout float64
	Quiet      bool
}

// New creates an embedded nats server instance. It is not started.
func New(o Options) (*server.Server, error) {
	opts := server.Options{
		Port:          o.Port,
		HTTPPort:      o.HTTPPort,
		Authorization: o.Auth,
		NoSigs:        true,
	}

	if o.TLSCert != "" && o.TLSKey != "" {
		log.Println("Setting up NATS TLS ...")
		opts.TLS = true
		opts.TLSCert = o.TLSCert
		opts.TLSKey = o.TLSKey
		opts.TLSTimeout = o.TLSTimeout
		tc := server.TLSConfigOpts{}
		tc.CertFile = opts.TLSCert
		tc.KeyFile = opts.TLSKey
		tc.CaFile = opts.TLSCaCert
		tc.Verify = opts.TLSVerify

		var err error
		opts.TLSConfig, err = server.GenTLSConfig(&tc)

		if err != nil {
			return nil, fmt.Errorf("Error setting up TLS: %v", err)
		}
	}

	natsServer, err := server.NewServer(&opts)

	if err != nil {
		return nil, fmt.Errorf("Error create new Nats server: %v", err)
	}

	if !o.Quiet {
		authEnabled := "no"

		if o.Auth != "" {
			authEnabled = "yes"
		}

		log.Printf("NATS server, port: %v, http port: %v, auth enabled: %v\n",
			o.Port, o.HTTPPort, authEnabled)
	}

	return natsServer, nil
}

// StartTest starts a quiet server on port and waits until it accepts
// connections. Call Shutdown when done.
func StartTest(port int) (*server.Server, error) {
	s, err := New(Options{Port: port, Quiet: true})
	if err != nil {
		return nil, err
	}

	go s.Start()

	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		return nil, errors.New("timeout waiting for test nats server")
	}

	return s, nil
}
