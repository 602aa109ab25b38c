package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// basicAuth adds the backend credentials to every request.
type basicAuth struct {
	username, password string
	next               http.RoundTripper
}

func (b *basicAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(b.username, b.password)
	return b.next.RoundTrip(r)
}

// backendTransport returns the transport for backend calls: the private CA
// when ca_file is set, and basic auth when a username is set.
func backendTransport(cfg APIConfig) (http.RoundTripper, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CAFile)
		}
		base.TLSClientConfig = &tls.Config{RootCAs: caCertPool}
	}

	if cfg.Username == "" {
		return base, nil
	}
	return &basicAuth{username: cfg.Username, password: cfg.Password, next: base}, nil
}

func (cfg APIConfig) timeout() time.Duration {
	if cfg.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.TimeoutSecs) * time.Second
}
