// Package certificate reads the certificate chain a host presents on its TLS port.
package certificate

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/JakeFAU/sitedigger/internal/inspect"
)

// ErrNoCertificate is returned when the handshake yields no peer certificate.
var ErrNoCertificate = errors.New("no peer certificate")

// Config tunes the Inspector.
type Config struct {
	// Port is the TLS port to dial. Defaults to 443.
	Port string
	// Timeout bounds the dial and handshake when ctx has no deadline.
	Timeout time.Duration
}

// Inspector implements inspect.CertificateInspector.
type Inspector struct {
	port   string
	dialer *tls.Dialer
	clock  inspect.Clock
}

// New builds an Inspector. Verification is skipped so that expired or
// self-signed certificates can still be reported.
func New(cfg Config, clock inspect.Clock) *Inspector {
	if cfg.Port == "" {
		cfg.Port = "443"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Inspector{
		port: cfg.Port,
		dialer: &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: cfg.Timeout},
			Config:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // reporting, not trusting
		},
		clock: clock,
	}
}

// Inspect handshakes with host and summarizes the leaf certificate.
func (i *Inspector) Inspect(ctx context.Context, host string) (*inspect.Certificate, error) {
	d := *i.dialer
	cfg := d.Config.Clone()
	cfg.ServerName = host
	d.Config = cfg

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, i.port))
	if err != nil {
		return nil, fmt.Errorf("tls dial %s: %w", host, err)
	}
	defer conn.Close() //nolint:errcheck

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil, fmt.Errorf("tls dial %s: unexpected connection type %T", host, conn)
	}
	peers := tlsConn.ConnectionState().PeerCertificates
	if len(peers) == 0 {
		return nil, fmt.Errorf("tls dial %s: %w", host, ErrNoCertificate)
	}

	leaf := peers[0]
	chain := make([]string, 0, len(peers))
	for _, c := range peers {
		chain = append(chain, c.Subject.String())
	}
	return &inspect.Certificate{
		Subject:         leaf.Subject.String(),
		Issuer:          leaf.Issuer.String(),
		ValidFrom:       leaf.NotBefore.UTC(),
		ValidTo:         leaf.NotAfter.UTC(),
		DaysUntilExpiry: int(leaf.NotAfter.Sub(i.clock.Now()).Hours() / 24),
		Chain:           chain,
	}, nil
}
