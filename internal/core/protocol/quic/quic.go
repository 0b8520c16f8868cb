// Package quic serves the relay over QUIC and provides the matching client
// transport. Pose channels travel as unreliable datagrams; handshakes and
// membership frames travel on one bidirectional stream.
package quic

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	// ALPN negotiated by relay and peers.
	ALPN = "posesync-relay"

	DefaultIdleTimeout = 30 * time.Second
	DefaultKeepAlive   = 10 * time.Second

	// Frames larger than this go over the stream even on pose channels.
	maxDatagramFrame = 1100
)

type Config struct {
	Addr         string
	IdleTimeout  time.Duration
	KeepAlive    time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":8443",
		IdleTimeout:  DefaultIdleTimeout,
		KeepAlive:    DefaultKeepAlive,
		WriteTimeout: 5 * time.Second,
	}
}

func (c Config) quicConfig() *quic.Config {
	return &quic.Config{
		EnableDatagrams: true,
		MaxIdleTimeout:  c.IdleTimeout,
		KeepAlivePeriod: c.KeepAlive,
	}
}

// GenerateSelfSignedTLS generates a self-signed certificate for localhost,
// suitable for development relays.
func GenerateSelfSignedTLS() (*tls.Config, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"PoseSync"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{certDER}, PrivateKey: privateKey}},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientTLS returns the client configuration. insecure skips certificate
// verification for self-signed development relays.
func ClientTLS(insecure bool) *tls.Config {
	return &tls.Config{
		NextProtos:         []string{ALPN},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: insecure,
	}
}
