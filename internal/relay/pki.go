// Package relay implements the QUIC/WebTransport mTLS voice relay: an
// accept loop, per-connection input/output tasks sharing a shutdown signal,
// identity binding, version negotiation, a sender-scoped monotonic
// timestamp filter, and a receivability-filtered broadcast fan-out.
package relay

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// CA is the root certificate authority that signs the relay's own server
// certificate and every client certificate it trusts. Generated fresh on
// first start and persisted by the caller (cmd/relayd) as
// <certs_path>/ca.{crt,key}.
type CA struct {
	cert *x509.Certificate
	key  ed25519.PrivateKey
}

func randomSerial() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}

// GenerateCA creates a new self-signed ED25519 root CA valid for validity.
// hostname and ips are folded into the CA's own SAN list only so tooling that
// inspects the CA cert directly (rather than the leaf it issues) still finds
// usable names; the leaf certs are what TLS handshakes actually present.
func GenerateCA(validity time.Duration, hostname string, ips []net.IP) (*CA, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("relay: generate CA key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, fmt.Errorf("relay: generate CA serial: %w", err)
	}

	cn := "bedrock-voice-chat-sub000 CA"
	if hostname != "" {
		cn = hostname + " CA"
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		DNSNames:              sanNames(hostname),
		IPAddresses:           ips,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, pub, priv)
	if err != nil {
		return nil, fmt.Errorf("relay: create CA certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("relay: parse CA certificate: %w", err)
	}
	return &CA{cert: cert, key: priv}, nil
}

// LoadCA reconstructs a CA from a previously persisted cert/key pair, e.g.
// read from <certs_path>/ca.{crt,key} by the caller.
func LoadCA(certDER []byte, key ed25519.PrivateKey) (*CA, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("relay: parse CA certificate: %w", err)
	}
	return &CA{cert: cert, key: key}, nil
}

// CertDER returns the CA certificate's raw DER bytes, for persistence.
func (ca *CA) CertDER() []byte { return ca.cert.Raw }

// Key returns the CA's private key, for persistence.
func (ca *CA) Key() ed25519.PrivateKey { return ca.key }

// Pool returns a cert pool containing only this CA, suitable for both
// ClientCAs (verifying client certs) and RootCAs (verifying the server cert).
func (ca *CA) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.cert)
	return pool
}

func sanNames(hostname string) []string {
	names := []string{"localhost"}
	if hostname != "" && hostname != "localhost" {
		names = append(names, hostname)
	}
	return names
}

// issueLeaf signs a non-CA certificate for either server or client use.
func (ca *CA) issueLeaf(cn string, validity time.Duration, extKeyUsage []x509.ExtKeyUsage, sans []string, ips []net.IP) (tls.Certificate, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("relay: generate leaf key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("relay: generate leaf serial: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		IsCA:                  false,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           extKeyUsage,
		DNSNames:              sans,
		IPAddresses:           ips,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, ca.cert, pub, ca.key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("relay: sign leaf certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("relay: parse leaf certificate: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der, ca.cert.Raw},
		PrivateKey:  priv,
		Leaf:        leaf,
	}, nil
}

// IssueServerCert signs the relay's own listening certificate. hostname and
// ips populate its SAN list.
func (ca *CA) IssueServerCert(validity time.Duration, hostname string, ips []net.IP) (tls.Certificate, error) {
	cn := "bedrock-voice-chat-sub000 relay"
	if hostname != "" {
		cn = hostname
	}
	return ca.issueLeaf(cn, validity, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, sanNames(hostname), ips)
}

// IssueClientCert signs a per-player client certificate. In the full system
// this happens behind the HTTP auth flow, out of scope here; it's
// exposed directly so cmd/relayd and tests can mint certs without that flow.
func (ca *CA) IssueClientCert(clientName string, validity time.Duration) (tls.Certificate, error) {
	return ca.issueLeaf(clientName, validity, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, nil, nil)
}

// ServerTLSConfig builds the mTLS server-side tls.Config: TLS 1.3 only, ALPN
// h3, and mandatory client certificate verification against ca.
//
// Go's tls.Config.CipherSuites only constrains TLS ≤1.2 suite negotiation;
// the standard library does not expose control over which of the three
// TLS 1.3 suites (AES_128_GCM_SHA256, AES_256_GCM_SHA384,
// CHACHA20_POLY1305_SHA256) is chosen. All three are on Go's TLS 1.3 default
// list and none are disableable, so MinVersion is the only lever available.
func ServerTLSConfig(ca *CA, serverCert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    ca.Pool(),
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{"h3"},
	}
}

// ClientTLSConfig builds the mTLS dial-side tls.Config a voice client uses
// to connect to the relay.
func ClientTLSConfig(ca *CA, clientCert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      ca.Pool(),
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{"h3"},
	}
}
