package cosmosdb

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

var emulatorHosts = []string{"localhost", "azurecosmosemulator"}

// IsEmulator reports whether endpoint points at a local Cosmos DB emulator.
// Extra host fragments extend the built-in localhost and azurecosmosemulator.
func IsEmulator(endpoint string, extraHosts ...string) bool {
	host := strings.ToLower(endpoint)
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = strings.ToLower(u.Hostname())
	}
	for _, h := range slices.Concat(emulatorHosts, extraHosts) {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// CertificateFingerprint connects to endpoint without verifying its certificate
// and returns the SHA-256 fingerprint of the leaf certificate it presents.
func CertificateFingerprint(ctx context.Context, endpoint string) (string, error) {
	address, serverName, err := dialAddress(endpoint)
	if err != nil {
		return "", err
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 10 * time.Second},
		Config: &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: true, //nolint:gosec // the fingerprint is pinned afterwards
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return "", fmt.Errorf("no certificate presented by %s", address)
	}
	return Fingerprint(state.PeerCertificates[0]), nil
}

// Fingerprint returns the lower-case hex SHA-256 digest of a certificate.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// PinnedHTTPClient returns an HTTP client that only accepts a server certificate
// whose SHA-256 fingerprint equals fingerprint. Colons and case are ignored.
func PinnedHTTPClient(fingerprint string, timeout time.Duration) *http.Client {
	want := normalizeFingerprint(fingerprint)
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // replaced by VerifyPeerCertificate
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return errors.New("no server certificate")
			}
			sum := sha256.Sum256(rawCerts[0])
			if hex.EncodeToString(sum[:]) != want {
				return errors.New("server certificate does not match pinned fingerprint")
			}
			return nil
		},
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func normalizeFingerprint(fingerprint string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(fingerprint), ":", ""))
}

func dialAddress(endpoint string) (address, serverName string, err error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), u.Hostname(), nil
}
